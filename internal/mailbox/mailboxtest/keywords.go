package mailboxtest

import (
	"strings"

	"github.com/nhle/mailagent/internal/model"
)

// KeywordCategory is a deterministic stand-in for a model classifier.
func KeywordCategory(content string) model.Category {
	lower := strings.ToLower(content)
	switch {
	case strings.Contains(lower, "offer"), strings.Contains(lower, "sale"):
		return model.CategoryPromotional
	case strings.Contains(lower, "meeting"), strings.Contains(lower, "project"):
		return model.CategoryWork
	default:
		return model.CategoryPersonal
	}
}

// Email builds a test email with the given id and preview.
func Email(id, preview string) model.Email {
	return model.Email{ID: id, Subject: "subject " + id, BodyPreview: preview}
}
