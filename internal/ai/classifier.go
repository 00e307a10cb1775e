package ai

import (
	"context"
	"fmt"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

const classifierPrompt = `Categorize this email content into exactly one of: Promotional, Work, Personal.
Return only the category name.`

// Classifier implements mailbox.Classifier with a language model. Every
// call goes to the model; results are never cached.
type Classifier struct {
	completer Completer
}

var _ mailbox.Classifier = (*Classifier)(nil)

// NewClassifier creates a Classifier.
func NewClassifier(c Completer) *Classifier {
	return &Classifier{completer: c}
}

// Classify returns the category the model picks for content. Provider
// failures and replies outside the closed set both surface as
// mailbox.ErrClassifierUnavailable.
func (c *Classifier) Classify(
	ctx context.Context,
	content string,
) (model.Category, error) {
	text := content
	if text == "" {
		text = "(empty message)"
	}

	reply, err := c.completer.Complete(ctx, classifierPrompt, text)
	if err != nil {
		return "", fmt.Errorf("%w: %w", mailbox.ErrClassifierUnavailable, err)
	}

	category, err := model.ParseCategory(reply)
	if err != nil {
		return "", fmt.Errorf("%w: %w", mailbox.ErrClassifierUnavailable, err)
	}

	return category, nil
}
