package graph

import (
	"time"

	"github.com/nhle/mailagent/internal/model"
)

type emailAddress struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type message struct {
	ID               string      `json:"id"`
	Subject          string      `json:"subject"`
	From             *recipient  `json:"from"`
	ToRecipients     []recipient `json:"toRecipients"`
	ReceivedDateTime time.Time   `json:"receivedDateTime"`
	BodyPreview      string      `json:"bodyPreview"`
	Categories       []string    `json:"categories"`
}

type messageList struct {
	Value []message `json:"value"`
}

type categoryPatch struct {
	Categories []string `json:"categories"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type outgoingMessage struct {
	Subject      string      `json:"subject"`
	Body         itemBody    `json:"body"`
	ToRecipients []recipient `json:"toRecipients"`
}

type sendMailRequest struct {
	Message         outgoingMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

func (m message) toEmail() model.Email {
	e := model.Email{
		ID:          m.ID,
		Subject:     m.Subject,
		ReceivedAt:  m.ReceivedDateTime,
		BodyPreview: m.BodyPreview,
		Categories:  model.ParseCategories(m.Categories),
		Raw:         map[string]any{"categories": m.Categories},
	}

	if m.From != nil {
		e.From = m.From.EmailAddress.Name
		if e.From == "" {
			e.From = m.From.EmailAddress.Address
		}
	}

	for _, r := range m.ToRecipients {
		e.To = append(e.To, r.EmailAddress.Address)
	}

	return e
}
