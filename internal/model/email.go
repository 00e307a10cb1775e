package model

import "time"

// Email is the mailbox message representation shared by all gateways.
type Email struct {
	// ID is the gateway's opaque, stable identifier for the message
	// (IMAP UID as decimal string, Graph message id).
	ID string `json:"id"`

	// Subject is the message subject line.
	Subject string `json:"subject"`

	// From is the display name or address of the sender.
	From string `json:"from"`

	// To holds the recipient addresses.
	To []string `json:"to,omitempty"`

	// ReceivedAt is when the mailbox received the message.
	ReceivedAt time.Time `json:"received_at"`

	// BodyPreview is a short plain-text excerpt of the body. May be empty.
	BodyPreview string `json:"body_preview"`

	// Categories holds the categories currently assigned to the message.
	Categories []Category `json:"categories,omitempty"`

	// Raw holds provider-specific fields passed through untouched.
	Raw map[string]any `json:"raw,omitempty"`
}

// Receipt is returned by a gateway after a message has been submitted.
type Receipt struct {
	MessageID  string    `json:"message_id,omitempty"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	SentAt     time.Time `json:"sent_at"`
}
