package email

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	To        []string
	Date      time.Time
	Flags     []string // \Seen, \Flagged, $Category_Work, ...
	UID       uint32
}

// ParsedMessage holds the envelope and decoded bodies of a message.
type ParsedMessage struct {
	Envelope Envelope
	TextBody string
	HTMLBody string
}

// SMTPConfig holds the SMTP server settings for outgoing mail.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	TLS      bool
}
