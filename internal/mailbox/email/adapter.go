// Package email implements the mailbox gateway over IMAP and SMTP.
//
// Categories are stored as IMAP keywords named $Category_<Name>, so any
// client that shows keywords (Thunderbird tags, for instance) sees them.
package email

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

const (
	categoryKeywordPrefix = "$Category_"

	// previewLength caps BodyPreview, in runes.
	previewLength = 255
)

// Adapter implements mailbox.Mailbox for IMAP/SMTP accounts.
type Adapter struct {
	imapClient *IMAPClient
	smtpConfig SMTPConfig
	folder     string
	username   string
	now        func() time.Time
}

var _ mailbox.Mailbox = (*Adapter)(nil)

// NewAdapter creates an adapter from the mailbox settings and password.
func NewAdapter(cfg model.MailboxConfig, password string) *Adapter {
	folder := cfg.Folder
	if folder == "" {
		folder = "INBOX"
	}

	return &Adapter{
		imapClient: NewIMAPClient(
			cfg.IMAPHost, cfg.IMAPPort, cfg.Username, password, cfg.TLS,
		),
		smtpConfig: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: password,
			TLS:      cfg.TLS,
		},
		folder:   folder,
		username: cfg.Username,
		now:      time.Now,
	}
}

// ValidateConnection verifies IMAP credentials by connecting,
// authenticating, and selecting the configured folder. Returns the
// username on success.
func (a *Adapter) ValidateConnection(
	ctx context.Context,
) (string, error) {
	client, err := a.imapClient.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("validating email connection: %w", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(a.folder, nil).Wait(); err != nil {
		return "", fmt.Errorf("selecting %s: %w", a.folder, err)
	}

	return a.username, nil
}

// ListRecent returns up to count messages from the folder, most recent
// first.
func (a *Adapter) ListRecent(
	ctx context.Context, count int,
) ([]model.Email, error) {
	if count < 1 {
		count = model.DefaultListCount
	}

	msgs, err := a.imapClient.FetchRecent(ctx, a.folder, count)
	if err != nil {
		return nil, fmt.Errorf("listing recent emails: %w", err)
	}

	emails := make([]model.Email, 0, len(msgs))
	for _, m := range msgs {
		emails = append(emails, messageToEmail(m))
	}
	return emails, nil
}

// SetCategories replaces the category keywords of the message whose UID
// is messageID. Other keywords and system flags are left alone.
func (a *Adapter) SetCategories(
	ctx context.Context,
	messageID string,
	categories []model.Category,
) (bool, error) {
	uid, err := parseUID(messageID)
	if err != nil {
		return false, err
	}

	keywords := make([]imap.Flag, 0, len(categories))
	for _, c := range categories {
		keywords = append(keywords, categoryKeyword(c))
	}

	err = a.imapClient.ReplaceKeywords(
		ctx, a.folder, uid, isCategoryKeyword, keywords,
	)
	if err != nil {
		return false, fmt.Errorf("setting categories on %s: %w", messageID, err)
	}
	return true, nil
}

// Send composes a plain-text message and submits it over SMTP.
func (a *Adapter) Send(
	ctx context.Context,
	recipients []string,
	subject string,
	body string,
) (*model.Receipt, error) {
	addrs, err := mailbox.ValidateRecipients(recipients)
	if err != nil {
		return nil, err
	}

	sentAt := a.now()
	msg, messageID, err := composeMessage(a.username, addrs, subject, body, sentAt)
	if err != nil {
		return nil, fmt.Errorf("composing message: %w", err)
	}

	if err := sendMail(ctx, a.smtpConfig, a.username, addrs, msg); err != nil {
		return nil, fmt.Errorf("sending email: %w", err)
	}

	return &model.Receipt{
		MessageID:  messageID,
		Recipients: addrs,
		Subject:    subject,
		SentAt:     sentAt,
	}, nil
}

// messageToEmail converts a fetched message to a model.Email.
func messageToEmail(m ParsedMessage) model.Email {
	env := m.Envelope

	text := m.TextBody
	if text == "" && m.HTMLBody != "" {
		text = stripHTML(m.HTMLBody)
	}

	return model.Email{
		ID:          strconv.FormatUint(uint64(env.UID), 10),
		Subject:     env.Subject,
		From:        env.From,
		To:          env.To,
		ReceivedAt:  env.Date,
		BodyPreview: preview(text),
		Categories:  categoriesFromFlags(env.Flags),
		Raw: map[string]any{
			"uid":        env.UID,
			"message_id": env.MessageID,
			"flags":      env.Flags,
		},
	}
}

// composeMessage writes a single-part text/plain RFC 5322 message and
// returns it with its generated Message-ID.
func composeMessage(
	from string, to []string, subject, body string, date time.Time,
) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(date)
	h.SetAddressList("From", []*mail.Address{{Address: from}})

	toList := make([]*mail.Address, 0, len(to))
	for _, addr := range to {
		toList = append(toList, &mail.Address{Address: addr})
	}
	h.SetAddressList("To", toList)
	h.SetSubject(subject)
	h.SetContentType("text/plain", map[string]string{"charset": "UTF-8"})

	if err := h.GenerateMessageID(); err != nil {
		return nil, "", fmt.Errorf("generating message id: %w", err)
	}
	messageID, err := h.MessageID()
	if err != nil {
		return nil, "", fmt.Errorf("reading message id: %w", err)
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		return nil, "", fmt.Errorf("writing body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing message: %w", err)
	}

	return buf.Bytes(), messageID, nil
}

func categoryKeyword(c model.Category) imap.Flag {
	return imap.Flag(categoryKeywordPrefix + string(c))
}

func isCategoryKeyword(flag string) bool {
	return len(flag) > len(categoryKeywordPrefix) &&
		strings.EqualFold(flag[:len(categoryKeywordPrefix)], categoryKeywordPrefix)
}

// categoriesFromFlags maps $Category_ keywords back to categories.
// Unknown category names are dropped.
func categoriesFromFlags(flags []string) []model.Category {
	var names []string
	for _, f := range flags {
		if isCategoryKeyword(f) {
			names = append(names, f[len(categoryKeywordPrefix):])
		}
	}
	return model.ParseCategories(names)
}

// parseUID converts a message id to a UID. A malformed id cannot name
// any message, so it reports mailbox.ErrNotFound.
func parseUID(messageID string) (uint32, error) {
	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil || uid == 0 {
		return 0, fmt.Errorf(
			"%w: invalid email UID %q", mailbox.ErrNotFound, messageID,
		)
	}
	return uint32(uid), nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// preview collapses whitespace and truncates text to previewLength runes.
func preview(text string) string {
	text = strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
	runes := []rune(text)
	if len(runes) > previewLength {
		return string(runes[:previewLength])
	}
	return text
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags from a string and decodes common
// entities, providing a basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(result))
}
