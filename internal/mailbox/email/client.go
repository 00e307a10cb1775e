package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
// Every call opens its own connection and logs out when done.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, mailbox.Unavailable("connecting to IMAP "+addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailbox.AuthError{
			Provider: model.ProviderIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// FetchRecent selects folder and returns up to limit messages with their
// bodies, most recent first.
func (c *IMAPClient) FetchRecent(
	ctx context.Context, folder string, limit int,
) ([]ParsedMessage, error) {
	client, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return nil, mailbox.Unavailable("selecting "+folder, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
	if err != nil {
		return nil, mailbox.Unavailable("searching messages", err)
	}

	uids := newestUIDs(searchData.AllUIDs(), limit)
	if len(uids) == 0 {
		return []ParsedMessage{}, nil
	}

	bodySection := &imap.FetchItemBodySection{
		Peek: true,
	}

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	byUID := make(map[uint32]ParsedMessage, len(uids))
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		parsed := ParsedMessage{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			parsed.TextBody, parsed.HTMLBody = parseMIMEBody(raw)
		}
		byUID[parsed.Envelope.UID] = parsed
	}

	if err := fetchCmd.Close(); err != nil {
		return nil, mailbox.Unavailable("fetching messages", err)
	}

	// FETCH responses arrive in sequence order; return newest first.
	out := make([]ParsedMessage, 0, len(byUID))
	for i := len(uids) - 1; i >= 0; i-- {
		if m, ok := byUID[uint32(uids[i])]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ReplaceKeywords removes every keyword on uid that matches owned and
// then adds keywords. It fails with mailbox.ErrNotFound when uid is not
// in folder.
func (c *IMAPClient) ReplaceKeywords(
	ctx context.Context,
	folder string,
	uid uint32,
	owned func(string) bool,
	keywords []imap.Flag,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return mailbox.Unavailable("selecting "+folder, err)
	}

	uidSet := imap.UIDSetNum(imap.UID(uid))

	fetchCmd := client.Fetch(uidSet, &imap.FetchOptions{UID: true, Flags: true})
	msgs, err := fetchCmd.Collect()
	if err != nil {
		return mailbox.Unavailable("fetching flags", err)
	}
	if len(msgs) == 0 {
		return fmt.Errorf("%w: uid %d", mailbox.ErrNotFound, uid)
	}

	current := make([]string, 0, len(msgs[0].Flags))
	for _, f := range msgs[0].Flags {
		current = append(current, string(f))
	}
	remove, add := keywordDiff(current, keywords, owned)

	if len(remove) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsDel,
			Silent: true,
			Flags:  remove,
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return mailbox.Unavailable("removing keywords", err)
		}
	}

	if len(add) > 0 {
		storeCmd := client.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  add,
		}, nil)
		if err := storeCmd.Close(); err != nil {
			return mailbox.Unavailable("adding keywords", err)
		}
	}

	return nil
}

// newestUIDs returns the last limit UIDs of an ascending UID list.
func newestUIDs(uids []imap.UID, limit int) []imap.UID {
	slices.Sort(uids)
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	return uids
}

// keywordDiff returns the owned keywords to remove from current and the
// wanted keywords not already present.
func keywordDiff(
	current []string, wanted []imap.Flag, owned func(string) bool,
) (remove, add []imap.Flag) {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[strings.ToLower(string(w))] = true
	}

	have := make(map[string]bool, len(current))
	for _, f := range current {
		have[strings.ToLower(f)] = true
		if owned(f) && !want[strings.ToLower(f)] {
			remove = append(remove, imap.Flag(f))
		}
	}

	for _, w := range wanted {
		if !have[strings.ToLower(string(w))] {
			add = append(add, w)
		}
	}
	return remove, add
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				env.From = from.Name
			} else {
				env.From = from.Addr()
			}
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
	}

	if !buf.InternalDate.IsZero() {
		env.Date = buf.InternalDate
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	return env
}

// parseMIMEBody parses a raw RFC 5322 message with go-message and
// returns its text/plain and text/html bodies. Attachments are skipped.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Not MIME; treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}
