// Package mailboxtest provides an in-memory Gateway for tests.
package mailboxtest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

// Call records one gateway invocation.
type Call struct {
	Method string
	Arg    string
}

// Gateway is a scriptable in-memory mailbox.Gateway.
type Gateway struct {
	mu sync.Mutex

	// Emails is the mailbox content, most recent first.
	Emails []model.Email

	// ListErr is returned by ListRecent when set.
	ListErr error

	// SetErrs maps a message id to the error SetCategories returns for it.
	SetErrs map[string]error

	// Reject maps a message id to SetCategories returning false, nil.
	Reject map[string]bool

	// ClassifyErrs maps content to the error Classify returns for it.
	ClassifyErrs map[string]error

	// ClassifyFunc overrides the default keyword classifier.
	ClassifyFunc func(content string) (model.Category, error)

	// SendErr is returned by Send when set.
	SendErr error

	// NoReceipt makes Send report success without a receipt.
	NoReceipt bool

	categories map[string][]model.Category
	sent       []model.Receipt
	calls      []Call
}

var _ mailbox.Gateway = (*Gateway)(nil)

// New returns a fake gateway holding emails.
func New(emails ...model.Email) *Gateway {
	return &Gateway{Emails: emails}
}

// ListRecent returns up to count emails.
func (g *Gateway) ListRecent(
	_ context.Context, count int,
) ([]model.Email, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record("ListRecent", fmt.Sprint(count))
	if g.ListErr != nil {
		return nil, g.ListErr
	}
	n := min(count, len(g.Emails))
	return slices.Clone(g.Emails[:n]), nil
}

// SetCategories stores categories for id. Unknown ids fail with
// mailbox.ErrNotFound.
func (g *Gateway) SetCategories(
	_ context.Context, messageID string, categories []model.Category,
) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record("SetCategories", messageID)
	if err := g.SetErrs[messageID]; err != nil {
		return false, err
	}
	if g.Reject[messageID] {
		return false, nil
	}
	if !g.has(messageID) {
		return false, fmt.Errorf("%w: %s", mailbox.ErrNotFound, messageID)
	}
	if g.categories == nil {
		g.categories = make(map[string][]model.Category)
	}
	g.categories[messageID] = slices.Clone(categories)
	return true, nil
}

// Send validates recipients and records the message.
func (g *Gateway) Send(
	_ context.Context, recipients []string, subject, body string,
) (*model.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record("Send", subject)
	if g.SendErr != nil {
		return nil, g.SendErr
	}
	if g.NoReceipt {
		return nil, nil
	}
	addrs, err := mailbox.ValidateRecipients(recipients)
	if err != nil {
		return nil, err
	}
	receipt := model.Receipt{
		MessageID:  fmt.Sprintf("sent-%d", len(g.sent)+1),
		Recipients: addrs,
		Subject:    subject,
		SentAt:     time.Now(),
	}
	g.sent = append(g.sent, receipt)
	return &receipt, nil
}

// Classify uses ClassifyFunc, or a keyword rule: "offer" or "sale" is
// Promotional, "meeting" or "project" is Work, anything else Personal.
func (g *Gateway) Classify(
	_ context.Context, content string,
) (model.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.record("Classify", content)
	if err := g.ClassifyErrs[content]; err != nil {
		return "", err
	}
	if g.ClassifyFunc != nil {
		return g.ClassifyFunc(content)
	}
	return KeywordCategory(content), nil
}

// Categories returns the categories stored for id.
func (g *Gateway) Categories(id string) []model.Category {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.categories[id])
}

// Sent returns the receipts of every sent message.
func (g *Gateway) Sent() []model.Receipt {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.sent)
}

// Calls returns every recorded invocation in order.
func (g *Gateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallCount returns how many times method was invoked.
func (g *Gateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (g *Gateway) record(method, arg string) {
	g.calls = append(g.calls, Call{Method: method, Arg: arg})
}

func (g *Gateway) has(id string) bool {
	for _, e := range g.Emails {
		if e.ID == id {
			return true
		}
	}
	return false
}
