// Package mailbox defines the gateway contract the plan executor calls
// through, the typed errors gateways return, and helpers shared by the
// concrete IMAP and Microsoft Graph implementations.
package mailbox

import (
	"context"

	"github.com/nhle/mailagent/internal/model"
)

// Reader lists messages.
type Reader interface {
	// ListRecent returns up to count messages, most recent first.
	ListRecent(ctx context.Context, count int) ([]model.Email, error)
}

// Writer mutates the mailbox.
type Writer interface {
	// SetCategories replaces the categories of a message. Setting the
	// same list twice must report true both times.
	SetCategories(
		ctx context.Context,
		messageID string,
		categories []model.Category,
	) (bool, error)

	// Send submits a new plain-text message.
	Send(
		ctx context.Context,
		recipients []string,
		subject string,
		body string,
	) (*model.Receipt, error)
}

// Mailbox combines read and write operations. The concrete IMAP and Graph
// clients satisfy this.
type Mailbox interface {
	Reader
	Writer
}

// Classifier assigns a category to message content. Results are not
// assumed to be deterministic and must not be cached.
type Classifier interface {
	Classify(ctx context.Context, content string) (model.Category, error)
}

// Gateway is everything the plan executor needs.
type Gateway interface {
	Mailbox
	Classifier
}

type composite struct {
	Mailbox
	Classifier
}

// Compose joins a mailbox backend and a classifier into a Gateway.
func Compose(mb Mailbox, cls Classifier) Gateway {
	return composite{Mailbox: mb, Classifier: cls}
}
