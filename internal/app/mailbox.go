package app

import (
	"context"
	"fmt"
	"os"

	"github.com/nhle/mailagent/internal/credential"
	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/mailbox/email"
	"github.com/nhle/mailagent/internal/mailbox/graph"
	"github.com/nhle/mailagent/internal/model"
)

// openMailbox builds the mailbox backend for the configured provider,
// loading its secret from the environment or the system keyring.
func openMailbox(ctx context.Context, cfg model.MailboxConfig) (mailbox.Mailbox, error) {
	secret, err := credential.Lookup(credential.MailboxKey(cfg), os.Getenv(EnvMailboxSecret))
	if err != nil {
		return nil, fmt.Errorf("loading %s credentials: %w", cfg.Provider, err)
	}

	switch cfg.Provider {
	case model.ProviderIMAP:
		return email.NewAdapter(cfg, secret), nil
	case model.ProviderGraph:
		ts, err := graph.TokenSource(ctx, cfg, secret)
		if err != nil {
			return nil, err
		}
		return graph.NewClient(ctx, cfg.GraphBaseURL, ts), nil
	default:
		return nil, fmt.Errorf("unknown mailbox provider %q", cfg.Provider)
	}
}

// ValidateMailbox checks stored credentials against the server. For IMAP
// it logs in and selects the folder; for Graph it lists one message.
func ValidateMailbox(ctx context.Context, cfg model.MailboxConfig) error {
	mb, err := openMailbox(ctx, cfg)
	if err != nil {
		return err
	}

	if a, ok := mb.(*email.Adapter); ok {
		_, err := a.ValidateConnection(ctx)
		return err
	}

	_, err = mb.ListRecent(ctx, 1)
	return err
}
