// Package credential stores secrets in the OS keyring, falling back to an
// encrypted file when no keyring service is available.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/mailagent/internal/model"
)

const serviceName = "mailagent"

// ErrNotFound is returned when no credential is stored under a key.
var ErrNotFound = keyring.ErrKeyNotFound

// Key names for the secrets the agent needs.
const (
	KeyAIAPIKey = "ai-api-key"
)

// MailboxKey returns the key holding the mailbox secret for cfg: the IMAP
// password, or the Graph OAuth token.
func MailboxKey(cfg model.MailboxConfig) string {
	if cfg.Provider == model.ProviderGraph {
		return "graph-token"
	}
	return "imap-password:" + cfg.Username
}

// AIKey returns the key holding the API key for an AI provider.
func AIKey(provider string) string {
	return KeyAIAPIKey + ":" + provider
}

// openKeyring returns a configured keyring instance.
var openKeyring = func() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailagent/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailagent-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Lookup returns the value from env when non-empty, else the keyring
// value stored under key.
func Lookup(key, env string) (string, error) {
	if env != "" {
		return env, nil
	}
	v, err := Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", fmt.Errorf("no credential stored for %q (run `mailagent login`): %w", key, err)
	}
	return v, err
}
