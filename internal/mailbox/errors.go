package mailbox

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// Gateway error kinds. Implementations wrap these with fmt.Errorf("%w")
// so callers can test with errors.Is.
var (
	ErrRemoteUnavailable     = errors.New("remote unavailable")
	ErrAuthExpired           = errors.New("authentication expired")
	ErrNotFound              = errors.New("message not found")
	ErrInvalidRecipient      = errors.New("invalid recipient")
	ErrClassifierUnavailable = errors.New("classifier unavailable")
)

// AuthError indicates that authentication has failed or expired for a
// provider. It matches ErrAuthExpired under errors.Is.
type AuthError struct {
	Provider string
	Message  string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Provider, e.Message)
}

// Unwrap lets errors.Is(err, ErrAuthExpired) succeed.
func (e *AuthError) Unwrap() error {
	return ErrAuthExpired
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// Unavailable wraps err as ErrRemoteUnavailable, keeping err in the chain.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrRemoteUnavailable, err)
}

// ValidateRecipients checks that every recipient is a syntactically valid
// address and returns the bare addresses.
func ValidateRecipients(recipients []string) ([]string, error) {
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrInvalidRecipient)
	}

	addrs := make([]string, 0, len(recipients))
	for _, r := range recipients {
		parsed, err := mail.ParseAddress(strings.TrimSpace(r))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidRecipient, r, err)
		}
		addrs = append(addrs, parsed.Address)
	}
	return addrs, nil
}
