package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

var errBadRequest = errors.New("bad request")

// APIError is a non-2xx Graph response that maps to no gateway error kind.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph API error %d: %s", e.StatusCode, e.Message)
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError maps a failed Graph response to the gateway error kinds.
func statusError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Message: http.StatusText(status)}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
		apiErr.Code = er.Error.Code
		apiErr.Message = er.Error.Message
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &mailbox.AuthError{Provider: model.ProviderGraph, Message: apiErr.Error()}
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %w", mailbox.ErrNotFound, apiErr)
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %w", errBadRequest, apiErr)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %w", mailbox.ErrRemoteUnavailable, apiErr)
	default:
		return apiErr
	}
}

// transportError classifies an error from http.Client.Do. Token refresh
// failures surface as auth errors, everything else as unavailability.
func transportError(method string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return &mailbox.AuthError{
			Provider: model.ProviderGraph,
			Message:  fmt.Sprintf("refreshing token: %v", retrieveErr),
		}
	}
	return mailbox.Unavailable(method+" request", err)
}
