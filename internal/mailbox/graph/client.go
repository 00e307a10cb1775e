// Package graph implements the mailbox gateway against the Microsoft
// Graph mail API (Outlook / Microsoft 365). Requests are authorized by an
// oauth2.TokenSource; categories map to Outlook message categories.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/nhle/mailagent/internal/mailbox"
	"github.com/nhle/mailagent/internal/model"
)

const listFields = "id,subject,from,toRecipients,receivedDateTime,bodyPreview,categories"

// Client implements mailbox.Mailbox over Microsoft Graph.
type Client struct {
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

var _ mailbox.Mailbox = (*Client)(nil)

// NewClient creates a Graph client that authorizes every request with a
// token from ts.
func NewClient(ctx context.Context, baseURL string, ts oauth2.TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: oauth2.NewClient(ctx, ts),
		now:        time.Now,
	}
}

// ListRecent returns the newest count messages across the mailbox.
func (c *Client) ListRecent(
	ctx context.Context, count int,
) ([]model.Email, error) {
	if count < 1 {
		count = model.DefaultListCount
	}

	q := url.Values{}
	q.Set("$top", strconv.Itoa(count))
	q.Set("$orderby", "receivedDateTime desc")
	q.Set("$select", listFields)

	var resp messageList
	if err := c.do(ctx, http.MethodGet, "/me/messages?"+q.Encode(), nil, &resp); err != nil {
		return nil, fmt.Errorf("listing recent emails: %w", err)
	}

	emails := make([]model.Email, 0, len(resp.Value))
	for _, m := range resp.Value {
		emails = append(emails, m.toEmail())
	}
	return emails, nil
}

// SetCategories replaces the Outlook categories of a message.
func (c *Client) SetCategories(
	ctx context.Context,
	messageID string,
	categories []model.Category,
) (bool, error) {
	if messageID == "" {
		return false, fmt.Errorf("%w: empty message id", mailbox.ErrNotFound)
	}

	body := categoryPatch{Categories: model.CategoryNames(categories)}
	path := "/me/messages/" + url.PathEscape(messageID)

	if err := c.do(ctx, http.MethodPatch, path, body, nil); err != nil {
		return false, fmt.Errorf("setting categories on %s: %w", messageID, err)
	}
	return true, nil
}

// Send submits a plain-text message and saves it to Sent Items. Graph
// does not return the new message id, so the receipt carries the
// request id instead.
func (c *Client) Send(
	ctx context.Context,
	recipients []string,
	subject string,
	body string,
) (*model.Receipt, error) {
	addrs, err := mailbox.ValidateRecipients(recipients)
	if err != nil {
		return nil, err
	}

	req := sendMailRequest{
		Message: outgoingMessage{
			Subject: subject,
			Body:    itemBody{ContentType: "Text", Content: body},
		},
		SaveToSentItems: true,
	}
	for _, a := range addrs {
		req.Message.ToRecipients = append(req.Message.ToRecipients,
			recipient{EmailAddress: emailAddress{Address: a}})
	}

	sentAt := c.now()
	requestID, err := c.doWithRequestID(ctx, http.MethodPost, "/me/sendMail", req, nil)
	if err != nil {
		if errors.Is(err, errBadRequest) {
			return nil, fmt.Errorf("%w: %w", mailbox.ErrInvalidRecipient, err)
		}
		return nil, fmt.Errorf("sending email: %w", err)
	}

	return &model.Receipt{
		MessageID:  requestID,
		Recipients: addrs,
		Subject:    subject,
		SentAt:     sentAt,
	}, nil
}

func (c *Client) do(
	ctx context.Context, method, path string, in, out any,
) error {
	_, err := c.doWithRequestID(ctx, method, path, in, out)
	return err
}

// doWithRequestID sends a JSON request, decodes a JSON response into out
// when non-nil, and returns Graph's request-id header.
func (c *Client) doWithRequestID(
	ctx context.Context, method, path string, in, out any,
) (string, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return "", fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", mailbox.Unavailable("reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, respBody)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return "", fmt.Errorf("decoding response: %w", err)
		}
	}

	return resp.Header.Get("request-id"), nil
}
