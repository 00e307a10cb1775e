package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/nhle/mailagent/internal/model"
)

// Scopes requested for the mail operations the gateway performs.
var Scopes = []string{
	"offline_access",
	"https://graph.microsoft.com/Mail.ReadWrite",
	"https://graph.microsoft.com/Mail.Send",
}

// TokenSource builds the token source for stored credentials. stored is
// either a raw access token or a JSON-encoded oauth2.Token. A token with
// a refresh token is refreshed through the configured Azure AD app when
// a client id is set; anything else is used as a static token.
func TokenSource(
	ctx context.Context, cfg model.MailboxConfig, stored string,
) (oauth2.TokenSource, error) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return nil, fmt.Errorf("no graph token stored")
	}

	tok := &oauth2.Token{AccessToken: stored}
	if strings.HasPrefix(stored, "{") {
		tok = &oauth2.Token{}
		if err := json.Unmarshal([]byte(stored), tok); err != nil {
			return nil, fmt.Errorf("decoding stored graph token: %w", err)
		}
	}

	if tok.RefreshToken == "" || cfg.GraphClientID == "" {
		return oauth2.StaticTokenSource(tok), nil
	}

	return OAuthConfig(cfg).TokenSource(ctx, tok), nil
}

// OAuthConfig returns the Azure AD public client config for cfg.
func OAuthConfig(cfg model.MailboxConfig) *oauth2.Config {
	tenant := cfg.GraphTenant
	if tenant == "" {
		tenant = "common"
	}
	return &oauth2.Config{
		ClientID: cfg.GraphClientID,
		Endpoint: microsoft.AzureADEndpoint(tenant),
		Scopes:   Scopes,
	}
}

// DeviceLogin runs the OAuth 2.0 device authorization flow. show is
// called once with the verification URI and user code to display.
func DeviceLogin(
	ctx context.Context,
	cfg model.MailboxConfig,
	show func(*oauth2.DeviceAuthResponse),
) (*oauth2.Token, error) {
	if cfg.GraphClientID == "" {
		return nil, fmt.Errorf("mailbox.graph_client_id is required for device login")
	}

	conf := OAuthConfig(cfg)
	da, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting device authorization: %w", err)
	}
	show(da)

	tok, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("waiting for device authorization: %w", err)
	}
	return tok, nil
}
