package dropbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
)

// OAuthClient drives the two server-to-server token exchanges against
// Dropbox: the authorization-code exchange in the callback path and the
// refresh-token exchange that mints short-lived access tokens. The HTTP
// client is owned and injected at construction.
type OAuthClient struct {
	appKey      string
	appSecret   string
	authURL     string
	tokenURL    string
	redirectURL string
	client      *http.Client
}

// OAuthConfig holds the settings for an OAuthClient. Empty endpoint
// fields fall back to the public Dropbox endpoints.
type OAuthConfig struct {
	AppKey      string
	AppSecret   string
	AuthURL     string
	TokenURL    string
	RedirectURL string
	HTTPClient  *http.Client
}

// NewOAuthClient creates a Dropbox OAuth client.
func NewOAuthClient(cfg OAuthConfig) (*OAuthClient, error) {
	if cfg.AppKey == "" {
		return nil, fmt.Errorf("app key is required")
	}
	if cfg.AppSecret == "" {
		return nil, fmt.Errorf("app secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, fmt.Errorf("redirect URL is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = DefaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &OAuthClient{
		appKey:      cfg.AppKey,
		appSecret:   cfg.AppSecret,
		authURL:     cfg.AuthURL,
		tokenURL:    cfg.TokenURL,
		redirectURL: cfg.RedirectURL,
		client:      cfg.HTTPClient,
	}, nil
}

func (c *OAuthClient) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.appKey,
		ClientSecret: c.appSecret,
		RedirectURL:  c.redirectURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.authURL,
			TokenURL: c.tokenURL,
		},
	}
}

// AuthCodeURL builds the hosted consent URL for a flow state.
// token_access_type=offline is required or Dropbox omits the refresh
// token from the code exchange.
func (c *OAuthClient) AuthCodeURL(state string) string {
	return c.oauth2Config().AuthCodeURL(state,
		oauth2.SetAuthURLParam("token_access_type", "offline"))
}

// ExchangeCode exchanges an authorization code for the long-lived
// refresh token. The provider's access token from this exchange is
// discarded; only the refresh token is kept.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.client)

	token, err := c.oauth2Config().Exchange(ctx, code)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return "", &ProviderError{
				StatusCode: retrieveErr.Response.StatusCode,
				Body:       string(retrieveErr.Body),
			}
		}
		return "", fmt.Errorf("exchanging code: %w", err)
	}
	if token.RefreshToken == "" {
		return "", ErrMissingRefreshToken
	}
	return token.RefreshToken, nil
}

// RefreshAccessToken exchanges a stored refresh token for a short-lived
// provider access token using basic-auth client credentials.
func (c *OAuthClient) RefreshAccessToken(ctx context.Context, refreshToken string) (string, error) {
	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("creating refresh request: %w", err)
	}
	req.SetBasicAuth(c.appKey, c.appSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("parsing refresh response: %w", err)
	}
	return tokenResp.AccessToken, nil
}
