// Package dropbox provides the Dropbox OAuth token endpoints and the
// slice of the files API this service consumes.
package dropbox

import (
	"errors"
	"fmt"
)

// Default Dropbox endpoints.
const (
	DefaultAuthURL  = "https://www.dropbox.com/oauth2/authorize"
	DefaultTokenURL = "https://api.dropboxapi.com/oauth2/token"
	DefaultAPIURL   = "https://api.dropboxapi.com"
)

// ErrMissingRefreshToken indicates the code exchange response carried no
// refresh token, which means the authorize request lacked
// token_access_type=offline.
var ErrMissingRefreshToken = errors.New("provider response missing refresh token")

// ProviderError is a non-success response from a Dropbox endpoint. The
// status is proxied to the caller; the body is logged server side only.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.StatusCode)
}

// tokenResponse is the wire shape of Dropbox's token endpoint responses.
// Access tokens are short-lived (about 4 hours).
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
	UID          string `json:"uid"`
	AccountID    string `json:"account_id"`
}
