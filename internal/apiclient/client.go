// Package apiclient is the TV application's binding to the
// authorization server's HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DeviceGenerateIDHeader carries the client-generated device identifier
// on every authenticated request.
const DeviceGenerateIDHeader = "X-Lumeview-Device-Generate-ID"

// StatusError is a non-2xx response from the authorization server.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Code)
}

// IsClientError reports whether the status is a 4xx.
func (e *StatusError) IsClientError() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsServerError reports whether the status is a 5xx.
func (e *StatusError) IsServerError() bool {
	return e.Code >= 500 && e.Code < 600
}

// Flow is the response to starting an authorization flow.
type Flow struct {
	State    string `json:"state"`
	TmpToken string `json:"tmpToken"`
}

// FlowStatus is the response to a flow status check.
type FlowStatus struct {
	Completed    bool   `json:"completed"`
	DeviceID     string `json:"deviceId"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenPair is the response to a first-party token rotation.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Client calls the authorization server. The HTTP client is owned and
// injected at construction.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates an API client for the server at baseURL.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, client: httpClient}
}

// CreateFlow starts a new authorization flow for the device.
func (c *Client) CreateFlow(ctx context.Context, deviceGenerateID string) (*Flow, error) {
	body, err := json.Marshal(map[string]string{"deviceGenerateId": deviceGenerateID})
	if err != nil {
		return nil, fmt.Errorf("marshaling flow request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/flows", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating flow request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var flow Flow
	if err := c.do(req, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// VerificationURI is the URL the TV encodes as a QR code for the second
// device. Opening it redirects the browser to the provider consent page.
func (c *Client) VerificationURI(state string) string {
	return c.baseURL + "/?" + url.Values{"state": {state}}.Encode()
}

// CheckFlow polls a flow's status with the temporary bearer token.
func (c *Client) CheckFlow(ctx context.Context, state, deviceGenerateID, tmpToken string) (*FlowStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/flows/"+state, nil)
	if err != nil {
		return nil, fmt.Errorf("creating check request: %w", err)
	}
	c.setAuthHeaders(req, deviceGenerateID, tmpToken)

	var status FlowStatus
	if err := c.do(req, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// CancelFlow abandons a flow before completion.
func (c *Client) CancelFlow(ctx context.Context, state, deviceGenerateID, tmpToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/auth/flows/"+state, nil)
	if err != nil {
		return fmt.Errorf("creating cancel request: %w", err)
	}
	c.setAuthHeaders(req, deviceGenerateID, tmpToken)
	return c.do(req, nil)
}

// RefreshTokens rotates the first-party token pair. The superseded
// refresh token is invalid once this returns.
func (c *Client) RefreshTokens(ctx context.Context, deviceID, refreshToken, deviceGenerateID string) (*TokenPair, error) {
	body, err := json.Marshal(map[string]string{
		"deviceId":     deviceID,
		"refreshToken": refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/tokens", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(DeviceGenerateIDHeader, deviceGenerateID)

	var pair TokenPair
	if err := c.do(req, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// ProviderAccessToken exchanges the first-party access token for a
// short-lived Dropbox access token. The token is not cached server side;
// call this once per session.
func (c *Client) ProviderAccessToken(ctx context.Context, deviceID, accessToken, deviceGenerateID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/devices/"+deviceID, nil)
	if err != nil {
		return "", fmt.Errorf("creating device request: %w", err)
	}
	c.setAuthHeaders(req, deviceGenerateID, accessToken)

	var resp struct {
		DropboxAccessToken string `json:"dropboxAccessToken"`
	}
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.DropboxAccessToken, nil
}

// Deregister removes the device's linkage to the provider account.
func (c *Client) Deregister(ctx context.Context, deviceID, accessToken, deviceGenerateID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/devices/"+deviceID, nil)
	if err != nil {
		return fmt.Errorf("creating deregister request: %w", err)
	}
	c.setAuthHeaders(req, deviceGenerateID, accessToken)
	return c.do(req, nil)
}

func (c *Client) setAuthHeaders(req *http.Request, deviceGenerateID, bearerToken string) {
	req.Header.Set(DeviceGenerateIDHeader, deviceGenerateID)
	req.Header.Set("Authorization", "Bearer "+bearerToken)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
