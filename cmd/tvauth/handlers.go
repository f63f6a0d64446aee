// Package main implements the TV device-authorization bridge server.
package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lumeview/tvauth/internal/apiclient"
	"github.com/lumeview/tvauth/internal/authflow"
	"github.com/lumeview/tvauth/internal/device"
	"github.com/lumeview/tvauth/internal/dropbox"
)

const bearerPrefix = "Bearer "

// Health check handler
func (s *server) handleHealth() http.HandlerFunc {
	type healthResponse struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Version: Version}
		if err := s.checkHealth(r.Context()); err != nil {
			resp.Status = "degraded"
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		writeJSON(w, resp)
	}
}

// Flow creation handler: the TV starts an authorization attempt here.
func (s *server) handleCreateFlow() http.HandlerFunc {
	type createRequest struct {
		DeviceGenerateID string `json:"deviceGenerateId"`
	}
	type createResponse struct {
		State    string `json:"state"`
		TmpToken string `json:"tmpToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest)
			return
		}

		state, tmpToken, err := s.flows.Create(r.Context(), req.DeviceGenerateID)
		if err != nil {
			if errors.Is(err, authflow.ErrBadRequest) {
				writeError(w, http.StatusBadRequest)
				return
			}
			s.logger.Error("creating flow", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, createResponse{State: state, TmpToken: tmpToken})
	}
}

// Flow polling handler: every verification failure collapses to 404.
func (s *server) handleCheckFlow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := chi.URLParam(r, "state")
		tmpToken, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusNotFound)
			return
		}

		result, err := s.flows.Check(r.Context(), state, r.Header.Get(apiclient.DeviceGenerateIDHeader), tmpToken)
		if err != nil {
			if errors.Is(err, authflow.ErrNotFound) {
				writeError(w, http.StatusNotFound)
				return
			}
			s.logger.Error("checking flow", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, result)
	}
}

// Flow cancellation handler
func (s *server) handleCancelFlow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := chi.URLParam(r, "state")
		tmpToken, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusNotFound)
			return
		}

		err := s.flows.Cancel(r.Context(), state, r.Header.Get(apiclient.DeviceGenerateIDHeader), tmpToken)
		if err != nil {
			if errors.Is(err, authflow.ErrNotFound) {
				writeError(w, http.StatusNotFound)
				return
			}
			s.logger.Error("cancelling flow", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, map[string]bool{"ok": true})
	}
}

// Provider callback handler: the second device lands here after consent.
func (s *server) handleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		if state == "" {
			writeError(w, http.StatusBadRequest)
			return
		}
		exists, err := s.flows.Exists(r.Context(), state)
		if err != nil {
			s.logger.Error("looking up flow state", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}
		if !exists {
			writeError(w, http.StatusBadRequest)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			writeError(w, http.StatusBadRequest)
			return
		}

		refreshToken, err := s.oauth.ExchangeCode(r.Context(), code)
		if err != nil {
			var provErr *dropbox.ProviderError
			if errors.As(err, &provErr) {
				s.logger.Error("provider code exchange failed",
					zap.Int("status", provErr.StatusCode),
					zap.String("body", provErr.Body))
				writeError(w, provErr.StatusCode)
				return
			}
			s.logger.Error("provider code exchange failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		if err := s.flows.Complete(r.Context(), state, refreshToken); err != nil {
			if errors.Is(err, authflow.ErrNotFound) {
				// The flow expired between the lookup and the exchange.
				writeError(w, http.StatusBadRequest)
				return
			}
			s.logger.Error("completing flow", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, s.cfg.BaseURL+"/success", http.StatusFound)
	}
}

// First-party token rotation handler: all failures collapse to 400.
func (s *server) handleRefreshTokens() http.HandlerFunc {
	type refreshRequest struct {
		DeviceID     string `json:"deviceId"`
		RefreshToken string `json:"refreshToken"`
	}
	type refreshResponse struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest)
			return
		}
		if req.DeviceID == "" || req.RefreshToken == "" {
			writeError(w, http.StatusBadRequest)
			return
		}

		access, refresh, err := s.devices.Refresh(r.Context(), req.DeviceID, req.RefreshToken, r.Header.Get(apiclient.DeviceGenerateIDHeader))
		if err != nil {
			if errors.Is(err, device.ErrInvalidGrant) {
				writeError(w, http.StatusBadRequest)
				return
			}
			s.logger.Error("rotating tokens", zap.Error(err))
			writeError(w, http.StatusInternalServerError)
			return
		}

		writeJSON(w, refreshResponse{AccessToken: access, RefreshToken: refresh})
	}
}

// Provider access token handler: exchanges the stored provider refresh
// token for a short-lived Dropbox access token.
func (s *server) handleProviderToken() http.HandlerFunc {
	type tokenResponse struct {
		DropboxAccessToken string `json:"dropboxAccessToken"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, "deviceID")
		accessToken, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}

		providerToken, err := s.devices.ProviderAccessToken(r.Context(), deviceID, accessToken, r.Header.Get(apiclient.DeviceGenerateIDHeader))
		if err != nil {
			s.writeDeviceError(w, err, "exchanging provider token")
			return
		}

		writeJSON(w, tokenResponse{DropboxAccessToken: providerToken})
	}
}

// Device deregistration handler
func (s *server) handleDeregister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := chi.URLParam(r, "deviceID")
		accessToken, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized)
			return
		}

		err := s.devices.Deregister(r.Context(), deviceID, accessToken, r.Header.Get(apiclient.DeviceGenerateIDHeader))
		if err != nil {
			s.writeDeviceError(w, err, "deregistering device")
			return
		}

		writeJSON(w, map[string]bool{"ok": true})
	}
}

// Consent hand-off: the QR-encoded URL lands here and bounces the second
// device to the provider's hosted consent page.
func (s *server) handleAuthorizeRedirect() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		if state == "" {
			writeError(w, http.StatusBadRequest)
			return
		}
		http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
	}
}

const successPage = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>Linked</title></head>
<body>
<h1>Device linked</h1>
<p>You have successfully linked your account. You may now close this window and return to your TV.</p>
</body>
</html>
`

func (s *server) handleSuccess() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := w.Write([]byte(successPage)); err != nil {
			s.logger.Error("writing success page", zap.Error(err))
		}
	}
}

// writeDeviceError maps device manager errors to the response contract:
// 401 for authentication failures, 400 for identity mismatch, the
// upstream status for provider failures, 500 otherwise. Provider bodies
// are logged, never proxied.
func (s *server) writeDeviceError(w http.ResponseWriter, err error, msg string) {
	var provErr *dropbox.ProviderError
	switch {
	case errors.Is(err, device.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized)
	case errors.Is(err, device.ErrIdentityMismatch):
		writeError(w, http.StatusBadRequest)
	case errors.As(err, &provErr):
		s.logger.Error(msg,
			zap.Int("status", provErr.StatusCode),
			zap.String("body", provErr.Body))
		writeError(w, provErr.StatusCode)
	default:
		s.logger.Error(msg, zap.Error(err))
		writeError(w, http.StatusInternalServerError)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", false
	}
	return auth[len(bearerPrefix):], true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": http.StatusText(status)}); err != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
	}
}
