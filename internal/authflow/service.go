// Package authflow implements the server side of the TV authorization
// flow: one record per attempt, created by the constrained client,
// completed out-of-band by the provider callback, and consumed exactly
// once by the polling client.
package authflow

import (
	"context"
	"fmt"
	"net/url"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumeview/tvauth/internal/securetoken"
)

// DeviceRegistry creates device identities and mints first-party token
// pairs once a flow completes.
type DeviceRegistry interface {
	Register(ctx context.Context, deviceID, deviceGenerateID, providerRefreshToken string) error
	IssueTokens(ctx context.Context, deviceID string) (accessToken, refreshToken string, err error)
}

// Service owns the lifecycle of authorization attempts.
type Service struct {
	store   Store
	codec   *securetoken.Codec
	devices DeviceRegistry
	baseURL string
	logger  *zap.Logger
}

// NewService creates a flow service.
func NewService(store Store, codec *securetoken.Codec, devices DeviceRegistry, baseURL string, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		codec:   codec,
		devices: devices,
		baseURL: baseURL,
		logger:  logger,
	}
}

// Create starts a new authorization attempt bound to the client's
// generate identifier. It returns the flow state and the raw temporary
// bearer token; only the token's digest is stored.
func (s *Service) Create(ctx context.Context, deviceGenerateID string) (state, tmpToken string, err error) {
	if deviceGenerateID == "" {
		return "", "", ErrBadRequest
	}

	state, err = securetoken.NewToken(securetoken.DefaultTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating state: %w", err)
	}
	tmpToken, err = securetoken.NewToken(securetoken.DefaultTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating temporary token: %w", err)
	}
	salt, err := securetoken.NewSalt()
	if err != nil {
		return "", "", fmt.Errorf("generating salt: %w", err)
	}

	rec := &Record{
		TmpTokenDigest:   s.codec.Digest(tmpToken, salt),
		Salt:             salt,
		DeviceGenerateID: deviceGenerateID,
		Completed:        false,
	}
	if err := s.store.CreateFlow(ctx, state, rec); err != nil {
		return "", "", fmt.Errorf("storing flow: %w", err)
	}

	s.logger.Info("created authorization flow")
	return state, tmpToken, nil
}

// Exists reports whether a flow record is present for state. The
// callback handler verifies the state before spending a code exchange
// on it.
func (s *Service) Exists(ctx context.Context, state string) (bool, error) {
	rec, err := s.store.GetFlow(ctx, state)
	if err != nil {
		return false, fmt.Errorf("getting flow: %w", err)
	}
	return rec != nil, nil
}

// Complete marks the flow as consented and attaches the provider refresh
// token. Called by the provider-callback handler after the code
// exchange. The record's remaining TTL is preserved.
func (s *Service) Complete(ctx context.Context, state, providerRefreshToken string) error {
	rec, err := s.store.GetFlow(ctx, state)
	if err != nil {
		return fmt.Errorf("getting flow: %w", err)
	}
	if rec == nil {
		return ErrNotFound
	}

	rec.Completed = true
	rec.ProviderRefreshToken = providerRefreshToken
	if err := s.store.UpdateFlow(ctx, state, rec); err != nil {
		return fmt.Errorf("updating flow: %w", err)
	}

	s.logger.Info("completed authorization flow")
	return nil
}

// Check reports flow status to the polling client. Verification checks
// that the record exists, the generate identifier matches, and the
// bearer token verifies; every failure collapses to ErrNotFound. On a
// completed flow the record is atomically claimed, a device identity is
// created, and a first-party token pair is issued; the claim guarantees
// at most one caller ever receives the pair for a given flow.
func (s *Service) Check(ctx context.Context, state, deviceGenerateID, tmpToken string) (*CheckResult, error) {
	rec, err := s.verify(ctx, state, deviceGenerateID, tmpToken)
	if err != nil {
		return nil, err
	}

	if !rec.Completed {
		return &CheckResult{Completed: false}, nil
	}

	claimed, err := s.store.ClaimFlow(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("claiming flow: %w", err)
	}
	if !claimed {
		// A concurrent check consumed the flow first.
		return nil, ErrNotFound
	}

	deviceID := uuid.NewString()
	if err := s.devices.Register(ctx, deviceID, rec.DeviceGenerateID, rec.ProviderRefreshToken); err != nil {
		return nil, fmt.Errorf("registering device: %w", err)
	}
	access, refresh, err := s.devices.IssueTokens(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("issuing tokens: %w", err)
	}

	s.logger.Info("issued device identity", zap.String("device_id", deviceID))
	return &CheckResult{
		Completed:    true,
		DeviceID:     deviceID,
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

// Cancel verifies the caller the same way Check does, then deletes the
// flow record.
func (s *Service) Cancel(ctx context.Context, state, deviceGenerateID, tmpToken string) error {
	if _, err := s.verify(ctx, state, deviceGenerateID, tmpToken); err != nil {
		return err
	}
	if err := s.store.DeleteFlow(ctx, state); err != nil {
		return fmt.Errorf("deleting flow: %w", err)
	}
	s.logger.Info("cancelled authorization flow")
	return nil
}

// VerificationURI returns the URL the TV encodes as a QR code. The
// second device opens it and is redirected to the provider's hosted
// consent page with the flow state as the OAuth state parameter.
func (s *Service) VerificationURI(state string) string {
	v := url.Values{}
	v.Set("state", state)
	return s.baseURL + "/?" + v.Encode()
}

// CheckHealth verifies the flow service's storage backend is healthy.
func (s *Service) CheckHealth(ctx context.Context) error {
	return s.store.CheckHealth(ctx)
}

func (s *Service) verify(ctx context.Context, state, deviceGenerateID, tmpToken string) (*Record, error) {
	rec, err := s.store.GetFlow(ctx, state)
	if err != nil {
		return nil, fmt.Errorf("getting flow: %w", err)
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.DeviceGenerateID != deviceGenerateID {
		return nil, ErrNotFound
	}
	if !s.codec.Verify(rec.TmpTokenDigest, rec.Salt, tmpToken) {
		return nil, ErrNotFound
	}
	return rec, nil
}
