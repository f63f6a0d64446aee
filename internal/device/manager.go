package device

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lumeview/tvauth/internal/securetoken"
)

// ProviderClient mints short-lived provider access tokens from a stored
// provider refresh token.
type ProviderClient interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (string, error)
}

// Manager owns the long-lived relationship between a device identity and
// the provider account: registration, first-party token issuance and
// rotation, provider access token exchange, and deregistration.
type Manager struct {
	store    Store
	codec    *securetoken.Codec
	provider ProviderClient
	logger   *zap.Logger
}

// NewManager creates a device lifecycle manager.
func NewManager(store Store, codec *securetoken.Codec, provider ProviderClient, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		codec:    codec,
		provider: provider,
		logger:   logger,
	}
}

// Register persists a new device record binding deviceID to the client's
// generate identifier and the provider refresh token obtained at flow
// completion.
func (m *Manager) Register(ctx context.Context, deviceID, deviceGenerateID, providerRefreshToken string) error {
	rec := &Record{
		DeviceGenerateID:     deviceGenerateID,
		ProviderRefreshToken: providerRefreshToken,
	}
	if err := m.store.SaveDevice(ctx, deviceID, rec); err != nil {
		return fmt.Errorf("registering device: %w", err)
	}
	return nil
}

// IssueTokens mints a fresh first-party access/refresh token pair for
// deviceID, overwriting any prior pair. The raw tokens are returned to
// the caller; only digests are stored.
func (m *Manager) IssueTokens(ctx context.Context, deviceID string) (accessToken, refreshToken string, err error) {
	accessToken, err = securetoken.NewToken(securetoken.DefaultTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating access token: %w", err)
	}
	refreshToken, err = securetoken.NewToken(securetoken.DefaultTokenBytes)
	if err != nil {
		return "", "", fmt.Errorf("generating refresh token: %w", err)
	}

	if err := m.saveDigest(ctx, deviceID, accessToken, m.store.SaveAccessDigest); err != nil {
		return "", "", fmt.Errorf("storing access token: %w", err)
	}
	if err := m.saveDigest(ctx, deviceID, refreshToken, m.store.SaveRefreshDigest); err != nil {
		return "", "", fmt.Errorf("storing refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// Refresh rotates the first-party token pair. The presented refresh
// token must verify against the stored digest and the device-generate
// identifier must match the device record. Rotation overwrites both
// digest slots, so the presented refresh token can never mint another
// pair, and extends the device record's TTL. Every verification failure
// collapses to ErrInvalidGrant.
func (m *Manager) Refresh(ctx context.Context, deviceID, refreshToken, deviceGenerateID string) (string, string, error) {
	digest, err := m.store.GetRefreshDigest(ctx, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("getting refresh token digest: %w", err)
	}
	if digest == nil || !m.codec.Verify(digest.Digest, digest.Salt, refreshToken) {
		return "", "", ErrInvalidGrant
	}

	rec, err := m.store.GetDevice(ctx, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("getting device record: %w", err)
	}
	if rec == nil || rec.DeviceGenerateID != deviceGenerateID {
		return "", "", ErrInvalidGrant
	}

	access, refresh, err := m.IssueTokens(ctx, deviceID)
	if err != nil {
		return "", "", err
	}
	if err := m.store.ExtendDevice(ctx, deviceID); err != nil {
		return "", "", fmt.Errorf("extending device record: %w", err)
	}

	m.logger.Info("rotated first-party token pair", zap.String("device_id", deviceID))
	return access, refresh, nil
}

// ProviderAccessToken verifies the first-party access token and device
// identity, then exchanges the stored provider refresh token for a
// short-lived provider access token. The provider token is returned
// without being persisted; the client re-requests it per session.
func (m *Manager) ProviderAccessToken(ctx context.Context, deviceID, accessToken, deviceGenerateID string) (string, error) {
	rec, err := m.verify(ctx, deviceID, accessToken, deviceGenerateID)
	if err != nil {
		return "", err
	}

	providerToken, err := m.provider.RefreshAccessToken(ctx, rec.ProviderRefreshToken)
	if err != nil {
		m.logger.Error("provider token exchange failed",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return "", err
	}
	return providerToken, nil
}

// Deregister verifies the first-party access token and device identity,
// then deletes the device record and its token digest slots.
func (m *Manager) Deregister(ctx context.Context, deviceID, accessToken, deviceGenerateID string) error {
	if _, err := m.verify(ctx, deviceID, accessToken, deviceGenerateID); err != nil {
		return err
	}
	if err := m.store.DeleteDevice(ctx, deviceID); err != nil {
		return fmt.Errorf("deleting device record: %w", err)
	}
	m.logger.Info("deregistered device", zap.String("device_id", deviceID))
	return nil
}

// CheckHealth verifies the manager's storage backend is healthy.
func (m *Manager) CheckHealth(ctx context.Context) error {
	return m.store.CheckHealth(ctx)
}

// verify checks the access token digest and device identity in order:
// token failures yield ErrUnauthorized, an identity mismatch yields
// ErrIdentityMismatch.
func (m *Manager) verify(ctx context.Context, deviceID, accessToken, deviceGenerateID string) (*Record, error) {
	digest, err := m.store.GetAccessDigest(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("getting access token digest: %w", err)
	}
	if digest == nil || !m.codec.Verify(digest.Digest, digest.Salt, accessToken) {
		return nil, ErrUnauthorized
	}

	rec, err := m.store.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("getting device record: %w", err)
	}
	if rec == nil {
		return nil, ErrUnauthorized
	}
	if rec.DeviceGenerateID != deviceGenerateID {
		return nil, ErrIdentityMismatch
	}
	return rec, nil
}

func (m *Manager) saveDigest(ctx context.Context, deviceID, token string, save func(context.Context, string, *TokenDigest) error) error {
	salt, err := securetoken.NewSalt()
	if err != nil {
		return fmt.Errorf("generating salt: %w", err)
	}
	return save(ctx, deviceID, &TokenDigest{
		Digest: m.codec.Digest(token, salt),
		Salt:   salt,
	})
}
