package device

import (
	"context"
	"time"
)

// Token lifetimes. The device record outlives the refresh token by a
// small grace margin so the record expires shortly after the last
// refresh token derived from it.
const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 28 * 24 * time.Hour
	DeviceTTL       = RefreshTokenTTL + 5*time.Minute
)

// Store defines the persistence operations for device records and
// first-party token digests.
type Store interface {
	// SaveDevice stores a device record with the device TTL.
	SaveDevice(ctx context.Context, deviceID string, rec *Record) error

	// GetDevice retrieves a device record, or nil if absent or expired.
	GetDevice(ctx context.Context, deviceID string) (*Record, error)

	// DeleteDevice removes a device record.
	DeleteDevice(ctx context.Context, deviceID string) error

	// ExtendDevice resets the device record's TTL to the full device TTL.
	ExtendDevice(ctx context.Context, deviceID string) error

	// SaveAccessDigest stores the access token digest slot for a device,
	// replacing any previous slot.
	SaveAccessDigest(ctx context.Context, deviceID string, d *TokenDigest) error

	// GetAccessDigest retrieves the access token digest slot, or nil.
	GetAccessDigest(ctx context.Context, deviceID string) (*TokenDigest, error)

	// SaveRefreshDigest stores the refresh token digest slot for a
	// device, replacing any previous slot.
	SaveRefreshDigest(ctx context.Context, deviceID string, d *TokenDigest) error

	// GetRefreshDigest retrieves the refresh token digest slot, or nil.
	GetRefreshDigest(ctx context.Context, deviceID string) (*TokenDigest, error)

	// CheckHealth verifies the storage backend is reachable.
	CheckHealth(ctx context.Context) error
}
