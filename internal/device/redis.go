// Package device implements device identity and first-party token
// lifecycle storage with Redis.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	devicePrefix       = "device:"
	accessTokenPrefix  = "token:access:"
	refreshTokenPrefix = "token:refresh:"
)

// RedisStore implements the Store interface using Redis. TTL enforcement
// is delegated to Redis key expiry.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed device store.
func NewRedisStore(client *redis.Client) Store {
	return &RedisStore{client: client}
}

// CheckHealth verifies Redis connectivity.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}

// SaveDevice stores a device record with the device TTL.
func (s *RedisStore) SaveDevice(ctx context.Context, deviceID string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling device record: %w", err)
	}
	if err := s.client.Set(ctx, devicePrefix+deviceID, data, DeviceTTL).Err(); err != nil {
		return fmt.Errorf("saving device record: %w", err)
	}
	return nil
}

// GetDevice retrieves a device record, or nil if absent.
func (s *RedisStore) GetDevice(ctx context.Context, deviceID string) (*Record, error) {
	data, err := s.client.Get(ctx, devicePrefix+deviceID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting device record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling device record: %w", err)
	}
	return &rec, nil
}

// DeleteDevice removes a device record and its token digest slots.
func (s *RedisStore) DeleteDevice(ctx context.Context, deviceID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, devicePrefix+deviceID)
	pipe.Del(ctx, accessTokenPrefix+deviceID)
	pipe.Del(ctx, refreshTokenPrefix+deviceID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting device record: %w", err)
	}
	return nil
}

// ExtendDevice resets the device record's TTL without rewriting it.
func (s *RedisStore) ExtendDevice(ctx context.Context, deviceID string) error {
	if err := s.client.Expire(ctx, devicePrefix+deviceID, DeviceTTL).Err(); err != nil {
		return fmt.Errorf("extending device record: %w", err)
	}
	return nil
}

// SaveAccessDigest stores the access token digest slot with its TTL.
func (s *RedisStore) SaveAccessDigest(ctx context.Context, deviceID string, d *TokenDigest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling token digest: %w", err)
	}
	if err := s.client.Set(ctx, accessTokenPrefix+deviceID, data, AccessTokenTTL).Err(); err != nil {
		return fmt.Errorf("saving access token digest: %w", err)
	}
	return nil
}

// GetAccessDigest retrieves the access token digest slot, or nil.
func (s *RedisStore) GetAccessDigest(ctx context.Context, deviceID string) (*TokenDigest, error) {
	return s.getDigest(ctx, accessTokenPrefix+deviceID)
}

// SaveRefreshDigest stores the refresh token digest slot with its TTL.
func (s *RedisStore) SaveRefreshDigest(ctx context.Context, deviceID string, d *TokenDigest) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling token digest: %w", err)
	}
	if err := s.client.Set(ctx, refreshTokenPrefix+deviceID, data, RefreshTokenTTL).Err(); err != nil {
		return fmt.Errorf("saving refresh token digest: %w", err)
	}
	return nil
}

// GetRefreshDigest retrieves the refresh token digest slot, or nil.
func (s *RedisStore) GetRefreshDigest(ctx context.Context, deviceID string) (*TokenDigest, error) {
	return s.getDigest(ctx, refreshTokenPrefix+deviceID)
}

func (s *RedisStore) getDigest(ctx context.Context, key string) (*TokenDigest, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting token digest: %w", err)
	}

	var d TokenDigest
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshaling token digest: %w", err)
	}
	return &d, nil
}
