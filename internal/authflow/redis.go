// Package authflow implements flow state storage with Redis.
package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const flowPrefix = "flow:"

// RedisStore implements the Store interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis-backed flow store.
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

// CreateFlow stores a new flow record with the flow TTL.
func (s *RedisStore) CreateFlow(ctx context.Context, state string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling flow record: %w", err)
	}
	if err := s.client.Set(ctx, flowPrefix+state, data, FlowTTL).Err(); err != nil {
		return fmt.Errorf("creating flow record: %w", err)
	}
	return nil
}

// UpdateFlow overwrites a flow record without touching its remaining
// TTL. The flow window is absolute: completion must not extend it.
func (s *RedisStore) UpdateFlow(ctx context.Context, state string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling flow record: %w", err)
	}
	if err := s.client.Set(ctx, flowPrefix+state, data, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("updating flow record: %w", err)
	}
	return nil
}

// GetFlow retrieves a flow record, or nil if absent.
func (s *RedisStore) GetFlow(ctx context.Context, state string) (*Record, error) {
	data, err := s.client.Get(ctx, flowPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting flow record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshaling flow record: %w", err)
	}
	return &rec, nil
}

// ClaimFlow deletes the flow record and reports whether this caller won
// the claim. DEL's removed-key count makes the claim atomic: two
// concurrent checks of the same completed flow both read it, but only
// one observes a count of 1.
func (s *RedisStore) ClaimFlow(ctx context.Context, state string) (bool, error) {
	n, err := s.client.Del(ctx, flowPrefix+state).Result()
	if err != nil {
		return false, fmt.Errorf("claiming flow record: %w", err)
	}
	return n == 1, nil
}

// DeleteFlow removes a flow record.
func (s *RedisStore) DeleteFlow(ctx context.Context, state string) error {
	if err := s.client.Del(ctx, flowPrefix+state).Err(); err != nil {
		return fmt.Errorf("deleting flow record: %w", err)
	}
	return nil
}
