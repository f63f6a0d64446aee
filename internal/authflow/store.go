package authflow

import (
	"context"
	"time"
)

// FlowTTL is the absolute lifetime of one authorization attempt. It is
// set once at creation and never refreshed by polling or completion.
const FlowTTL = 10 * time.Minute

// Store defines the persistence operations for flow records.
type Store interface {
	// CreateFlow stores a new flow record with the flow TTL.
	CreateFlow(ctx context.Context, state string, rec *Record) error

	// UpdateFlow overwrites a flow record while preserving its
	// remaining TTL.
	UpdateFlow(ctx context.Context, state string, rec *Record) error

	// GetFlow retrieves a flow record, or nil if absent or expired.
	GetFlow(ctx context.Context, state string) (*Record, error)

	// ClaimFlow atomically deletes the flow record and reports whether
	// this caller performed the deletion. Under concurrent checks of the
	// same completed flow, exactly one caller wins the claim.
	ClaimFlow(ctx context.Context, state string) (bool, error)

	// DeleteFlow removes a flow record.
	DeleteFlow(ctx context.Context, state string) error

	// CheckHealth verifies the storage backend is reachable.
	CheckHealth(ctx context.Context) error
}
