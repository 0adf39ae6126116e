package shared

import (
	"context"
	"time"
)

// IdempotencyState is the lifecycle state of an idempotency key
type IdempotencyState string

const (
	// IdempotencyInFlight means the first request holding the key has not finished
	IdempotencyInFlight IdempotencyState = "in_flight"
	// IdempotencyCompleted means a response was stored and can be replayed
	IdempotencyCompleted IdempotencyState = "completed"
)

// IdempotencyRecord is what a store keeps for one key
type IdempotencyRecord struct {
	State      IdempotencyState `json:"state"`
	StatusCode int              `json:"status_code,omitempty"`
	Body       []byte           `json:"body,omitempty"`
}

// IdempotencyStore keeps client supplied idempotency keys so that a retried
// request with an unknown outcome does not create a second invoice or receipt.
type IdempotencyStore interface {
	// Reserve atomically claims the key for the caller.
	// Returns true if the key was newly claimed, false if it already exists.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Lookup returns the record for a key, or nil if the key is unknown or expired
	Lookup(ctx context.Context, key string) (*IdempotencyRecord, error)

	// Complete stores the final response for a reserved key
	Complete(ctx context.Context, key string, statusCode int, body []byte, ttl time.Duration) error

	// Release drops a reservation so the key may be used again
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
