// Package kvstore provides the shared TTL key-value store used for idempotency keys,
// polling backoff state and webhook rate windows. Every operation is atomic per key
// so concurrent handlers and replicas observe a single winner.
package kvstore

import (
	"context"
	"time"

	apperrors "github.com/allisson/payment-reconciler/internal/errors"
)

// ErrKeyNotFound is returned by Get when the key is missing or expired.
var ErrKeyNotFound = apperrors.Wrap(apperrors.ErrNotFound, "key not found")

// Store is an atomic key-value store with per-key expiry.
type Store interface {
	// SetNX stores value only if key does not exist. It reports whether the value was stored.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Incr increments the integer at key and returns the new value. The expiry is
	// applied only when the increment creates the key.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the value at key or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
	// Close releases the underlying resources.
	Close() error
}
