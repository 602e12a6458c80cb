package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of requests that were already accepted.
type IdempotencyStore interface {
	// Acquire claims key for ttl. It returns false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release frees key so a failed request can be retried with it.
	Release(ctx context.Context, key string) error
	// Exists reports whether key is currently held.
	Exists(ctx context.Context, key string) (bool, error)
	Close() error
}
