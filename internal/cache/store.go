package cache

import (
	"context"
	"time"
)

// Store is the cache surface the rest of the server depends on. The database
// implementation below covers single-node deployments; rate limiting and
// short-lived lookups go through this interface so a shared backend can slot
// in without touching callers.
type Store interface {
	// IncrementWithTTL bumps a fixed-window counter and reports the count
	// plus the time left in the current window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	// Set stores value under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get reports the stored value and whether a live entry exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Delete removes the given keys; missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
