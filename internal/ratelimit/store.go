package ratelimit

import (
	"context"
	"time"
)

// CounterStore is the shared counter backend a Limiter coordinates through.
// Implementations must provide atomic increment-with-expiry semantics and be
// safe for concurrent use across goroutines and server processes.
type CounterStore interface {
	// Hit atomically increments the counter for key, starting a new window of
	// the given duration when the key is absent or expired. It returns the
	// count after the increment and the time remaining until the window
	// resets.
	Hit(ctx context.Context, key string, window time.Duration) (count int64, remaining time.Duration, err error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}
