package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is an in-process CounterStore. It shares nothing across
// processes, so it only enforces a budget within a single server instance;
// use it for tests and single-node deployments.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// Hit increments the counter for key under the store mutex, starting a fresh
// window when the entry is absent or its window has elapsed.
func (c *MemoryCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if key == "" {
		return 0, 0, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.entries[key]
	if !ok || !entry.expiresAt.After(now) {
		entry = &memoryEntry{expiresAt: now.Add(window)}
		c.entries[key] = entry
	}
	entry.count++

	return entry.count, entry.expiresAt.Sub(now), nil
}

// Ping always succeeds; the store lives in-process.
func (c *MemoryCounter) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Close drops all tracked entries.
func (c *MemoryCounter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*memoryEntry)
	return nil
}
