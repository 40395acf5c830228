package cache

import (
	"context"
	"time"
)

// Noop is a Cache that stores nothing. Used when Redis is disabled so callers
// never need a nil check.
type Noop struct{}

// NewNoop creates a no-op cache.
func NewNoop() *Noop {
	return &Noop{}
}

// Get always misses.
func (Noop) Get(ctx context.Context, key string) (string, error) { return "", nil }

// Set discards the value.
func (Noop) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

// SetNX always acquires. Without Redis there is a single instance, so the
// lock is not needed.
func (Noop) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return true, nil
}

// Del is a no-op.
func (Noop) Del(ctx context.Context, keys ...string) error { return nil }

// Exists reports no keys.
func (Noop) Exists(ctx context.Context, keys ...string) (int64, error) { return 0, nil }

// Expire is a no-op.
func (Noop) Expire(ctx context.Context, key string, expiration time.Duration) error { return nil }

// Health always succeeds.
func (Noop) Health(ctx context.Context) error { return nil }

// Close is a no-op.
func (Noop) Close() error { return nil }
