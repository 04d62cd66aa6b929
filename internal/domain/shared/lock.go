package shared

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned by Locker.Acquire when the bounded wait elapses
// before the lock becomes free
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Lock is a held mutual-exclusion lease
type Lock interface {
	// Key returns the lock key
	Key() string
	// Release gives the lease back. Releasing a lease that already expired is not an error.
	Release(ctx context.Context) error
}

// Locker is a distributed mutual-exclusion primitive
type Locker interface {
	// TryAcquire makes a single non-blocking attempt. It returns (nil, nil) when the lock is held elsewhere.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)

	// Acquire blocks for at most wait. It returns ErrLockTimeout when the wait
	// elapses and ctx.Err() when ctx is cancelled first.
	Acquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error)

	// Close releases resources held by the locker
	Close() error
}

// LockConfig holds lease settings for lock holders
type LockConfig struct {
	// TTL bounds how long a crashed holder can block others
	TTL time.Duration
	// Wait bounds how long Acquire blocks
	Wait time.Duration
}

// DefaultLockConfig returns the default lock settings
func DefaultLockConfig() LockConfig {
	return LockConfig{
		TTL:  30 * time.Second,
		Wait: 5 * time.Second,
	}
}
