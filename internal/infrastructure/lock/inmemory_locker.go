package lock

import (
	"context"
	"sync"
	"time"

	"github.com/invoiced/backend/internal/domain/shared"
)

// lease represents a held key with expiration
type lease struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryLocker implements shared.Locker within one process.
// This is suitable for single-instance deployments and testing.
// Waiters are woken on release instead of polling.
type InMemoryLocker struct {
	mu      sync.Mutex
	leases  map[string]lease
	waiters map[string][]chan struct{}
	nextTok uint64
	now     func() time.Time
}

// NewInMemoryLocker creates a new in-memory locker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		leases:  make(map[string]lease),
		waiters: make(map[string][]chan struct{}),
		now:     time.Now,
	}
}

// TryAcquire takes the lease if it is free or expired
func (l *InMemoryLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tryLocked(key, ttl), nil
}

func (l *InMemoryLocker) tryLocked(key string, ttl time.Duration) shared.Lock {
	now := l.now()
	if e, held := l.leases[key]; held && now.Before(e.expiresAt) {
		return nil
	}
	l.nextTok++
	l.leases[key] = lease{token: l.nextTok, expiresAt: now.Add(ttl)}
	return &memoryLock{locker: l, key: key, token: l.nextTok}
}

// Acquire blocks until the lease is free, wait elapses or ctx is done
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl, wait time.Duration) (shared.Lock, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		l.mu.Lock()
		if lk := l.tryLocked(key, ttl); lk != nil {
			l.mu.Unlock()
			return lk, nil
		}
		// Wake up on release, or when the current lease would expire.
		ch := make(chan struct{})
		l.waiters[key] = append(l.waiters[key], ch)
		expiry := l.leases[key].expiresAt.Sub(l.now())
		l.mu.Unlock()

		expired := time.NewTimer(expiry)
		select {
		case <-ctx.Done():
			expired.Stop()
			return nil, ctx.Err()
		case <-deadline.C:
			expired.Stop()
			return nil, shared.ErrLockTimeout
		case <-ch:
		case <-expired.C:
		}
		expired.Stop()
	}
}

func (l *InMemoryLocker) release(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, held := l.leases[key]; held && e.token == token {
		delete(l.leases, key)
	}
	for _, ch := range l.waiters[key] {
		close(ch)
	}
	delete(l.waiters, key)
}

// Close releases resources. Safe to call multiple times.
func (l *InMemoryLocker) Close() error {
	return nil
}

// Size returns the number of held leases (for testing/monitoring)
func (l *InMemoryLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.leases)
}

type memoryLock struct {
	locker *InMemoryLocker
	key    string
	token  uint64
}

func (k *memoryLock) Key() string {
	return k.key
}

func (k *memoryLock) Release(ctx context.Context) error {
	k.locker.release(k.key, k.token)
	return nil
}

// Ensure InMemoryLocker implements Locker
var _ shared.Locker = (*InMemoryLocker)(nil)
