package numbering

import (
	"context"
	"sync"
	"time"

	"github.com/invoiced/backend/internal/domain/shared"
)

// memStore is an in-memory Store. Persisted document numbers are tracked per
// sequence so NumberExists can be exercised.
type memStore struct {
	mu      sync.Mutex
	states  map[Key]State
	numbers map[Key]map[string]bool
	saves   int
}

func newMemStore() *memStore {
	return &memStore{
		states:  make(map[Key]State),
		numbers: make(map[Key]map[string]bool),
	}
}

func (m *memStore) Load(ctx context.Context, key Key) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[key]
	return st, ok, nil
}

func (m *memStore) Save(ctx context.Context, key Key, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = st
	m.saves++
	return nil
}

func (m *memStore) NumberExists(ctx context.Context, key Key, number string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.numbers[key][number], nil
}

func (m *memStore) persist(key Key, number string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.numbers[key] == nil {
		m.numbers[key] = make(map[string]bool)
	}
	m.numbers[key][number] = true
}

func (m *memStore) next(key Key) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[key].Next
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// chanLocker is a process-local shared.Locker built on one-slot channels.
// Leases never expire.
type chanLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newChanLocker() *chanLocker {
	return &chanLocker{slots: make(map[string]chan struct{})}
}

func (l *chanLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *chanLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (shared.Lock, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
		return &chanLock{key: key, ch: ch}, nil
	default:
		return nil, nil
	}
}

func (l *chanLocker) Acquire(ctx context.Context, key string, _ time.Duration, wait time.Duration) (shared.Lock, error) {
	ch := l.slot(key)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return &chanLock{key: key, ch: ch}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, shared.ErrLockTimeout
	}
}

func (l *chanLocker) Close() error { return nil }

type chanLock struct {
	key  string
	ch   chan struct{}
	once sync.Once
}

func (k *chanLock) Key() string { return k.key }

func (k *chanLock) Release(context.Context) error {
	k.once.Do(func() { <-k.ch })
	return nil
}

type recordingObserver struct {
	mu       sync.Mutex
	reserved int
	released []bool
	burned   int
	timeouts int
}

func (o *recordingObserver) Reserved(context.Context, Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reserved++
}

func (o *recordingObserver) Released(_ context.Context, _ Key, restored bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.released = append(o.released, restored)
}

func (o *recordingObserver) Burned(context.Context, Key) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.burned++
}

func (o *recordingObserver) LockWait(_ context.Context, _ Key, _ time.Duration, acquired bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !acquired {
		o.timeouts++
	}
}
