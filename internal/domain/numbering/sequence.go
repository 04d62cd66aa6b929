// Package numbering issues unique, human-readable document numbers per tenant
// and object type.
//
// The persisted counter of a sequence is only ever mutated inside a short
// critical section guarded by a distributed lock keyed by (tenant, object
// type): read, advance, write, unlock. The entity save happens outside the
// lock, so the database unique index on (tenant_id, number) stays the
// authoritative guard against duplicates.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/invoiced/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// maxCollisionSkips bounds how far a reservation walks past numbers that are
// already persisted when the counter lags behind reality
const maxCollisionSkips = 100

// Observer receives numbering lifecycle signals
type Observer interface {
	Reserved(ctx context.Context, key Key)
	Released(ctx context.Context, key Key, restored bool)
	Burned(ctx context.Context, key Key)
	LockWait(ctx context.Context, key Key, wait time.Duration, acquired bool)
}

type nopObserver struct{}

func (nopObserver) Reserved(context.Context, Key)                     {}
func (nopObserver) Released(context.Context, Key, bool)               {}
func (nopObserver) Burned(context.Context, Key)                       {}
func (nopObserver) LockWait(context.Context, Key, time.Duration, bool) {}

// Generator hands out Sequence handles sharing one store and one locker
type Generator struct {
	store    Store
	locker   shared.Locker
	lockCfg  shared.LockConfig
	logger   *zap.Logger
	now      func() time.Time
	observer Observer
}

// Option configures a Generator
type Option func(*Generator)

// WithLockConfig sets the lease TTL and the bounded acquisition wait
func WithLockConfig(cfg shared.LockConfig) Option {
	return func(g *Generator) {
		g.lockCfg = cfg
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// WithClock sets the clock used for date tokens in templates
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) Option {
	return func(g *Generator) {
		g.observer = o
	}
}

// NewGenerator creates a Generator
func NewGenerator(store Store, locker shared.Locker, opts ...Option) *Generator {
	g := &Generator{
		store:    store,
		locker:   locker,
		lockCfg:  shared.DefaultLockConfig(),
		logger:   zap.NewNop(),
		now:      time.Now,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// For returns a sequence handle for one entity save. Handles are cheap; the
// lifecycle pipeline creates one per entity instance.
func (g *Generator) For(tenantID shared.TenantID, objectType ObjectType) *Sequence {
	return &Sequence{gen: g, key: NewKey(tenantID, objectType)}
}

// withLock runs fn while holding the sequence lock. Lock timeouts surface as
// ErrNumberingUnavailable; the generator never proceeds without the lock.
func (g *Generator) withLock(ctx context.Context, key Key, fn func(ctx context.Context) error) error {
	start := time.Now()
	lock, err := g.locker.Acquire(ctx, key.LockKey(), g.lockCfg.TTL, g.lockCfg.Wait)
	g.observer.LockWait(ctx, key, time.Since(start), err == nil)
	if err != nil {
		if errors.Is(err, shared.ErrLockTimeout) || errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("numbering lock unavailable",
				zap.String("sequence", key.String()),
				zap.Duration("waited", time.Since(start)),
			)
			return fmt.Errorf("%w: sequence %s", shared.ErrNumberingUnavailable, key)
		}
		return fmt.Errorf("acquire sequence lock %s: %w", key, err)
	}
	defer func() {
		// The request may already be cancelled; the lease still has to go back.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := lock.Release(relCtx); err != nil {
			g.logger.Warn("failed to release numbering lock, lease will expire",
				zap.String("sequence", key.String()),
				zap.Error(err),
			)
		}
	}()
	return fn(ctx)
}

// load reads the persisted state, falling back to a fresh sequence
func (g *Generator) load(ctx context.Context, key Key) (State, bool, error) {
	st, found, err := g.store.Load(ctx, key)
	if err != nil {
		return State{}, false, fmt.Errorf("load sequence %s: %w", key, err)
	}
	if !found {
		st = State{Next: 1}
	}
	if st.Template == "" {
		st.Template = key.ObjectType.DefaultTemplate()
	}
	return st, found, nil
}

// Sequence is the numbering view of one (tenant, object type) pair, held for
// the duration of a single entity save
type Sequence struct {
	gen *Generator
	key Key

	mu           sync.Mutex
	reservations []*Reservation
}

// Key returns the sequence key
func (s *Sequence) Key() Key {
	return s.key
}

// NextNumberFormatted returns the rendered next number. With reserve the
// counter is advanced under the sequence lock so no two callers receive the
// same candidate; without it the call is a read-only peek for display.
func (s *Sequence) NextNumberFormatted(ctx context.Context, reserve bool) (string, error) {
	if !reserve {
		return s.Peek(ctx)
	}
	r, err := s.Reserve(ctx)
	if err != nil {
		return "", err
	}
	return r.Number, nil
}

// Peek renders the number the next reservation would receive, skipping
// numbers that are already persisted, without touching persisted state
func (s *Sequence) Peek(ctx context.Context) (string, error) {
	st, _, err := s.gen.load(ctx, s.key)
	if err != nil {
		return "", err
	}
	_, number, err := s.firstFree(ctx, st)
	return number, err
}

// firstFree walks from the counter past numbers that already exist, e.g.
// after a restored backup or a manually entered number, and returns the
// first free candidate. Running out of skips is ErrNumberingUnavailable.
func (s *Sequence) firstFree(ctx context.Context, st State) (int64, string, error) {
	now := s.gen.now()
	candidate := max(st.Next, 1)
	for i := 0; i <= maxCollisionSkips; i++ {
		number, err := Render(st.Template, candidate, now)
		if err != nil {
			return 0, "", err
		}
		exists, err := s.gen.store.NumberExists(ctx, s.key, number)
		if err != nil {
			return 0, "", fmt.Errorf("check number %s: %w", number, err)
		}
		if !exists {
			return candidate, number, nil
		}
		candidate++
	}
	s.gen.logger.Warn("numbering counter lags too far behind persisted numbers",
		zap.String("sequence", s.key.String()),
		zap.Int64("next", st.Next),
		zap.Int("skipped", maxCollisionSkips),
	)
	return 0, "", fmt.Errorf("%w: sequence %s: %d numbers from %d already taken",
		shared.ErrNumberingUnavailable, s.key, maxCollisionSkips+1, max(st.Next, 1))
}

// Inspect returns the persisted state, with defaults filled in for a
// sequence that has no row yet
func (s *Sequence) Inspect(ctx context.Context) (State, error) {
	st, _, err := s.gen.load(ctx, s.key)
	return st, err
}

// Reserve claims the next candidate and advances the persisted counter
func (s *Sequence) Reserve(ctx context.Context) (*Reservation, error) {
	r := &Reservation{Key: s.key}
	if err := r.transition(StateReserving); err != nil {
		return nil, err
	}

	err := s.gen.withLock(ctx, s.key, func(ctx context.Context) error {
		st, _, err := s.gen.load(ctx, s.key)
		if err != nil {
			return err
		}

		candidate, number, err := s.firstFree(ctx, st)
		if err != nil {
			return err
		}

		st.Next = candidate + 1
		if err := s.gen.store.Save(ctx, s.key, st); err != nil {
			return fmt.Errorf("save sequence %s: %w", s.key, err)
		}
		r.Value = candidate
		r.Number = number
		return nil
	})
	if err != nil {
		_ = r.transition(StateIdle)
		return nil, err
	}

	_ = r.transition(StateReserved)
	s.mu.Lock()
	s.reservations = append(s.reservations, r)
	s.mu.Unlock()

	s.gen.observer.Reserved(ctx, s.key)
	s.gen.logger.Debug("number reserved",
		zap.String("sequence", s.key.String()),
		zap.String("number", r.Number),
	)
	return r, nil
}

// IsUnique reports whether candidate is unused for this tenant and object type
func (s *Sequence) IsUnique(ctx context.Context, candidate string) (bool, error) {
	exists, err := s.gen.store.NumberExists(ctx, s.key, candidate)
	if err != nil {
		return false, fmt.Errorf("check number %s: %w", candidate, err)
	}
	return !exists, nil
}

// Write persists a counter that was advanced outside the reservation path
// (bulk import). It takes the sequence lock and never lowers the counter.
func (s *Sequence) Write(ctx context.Context, next int64) error {
	return s.gen.withLock(ctx, s.key, func(ctx context.Context) error {
		st, _, err := s.gen.load(ctx, s.key)
		if err != nil {
			return err
		}
		if next <= st.Next {
			return nil
		}
		st.Next = next
		if err := s.gen.store.Save(ctx, s.key, st); err != nil {
			return fmt.Errorf("save sequence %s: %w", s.key, err)
		}
		return nil
	})
}

// SetTemplate changes the display template of the sequence
func (s *Sequence) SetTemplate(ctx context.Context, template string) error {
	if err := ValidateTemplate(template); err != nil {
		return err
	}
	return s.gen.withLock(ctx, s.key, func(ctx context.Context) error {
		st, _, err := s.gen.load(ctx, s.key)
		if err != nil {
			return err
		}
		st.Template = template
		if err := s.gen.store.Save(ctx, s.key, st); err != nil {
			return fmt.Errorf("save sequence %s: %w", s.key, err)
		}
		return nil
	})
}

// Commit marks the reservation of number as saved
func (s *Sequence) Commit(number string) {
	s.finish(number, StateCommitted)
}

// Burn marks the reservation of number as lost to a duplicate. The counter
// stays advanced so a retry cannot hit the same colliding value again.
func (s *Sequence) Burn(ctx context.Context, number string) {
	if s.finish(number, StateBurned) == nil {
		return
	}
	s.gen.observer.Burned(ctx, s.key)
	s.gen.logger.Info("reserved number already taken, skipping it",
		zap.String("sequence", s.key.String()),
		zap.String("number", number),
	)
}

// Release hands number back after a failed save. It is a best-effort hint:
// the counter is restored only while number is still the latest reservation
// and has not been persisted, so a stale caller can never move the counter
// below a later reservation. Numbers this handle did not reserve are ignored.
func (s *Sequence) Release(ctx context.Context, number string) error {
	r := s.finish(number, StateReleased)
	if r == nil {
		return nil
	}

	restored := false
	err := s.gen.withLock(ctx, s.key, func(ctx context.Context) error {
		st, found, err := s.gen.load(ctx, s.key)
		if err != nil {
			return err
		}
		if !found || st.Next != r.Value+1 {
			return nil
		}
		exists, err := s.gen.store.NumberExists(ctx, s.key, r.Number)
		if err != nil {
			return fmt.Errorf("check number %s: %w", r.Number, err)
		}
		if exists {
			return nil
		}
		st.Next = r.Value
		if err := s.gen.store.Save(ctx, s.key, st); err != nil {
			return fmt.Errorf("save sequence %s: %w", s.key, err)
		}
		restored = true
		return nil
	})

	s.gen.observer.Released(ctx, s.key, restored)
	s.gen.logger.Debug("number released",
		zap.String("sequence", s.key.String()),
		zap.String("number", number),
		zap.Bool("restored", restored),
	)
	return err
}

// Current returns the most recent reservation of this handle, or nil
func (s *Sequence) Current() *Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reservations) == 0 {
		return nil
	}
	return s.reservations[len(s.reservations)-1]
}

// State returns the state of the reservation of number
func (s *Sequence) State(number string) ReservationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.reservations) - 1; i >= 0; i-- {
		if s.reservations[i].Number == number {
			return s.reservations[i].state
		}
	}
	return StateIdle
}

// finish moves the in-flight reservation of number to a terminal state and
// returns it, or nil when there is none
func (s *Sequence) finish(number string, to ReservationState) *Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.reservations) - 1; i >= 0; i-- {
		r := s.reservations[i]
		if r.Number == number && r.state == StateReserved {
			if err := r.transition(to); err != nil {
				return nil
			}
			return r
		}
	}
	return nil
}
