package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"go.uber.org/zap"
)

// Spool queues the domain events raised during one request per tenant and
// forwards them to the bus on Flush. It implements tenancy.Flusher so that
// switching the current tenant first delivers everything the outgoing
// tenant raised.
type Spool struct {
	mu      sync.Mutex
	pending map[shared.TenantID][]shared.DomainEvent
	order   []shared.TenantID
	next    shared.EventPublisher
	logger  *zap.Logger
}

// NewSpool creates a spool forwarding to next
func NewSpool(next shared.EventPublisher, logger *zap.Logger) *Spool {
	return &Spool{
		pending: make(map[shared.TenantID][]shared.DomainEvent),
		next:    next,
		logger:  logger,
	}
}

// Publish queues events. An event of a tenant other than the current one is
// rejected with ErrTenantMismatch.
func (s *Spool) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	current, hasTenant := tenancy.CurrentTenant(ctx)
	for _, e := range events {
		if e.TenantID().IsZero() {
			return fmt.Errorf("event %s: %w", e.EventType(), shared.ErrTenantRequired)
		}
		if hasTenant && e.TenantID() != current {
			return fmt.Errorf("%w: event %s of tenant %d, current tenant %d",
				shared.ErrTenantMismatch, e.EventType(), e.TenantID(), current)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		id := e.TenantID()
		if _, ok := s.pending[id]; !ok {
			s.order = append(s.order, id)
		}
		s.pending[id] = append(s.pending[id], e)
	}
	return nil
}

// Flush forwards and drops the queued events of tenantID. If forwarding
// fails the events stay queued.
func (s *Spool) Flush(ctx context.Context, tenantID shared.TenantID) error {
	s.mu.Lock()
	events := s.pending[tenantID]
	delete(s.pending, tenantID)
	for i, id := range s.order {
		if id == tenantID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if len(events) == 0 {
		return nil
	}
	s.logger.Debug("flushing event spool",
		zap.Int64("tenant_id", int64(tenantID)),
		zap.Int("events", len(events)),
	)
	if err := s.next.Publish(ctx, events...); err != nil {
		s.requeue(tenantID, events)
		return err
	}
	return nil
}

func (s *Spool) requeue(tenantID shared.TenantID, events []shared.DomainEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[tenantID]; !ok {
		s.order = append([]shared.TenantID{tenantID}, s.order...)
	}
	s.pending[tenantID] = append(events, s.pending[tenantID]...)
}

// FlushAll flushes every tenant in the order their first event was queued
func (s *Spool) FlushAll(ctx context.Context) error {
	s.mu.Lock()
	tenants := append([]shared.TenantID(nil), s.order...)
	s.mu.Unlock()

	for _, id := range tenants {
		if err := s.Flush(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops every queued event, e.g. when the request failed
func (s *Spool) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[shared.TenantID][]shared.DomainEvent)
	s.order = nil
}

// Pending returns the number of queued events of tenantID
func (s *Spool) Pending(tenantID shared.TenantID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending[tenantID])
}

type spoolKey struct{}

// WithSpool attaches a request spool to ctx
func WithSpool(ctx context.Context, s *Spool) context.Context {
	return context.WithValue(ctx, spoolKey{}, s)
}

// SpoolFromContext returns the spool attached to ctx, or nil
func SpoolFromContext(ctx context.Context) *Spool {
	if s, ok := ctx.Value(spoolKey{}).(*Spool); ok {
		return s
	}
	return nil
}

// RequestPublisher queues events in the request spool when ctx carries one
// and publishes directly otherwise (jobs, tests)
type RequestPublisher struct {
	direct shared.EventPublisher
}

// NewRequestPublisher creates a RequestPublisher falling back to direct
func NewRequestPublisher(direct shared.EventPublisher) *RequestPublisher {
	return &RequestPublisher{direct: direct}
}

// Publish implements shared.EventPublisher
func (p *RequestPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if s := SpoolFromContext(ctx); s != nil {
		return s.Publish(ctx, events...)
	}
	return p.direct.Publish(ctx, events...)
}

var (
	_ shared.EventPublisher = (*Spool)(nil)
	_ shared.EventPublisher = (*RequestPublisher)(nil)
	_ tenancy.Flusher       = (*Spool)(nil)
)
