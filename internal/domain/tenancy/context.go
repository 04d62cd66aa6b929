// Package tenancy holds the request-scoped "current tenant" state.
//
// A Context is created once per request (or job) by the session layer and
// carried in a context.Context. It is never a package-level singleton, so
// concurrent requests in the same process cannot observe each other's tenant.
//
// Usage:
//
//	tc := tenancy.NewContext()
//	ctx = tenancy.WithContext(ctx, tc)
//	_ = tc.Set(ctx, tenantID)
//	_ = tc.RunAs(ctx, otherTenant, func(ctx context.Context) error { ... })
package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/invoiced/backend/internal/domain/shared"
)

// Flusher is a tenant-scoped side-effect queue (event or email spool) that
// must be drained before the current tenant changes
type Flusher interface {
	Flush(ctx context.Context, tenantID shared.TenantID) error
}

// FlusherFunc adapts a function to Flusher
type FlusherFunc func(ctx context.Context, tenantID shared.TenantID) error

// Flush implements Flusher
func (f FlusherFunc) Flush(ctx context.Context, tenantID shared.TenantID) error {
	return f(ctx, tenantID)
}

// Context holds at most one current tenant.
//
// switchMu serializes tenant switches; mu only guards the fields. Flushers
// run with switchMu held but not mu, so they may read the current tenant
// (which is still the outgoing one) but must not switch it.
type Context struct {
	switchMu sync.Mutex
	mu       sync.Mutex
	current  shared.TenantID
	flushers []Flusher
}

// NewContext creates an empty tenant context
func NewContext(flushers ...Flusher) *Context {
	return &Context{flushers: flushers}
}

// RegisterFlusher adds a queue that is flushed before every tenant switch
func (c *Context) RegisterFlusher(f Flusher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushers = append(c.flushers, f)
}

// Get returns the current tenant and whether one is set
func (c *Context) Get() (shared.TenantID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, !c.current.IsZero()
}

// Set replaces the current tenant. Pending queues of the outgoing tenant are
// flushed first; if flushing fails the tenant is not switched.
func (c *Context) Set(ctx context.Context, tenantID shared.TenantID) error {
	c.switchMu.Lock()
	defer c.switchMu.Unlock()
	_, err := c.switchTo(ctx, tenantID)
	return err
}

// Clear removes the current tenant, flushing its queues first
func (c *Context) Clear(ctx context.Context) error {
	return c.Set(ctx, 0)
}

// RunAs runs fn with tenantID as the current tenant and then restores
// exactly the value that was current before the call, even if fn changed it.
func (c *Context) RunAs(ctx context.Context, tenantID shared.TenantID, fn func(ctx context.Context) error) (err error) {
	c.switchMu.Lock()
	previous, err := c.switchTo(ctx, tenantID)
	c.switchMu.Unlock()
	if err != nil {
		return err
	}

	defer func() {
		c.switchMu.Lock()
		_, restoreErr := c.switchTo(ctx, previous)
		c.switchMu.Unlock()
		if restoreErr != nil {
			err = errors.Join(err, restoreErr)
		}
	}()

	return fn(ctx)
}

// switchTo flushes the outgoing tenant's queues and installs next, returning
// the outgoing tenant. c.switchMu must be held.
func (c *Context) switchTo(ctx context.Context, next shared.TenantID) (shared.TenantID, error) {
	c.mu.Lock()
	outgoing := c.current
	flushers := append([]Flusher(nil), c.flushers...)
	c.mu.Unlock()

	if next == outgoing {
		return outgoing, nil
	}
	if !outgoing.IsZero() {
		for _, f := range flushers {
			if err := f.Flush(ctx, outgoing); err != nil {
				return outgoing, fmt.Errorf("flush tenant %d before switch: %w", outgoing, err)
			}
		}
	}

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()
	return outgoing, nil
}

type contextKey struct{}

// WithContext attaches a tenant context to ctx
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the tenant context attached to ctx, or nil
func FromContext(ctx context.Context) *Context {
	if tc, ok := ctx.Value(contextKey{}).(*Context); ok {
		return tc
	}
	return nil
}

// CurrentTenant returns the current tenant carried by ctx, if any
func CurrentTenant(ctx context.Context) (shared.TenantID, bool) {
	tc := FromContext(ctx)
	if tc == nil {
		return 0, false
	}
	return tc.Get()
}

// ForTenant returns a context carrying a fresh tenant context set to tenantID.
// Intended for background jobs that start outside any request.
func ForTenant(ctx context.Context, tenantID shared.TenantID, flushers ...Flusher) context.Context {
	tc := NewContext(flushers...)
	tc.current = tenantID
	return WithContext(ctx, tc)
}
