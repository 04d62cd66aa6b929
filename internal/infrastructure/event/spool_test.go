package event

import (
	"context"
	"errors"
	"testing"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSpool_QueuesUntilFlush(t *testing.T) {
	bus := NewBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)
	spool := NewSpool(bus, zap.NewNop())
	ctx := tenancy.ForTenant(context.Background(), 1)

	require.NoError(t, spool.Publish(ctx, newTestEvent("InvoiceCreated", 1), newTestEvent("InvoiceIssued", 1)))
	assert.Equal(t, 2, spool.Pending(1))
	assert.Zero(t, h.count())

	require.NoError(t, spool.Flush(ctx, 1))
	assert.Equal(t, 2, h.count())
	assert.Zero(t, spool.Pending(1))

	require.NoError(t, spool.Flush(ctx, 1), "flushing an empty queue is a no-op")
	assert.Equal(t, 2, h.count())
}

func TestSpool_RejectsForeignTenant(t *testing.T) {
	spool := NewSpool(NewBus(zap.NewNop()), zap.NewNop())
	ctx := tenancy.ForTenant(context.Background(), 1)

	err := spool.Publish(ctx, newTestEvent("InvoiceCreated", 2))
	assert.ErrorIs(t, err, shared.ErrTenantMismatch)
	assert.Zero(t, spool.Pending(2))

	err = spool.Publish(context.Background(), newTestEvent("InvoiceCreated", 0))
	assert.ErrorIs(t, err, shared.ErrTenantRequired)
}

func TestSpool_FlushedOnTenantSwitch(t *testing.T) {
	bus := NewBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)
	spool := NewSpool(bus, zap.NewNop())

	tc := tenancy.NewContext(spool)
	ctx := tenancy.WithContext(context.Background(), tc)
	require.NoError(t, tc.Set(ctx, 1))
	require.NoError(t, spool.Publish(ctx, newTestEvent("InvoiceCreated", 1)))

	err := tc.RunAs(ctx, 2, func(ctx context.Context) error {
		assert.Equal(t, 1, h.count(), "tenant 1 events are delivered before switching")
		return spool.Publish(ctx, newTestEvent("InvoiceCreated", 2))
	})
	require.NoError(t, err)

	assert.Equal(t, 2, h.count(), "tenant 2 events are delivered when switching back")
	assert.Equal(t, []shared.TenantID{1, 2}, h.tenants)
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, ...shared.DomainEvent) error { return p.err }

func TestSpool_FlushFailureBlocksSwitch(t *testing.T) {
	down := errors.New("bus down")
	spool := NewSpool(failingPublisher{err: down}, zap.NewNop())
	tc := tenancy.NewContext(spool)
	ctx := tenancy.WithContext(context.Background(), tc)
	require.NoError(t, tc.Set(ctx, 1))
	require.NoError(t, spool.Publish(ctx, newTestEvent("InvoiceCreated", 1)))

	err := tc.Set(ctx, 2)
	assert.ErrorIs(t, err, down)
	current, _ := tc.Get()
	assert.Equal(t, shared.TenantID(1), current)
	assert.Equal(t, 1, spool.Pending(1), "undelivered events stay queued")
}

func TestSpool_FlushAllAndDiscard(t *testing.T) {
	bus := NewBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)
	spool := NewSpool(bus, zap.NewNop())

	require.NoError(t, spool.Publish(context.Background(), newTestEvent("A", 3)))
	require.NoError(t, spool.Publish(context.Background(), newTestEvent("B", 1)))
	require.NoError(t, spool.FlushAll(context.Background()))
	assert.Equal(t, []shared.TenantID{3, 1}, h.tenants)

	require.NoError(t, spool.Publish(context.Background(), newTestEvent("C", 1)))
	spool.Discard()
	require.NoError(t, spool.FlushAll(context.Background()))
	assert.Equal(t, 2, h.count())
}

func TestRequestPublisher_RoutesToSpool(t *testing.T) {
	bus := NewBus(zap.NewNop())
	h := newTestHandler()
	bus.Subscribe(h)
	pub := NewRequestPublisher(bus)
	ctx := tenancy.ForTenant(context.Background(), 3)

	require.NoError(t, pub.Publish(ctx, newTestEvent("CustomerCreated", 3)))
	assert.Equal(t, 1, h.count(), "without a spool events go straight to the bus")

	spool := NewSpool(bus, zap.NewNop())
	ctx = WithSpool(ctx, spool)
	require.NoError(t, pub.Publish(ctx, newTestEvent("CustomerCreated", 3)))
	assert.Equal(t, 1, h.count())
	assert.Equal(t, 1, spool.Pending(3))
	assert.Same(t, spool, SpoolFromContext(ctx))
}
