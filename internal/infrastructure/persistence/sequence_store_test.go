package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/lock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestInvoice(tenantID shared.TenantID, number string) *billing.Invoice {
	issue := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return billing.NewInvoice(tenantID, number, uuid.New(), "EUR", issue, issue.AddDate(0, 0, 30), []billing.Line{
		{Description: "Consulting", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.RequireFromString("10.50")},
	})
}

func TestGormSequenceStore_LoadSave(t *testing.T) {
	db, guard := setupSQLiteDB(t)
	store := NewGormSequenceStore(db, guard)
	key := numbering.NewKey(1, numbering.ObjectTypeInvoice)
	ctx := tenantCtx(1)

	_, found, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Save(ctx, key, numbering.State{Next: 5, Template: "INV-%05d"}))
	require.NoError(t, store.Save(ctx, key, numbering.State{Next: 6, Template: "F-%d"}))

	st, found, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, numbering.State{Next: 6, Template: "F-%d"}, st)

	t.Run("rows of other tenants are invisible", func(t *testing.T) {
		other := numbering.NewKey(2, numbering.ObjectTypeInvoice)
		_, found, err := store.Load(tenantCtx(2), other)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("requires a tenant context", func(t *testing.T) {
		_, _, err := store.Load(context.Background(), key)
		assert.ErrorIs(t, err, shared.ErrTenantContextMissing)
	})

	t.Run("rejects a key of another tenant", func(t *testing.T) {
		_, _, err := store.Load(tenantCtx(2), key)
		assert.ErrorIs(t, err, shared.ErrTenantMismatch)

		err = store.Save(tenantCtx(2), key, numbering.State{Next: 99, Template: "X-%d"})
		assert.ErrorIs(t, err, shared.ErrTenantMismatch)
	})
}

func TestGormSequenceStore_NumberExists(t *testing.T) {
	db, guard := setupSQLiteDB(t)
	store := NewGormSequenceStore(db, guard)
	repo := NewGormInvoiceRepository(db, guard)

	require.NoError(t, repo.Create(tenantCtx(1), newTestInvoice(1, "INV-00001")))

	exists, err := store.NumberExists(tenantCtx(1), numbering.NewKey(1, numbering.ObjectTypeInvoice), "INV-00001")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.NumberExists(tenantCtx(2), numbering.NewKey(2, numbering.ObjectTypeInvoice), "INV-00001")
	require.NoError(t, err)
	assert.False(t, exists, "numbers are unique per tenant only")

	exists, err = store.NumberExists(tenantCtx(1), numbering.NewKey(1, numbering.ObjectTypeCreditNote), "INV-00001")
	require.NoError(t, err)
	assert.False(t, exists, "numbers are unique per object type only")
}

func TestGormSequenceStore_ScanAllTenants(t *testing.T) {
	db, guard := setupSQLiteDB(t)
	store := NewGormSequenceStore(db, guard)
	repo := NewGormInvoiceRepository(db, guard)

	require.NoError(t, repo.Create(tenantCtx(1), newTestInvoice(0, "INV-00001")))
	require.NoError(t, repo.Create(tenantCtx(1), newTestInvoice(0, "INV-00007")))
	require.NoError(t, repo.Create(tenantCtx(2), newTestInvoice(0, "INV-00003")))

	seen := map[shared.TenantID][]string{}
	err := store.ScanAllTenants(context.Background(), numbering.ObjectTypeInvoice, func(tenantID shared.TenantID, number string) error {
		seen[tenantID] = append(seen[tenantID], number)
		return nil
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"INV-00001", "INV-00007"}, seen[1])
	assert.Equal(t, []string{"INV-00003"}, seen[2])
}

func TestGormSequenceStore_WithGenerator(t *testing.T) {
	db, guard := setupSQLiteDB(t)
	store := NewGormSequenceStore(db, guard)
	repo := NewGormInvoiceRepository(db, guard)
	locker := lock.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })
	gen := numbering.NewGenerator(store, locker)
	ctx := tenantCtx(1)

	// A manually entered number the counter does not know about
	require.NoError(t, repo.Create(ctx, newTestInvoice(0, "INV-00001")))

	seq := gen.For(1, numbering.ObjectTypeInvoice)
	number, err := seq.NextNumberFormatted(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, "INV-00002", number)

	peek, err := gen.For(1, numbering.ObjectTypeInvoice).NextNumberFormatted(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "INV-00003", peek)

	require.NoError(t, seq.Release(ctx, number))
	peek, err = gen.For(1, numbering.ObjectTypeInvoice).NextNumberFormatted(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "INV-00002", peek)
}

func TestGormSequenceStore_ConcurrentReservations(t *testing.T) {
	const workers = 16

	db, guard := setupSQLiteDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	locker := lock.NewInMemoryLocker()
	t.Cleanup(func() { _ = locker.Close() })
	gen := numbering.NewGenerator(NewGormSequenceStore(db, guard), locker,
		numbering.WithLockConfig(shared.LockConfig{TTL: 30 * time.Second, Wait: 10 * time.Second}))

	numbers := make([]string, workers)
	g, gctx := errgroup.WithContext(tenantCtx(1))
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			n, err := gen.For(1, numbering.ObjectTypeInvoice).NextNumberFormatted(gctx, true)
			numbers[i] = n
			return err
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]bool, workers)
	for _, n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)

	st, err := gen.For(1, numbering.ObjectTypeInvoice).Inspect(tenantCtx(1))
	require.NoError(t, err)
	assert.Equal(t, int64(workers+1), st.Next)
}
