package tenant

import (
	"context"
	"fmt"
	"testing"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// note has no tenant column and is left alone by the callbacks
type note struct {
	ID   uint `gorm:"primaryKey"`
	Text string
}

func setupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&widget{}, &note{}))
	require.NoError(t, Register(db, NewGuard()))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedWidgets(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tenantID := range []shared.TenantID{1, 1, 2} {
		ctx := tenancy.ForTenant(context.Background(), tenantID)
		w := &widget{TenantEntity: shared.NewTenantEntity(0), Name: fmt.Sprintf("w-%d", tenantID)}
		require.NoError(t, db.WithContext(ctx).Create(w).Error)
	}
}

func TestCallbacks_Create(t *testing.T) {
	db := setupSQLiteDB(t)

	t.Run("stamps tenant on plain create", func(t *testing.T) {
		ctx := tenancy.ForTenant(context.Background(), 9)
		w := &widget{TenantEntity: shared.NewTenantEntity(0), Name: "a"}

		require.NoError(t, db.WithContext(ctx).Create(w).Error)
		assert.Equal(t, shared.TenantID(9), w.TenantID)
	})

	t.Run("stamps every element of a batch", func(t *testing.T) {
		ctx := tenancy.ForTenant(context.Background(), 9)
		batch := []widget{
			{TenantEntity: shared.NewTenantEntity(0), Name: "b"},
			{TenantEntity: shared.NewTenantEntity(0), Name: "c"},
		}

		require.NoError(t, db.WithContext(ctx).Create(&batch).Error)
		for _, w := range batch {
			assert.Equal(t, shared.TenantID(9), w.TenantID)
		}
	})

	t.Run("rejects foreign tenant", func(t *testing.T) {
		ctx := tenancy.ForTenant(context.Background(), 9)
		w := &widget{TenantEntity: shared.NewTenantEntity(10), Name: "x"}

		err := db.WithContext(ctx).Create(w).Error
		assert.ErrorIs(t, err, shared.ErrTenantMismatch)

		var count int64
		require.NoError(t, db.WithContext(ctx).Model(&widget{}).Where("name = ?", "x").Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("rejects missing tenant", func(t *testing.T) {
		err := db.WithContext(context.Background()).Create(&widget{Name: "y"}).Error
		assert.ErrorIs(t, err, shared.ErrTenantRequired)
	})

	t.Run("non tenant models are unaffected", func(t *testing.T) {
		require.NoError(t, db.WithContext(context.Background()).Create(&note{Text: "hi"}).Error)
	})
}

func TestCallbacks_Query(t *testing.T) {
	db := setupSQLiteDB(t)
	seedWidgets(t, db)

	t.Run("filters to current tenant", func(t *testing.T) {
		var rows []widget
		require.NoError(t, db.WithContext(tenancy.ForTenant(context.Background(), 1)).Find(&rows).Error)
		assert.Len(t, rows, 2)
		for _, r := range rows {
			assert.Equal(t, shared.TenantID(1), r.TenantID)
		}
	})

	t.Run("count is filtered", func(t *testing.T) {
		var count int64
		require.NoError(t, db.WithContext(tenancy.ForTenant(context.Background(), 2)).Model(&widget{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("missing tenant fails", func(t *testing.T) {
		var rows []widget
		err := db.WithContext(context.Background()).Find(&rows).Error
		assert.ErrorIs(t, err, shared.ErrTenantContextMissing)
	})

	t.Run("explicit foreign tenant condition is rejected", func(t *testing.T) {
		var rows []widget
		err := db.WithContext(tenancy.ForTenant(context.Background(), 1)).
			Where(&widget{TenantEntity: shared.TenantEntity{TenantID: 2}}).
			Find(&rows).Error
		assert.ErrorIs(t, err, shared.ErrTenantMismatch)
	})

	t.Run("scoped query is not filtered twice", func(t *testing.T) {
		ctx := tenancy.ForTenant(context.Background(), 1)
		scoped, err := NewGuard().ScopedQuery(ctx, db)
		require.NoError(t, err)

		var rows []widget
		stmt := scoped.Session(&gorm.Session{DryRun: true}).Find(&rows).Statement
		assert.Equal(t, 1, len(stmt.Vars))
	})

	t.Run("cross tenant query sees every row", func(t *testing.T) {
		var rows []widget
		unscoped := NewGuard().UnsafeQueryAcrossTenants(context.Background(), db)
		require.NoError(t, unscoped.Find(&rows).Error)
		assert.Len(t, rows, 3)
	})
}

func TestCallbacks_UpdateDelete(t *testing.T) {
	db := setupSQLiteDB(t)
	seedWidgets(t, db)

	var foreign widget
	require.NoError(t, db.WithContext(tenancy.ForTenant(context.Background(), 2)).First(&foreign).Error)

	ctx := tenancy.ForTenant(context.Background(), 1)

	t.Run("update of another tenant's row affects nothing", func(t *testing.T) {
		res := db.WithContext(ctx).Model(&widget{}).Where("id = ?", foreign.ID).Update("name", "hijacked")
		require.NoError(t, res.Error)
		assert.Zero(t, res.RowsAffected)
	})

	t.Run("delete of another tenant's row affects nothing", func(t *testing.T) {
		res := db.WithContext(ctx).Where("id = ?", foreign.ID).Delete(&widget{})
		require.NoError(t, res.Error)
		assert.Zero(t, res.RowsAffected)
	})

	t.Run("own rows can be updated", func(t *testing.T) {
		res := db.WithContext(ctx).Model(&widget{}).Where("name = ?", "w-1").Update("name", "renamed")
		require.NoError(t, res.Error)
		assert.Equal(t, int64(2), res.RowsAffected)
	})

	var check widget
	require.NoError(t, db.WithContext(tenancy.ForTenant(context.Background(), 2)).First(&check, "id = ?", foreign.ID).Error)
	assert.Equal(t, "w-2", check.Name)
}
