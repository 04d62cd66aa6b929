package persistence

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/invoiced/backend/internal/infrastructure/persistence/models"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupSQLiteDB opens a private in-memory database with the billing schema
// and the tenant callbacks installed
func setupSQLiteDB(t *testing.T) (*gorm.DB, *tenant.Guard) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.CustomerModel{},
		&models.InvoiceModel{},
		&models.CreditNoteModel{},
		&models.EstimateModel{},
		&models.SequenceModel{},
	))

	guard := tenant.NewGuard()
	wrapped, err := Wrap(db, guard)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return wrapped.DB, guard
}

func tenantCtx(id shared.TenantID) context.Context {
	return tenancy.ForTenant(context.Background(), id)
}
