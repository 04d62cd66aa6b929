// Package tenant enforces tenant isolation at the persistence boundary.
//
// Every tenant-owned row is written with the tenant of the request and every
// read of a tenant-owned table is filtered by it. Reads that genuinely need
// to span tenants (maintenance jobs) must say so with UnsafeQueryAcrossTenants.
//
// Usage:
//
//	guard := tenant.NewGuard()
//	db, err := guard.ScopedQuery(ctx, gormDB)
//	db.Find(&invoices) // WHERE "invoices"."tenant_id" = 42
package tenant

import (
	"context"
	"fmt"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultColumn is the tenant column of every tenant-owned table
const DefaultColumn = "tenant_id"

// crossTenantKey marks a statement as deliberately unscoped
const crossTenantKey = "tenant:cross_tenant"

// Guard stamps and checks tenant ownership
type Guard struct {
	column string
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithColumn overrides the tenant column name
func WithColumn(column string) GuardOption {
	return func(g *Guard) {
		if column != "" {
			g.column = column
		}
	}
}

// NewGuard creates a Guard
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{column: DefaultColumn}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Column returns the tenant column name
func (g *Guard) Column() string {
	return g.column
}

// BeforeCreate validates and stamps the owning tenant of entity. It performs
// no I/O and leaves entity untouched on error.
//
//   - current tenant T and entity tenant set to something else: ErrTenantMismatch
//   - current tenant T and entity tenant unset: entity is stamped with T
//   - no current tenant and entity tenant unset: ErrTenantRequired
//
// An entity that already carries a tenant is accepted when no tenant is
// current, which is how background jobs create rows for a known tenant.
func (g *Guard) BeforeCreate(ctx context.Context, entity shared.TenantOwned) error {
	current, ok := tenancy.CurrentTenant(ctx)
	owner := entity.GetTenantID()

	if ok && !owner.IsZero() && owner != current {
		return fmt.Errorf("%w: entity tenant %d, current tenant %d", shared.ErrTenantMismatch, owner, current)
	}
	if ok && owner.IsZero() {
		entity.SetTenantID(current)
		return nil
	}
	if owner.IsZero() {
		return shared.ErrTenantRequired
	}
	return nil
}

// ScopedQuery restricts db to rows of the current tenant
func (g *Guard) ScopedQuery(ctx context.Context, db *gorm.DB) (*gorm.DB, error) {
	current, ok := tenancy.CurrentTenant(ctx)
	if !ok {
		return nil, shared.ErrTenantContextMissing
	}
	return db.WithContext(ctx).Scopes(g.Scope(current)), nil
}

// Scope returns a GORM scope filtering on tenantID
func (g *Guard) Scope(tenantID shared.TenantID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: g.column},
			Value:  tenantID,
		})
	}
}

// UnsafeQueryAcrossTenants returns db without any tenant filter. The guard
// callbacks let statements built from it through. Only maintenance jobs such
// as sequence reconciliation may use it.
func (g *Guard) UnsafeQueryAcrossTenants(ctx context.Context, db *gorm.DB) *gorm.DB {
	logger.L(ctx).Info("cross-tenant query", zap.Stack("caller"))
	return db.WithContext(ctx).Set(crossTenantKey, true)
}

func isCrossTenant(db *gorm.DB) bool {
	v, ok := db.Get(crossTenantKey)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
