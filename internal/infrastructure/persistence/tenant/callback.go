package tenant

import (
	"fmt"
	"reflect"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/tenancy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Callbacks applies a Guard to the GORM callback chain so that plain
// db.Create / db.Find on a tenant-owned model cannot bypass it
type Callbacks struct {
	guard *Guard
}

// NewCallbacks creates the callback set for guard
func NewCallbacks(guard *Guard) *Callbacks {
	return &Callbacks{guard: guard}
}

// Register installs the callbacks on db
func (c *Callbacks) Register(db *gorm.DB) error {
	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("tenant:before_create", c.beforeCreate); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("tenant:before_query", c.addTenantFilter); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("tenant:before_row", c.addTenantFilter); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("tenant:before_update", c.addTenantFilter); err != nil {
		return err
	}
	return cb.Delete().Before("gorm:delete").Register("tenant:before_delete", c.addTenantFilter)
}

// Register installs guard callbacks on db
func Register(db *gorm.DB, guard *Guard) error {
	return NewCallbacks(guard).Register(db)
}

// beforeCreate runs Guard.BeforeCreate on every tenant-owned value being
// inserted
func (c *Callbacks) beforeCreate(db *gorm.DB) {
	if db.Error != nil || isCrossTenant(db) {
		return
	}

	rv := reflect.Indirect(db.Statement.ReflectValue)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if err := c.guardValue(db, rv.Index(i)); err != nil {
				_ = db.AddError(err)
				return
			}
		}
	case reflect.Struct:
		if err := c.guardValue(db, rv); err != nil {
			_ = db.AddError(err)
		}
	}
}

func (c *Callbacks) guardValue(db *gorm.DB, v reflect.Value) error {
	v = reflect.Indirect(v)
	if !v.CanAddr() {
		return nil
	}
	owned, ok := v.Addr().Interface().(shared.TenantOwned)
	if !ok {
		return nil
	}
	return c.guard.BeforeCreate(db.Statement.Context, owned)
}

// addTenantFilter restricts reads, updates and deletes of tenant-owned
// tables to the current tenant. An explicit condition on another tenant is
// rejected with ErrTenantMismatch.
func (c *Callbacks) addTenantFilter(db *gorm.DB) {
	if db.Error != nil || isCrossTenant(db) || !c.isTenantOwned(db) {
		return
	}
	// Raw SQL is already built and cannot be rewritten
	if db.Statement.SQL.Len() > 0 {
		return
	}

	current, ok := tenancy.CurrentTenant(db.Statement.Context)
	if !ok {
		_ = db.AddError(shared.ErrTenantContextMissing)
		return
	}

	found := false
	for _, v := range c.tenantConditions(db) {
		id, ok := asTenantID(v)
		if !ok || id != current {
			_ = db.AddError(fmt.Errorf("%w: query on tenant %v, current tenant %d", shared.ErrTenantMismatch, v, current))
			return
		}
		found = true
	}
	if found {
		return
	}

	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: clause.CurrentTable, Name: c.guard.column},
				Value:  current,
			},
		},
	})
}

func (c *Callbacks) isTenantOwned(db *gorm.DB) bool {
	if db.Statement.Schema == nil {
		return false
	}
	_, ok := db.Statement.Schema.FieldsByDBName[c.guard.column]
	return ok
}

// tenantConditions returns the values of AND-reachable equality conditions
// on the tenant column. OR branches are ignored since they can widen the
// result.
func (c *Callbacks) tenantConditions(db *gorm.DB) []any {
	whereClause, ok := db.Statement.Clauses["WHERE"]
	if !ok {
		return nil
	}
	where, ok := whereClause.Expression.(clause.Where)
	if !ok {
		return nil
	}
	var values []any
	for _, expr := range where.Exprs {
		values = c.collect(expr, values)
	}
	return values
}

func (c *Callbacks) collect(expr clause.Expression, values []any) []any {
	switch e := expr.(type) {
	case clause.Eq:
		if col, ok := e.Column.(clause.Column); ok && col.Name == c.guard.column {
			values = append(values, e.Value)
		}
	case clause.AndConditions:
		for _, cond := range e.Exprs {
			values = c.collect(cond, values)
		}
	}
	return values
}

func asTenantID(v any) (shared.TenantID, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return shared.TenantID(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return shared.TenantID(rv.Uint()), true
	}
	return 0, false
}
