package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/persistence/models"
	"github.com/invoiced/backend/internal/infrastructure/persistence/tenant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSequenceStore implements numbering.Store on the numbering_sequences
// table and the document tables
type GormSequenceStore struct {
	db    *gorm.DB
	guard *tenant.Guard
	now   func() time.Time
}

// NewGormSequenceStore creates a new GormSequenceStore
func NewGormSequenceStore(db *gorm.DB, guard *tenant.Guard) *GormSequenceStore {
	return &GormSequenceStore{db: db, guard: guard, now: time.Now}
}

// Load reads the sequence row of key
func (s *GormSequenceStore) Load(ctx context.Context, key numbering.Key) (numbering.State, bool, error) {
	var model models.SequenceModel
	err := s.db.WithContext(ctx).
		Scopes(s.guard.Scope(key.TenantID)).
		Where("object_type = ?", string(key.ObjectType)).
		Take(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return numbering.State{}, false, nil
		}
		return numbering.State{}, false, err
	}
	return numbering.State{Next: model.Next, Template: model.Template}, true, nil
}

// Save upserts the sequence row of key
func (s *GormSequenceStore) Save(ctx context.Context, key numbering.Key, state numbering.State) error {
	model := &models.SequenceModel{
		TenantID:   key.TenantID,
		ObjectType: string(key.ObjectType),
		Next:       state.Next,
		Template:   state.Template,
		UpdatedAt:  s.now(),
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "object_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"next", "template", "updated_at"}),
		}).
		Create(model).Error
}

// NumberExists reports whether number is stored in the document table of
// key's object type
func (s *GormSequenceStore) NumberExists(ctx context.Context, key numbering.Key, number string) (bool, error) {
	table, ok := models.DocumentTables[key.ObjectType]
	if !ok {
		return false, fmt.Errorf("no document table for object type %q", key.ObjectType)
	}
	var count int64
	err := s.db.WithContext(ctx).
		Table(table.Name).
		Scopes(s.guard.Scope(key.TenantID)).
		Where("number = ?", number).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ScanAllTenants streams the stored numbers of objectType for every tenant.
// It bypasses tenant scoping and is meant for maintenance jobs only.
func (s *GormSequenceStore) ScanAllTenants(ctx context.Context, objectType numbering.ObjectType, fn func(tenantID shared.TenantID, number string) error) error {
	table, ok := models.DocumentTables[objectType]
	if !ok {
		return fmt.Errorf("no document table for object type %q", objectType)
	}
	rows, err := s.guard.UnsafeQueryAcrossTenants(ctx, s.db.WithContext(ctx)).
		Table(table.Name).
		Select("tenant_id", "number").
		Order("tenant_id").
		Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tenantID shared.TenantID
			number   string
		)
		if err := rows.Scan(&tenantID, &number); err != nil {
			return err
		}
		if err := fn(tenantID, number); err != nil {
			return err
		}
	}
	return rows.Err()
}

var _ numbering.Store = (*GormSequenceStore)(nil)
