package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (m *BaseModel) fromDomain(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// tenantRoot rebuilds the domain aggregate root of a tenant-owned row
func (m *BaseModel) tenantRoot(tenantID shared.TenantID) shared.TenantAggregateRoot {
	root := shared.NewTenantAggregateRoot(tenantID)
	root.ID = m.ID
	root.CreatedAt = m.CreatedAt
	root.UpdatedAt = m.UpdatedAt
	return root
}
