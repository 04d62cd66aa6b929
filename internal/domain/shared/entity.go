package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantID identifies the organization that owns a record. Zero means unset.
type TenantID int64

// IsZero reports whether the tenant id is unset
func (t TenantID) IsZero() bool {
	return t == 0
}

// Entity is the base interface for all domain entities
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// TenantOwned is implemented by every entity that belongs to exactly one tenant
type TenantOwned interface {
	GetTenantID() TenantID
	SetTenantID(TenantID)
}

// Numbered is implemented by entities that carry a per-tenant document number
type Numbered interface {
	TenantOwned
	ObjectType() string
	GetNumber() string
	SetNumber(string)
}

// BaseEntity provides common fields for all entities
type BaseEntity struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GetID returns the entity ID
func (e *BaseEntity) GetID() uuid.UUID {
	return e.ID
}

// GetCreatedAt returns the creation timestamp
func (e *BaseEntity) GetCreatedAt() time.Time {
	return e.CreatedAt
}

// GetUpdatedAt returns the last update timestamp
func (e *BaseEntity) GetUpdatedAt() time.Time {
	return e.UpdatedAt
}

// NewBaseEntity creates a new base entity with generated ID
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TenantEntity extends BaseEntity with a single immutable owning tenant
type TenantEntity struct {
	BaseEntity
	TenantID TenantID `gorm:"not null;index"`
}

// NewTenantEntity creates a tenant entity. A zero tenant leaves stamping to the tenant guard.
func NewTenantEntity(tenantID TenantID) TenantEntity {
	return TenantEntity{
		BaseEntity: NewBaseEntity(),
		TenantID:   tenantID,
	}
}

// GetTenantID returns the owning tenant
func (e *TenantEntity) GetTenantID() TenantID {
	return e.TenantID
}

// SetTenantID stamps the owning tenant
func (e *TenantEntity) SetTenantID(id TenantID) {
	e.TenantID = id
}
