package billing

import (
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/domain/shared/valueobject"
)

// Customer is a billed party of one tenant
type Customer struct {
	numbered
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email,max=200"`
	Currency string `json:"currency" validate:"required,iso4217"`
	// TaxID is stored sealed and only opened for document rendering
	TaxID valueobject.SecretString `json:"tax_id"`
}

// NewCustomer creates a customer. An empty number is assigned on create.
func NewCustomer(tenantID shared.TenantID, number, name, email, currency string) *Customer {
	c := &Customer{
		Name:     name,
		Email:    email,
		Currency: currency,
	}
	c.TenantAggregateRoot = shared.NewTenantAggregateRoot(tenantID)
	c.Number = number
	return c
}

// ObjectType implements shared.Numbered
func (c *Customer) ObjectType() string {
	return string(numbering.ObjectTypeCustomer)
}

// MarkCreated records the creation event once the customer is persisted
func (c *Customer) MarkCreated() {
	c.AddDomainEvent(NewDocumentCreated(EventTypeCustomerCreated, c.ObjectType(), c.ID, c.TenantID, c.Number))
}

var _ shared.Numbered = (*Customer)(nil)
