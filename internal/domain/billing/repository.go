package billing

import (
	"context"

	"github.com/google/uuid"
)

// CustomerRepository persists customers of the current tenant
type CustomerRepository interface {
	Create(ctx context.Context, c *Customer) error
	FindByID(ctx context.Context, id uuid.UUID) (*Customer, error)
	FindByNumber(ctx context.Context, number string) (*Customer, error)
	List(ctx context.Context, limit, offset int) ([]*Customer, error)
}

// InvoiceRepository persists invoices of the current tenant
type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	Update(ctx context.Context, inv *Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, limit, offset int) ([]*Invoice, error)
}

// CreditNoteRepository persists credit notes of the current tenant
type CreditNoteRepository interface {
	Create(ctx context.Context, cn *CreditNote) error
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*CreditNote, error)
}

// EstimateRepository persists estimates of the current tenant
type EstimateRepository interface {
	Create(ctx context.Context, e *Estimate) error
	FindByID(ctx context.Context, id uuid.UUID) (*Estimate, error)
}
