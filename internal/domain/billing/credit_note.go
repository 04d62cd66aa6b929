package billing

import (
	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CreditNote reduces the balance of an issued invoice
type CreditNote struct {
	numbered
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason    string          `json:"reason" validate:"required,max=500"`
}

// NewCreditNote creates a credit note against invoice. The credit note may
// not exceed the invoice total.
func NewCreditNote(invoice *Invoice, number string, amount decimal.Decimal, reason string) (*CreditNote, error) {
	if invoice.Status != InvoiceStatusIssued {
		return nil, shared.NewDomainError("INVALID_STATE", "Credit notes require an issued invoice")
	}
	if amount.GreaterThan(invoice.Total) {
		return nil, shared.NewDomainError("INVALID_INPUT", "Credit note exceeds invoice total")
	}
	cn := &CreditNote{
		InvoiceID: invoice.ID,
		Amount:    amount.Round(2),
		Reason:    reason,
	}
	cn.TenantAggregateRoot = shared.NewTenantAggregateRoot(invoice.TenantID)
	cn.Number = number
	return cn, nil
}

// ObjectType implements shared.Numbered
func (c *CreditNote) ObjectType() string {
	return string(numbering.ObjectTypeCreditNote)
}

// MarkCreated records the creation event once the credit note is persisted
func (c *CreditNote) MarkCreated() {
	c.AddDomainEvent(NewDocumentCreated(EventTypeCreditNoteCreated, c.ObjectType(), c.ID, c.TenantID, c.Number))
}

var _ shared.Numbered = (*CreditNote)(nil)
