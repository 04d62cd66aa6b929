package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft  InvoiceStatus = "draft"
	InvoiceStatusIssued InvoiceStatus = "issued"
	InvoiceStatusVoid   InvoiceStatus = "void"
)

// Invoice is a receivable document billed to a customer
type Invoice struct {
	numbered
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Currency   string          `json:"currency" validate:"required,iso4217"`
	Status     InvoiceStatus   `json:"status" validate:"oneof=draft issued void"`
	IssueDate  time.Time       `json:"issue_date" validate:"required"`
	DueDate    time.Time       `json:"due_date" validate:"required,gtefield=IssueDate"`
	Lines      []Line          `json:"lines" validate:"required,min=1,dive"`
	Total      decimal.Decimal `json:"total"`
}

// NewInvoice creates a draft invoice. An empty number is assigned on create.
func NewInvoice(tenantID shared.TenantID, number string, customerID uuid.UUID, currency string, issueDate, dueDate time.Time, lines []Line) *Invoice {
	inv := &Invoice{
		CustomerID: customerID,
		Currency:   currency,
		Status:     InvoiceStatusDraft,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Lines:      lines,
		Total:      SumLines(lines),
	}
	inv.TenantAggregateRoot = shared.NewTenantAggregateRoot(tenantID)
	inv.Number = number
	return inv
}

// ObjectType implements shared.Numbered
func (i *Invoice) ObjectType() string {
	return string(numbering.ObjectTypeInvoice)
}

// Issue moves a draft invoice to issued
func (i *Invoice) Issue() error {
	if i.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Only draft invoices can be issued")
	}
	i.Status = InvoiceStatusIssued
	i.AddDomainEvent(NewDocumentCreated(EventTypeInvoiceIssued, i.ObjectType(), i.ID, i.TenantID, i.Number))
	return nil
}

// Void cancels an invoice. Voided invoices keep their number.
func (i *Invoice) Void() error {
	if i.Status == InvoiceStatusVoid {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already void")
	}
	i.Status = InvoiceStatusVoid
	return nil
}

// MarkCreated records the creation event once the invoice is persisted
func (i *Invoice) MarkCreated() {
	i.AddDomainEvent(NewDocumentCreated(EventTypeInvoiceCreated, i.ObjectType(), i.ID, i.TenantID, i.Number))
}

var _ shared.Numbered = (*Invoice)(nil)
