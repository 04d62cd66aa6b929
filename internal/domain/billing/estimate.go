package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/numbering"
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Estimate is a quote sent to a customer before invoicing
type Estimate struct {
	numbered
	CustomerID uuid.UUID       `json:"customer_id" validate:"required"`
	Currency   string          `json:"currency" validate:"required,iso4217"`
	ExpiresAt  time.Time       `json:"expires_at" validate:"required"`
	Lines      []Line          `json:"lines" validate:"required,min=1,dive"`
	Total      decimal.Decimal `json:"total"`
}

// NewEstimate creates an estimate. An empty number is assigned on create.
func NewEstimate(tenantID shared.TenantID, number string, customerID uuid.UUID, currency string, expiresAt time.Time, lines []Line) *Estimate {
	e := &Estimate{
		CustomerID: customerID,
		Currency:   currency,
		ExpiresAt:  expiresAt,
		Lines:      lines,
		Total:      SumLines(lines),
	}
	e.TenantAggregateRoot = shared.NewTenantAggregateRoot(tenantID)
	e.Number = number
	return e
}

// ObjectType implements shared.Numbered
func (e *Estimate) ObjectType() string {
	return string(numbering.ObjectTypeEstimate)
}

// ToInvoice converts the estimate into a draft invoice. The invoice gets its
// own number from the invoice sequence.
func (e *Estimate) ToInvoice(issueDate, dueDate time.Time) *Invoice {
	lines := make([]Line, len(e.Lines))
	copy(lines, e.Lines)
	return NewInvoice(e.TenantID, "", e.CustomerID, e.Currency, issueDate, dueDate, lines)
}

// MarkCreated records the creation event once the estimate is persisted
func (e *Estimate) MarkCreated() {
	e.AddDomainEvent(NewDocumentCreated(EventTypeEstimateCreated, e.ObjectType(), e.ID, e.TenantID, e.Number))
}

var _ shared.Numbered = (*Estimate)(nil)
