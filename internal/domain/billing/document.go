package billing

import (
	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Line is one priced line of an invoice or estimate
type Line struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// Amount returns quantity times unit price
func (l Line) Amount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// SumLines totals lines rounded to cents
func SumLines(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount())
	}
	return total.Round(2)
}

// numbered carries the per-tenant document number shared by every document
type numbered struct {
	shared.TenantAggregateRoot
	Number string `json:"number" validate:"omitempty,max=50"`
}

// GetNumber returns the document number
func (n *numbered) GetNumber() string {
	return n.Number
}

// SetNumber assigns the document number
func (n *numbered) SetNumber(number string) {
	n.Number = number
}
