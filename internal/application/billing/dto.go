package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// LineInput is one document line of a create request
type LineInput struct {
	Description string          `json:"description" binding:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func toLines(in []LineInput) []billing.Line {
	lines := make([]billing.Line, len(in))
	for i, l := range in {
		lines[i] = billing.Line{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice}
	}
	return lines
}

// CreateCustomerRequest represents a request to create a new customer.
// An empty number is taken from the customer sequence.
type CreateCustomerRequest struct {
	Number   string `json:"number" binding:"max=50"`
	Name     string `json:"name" binding:"required,max=200"`
	Email    string `json:"email" binding:"omitempty,email,max=200"`
	Currency string `json:"currency" binding:"required,len=3"`
	TaxID    string `json:"tax_id" binding:"max=50"`
}

// CreateInvoiceRequest represents a request to create an invoice.
// An empty number is taken from the invoice sequence.
type CreateInvoiceRequest struct {
	Number     string      `json:"number" binding:"max=50"`
	CustomerID uuid.UUID   `json:"customer_id" binding:"required"`
	Currency   string      `json:"currency" binding:"omitempty,len=3"`
	IssueDate  time.Time   `json:"issue_date" binding:"required"`
	DueDate    time.Time   `json:"due_date" binding:"required"`
	Lines      []LineInput `json:"lines" binding:"required,min=1,dive"`
	Issue      bool        `json:"issue"`
}

// CreateCreditNoteRequest represents a request to credit an issued invoice
type CreateCreditNoteRequest struct {
	Number string          `json:"number" binding:"max=50"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" binding:"required,max=500"`
}

// CreateEstimateRequest represents a request to create an estimate
type CreateEstimateRequest struct {
	Number     string      `json:"number" binding:"max=50"`
	CustomerID uuid.UUID   `json:"customer_id" binding:"required"`
	Currency   string      `json:"currency" binding:"omitempty,len=3"`
	ExpiresAt  time.Time   `json:"expires_at" binding:"required"`
	Lines      []LineInput `json:"lines" binding:"required,min=1,dive"`
}

// LineResponse is a document line in API responses
type LineResponse struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

func toLineResponses(lines []billing.Line) []LineResponse {
	out := make([]LineResponse, len(lines))
	for i, l := range lines {
		out[i] = LineResponse{Description: l.Description, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Amount: l.Amount()}
	}
	return out
}

// CustomerResponse represents a customer in API responses. The tax id is
// never returned; HasTaxID tells whether one is stored.
type CustomerResponse struct {
	ID        uuid.UUID `json:"id"`
	Number    string    `json:"number"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Currency  string    `json:"currency"`
	HasTaxID  bool      `json:"has_tax_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ToCustomerResponse converts a domain Customer to a response
func ToCustomerResponse(c *billing.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        c.ID,
		Number:    c.Number,
		Name:      c.Name,
		Email:     c.Email,
		Currency:  c.Currency,
		HasTaxID:  !c.TaxID.IsEmpty(),
		CreatedAt: c.CreatedAt,
	}
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"number"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Currency   string          `json:"currency"`
	Status     string          `json:"status"`
	IssueDate  time.Time       `json:"issue_date"`
	DueDate    time.Time       `json:"due_date"`
	Lines      []LineResponse  `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// ToInvoiceResponse converts a domain Invoice to a response
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         inv.ID,
		Number:     inv.Number,
		CustomerID: inv.CustomerID,
		Currency:   inv.Currency,
		Status:     string(inv.Status),
		IssueDate:  inv.IssueDate,
		DueDate:    inv.DueDate,
		Lines:      toLineResponses(inv.Lines),
		Total:      inv.Total,
	}
}

// CreditNoteResponse represents a credit note in API responses
type CreditNoteResponse struct {
	ID        uuid.UUID       `json:"id"`
	Number    string          `json:"number"`
	InvoiceID uuid.UUID       `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// ToCreditNoteResponse converts a domain CreditNote to a response
func ToCreditNoteResponse(cn *billing.CreditNote) CreditNoteResponse {
	return CreditNoteResponse{ID: cn.ID, Number: cn.Number, InvoiceID: cn.InvoiceID, Amount: cn.Amount, Reason: cn.Reason}
}

// EstimateResponse represents an estimate in API responses
type EstimateResponse struct {
	ID         uuid.UUID       `json:"id"`
	Number     string          `json:"number"`
	CustomerID uuid.UUID       `json:"customer_id"`
	Currency   string          `json:"currency"`
	ExpiresAt  time.Time       `json:"expires_at"`
	Lines      []LineResponse  `json:"lines"`
	Total      decimal.Decimal `json:"total"`
}

// ToEstimateResponse converts a domain Estimate to a response
func ToEstimateResponse(e *billing.Estimate) EstimateResponse {
	return EstimateResponse{
		ID:         e.ID,
		Number:     e.Number,
		CustomerID: e.CustomerID,
		Currency:   e.Currency,
		ExpiresAt:  e.ExpiresAt,
		Lines:      toLineResponses(e.Lines),
		Total:      e.Total,
	}
}

// NumberPreviewResponse is the next number a sequence would issue
type NumberPreviewResponse struct {
	ObjectType string `json:"object_type"`
	Next       string `json:"next"`
}
