package billing

import (
	"github.com/google/uuid"
	"github.com/invoiced/backend/internal/domain/shared"
)

// Event types
const (
	EventTypeCustomerCreated   = "CustomerCreated"
	EventTypeInvoiceCreated    = "InvoiceCreated"
	EventTypeInvoiceIssued     = "InvoiceIssued"
	EventTypeCreditNoteCreated = "CreditNoteCreated"
	EventTypeEstimateCreated   = "EstimateCreated"
)

// DocumentCreated is raised when a numbered document is persisted or issued
type DocumentCreated struct {
	shared.BaseDomainEvent
	Number string `json:"number"`
}

// NewDocumentCreated creates a DocumentCreated event
func NewDocumentCreated(eventType, objectType string, id uuid.UUID, tenantID shared.TenantID, number string) *DocumentCreated {
	return &DocumentCreated{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, objectType, id, tenantID),
		Number:          number,
	}
}
