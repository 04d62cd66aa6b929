package event

import "github.com/invoiced/backend/internal/domain/billing"

// RegisterBillingEvents registers every billing event type with the serializer
func RegisterBillingEvents(serializer *EventSerializer) {
	for _, t := range []string{
		billing.EventTypeCustomerCreated,
		billing.EventTypeInvoiceCreated,
		billing.EventTypeInvoiceIssued,
		billing.EventTypeCreditNoteCreated,
		billing.EventTypeEstimateCreated,
	} {
		serializer.Register(t, &billing.DocumentCreated{})
	}
}
