package event

import (
	"context"

	"github.com/invoiced/backend/internal/domain/shared"
	"github.com/invoiced/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// AuditHandler writes every delivered event to the structured log. It
// subscribes to all event types.
type AuditHandler struct {
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewAuditHandler creates an AuditHandler. Entries carry the correlation
// fields of the delivering context, including the event's tenant.
func NewAuditHandler(serializer *EventSerializer, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{serializer: serializer, logger: logger}
}

// EventTypes implements shared.EventHandler; nil means every type
func (h *AuditHandler) EventTypes() []string {
	return nil
}

// Handle implements shared.EventHandler
func (h *AuditHandler) Handle(ctx context.Context, e shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(e)
	if err != nil {
		return err
	}
	h.logger.With(logger.Fields(ctx)...).Info("domain event",
		zap.String("event_type", e.EventType()),
		zap.String("event_id", e.EventID().String()),
		zap.String("aggregate_type", e.AggregateType()),
		zap.String("aggregate_id", e.AggregateID().String()),
		zap.Bool("registered", h.serializer.IsRegistered(e.EventType())),
		zap.ByteString("payload", payload),
	)
	return nil
}

var _ shared.EventHandler = (*AuditHandler)(nil)
