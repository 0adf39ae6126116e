package event

import (
	"context"

	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/domain/shared"
	"github.com/leadcrm/backend/internal/infrastructure/logger"
	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// BillingEventTypes lists every event the invoicing domain raises
var BillingEventTypes = []string{
	invoicing.EventTypeInvoiceCreated,
	invoicing.EventTypePaymentRecorded,
	invoicing.EventTypeInvoiceSettled,
}

// AuditLogHandler writes every billing event to the structured log with its JSON payload
type AuditLogHandler struct {
	logger     *zap.Logger
	serializer *EventSerializer
}

// NewAuditLogHandler creates an AuditLogHandler
func NewAuditLogHandler(l *zap.Logger, serializer *EventSerializer) *AuditLogHandler {
	if serializer == nil {
		serializer = NewBillingEventSerializer()
	}
	return &AuditLogHandler{logger: l, serializer: serializer}
}

// Handle logs the event
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	payload, err := h.serializer.Serialize(event)
	if err != nil {
		return err
	}

	logger.WithLogger(ctx, h.logger).Info("billing event",
		zap.String("event_type", event.EventType()),
		zap.String("event_id", event.EventID().String()),
		zap.String("aggregate_id", event.AggregateID().String()),
		zap.Time("occurred_at", event.OccurredAt()),
		zap.ByteString("payload", payload),
	)
	return nil
}

// EventTypes returns the billing event types
func (h *AuditLogHandler) EventTypes() []string {
	return BillingEventTypes
}

// MetricsHandler counts billing events by type
type MetricsHandler struct {
	metrics *telemetry.BillingMetrics
}

// NewMetricsHandler creates a MetricsHandler; a nil metrics records nothing
func NewMetricsHandler(metrics *telemetry.BillingMetrics) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Handle records the event
func (h *MetricsHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	h.metrics.RecordEvent(ctx, event.EventType())
	return nil
}

// EventTypes returns the billing event types
func (h *MetricsHandler) EventTypes() []string {
	return BillingEventTypes
}
