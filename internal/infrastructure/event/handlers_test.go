package event

import (
	"context"
	"testing"

	"github.com/leadcrm/backend/internal/domain/invoicing"
	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditLogHandler(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewAuditLogHandler(zap.New(core), nil))

	event := newTestEvent(invoicing.EventTypeInvoiceSettled)
	require.NoError(t, bus.Publish(context.Background(), event, newTestEvent("Unrelated")))

	entries := logs.FilterMessage("billing event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, invoicing.EventTypeInvoiceSettled, fields["event_type"])
	assert.Equal(t, event.AggregateID().String(), fields["aggregate_id"])
}

func TestMetricsHandler(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	metrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{Meter: provider.Meter("event-test")})
	require.NoError(t, err)

	bus := NewInMemoryEventBus(zap.NewNop())
	bus.Subscribe(NewMetricsHandler(metrics))
	require.NoError(t, bus.Publish(context.Background(),
		newTestEvent(invoicing.EventTypePaymentRecorded),
		newTestEvent(invoicing.EventTypePaymentRecorded),
		newTestEvent(invoicing.EventTypeInvoiceSettled),
	))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "billing_domain_event_total" {
				continue
			}
			sum := m.Data.(metricdata.Sum[int64])
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("event_type"))
				counts[v.AsString()] = dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), counts[invoicing.EventTypePaymentRecorded])
	assert.Equal(t, int64(1), counts[invoicing.EventTypeInvoiceSettled])
}

func TestMetricsHandler_NilMetrics(t *testing.T) {
	h := NewMetricsHandler(nil)
	assert.NoError(t, h.Handle(context.Background(), newTestEvent(invoicing.EventTypeInvoiceCreated)))
}
