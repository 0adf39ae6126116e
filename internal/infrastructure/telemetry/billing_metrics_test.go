package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/leadcrm/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newCollectedMetrics(t *testing.T) (*telemetry.BillingMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter: provider.Meter("billing-test"),
	})
	require.NoError(t, err)
	return bm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func intSum(t *testing.T, m metricdata.Metrics, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	want := attribute.NewSet(attrs...)
	for _, dp := range sum.DataPoints {
		if dp.Attributes.Equals(&want) {
			return dp.Value
		}
	}
	return 0
}

func floatSum(t *testing.T, m metricdata.Metrics) float64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[float64])
	require.True(t, ok, "metric %s is not a float64 sum", m.Name)
	var total float64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestNewBillingMetrics(t *testing.T) {
	bm, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter: noop.NewMeterProvider().Meter("test"),
	})
	require.NoError(t, err)
	assert.NotNil(t, bm)

	_, err = telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{})
	require.Error(t, err)
	assert.Equal(t, "NewBillingMetrics: meter cannot be nil", err.Error())
}

func TestBillingMetrics_NilReceiver(t *testing.T) {
	var bm *telemetry.BillingMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		bm.RecordInvoiceCreated(ctx, "USD", decimal.NewFromInt(1))
		bm.RecordPaymentAccepted(ctx, "USD", decimal.NewFromInt(1), true)
		bm.RecordPaymentRejected(ctx, "OVERPAYMENT")
		bm.RecordPaymentDuration(ctx, time.Millisecond, telemetry.OutcomeAccepted)
		bm.RecordEvent(ctx, "invoicing.invoice.created")
	})
}

func TestBillingMetrics_Recording(t *testing.T) {
	bm, reader := newCollectedMetrics(t)
	ctx := context.Background()

	bm.RecordInvoiceCreated(ctx, "USD", decimal.RequireFromString("172.50"))
	bm.RecordPaymentAccepted(ctx, "USD", decimal.RequireFromString("60.00"), false)
	bm.RecordPaymentAccepted(ctx, "USD", decimal.RequireFromString("112.50"), true)
	bm.RecordPaymentRejected(ctx, "OVERPAYMENT")
	bm.RecordPaymentDuration(ctx, 5*time.Millisecond, telemetry.OutcomeAccepted)
	bm.RecordEvent(ctx, "invoicing.invoice.settled")

	metrics := collect(t, reader)

	usd := telemetry.AttrCurrency.String("USD")
	assert.Equal(t, int64(1), intSum(t, metrics["billing_invoice_created_total"], usd))
	assert.InDelta(t, 172.50, floatSum(t, metrics["billing_invoice_amount_total"]), 0.001)
	assert.Equal(t, int64(2), intSum(t, metrics["billing_payment_total"], usd, telemetry.AttrOutcome.String(telemetry.OutcomeAccepted)))
	assert.Equal(t, int64(1), intSum(t, metrics["billing_payment_total"],
		telemetry.AttrOutcome.String(telemetry.OutcomeRejected), telemetry.AttrErrorCode.String("OVERPAYMENT")))
	assert.InDelta(t, 172.50, floatSum(t, metrics["billing_payment_amount_total"]), 0.001)
	assert.Equal(t, int64(1), intSum(t, metrics["billing_invoice_settled_total"], usd))
	assert.Equal(t, int64(1), intSum(t, metrics["billing_domain_event_total"], telemetry.AttrEventType.String("invoicing.invoice.settled")))

	hist, ok := metrics["billing_payment_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}
