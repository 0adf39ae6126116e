package telemetry

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Payment outcomes recorded on billing_payment_total.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// BillingMetrics tracks invoice issuance and payment reconciliation.
// A nil *BillingMetrics is valid and records nothing.
type BillingMetrics struct {
	logger *zap.Logger

	invoiceCreatedTotal *Counter
	invoiceAmountTotal  *FloatCounter
	invoiceSettledTotal *Counter
	paymentTotal        *Counter
	paymentAmountTotal  *FloatCounter
	paymentDuration     *Histogram
	eventTotal          *Counter
}

// BillingMetricsConfig holds configuration for billing metrics.
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBillingMetrics creates every billing instrument on the given meter.
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BillingMetrics{logger: logger}
	var err error

	if bm.invoiceCreatedTotal, err = NewCounter(cfg.Meter,
		"billing_invoice_created_total",
		"Total number of invoices issued",
		"{invoices}",
	); err != nil {
		return nil, err
	}
	if bm.invoiceAmountTotal, err = NewFloatCounter(cfg.Meter,
		"billing_invoice_amount_total",
		"Sum of invoice totals in major currency units",
		"{currency_unit}",
	); err != nil {
		return nil, err
	}
	if bm.invoiceSettledTotal, err = NewCounter(cfg.Meter,
		"billing_invoice_settled_total",
		"Total number of invoices paid in full",
		"{invoices}",
	); err != nil {
		return nil, err
	}
	if bm.paymentTotal, err = NewCounter(cfg.Meter,
		"billing_payment_total",
		"Total number of payment attempts by outcome",
		"{payments}",
	); err != nil {
		return nil, err
	}
	if bm.paymentAmountTotal, err = NewFloatCounter(cfg.Meter,
		"billing_payment_amount_total",
		"Sum of accepted payments in major currency units",
		"{currency_unit}",
	); err != nil {
		return nil, err
	}
	if bm.paymentDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "billing_payment_duration_seconds",
		Description: "Time taken to apply a payment to an invoice",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if bm.eventTotal, err = NewCounter(cfg.Meter,
		"billing_domain_event_total",
		"Total number of domain events published",
		"{events}",
	); err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordInvoiceCreated counts an issued invoice and adds its total.
func (bm *BillingMetrics) RecordInvoiceCreated(ctx context.Context, currency string, total decimal.Decimal) {
	if bm == nil {
		return
	}
	bm.invoiceCreatedTotal.Inc(ctx, AttrCurrency.String(currency))
	bm.invoiceAmountTotal.Add(ctx, total.InexactFloat64(), AttrCurrency.String(currency))
}

// RecordPaymentAccepted counts an applied payment and, when it cleared the balance, a settlement.
func (bm *BillingMetrics) RecordPaymentAccepted(ctx context.Context, currency string, amount decimal.Decimal, settled bool) {
	if bm == nil {
		return
	}
	bm.paymentTotal.Inc(ctx, AttrCurrency.String(currency), AttrOutcome.String(OutcomeAccepted))
	bm.paymentAmountTotal.Add(ctx, amount.InexactFloat64(), AttrCurrency.String(currency))
	if settled {
		bm.invoiceSettledTotal.Inc(ctx, AttrCurrency.String(currency))
	}
}

// RecordPaymentRejected counts a payment refused with the given error code.
func (bm *BillingMetrics) RecordPaymentRejected(ctx context.Context, errorCode string) {
	if bm == nil {
		return
	}
	bm.paymentTotal.Inc(ctx, AttrOutcome.String(OutcomeRejected), AttrErrorCode.String(errorCode))
}

// RecordPaymentDuration records how long a payment attempt took.
func (bm *BillingMetrics) RecordPaymentDuration(ctx context.Context, d time.Duration, outcome string) {
	if bm == nil {
		return
	}
	bm.paymentDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
}

// RecordEvent counts a published domain event.
func (bm *BillingMetrics) RecordEvent(ctx context.Context, eventType string) {
	if bm == nil {
		return
	}
	bm.eventTotal.Inc(ctx, AttrEventType.String(eventType))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
