package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer behind application spans.
const TracerName = "billing-service"

// Attribute keys for billing spans. Metric attributes live in metrics.go.
const (
	SpanAttrInvoiceID     = "invoice_id"
	SpanAttrInvoiceStatus = "invoice_status"
	SpanAttrLeadID        = "lead_id"
	SpanAttrBranchID      = "branch_id"
	SpanAttrLineItems     = "line_items"
	SpanAttrCurrency      = "currency"
	SpanAttrAmount        = "amount"
	SpanAttrPending       = "pending_amount"
	SpanAttrReceiptID     = "receipt_id"
	SpanAttrErrorCode     = "error_code"
)

// SpanOption adjusts a span started by StartSpan.
type SpanOption func(*spanSettings)

type spanSettings struct {
	kind  trace.SpanKind
	attrs []attribute.KeyValue
}

// WithAttribute sets an attribute when the span starts, so samplers can see it.
func WithAttribute(key string, value any) SpanOption {
	return func(s *spanSettings) { s.attrs = append(s.attrs, toAttribute(key, value)) }
}

// WithSpanKind overrides the default internal kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(s *spanSettings) { s.kind = kind }
}

// StartSpan opens a span on the global provider; the caller ends it.
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	s := spanSettings{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&s)
	}
	start := []trace.SpanStartOption{trace.WithSpanKind(s.kind)}
	if len(s.attrs) > 0 {
		start = append(start, trace.WithAttributes(s.attrs...))
	}
	return otel.Tracer(TracerName).Start(ctx, name, start...)
}

// StartServiceSpan names the span "service.method", e.g. "reconciliation.record_payment".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes takes alternating keys and values:
//
//	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, id, telemetry.SpanAttrLineItems, n)
func SetAttributes(span trace.Span, keyValues ...any) {
	if span != nil {
		span.SetAttributes(pairs(keyValues)...)
	}
}

func SetAttribute(span trace.Span, key string, value any) {
	if span != nil {
		span.SetAttributes(toAttribute(key, value))
	}
}

// RecordError adds an exception event and marks the span failed. A nil err is ignored.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// AddEvent annotates the span, e.g. with "invoice_settled".
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span != nil {
		span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
	}
}

func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// pairs skips any key that is not a string, along with its value
func pairs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		if key, ok := keyValues[i].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i+1]))
		}
	}
	return attrs
}

// toAttribute keeps native attribute types and formats anything else as a string.
// Money and IDs arrive as fmt.Stringer.
func toAttribute(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case int:
		return k.Int(v)
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case bool:
		return k.Bool(v)
	case []string:
		return k.StringSlice(v)
	case []int:
		return k.IntSlice(v)
	case []int64:
		return k.Int64Slice(v)
	case []float64:
		return k.Float64Slice(v)
	case []bool:
		return k.BoolSlice(v)
	case fmt.Stringer:
		return k.String(v.String())
	}
	return k.String(fmt.Sprint(value))
}
