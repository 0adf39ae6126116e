package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

// ServiceVersion is reported on every exported signal.
const ServiceVersion = "1.0.0"

// pipelineShutdownTimeout bounds the final flush of each signal
const pipelineShutdownTimeout = 10 * time.Second

// newResource describes this service for traces, metrics and logs.
func newResource(serviceName string) (*resource.Resource, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}
	return res, nil
}

// stopPipeline flushes one signal's SDK provider. A nil stop means the signal
// was never exported.
func stopPipeline(ctx context.Context, log *zap.Logger, signal string, stop func(context.Context) error) error {
	if stop == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, pipelineShutdownTimeout)
	defer cancel()

	if err := stop(ctx); err != nil {
		log.Error("Telemetry pipeline did not stop cleanly", zap.String("signal", signal), zap.Error(err))
		return fmt.Errorf("failed to shutdown %s pipeline: %w", signal, err)
	}
	log.Info("Telemetry pipeline stopped", zap.String("signal", signal))
	return nil
}

// flushPipeline exports whatever a signal has buffered; nil flush is a no-op.
func flushPipeline(ctx context.Context, flush func(context.Context) error) error {
	if flush == nil {
		return nil
	}
	return flush(ctx)
}
