// Package observability wires the process-wide telemetry stack: slog JSON
// logging, Prometheus metrics for the dispatch/throttle/reconnect loops,
// circuit breakers around upstream calls, and OTLP trace export.
package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"comradarr/internal/config"
)

// prodSamplingRatio bounds span volume when many connectors tick at once;
// dev samples everything.
const prodSamplingRatio = 0.1

// SetupTracing installs a global tracer provider exporting over OTLP gRPC.
// With no endpoint configured it is a no-op and returns a nil shutdown.
// Spans from connector HTTP calls and the persistence adapter all flow
// through the provider configured here.
func SetupTracing(cfg config.Config) (func(context.Context) error, error) {
	if cfg.OTLPEndpoint == "" {
		slog.Info("OTLP endpoint not set; tracing disabled")
		return nil, nil
	}

	tp, err := newTracerProvider(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	slog.Info("tracing configured", slog.String("endpoint", cfg.OTLPEndpoint))
	return tp.Shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg config.Config) (*trace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.OTELServiceName),
	))
	if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(samplerFor(cfg)),
	), nil
}

func samplerFor(cfg config.Config) trace.Sampler {
	if cfg.IsProd() {
		return trace.ParentBased(trace.TraceIDRatioBased(prodSamplingRatio))
	}
	return trace.AlwaysSample()
}
