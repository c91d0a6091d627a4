// Package telemetry installs the process tracer provider that the service
// spans report to, and instruments the HTTP surface with it.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"derisk/internal/platform/config"
)

const exportTimeout = 5 * time.Second

// Shutdown flushes buffered spans and releases the exporter.
type Shutdown func(context.Context) error

// Init sets the global tracer provider and propagator. Without an endpoint
// spans are sampled but never exported, which keeps trace ids in logs useful
// for local runs.
func Init(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger) (Shutdown, error) {
	return install(ctx, cfg, logger, nil)
}

// install lets tests hand in an in-memory exporter.
func install(ctx context.Context, cfg config.TelemetryConfig, logger *slog.Logger, exporter sdktrace.SpanExporter) (Shutdown, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "derisk"
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(name),
	))
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	switch {
	case exporter != nil:
		opts = append(opts, sdktrace.WithSyncer(exporter))
	case cfg.OTLPEndpoint != "":
		clientOpts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
			otlptracehttp.WithTimeout(exportTimeout),
		}
		if cfg.Insecure {
			clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, clientOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		logger.InfoContext(ctx, "trace export enabled", "endpoint", cfg.OTLPEndpoint)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

// Middleware opens a server span per request and continues inbound trace
// context.
func Middleware(service string) func(http.Handler) http.Handler {
	return otelhttp.NewMiddleware(service)
}

// InstrumentClient wraps the transport of client so outbound calls carry the
// current trace context. A nil client gets a fresh one.
func InstrumentClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{Timeout: exportTimeout}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	client.Transport = otelhttp.NewTransport(base)
	return client
}
