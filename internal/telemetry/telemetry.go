// Package telemetry owns the process-wide OpenTelemetry tracer provider.
// Spans are exported over OTLP/HTTP when an endpoint is configured and
// sampled but discarded otherwise.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is reported as service.name when none is configured.
const DefaultServiceName = "brandai"

// Config selects the exporter.
type Config struct {
	OTLPEndpoint string
	ServiceName  string
	Version      string
}

// Provider wraps the SDK tracer provider installed by Setup.
type Provider struct {
	tp      *sdktrace.TracerProvider
	exports bool
}

// Setup builds a tracer provider and installs it as the global one.
// extra options are appended after the exporter, mainly for span
// processors in tests.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger, extra ...sdktrace.TracerProviderOption) (*Provider, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	name := cfg.ServiceName
	if name == "" {
		name = DefaultServiceName
	}

	attrs := []attribute.KeyValue{attribute.String("service.name", name)}
	if cfg.Version != "" {
		attrs = append(attrs, attribute.String("service.version", cfg.Version))
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	}

	exports := false
	if cfg.OTLPEndpoint != "" {
		exp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
		exports = true
		logger.Info("telemetry: exporting traces", "endpoint", cfg.OTLPEndpoint, "service", name)
	}
	opts = append(opts, extra...)

	p := &Provider{
		tp:      sdktrace.NewTracerProvider(opts...),
		exports: exports,
	}
	otel.SetTracerProvider(p.tp)
	return p, nil
}

// Tracer returns a named tracer from this provider.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Exporting reports whether spans leave the process.
func (p *Provider) Exporting() bool { return p.exports }

// Shutdown flushes pending spans. Spans started afterwards are dropped.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	err := p.tp.Shutdown(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telemetry: shutdown: %w", err)
	}
	return nil
}
