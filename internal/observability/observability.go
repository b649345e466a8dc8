// Package observability holds the logging, tracing and metrics ports of the marketplace. Adapters for zap,
// Prometheus and OpenTelemetry live under infrastructure/observability; tests use the Nop variants.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the three signals handed to every service constructor.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Or substitutes Nop for a nil provider.
func Or(tel Observability) Observability {
	if tel == nil {
		return Nop()
	}
	return tel
}
