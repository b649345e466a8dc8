package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type nop struct{}

// Nop discards logs, spans and samples.
func Nop() Observability { return nop{} }

func (nop) Tracer() Tracer   { return nop{} }
func (nop) Logger() Logger   { return nop{} }
func (nop) Metrics() Metrics { return nop{} }

// Start keeps whatever span ctx already carries.
func (nop) Start(ctx context.Context, _ string, _ ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

func (nop) With(...Field) Logger   { return nop{} }
func (nop) Debug(string, ...Field) {}
func (nop) Info(string, ...Field)  {}
func (nop) Warn(string, ...Field)  {}
func (nop) Error(string, ...Field) {}

func (nop) Counter(MetricKey) Counter     { return nopInstrument{} }
func (nop) Histogram(MetricKey) Histogram { return nopHistogram{} }

type nopInstrument struct{}

func (nopInstrument) Add(float64, ...Label)      {}
func (nopInstrument) Observe(float64, ...Label)  {}
func (nopInstrument) Bind(...Label) BoundCounter { return nopBound{} }

type nopBound struct{}

func (nopBound) Add(float64)     {}
func (nopBound) Observe(float64) {}

func NopTracer() Tracer       { return nop{} }
func NopLogger() Logger       { return nop{} }
func NopMetrics() Metrics     { return nop{} }
func NopCounter() Counter     { return nopInstrument{} }
func NopHistogram() Histogram { return nopHistogram{} }

type nopHistogram struct{ nopInstrument }

func (nopHistogram) Bind(...Label) BoundHistogram { return nopBound{} }
