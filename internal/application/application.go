package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const spanPrefix = "UC."

// ErrValidation marks input rejected before any state is touched.
var ErrValidation = errors.New("validation")

func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// Instrumentation carries the RED instruments and base logger of one service.
type Instrumentation struct {
	tel observability.Observability
	log observability.Logger

	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewInstrumentation(tel observability.Observability, service string) *Instrumentation {
	tel = observability.Or(tel)
	metrics := tel.Metrics()
	return &Instrumentation{
		tel:          tel,
		log:          tel.Logger().With(observability.F("service", service)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		extCounter:   metrics.Counter(observability.MExternalRequests),
		extHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
}

func (in *Instrumentation) Logger() observability.Logger { return in.log }

func (in *Instrumentation) Metrics() observability.Metrics { return in.tel.Metrics() }

// Call tracks one use case execution: span, RED metrics and the use_case_done log line.
type Call struct {
	in      *Instrumentation
	ctx     context.Context
	span    trace.Span
	useCase string
	start   time.Time
	outcome string
	status  string
	logger  observability.Logger
	fields  []observability.Field
}

// Begin starts a use case. The returned context carries the span and a use_case-scoped logger.
func (in *Instrumentation) Begin(ctx context.Context, useCase, name string, attrs ...attribute.KeyValue) (context.Context, *Call) {
	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := in.tel.Tracer().Start(ctx, spanPrefix+name, attrs...)
	ctx, logger := logctx.Scope(ctx, in.log, observability.F("use_case", useCase))
	return ctx, &Call{
		in:      in,
		ctx:     ctx,
		span:    span,
		useCase: useCase,
		start:   time.Now(),
		outcome: "success",
		status:  "OK",
		logger:  logger,
	}
}

func (c *Call) Span() trace.Span { return c.span }

func (c *Call) Logger() observability.Logger { return c.logger }

// Status overrides the status text reported on success, e.g. IDEMPOTENT_REPLAY.
func (c *Call) Status(status string) { c.status = status }

// Fail records an error outcome with a machine-readable status.
func (c *Call) Fail(status string) {
	c.outcome, c.status = "error", status
}

func (c *Call) Field(key string, value any) {
	c.fields = append(c.fields, observability.F(key, value))
}

// End closes the span, records metrics and writes use_case_done. Pass the named error result.
func (c *Call) End(err error) {
	lat := time.Since(c.start).Seconds()
	if err != nil && c.outcome != "error" {
		c.Fail("INTERNAL")
	}

	if err != nil {
		c.span.RecordError(err)
		c.span.SetStatus(codes.Error, c.status)
	} else {
		c.span.SetStatus(codes.Ok, c.status)
	}
	c.span.End()

	c.in.reqCounter.Add(1,
		observability.L("use_case", c.useCase),
		observability.L("outcome", c.outcome),
	)
	c.in.durHistogram.Observe(lat, observability.L("use_case", c.useCase))

	fields := append([]observability.Field{
		observability.F("outcome", c.outcome),
		observability.F("status", c.status),
		observability.F("latency_seconds", lat),
	}, c.fields...)
	if sc := trace.SpanContextFromContext(c.ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	if err != nil {
		fields = append(fields, observability.Err(err))
	}
	c.logger.Info("use_case_done", fields...)
}

// External records one call to an outside peer (payment processor, event bus, cache).
func (in *Instrumentation) External(peer, endpoint, outcome string, start time.Time) {
	in.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	in.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}
