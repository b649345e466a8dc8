package workerpresentation

import (
	"context"

	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// WithEventContext injects a logger for background executions (bus handlers, sweeps, webhook retries).
// Fields: execution_id (attrs["execution_id"] or a new uuid), trace_id/span_id when the context carries
// a valid span, plus the caller's low-cardinality attrs such as "worker" or "event".
func WithEventContext(ctx context.Context, base observability.Logger, attrs map[string]string) context.Context {
	if base == nil {
		base = logctx.FromOr(ctx, observability.NopLogger())
	}

	execID := attrs["execution_id"]
	if execID == "" {
		execID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F("execution_id", execID))

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			observability.F("trace_id", sc.TraceID().String()),
			observability.F("span_id", sc.SpanID().String()),
		)
	}
	for k, v := range attrs {
		if k == "execution_id" || v == "" {
			continue
		}
		fields = append(fields, observability.F(k, v))
	}
	return logctx.With(ctx, base.With(fields...))
}

// Handler wraps a bus subscriber so it runs with a scoped logger and its own span.
func Handler(worker string, base observability.Logger, tel observability.Observability, h domoutbox.Handler) domoutbox.Handler {
	tel = observability.Or(tel)
	return func(ctx context.Context, e domoutbox.Event) error {
		ctx, span := tel.Tracer().Start(ctx, "Worker."+worker)
		defer span.End()

		ctx = WithEventContext(ctx, base, map[string]string{
			"worker": worker,
			"event":  e.EventName(),
		})
		err := h(ctx, e)
		if err != nil {
			span.RecordError(err)
		}
		return err
	}
}
