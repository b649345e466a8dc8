package workerpresentation

import (
	"context"
	"errors"
	"testing"

	domorder "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithEventContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.New(zap.New(core))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{9},
		SpanID:  trace.SpanID{7},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	ctx = WithEventContext(ctx, base, map[string]string{
		"execution_id": "exec-1",
		"worker":       "reservation_sweeper",
		"empty":        "",
	})

	logctx.From(ctx).Info("tick")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "exec-1", fields["execution_id"])
	assert.Equal(t, "reservation_sweeper", fields["worker"])
	assert.Equal(t, sc.TraceID().String(), fields["trace_id"])
	assert.NotContains(t, fields, "empty")
}

func TestHandlerScopesLoggerAndPropagatesError(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zaplogger.New(zap.New(core))

	boom := errors.New("relay down")
	h := Handler("kafka_relay", base, nil, func(ctx context.Context, e domoutbox.Event) error {
		logctx.From(ctx).Warn("relay_failed")
		return boom
	})

	err := h(context.Background(), domorder.CreatedEvent{})
	assert.ErrorIs(t, err, boom)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "kafka_relay", fields["worker"])
	assert.Equal(t, domorder.EventCreated, fields["event"])
	assert.NotEmpty(t, fields["execution_id"])
}
