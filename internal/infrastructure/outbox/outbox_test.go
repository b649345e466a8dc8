package outbox

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

type testEvent string

func (e testEvent) EventName() string { return string(e) }

func TestBusFansOutToEverySubscriber(t *testing.T) {
	bus := NewBus(nil)
	var first, second atomic.Int32
	bus.Subscribe("order.created", func(context.Context, domoutbox.Event) error {
		first.Add(1)
		return nil
	})
	bus.Subscribe("order.created", func(context.Context, domoutbox.Event) error {
		second.Add(1)
		return errors.New("handler failure is only logged")
	})
	bus.Subscribe("order.completed", func(context.Context, domoutbox.Event) error {
		t.Error("unexpected event")
		return nil
	})

	ctx := context.Background()
	bus.Start(ctx)
	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(ctx, testEvent("order.created")))
	}
	require.NoError(t, bus.Publish(ctx, testEvent("order.cancelled")), "events without subscribers are dropped")
	bus.Stop(ctx)

	assert.EqualValues(t, 3, first.Load())
	assert.EqualValues(t, 3, second.Load())
}

func TestBusRecoversFromPanickingHandler(t *testing.T) {
	bus := NewBus(nil)
	var calls atomic.Int32
	bus.Subscribe("order.failed", func(context.Context, domoutbox.Event) error {
		panic("boom")
	})
	bus.Subscribe("order.failed", func(context.Context, domoutbox.Event) error {
		calls.Add(1)
		return nil
	})

	ctx := context.Background()
	bus.Start(ctx)
	require.NoError(t, bus.Publish(ctx, testEvent("order.failed")))
	require.NoError(t, bus.Publish(ctx, testEvent("order.failed")))
	bus.Stop(ctx)

	assert.EqualValues(t, 2, calls.Load())
}

func TestBusCarriesPublisherSpan(t *testing.T) {
	bus := NewBus(nil)
	got := make(chan trace.SpanContext, 1)
	bus.Subscribe("order.completed", func(ctx context.Context, _ domoutbox.Event) error {
		got <- trace.SpanContextFromContext(ctx)
		return nil
	})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(ctx, testEvent("order.completed")))

	select {
	case received := <-got:
		assert.Equal(t, sc.TraceID(), received.TraceID())
		assert.True(t, received.IsRemote())
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	bus.Stop(context.Background())
}

func TestPublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()
	bus.Stop(ctx)

	assert.ErrorIs(t, bus.Publish(ctx, testEvent("order.created")), ErrClosed)
	assert.NoError(t, bus.Publish(ctx, nil))
}

func TestPublishRespectsContextWhenQueueIsFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	ctx := context.Background()
	require.NoError(t, bus.Publish(ctx, testEvent("order.created")))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(short, testEvent("order.created"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
