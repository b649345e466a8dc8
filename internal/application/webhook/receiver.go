package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/webhook"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	receiverService = "webhook-receiver"
	useCaseReceive  = "webhook.receive"
	useCaseRetry    = "webhook.retry"

	defaultMaxAttempts = 8
	defaultRetryBase   = 30 * time.Second
	retryBatchLimit    = 50

	OutcomeConfirmed        = "confirmed"
	OutcomeExpired          = "expired"
	OutcomeFailed           = "failed"
	OutcomeIgnored          = "ignored"
	OutcomeAwaitingAsync    = "awaiting_async_payment"
	OutcomeUnknownReference = "unknown_reference"
	OutcomeConflict         = "conflict"
	OutcomeDuplicate        = "duplicate"
	OutcomeRetry            = "retry_scheduled"
	OutcomeDead             = "dead"
)

// Receipt describes how a delivery was acknowledged.
type Receipt struct {
	EventID   string
	Type      string
	Duplicate bool
	Outcome   string
}

// Receiver verifies provider deliveries, records them in the inbox and dispatches them to the order manager.
type Receiver struct {
	gateway     payment.Gateway
	inbox       webhook.Inbox
	orders      apporder.Orders
	now         func() time.Time
	maxAttempts int
	retryBase   time.Duration
	inst        *application.Instrumentation
	events      observability.Counter // webhook_events_total{type,outcome}
}

type Option func(*Receiver)

func WithMaxAttempts(n int) Option {
	return func(r *Receiver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithRetryBase sets the first retry delay; later retries double it.
func WithRetryBase(d time.Duration) Option {
	return func(r *Receiver) {
		if d > 0 {
			r.retryBase = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

func NewReceiver(gateway payment.Gateway, inbox webhook.Inbox, orders apporder.Orders, tel observability.Observability, opts ...Option) *Receiver {
	inst := application.NewInstrumentation(tel, receiverService)
	r := &Receiver{
		gateway:     gateway,
		inbox:       inbox,
		orders:      orders,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
		retryBase:   defaultRetryBase,
		inst:        inst,
		events:      inst.Metrics().Counter(observability.MWebhookEvents),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Receive handles one delivery. Only signature failures (payment.ErrInvalidSignature) and inbox write
// failures are returned; every verified event is acknowledged whatever its processing outcome.
func (r *Receiver) Receive(ctx context.Context, payload []byte, signature string) (_ *Receipt, err error) {
	ctx, call := r.inst.Begin(ctx, useCaseReceive, "ReceiveWebhook")
	defer func() { call.End(err) }()

	ev, err := r.gateway.VerifyEvent(payload, signature)
	if err != nil {
		call.Fail("INVALID_SIGNATURE")
		r.events.Add(1, observability.L("type", "unverified"), observability.L("outcome", "invalid_signature"))
		if errors.Is(err, payment.ErrInvalidSignature) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}
	call.Field("event_id", ev.ID)
	call.Field("event_type", string(ev.Type))
	call.Span().SetAttributes(
		attribute.String("webhook.event_id", ev.ID),
		attribute.String("webhook.event_type", string(ev.Type)),
	)

	now := r.now()
	entry := &webhook.Entry{
		EventID:       ev.ID,
		Type:          string(ev.Type),
		SessionID:     ev.SessionID,
		OrderID:       ev.OrderID,
		PaymentIntent: ev.PaymentIntent,
		Paid:          ev.Paid,
		Payload:       ev.Payload,
		Status:        webhook.StatusPending,
		ReceivedAt:    now,
		// keeps the retry worker off the entry while it is dispatched inline
		NextAttemptAt: now.Add(r.retryBase),
	}
	inserted, err := r.inbox.Add(ctx, entry)
	if err != nil {
		call.Fail("INBOX_WRITE_FAILED")
		return nil, fmt.Errorf("webhook: record event: %w", err)
	}
	if !inserted {
		call.Status("DUPLICATE")
		r.events.Add(1, observability.L("type", entry.Type), observability.L("outcome", OutcomeDuplicate))
		return &Receipt{EventID: ev.ID, Type: entry.Type, Duplicate: true, Outcome: OutcomeDuplicate}, nil
	}

	outcome := r.process(ctx, entry)
	call.Field("outcome_detail", outcome)
	return &Receipt{EventID: ev.ID, Type: entry.Type, Outcome: outcome}, nil
}

// RetryPending re-drives pending inbox entries that are due. It returns how many were attempted.
func (r *Receiver) RetryPending(ctx context.Context) (attempted int, err error) {
	ctx, call := r.inst.Begin(ctx, useCaseRetry, "RetryWebhooks")
	defer func() {
		call.Field("attempted", attempted)
		call.End(err)
	}()

	due, err := r.inbox.Pending(ctx, r.now(), retryBatchLimit)
	if err != nil {
		call.Fail("INBOX_READ_FAILED")
		return 0, fmt.Errorf("webhook: list pending: %w", err)
	}
	for _, e := range due {
		if err := ctx.Err(); err != nil {
			return attempted, err
		}
		r.process(ctx, e)
		attempted++
	}
	return attempted, nil
}

// Purge drops processed entries older than retention.
func (r *Receiver) Purge(ctx context.Context, retention time.Duration) (int, error) {
	n, err := r.inbox.Purge(ctx, r.now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("webhook: purge: %w", err)
	}
	return n, nil
}

// process dispatches e and records the result in the inbox. Application outcomes settle the entry;
// internal failures schedule a retry with exponential backoff until maxAttempts, then mark it dead.
func (r *Receiver) process(ctx context.Context, e *webhook.Entry) string {
	logger := r.inst.Logger().With(
		observability.F("event_id", e.EventID),
		observability.F("event_type", e.Type),
	)

	outcome, err := r.dispatch(ctx, e)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrUnknownReference), errors.Is(err, order.ErrNotFound):
			outcome = OutcomeUnknownReference
		case errors.Is(err, order.ErrConflict), errors.Is(err, order.ErrInvalidStateTransition):
			outcome = OutcomeConflict
		}
		if outcome != "" {
			logger.Warn("webhook_event_rejected",
				observability.F("outcome", outcome),
				observability.Err(err),
			)
			err = nil
		}
	}

	if err == nil {
		if markErr := r.inbox.MarkProcessed(ctx, e.EventID, outcome, r.now()); markErr != nil {
			logger.Error("webhook_event_mark_failed", observability.Err(markErr))
		}
		r.events.Add(1, observability.L("type", e.Type), observability.L("outcome", outcome))
		return outcome
	}

	attempts := e.Attempts + 1
	if attempts >= r.maxAttempts {
		if markErr := r.inbox.MarkDead(ctx, e.EventID, err.Error()); markErr != nil {
			logger.Error("webhook_event_mark_failed", observability.Err(markErr))
		}
		logger.Error("webhook_event_dead",
			observability.F("attempts", attempts),
			observability.Err(err),
		)
		r.events.Add(1, observability.L("type", e.Type), observability.L("outcome", OutcomeDead))
		return OutcomeDead
	}

	next := r.now().Add(webhook.Backoff(r.retryBase, attempts))
	if markErr := r.inbox.MarkFailed(ctx, e.EventID, err.Error(), next); markErr != nil {
		logger.Error("webhook_event_mark_failed", observability.Err(markErr))
	}
	logger.Warn("webhook_event_retry_scheduled",
		observability.F("attempts", attempts),
		observability.F("next_attempt_at", next),
		observability.Err(err),
	)
	r.events.Add(1, observability.L("type", e.Type), observability.L("outcome", OutcomeRetry))
	return OutcomeRetry
}

func (r *Receiver) dispatch(ctx context.Context, e *webhook.Entry) (string, error) {
	ref := apporder.Reference{SessionID: e.SessionID, OrderID: e.OrderID}
	switch payment.EventType(e.Type) {
	case payment.EventSessionCompleted:
		if !e.Paid {
			return OutcomeAwaitingAsync, nil
		}
		if _, err := r.orders.Confirm(ctx, ref, e.PaymentIntent); err != nil {
			return "", err
		}
		return OutcomeConfirmed, nil
	case payment.EventAsyncPaymentSucceeded:
		if _, err := r.orders.Confirm(ctx, ref, e.PaymentIntent); err != nil {
			return "", err
		}
		return OutcomeConfirmed, nil
	case payment.EventSessionExpired:
		if err := r.orders.ExpireByReference(ctx, ref); err != nil {
			return "", err
		}
		return OutcomeExpired, nil
	case payment.EventAsyncPaymentFailed:
		if err := r.orders.Fail(ctx, ref, "async_payment_failed"); err != nil {
			return "", err
		}
		return OutcomeFailed, nil
	default:
		return OutcomeIgnored, nil
	}
}
