package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/ecomarket/internal/domain/outbox"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
)

const (
	orderService    = "order-manager"
	publishPeer     = "outbox"
	gatewayPeer     = "payment_gateway"
	publishTimeout  = 300 * time.Millisecond
	defaultTTL      = 30 * time.Minute
	sweepBatchLimit = 100

	ReasonBuyerCancelled     = "cancelled_by_buyer"
	ReasonReservationExpired = "reservation_expired"
	ReasonSessionExpired     = "session_expired"
	ReasonGatewayUnavailable = "gateway_unavailable"
)

var ErrRepository = errors.New("order: repository failure")

// Manager runs the order lifecycle: checkout initiation, payment confirmation, cancellation and expiry.
// The inventory ledger is the linearization point; order status follows the reservation outcome.
type Manager struct {
	products  product.Repository
	ledger    inventory.Ledger
	orders    domain.Repository
	gateway   payment.Gateway
	publisher domoutbox.Publisher
	ids       IDGenerator
	now       Clock
	ttl       time.Duration
	inst      *application.Instrumentation
	expired   observability.Counter // reservations_expired_total{outcome}
}

type Option func(*Manager)

func WithClock(c Clock) Option {
	return func(m *Manager) { m.now = c }
}

// WithReservationTTL sets how long stock stays held for an unpaid order.
func WithReservationTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func NewManager(
	products product.Repository,
	ledger inventory.Ledger,
	orders domain.Repository,
	gateway payment.Gateway,
	publisher domoutbox.Publisher,
	ids IDGenerator,
	tel observability.Observability,
	opts ...Option,
) *Manager {
	inst := application.NewInstrumentation(tel, orderService)
	m := &Manager{
		products:  products,
		ledger:    ledger,
		orders:    orders,
		gateway:   gateway,
		publisher: publisher,
		ids:       ids,
		now:       systemClock,
		ttl:       defaultTTL,
		inst:      inst,
		expired:   inst.Metrics().Counter(observability.MReservationsExpired),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// settle releases the order's reservation and moves the order to cancelled or failed.
// Already being in the target status is a no-op; a completed order yields domain.ErrConflict.
func (m *Manager) settle(ctx context.Context, o *domain.Order, to domain.Status, reason string) (changed bool, err error) {
	switch {
	case o.Status == to:
		return false, nil
	case o.Status.Terminal():
		return false, fmt.Errorf("%w: order is %s", domain.ErrConflict, o.Status)
	}

	if _, err := m.ledger.Release(ctx, o.ID); err != nil {
		switch {
		case errors.Is(err, inventory.ErrAlreadySettled):
			// payment committed the stock first
			return false, fmt.Errorf("%w: reservation already committed", domain.ErrConflict)
		case errors.Is(err, inventory.ErrReservationNotFound):
		default:
			return false, fmt.Errorf("order: release reservation: %w", err)
		}
	}

	now := m.now()
	var event domoutbox.Event
	if to == domain.StatusFailed {
		err = o.Fail(reason, now)
		event = domain.NewFailedEvent(o)
	} else {
		err = o.Cancel(reason, now)
		event = domain.NewCancelledEvent(o)
	}
	if err != nil {
		return false, err
	}
	if err := m.orders.Update(ctx, o); err != nil {
		return false, wrapRepositoryError(err)
	}
	m.publish(ctx, event)
	return true, nil
}

// publish is best-effort: a lost event never fails the use case.
func (m *Manager) publish(ctx context.Context, e domoutbox.Event) {
	if m.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	start := time.Now()
	outcome := "success"
	if err := m.publisher.Publish(pubCtx, e); err != nil {
		outcome = "error"
		logctx.FromOr(ctx, m.inst.Logger()).Warn("event_publish_failed",
			observability.F("event", e.EventName()),
			observability.Err(err),
		)
	}
	m.inst.External(publishPeer, e.EventName(), outcome, start)
}

func wrapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrConflict):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepository, err)
	}
}
