package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseConfirm = "order.confirm"

// Confirm completes the pending order behind a payment reference and commits its stock.
// Replays for a completed order return its id unchanged; stock is committed exactly once.
func (m *Manager) Confirm(ctx context.Context, ref Reference, paymentIntent string) (_ string, err error) {
	ctx, call := m.inst.Begin(ctx, useCaseConfirm, "ConfirmPayment",
		attribute.String("order.session_id", ref.SessionID),
	)
	defer func() { call.End(err) }()

	o, err := m.findByReference(ctx, ref)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownReference) {
			call.Fail("UNKNOWN_REFERENCE")
		} else {
			call.Fail("ORDER_LOAD_FAILED")
		}
		return "", err
	}
	call.Field("order_id", o.ID)

	switch o.Status {
	case domain.StatusCompleted:
		call.Status("IDEMPOTENT_REPLAY")
		return o.ID, nil
	case domain.StatusPending:
	default:
		call.Fail("ORDER_NOT_PENDING")
		call.Logger().Warn("payment_for_settled_order",
			observability.F("order_id", o.ID),
			observability.F("order_status", string(o.Status)),
		)
		return "", fmt.Errorf("%w: order %s is %s", domain.ErrUnknownReference, o.ID, o.Status)
	}

	fresh := true
	res, err := m.ledger.Commit(ctx, o.ID)
	if err != nil {
		switch {
		case errors.Is(err, inventory.ErrAlreadySettled) && res != nil && res.Status == inventory.StatusCommitted:
			fresh = false
			call.Status("IDEMPOTENT_REPLAY")
		case errors.Is(err, inventory.ErrAlreadySettled):
			// the sweeper released the stock before the payment arrived; refunds are handled out of band
			call.Fail("RESERVATION_RELEASED")
			call.Logger().Warn("payment_after_release",
				observability.F("order_id", o.ID),
				observability.F("payment_intent", paymentIntent),
			)
			return "", fmt.Errorf("%w: reservation for order %s was released", domain.ErrUnknownReference, o.ID)
		default:
			call.Fail("COMMIT_FAILED")
			return "", fmt.Errorf("order: commit reservation: %w", err)
		}
	}

	if err := o.Complete(paymentIntent, m.now()); err != nil {
		call.Fail("STATE_TRANSITION_FAILED")
		return "", err
	}
	if err := m.orders.Update(ctx, o); err != nil {
		call.Fail("REPO_UPDATE_FAILED")
		return "", wrapRepositoryError(err)
	}
	if fresh {
		m.publish(ctx, domain.NewCompletedEvent(o))
	}
	return o.ID, nil
}
