package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseCancel            = "order.cancel"
	useCaseExpire            = "order.expire"
	useCaseExpireByReference = "order.expire_by_reference"
	useCaseFail              = "order.fail"
	useCaseSweep             = "order.sweep"
)

// Cancel releases a pending order's stock on behalf of its buyer or an admin and expires the payment session.
func (m *Manager) Cancel(ctx context.Context, actor access.Actor, orderID string) (_ *domain.Order, err error) {
	ctx, call := m.inst.Begin(ctx, useCaseCancel, "CancelOrder",
		attribute.String("order.id", orderID),
	)
	defer func() { call.End(err) }()

	if !actor.Authenticated() {
		call.Fail("UNAUTHENTICATED")
		return nil, access.ErrUnauthenticated
	}
	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		call.Fail("ORDER_LOAD_FAILED")
		return nil, wrapRepositoryError(err)
	}
	res := access.Resource{BuyerID: o.BuyerID, SellerID: o.SellerID}
	if !access.Authorize(actor, access.ActionOrderView, res) {
		call.Fail("ORDER_NOT_FOUND")
		return nil, domain.ErrNotFound
	}
	if !access.Authorize(actor, access.ActionOrderCancel, res) {
		call.Fail("FORBIDDEN")
		return nil, access.ErrForbidden
	}

	changed, err := m.settle(ctx, o, domain.StatusCancelled, ReasonBuyerCancelled)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			call.Fail("CONFLICT")
		}
		return nil, err
	}
	if changed && o.ExternalPaymentReference != "" {
		m.expireSession(ctx, o.ExternalPaymentReference)
	}
	return o, nil
}

// Expire cancels a pending order whose reservation outlived its TTL.
func (m *Manager) Expire(ctx context.Context, orderID string) (err error) {
	ctx, call := m.inst.Begin(ctx, useCaseExpire, "ExpireOrder",
		attribute.String("order.id", orderID),
	)
	defer func() { call.End(err) }()

	o, err := m.orders.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// reservation without an order: the insert failed after reserving
			call.Status("ORPHAN_RESERVATION")
			if _, relErr := m.ledger.Release(ctx, orderID); relErr != nil && !errors.Is(relErr, inventory.ErrAlreadySettled) {
				call.Fail("RELEASE_FAILED")
				return fmt.Errorf("order: release orphan reservation: %w", relErr)
			}
			return nil
		}
		call.Fail("ORDER_LOAD_FAILED")
		return wrapRepositoryError(err)
	}

	changed, err := m.settle(ctx, o, domain.StatusCancelled, ReasonReservationExpired)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			call.Fail("CONFLICT")
		}
		return err
	}
	if changed && o.ExternalPaymentReference != "" {
		m.expireSession(ctx, o.ExternalPaymentReference)
	}
	return nil
}

// ExpireByReference handles the provider reporting that a checkout session expired unpaid.
func (m *Manager) ExpireByReference(ctx context.Context, ref Reference) (err error) {
	ctx, call := m.inst.Begin(ctx, useCaseExpireByReference, "ExpireSession",
		attribute.String("order.session_id", ref.SessionID),
	)
	defer func() { call.End(err) }()

	o, err := m.findByReference(ctx, ref)
	if err != nil {
		call.Fail("UNKNOWN_REFERENCE")
		return err
	}
	call.Field("order_id", o.ID)
	if _, err := m.settle(ctx, o, domain.StatusCancelled, ReasonSessionExpired); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			call.Fail("CONFLICT")
		}
		return err
	}
	return nil
}

// Fail marks the pending order behind ref as failed and releases its stock.
func (m *Manager) Fail(ctx context.Context, ref Reference, reason string) (err error) {
	ctx, call := m.inst.Begin(ctx, useCaseFail, "FailOrder",
		attribute.String("order.session_id", ref.SessionID),
	)
	defer func() { call.End(err) }()

	o, err := m.findByReference(ctx, ref)
	if err != nil {
		call.Fail("UNKNOWN_REFERENCE")
		return err
	}
	call.Field("order_id", o.ID)
	if _, err := m.settle(ctx, o, domain.StatusFailed, reason); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			call.Fail("CONFLICT")
		}
		return err
	}
	return nil
}

// Sweep expires every order whose reservation is past due at now. It returns the number expired.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (expired int, err error) {
	ctx, call := m.inst.Begin(ctx, useCaseSweep, "SweepReservations")
	defer func() {
		call.Field("expired", expired)
		call.End(err)
	}()

	due, err := m.ledger.Expired(ctx, now, sweepBatchLimit)
	if err != nil {
		call.Fail("LIST_EXPIRED_FAILED")
		return 0, fmt.Errorf("order: list expired reservations: %w", err)
	}
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			call.Fail("CONTEXT_CANCELED")
			return expired, err
		}
		if err := m.Expire(ctx, r.OrderID); err != nil {
			outcome := "error"
			if errors.Is(err, domain.ErrConflict) {
				outcome = "skipped"
			}
			m.expired.Add(1, observability.L("outcome", outcome))
			call.Logger().Warn("reservation_expire_failed",
				observability.F("order_id", r.OrderID),
				observability.Err(err),
			)
			continue
		}
		m.expired.Add(1, observability.L("outcome", "expired"))
		expired++
	}
	return expired, nil
}

// findByReference locates the order behind a provider event by session id. When no order carries the
// session, it falls back to the correlated order id, accepting only an order with no session attached
// (the session is attached then) or with this same session.
func (m *Manager) findByReference(ctx context.Context, ref Reference) (*domain.Order, error) {
	o, err := m.orders.FindByPaymentReference(ctx, ref.SessionID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, wrapRepositoryError(err)
	}
	if ref.OrderID != "" {
		o, err = m.orders.Get(ctx, ref.OrderID)
		switch {
		case err == nil && o.ExternalPaymentReference == "" && ref.SessionID != "":
			o.AttachPaymentReference(ref.SessionID, m.now())
			return o, nil
		case err == nil && o.ExternalPaymentReference == ref.SessionID:
			return o, nil
		case err == nil:
			m.inst.Logger().Warn("payment_reference_mismatch",
				observability.F("order_id", o.ID),
				observability.F("session_id", ref.SessionID),
			)
		case !errors.Is(err, domain.ErrNotFound):
			return nil, wrapRepositoryError(err)
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownReference, ref.SessionID)
}

// expireSession closes the hosted checkout so the buyer can no longer pay. Failures are only logged.
func (m *Manager) expireSession(ctx context.Context, sessionID string) {
	start := time.Now()
	if err := m.gateway.ExpireSession(ctx, sessionID); err != nil {
		m.inst.External(gatewayPeer, "expire_session", "error", start)
		m.inst.Logger().Warn("payment_session_expire_failed",
			observability.F("session_id", sessionID),
			observability.Err(err),
		)
		return
	}
	m.inst.External(gatewayPeer, "expire_session", "success", start)
}
