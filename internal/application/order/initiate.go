package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const useCaseInitiate = "order.initiate"

type InitiateInput struct {
	ProductID string
	Quantity  int
}

type InitiateResult struct {
	OrderID     string
	SessionID   string
	RedirectURL string
	ExpiresAt   time.Time
}

// Initiate reserves stock, creates a pending order and opens a payment session for it.
func (m *Manager) Initiate(ctx context.Context, actor access.Actor, cmd InitiateInput) (_ *InitiateResult, err error) {
	ctx, call := m.inst.Begin(ctx, useCaseInitiate, "InitiateCheckout",
		attribute.String("order.buyer_id", actor.UserID),
		attribute.String("order.product_id", cmd.ProductID),
		attribute.Int("order.quantity", cmd.Quantity),
	)
	defer func() { call.End(err) }()

	if !actor.Authenticated() {
		call.Fail("UNAUTHENTICATED")
		return nil, access.ErrUnauthenticated
	}
	if cmd.ProductID == "" {
		call.Fail("PRODUCT_ID_REQUIRED")
		return nil, application.NewValidation("productId is required")
	}
	if cmd.Quantity < 1 {
		call.Fail("QUANTITY_INVALID")
		return nil, application.NewValidation("quantity must be at least 1")
	}

	p, err := m.products.Get(ctx, cmd.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			call.Fail("PRODUCT_NOT_FOUND")
			return nil, err
		}
		call.Fail("PRODUCT_LOAD_FAILED")
		return nil, fmt.Errorf("order: load product: %w", err)
	}
	if !access.Authorize(actor, access.ActionProductPurchase, access.Resource{OwnerID: p.OwnerID}) {
		call.Fail("SELF_PURCHASE")
		return nil, domain.ErrSelfPurchase
	}
	if !p.Purchasable() {
		call.Fail("NOT_AVAILABLE")
		return nil, product.ErrNotAvailable
	}
	if cmd.Quantity > p.Available() {
		call.Fail("INSUFFICIENT_STOCK")
		return nil, inventory.ErrInsufficientStock
	}

	now := m.now()
	orderID := m.ids.NewID()
	call.Field("order_id", orderID)

	res, err := inventory.NewReservation(orderID, p.ID, cmd.Quantity, now, m.ttl)
	if err != nil {
		call.Fail("QUANTITY_INVALID")
		return nil, err
	}
	entity, err := domain.New(orderID, actor.UserID, domain.Line{
		ProductID:    p.ID,
		ProductTitle: p.Title,
		SellerID:     p.OwnerID,
		UnitPrice:    p.Price,
		Quantity:     cmd.Quantity,
	}, now, res.ExpiresAt)
	if err != nil {
		call.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, err
	}

	if err := m.ledger.Reserve(ctx, res); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			call.Fail("INSUFFICIENT_STOCK")
			return nil, err
		}
		if errors.Is(err, product.ErrNotAvailable) {
			call.Fail("NOT_AVAILABLE")
			return nil, err
		}
		call.Fail("RESERVE_FAILED")
		return nil, fmt.Errorf("order: reserve: %w", err)
	}
	call.Span().AddEvent("inventory.reserved")

	if err := m.orders.Insert(ctx, entity); err != nil {
		call.Fail("REPO_INSERT_FAILED")
		m.releaseQuietly(context.WithoutCancel(ctx), orderID)
		return nil, wrapRepositoryError(err)
	}

	gwStart := time.Now()
	session, gwErr := m.gateway.CreateSession(ctx, payment.SessionRequest{
		OrderID:      entity.ID,
		BuyerID:      entity.BuyerID,
		ProductID:    entity.ProductID,
		ProductTitle: entity.ProductTitle,
		UnitPrice:    entity.UnitPriceAtPurchase,
		Quantity:     entity.Quantity,
		ExpiresAt:    entity.ExpiresAt,
	})
	if gwErr != nil {
		m.inst.External(gatewayPeer, "create_session", "error", gwStart)
		call.Fail("GATEWAY_UNAVAILABLE")
		if _, err := m.settle(context.WithoutCancel(ctx), entity, domain.StatusFailed, ReasonGatewayUnavailable); err != nil {
			call.Logger().Error("order_fail_after_gateway_error",
				observability.F("order_id", entity.ID),
				observability.Err(err),
			)
		}
		if errors.Is(gwErr, payment.ErrGatewayUnavailable) {
			return nil, gwErr
		}
		return nil, fmt.Errorf("%w: %w", payment.ErrGatewayUnavailable, gwErr)
	}
	m.inst.External(gatewayPeer, "create_session", "success", gwStart)

	entity.AttachPaymentReference(session.ID, m.now())
	if err := m.orders.Update(context.WithoutCancel(ctx), entity); err != nil {
		call.Fail("REPO_UPDATE_FAILED")
		// payment events still find the order through its id; the sweeper releases it if unpaid
		m.expireSession(context.WithoutCancel(ctx), session.ID)
		return nil, wrapRepositoryError(err)
	}

	m.publish(ctx, domain.NewCreatedEvent(entity))
	call.Span().SetAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.session_id", session.ID),
	)

	return &InitiateResult{
		OrderID:     entity.ID,
		SessionID:   session.ID,
		RedirectURL: session.RedirectURL,
		ExpiresAt:   entity.ExpiresAt,
	}, nil
}

func (m *Manager) releaseQuietly(ctx context.Context, orderID string) {
	if _, err := m.ledger.Release(ctx, orderID); err != nil {
		m.inst.Logger().Error("reservation_release_failed",
			observability.F("order_id", orderID),
			observability.Err(err),
		)
	}
}
