// Package stripe adapts Stripe Checkout to payment.Gateway, plus a sandbox gateway that signs its own events.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/sony/gobreaker"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const (
	breakerName = "stripe"
	// Checkout sessions must stay open at least 30 minutes.
	minSessionLifetime = 30*time.Minute + time.Minute
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Currency      string
	Timeout       time.Duration
	// APIURL overrides the Stripe API base, e.g. for stripe-mock.
	APIURL string
}

// Gateway talks to the Stripe API through a circuit breaker and a bounded HTTP client.
type Gateway struct {
	api           *client.API
	cb            *gobreaker.CircuitBreaker
	webhookSecret string
	successURL    string
	cancelURL     string
	currency      string
	now           func() time.Time
}

var _ payment.Gateway = (*Gateway)(nil)

func NewGateway(cfg Config, tel observability.Observability) (*Gateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = string(stripeapi.CurrencyUSD)
	}
	log := observability.Or(tel).Logger().With(observability.F("component", "stripe_gateway"))

	bc := &stripeapi.BackendConfig{
		HTTPClient:        &http.Client{Timeout: cfg.Timeout},
		MaxNetworkRetries: stripeapi.Int64(1),
		LeveledLogger:     leveledLogger{log: log},
	}
	if cfg.APIURL != "" {
		bc.URL = stripeapi.String(cfg.APIURL)
	}
	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, bc)

	return &Gateway{
		api:           client.New(cfg.SecretKey, &stripeapi.Backends{API: backend}),
		cb:            newBreaker(log),
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		currency:      cfg.Currency,
		now:           time.Now,
	}, nil
}

func (g *Gateway) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	expiresAt := req.ExpiresAt
	if floor := g.now().Add(minSessionLifetime); expiresAt.Before(floor) {
		expiresAt = floor
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL:        stripeapi.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripeapi.String(g.cancelURL),
		ClientReferenceID: stripeapi.String(req.OrderID),
		ExpiresAt:         stripeapi.Int64(expiresAt.Unix()),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(g.currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(req.ProductTitle),
				},
				UnitAmount: stripeapi.Int64(payment.MinorUnits(req.UnitPrice)),
			},
			Quantity: stripeapi.Int64(int64(req.Quantity)),
		}},
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{"order_id": req.OrderID},
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("buyer_id", req.BuyerID)
	params.AddMetadata("product_id", req.ProductID)

	s, err := executeWithBreaker(g.cb, func() (*stripeapi.CheckoutSession, error) {
		return g.api.CheckoutSessions.New(params)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create checkout session: %w", payment.ErrGatewayUnavailable, err)
	}
	return &payment.Session{ID: s.ID, RedirectURL: s.URL}, nil
}

func (g *Gateway) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	return verifyEvent(payload, signature, g.webhookSecret)
}

func (g *Gateway) ExpireSession(ctx context.Context, sessionID string) error {
	params := &stripeapi.CheckoutSessionExpireParams{}
	params.Context = ctx
	_, err := executeWithBreaker(g.cb, func() (*stripeapi.CheckoutSession, error) {
		return g.api.CheckoutSessions.Expire(sessionID, params)
	})
	if err != nil {
		return fmt.Errorf("%w: expire checkout session: %w", payment.ErrGatewayUnavailable, err)
	}
	return nil
}
