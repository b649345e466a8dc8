package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const sandboxSessionPrefix = "cs_sandbox_"

type sandboxSession struct {
	orderID   string
	amount    int64
	status    stripeapi.CheckoutSessionStatus
	expiresAt time.Time
}

// Sandbox is the explicit test-mode gateway. Sessions live in memory and completing one produces a
// checkout.session.completed event signed with the Stripe scheme, so the webhook path runs unchanged.
type Sandbox struct {
	mu            sync.Mutex
	sessions      map[string]*sandboxSession
	webhookSecret string
	successURL    string
	currency      string
	now           func() time.Time
}

var _ payment.Gateway = (*Sandbox)(nil)

func NewSandbox(webhookSecret, successURL, currency string) *Sandbox {
	if currency == "" {
		currency = string(stripeapi.CurrencyUSD)
	}
	return &Sandbox{
		sessions:      make(map[string]*sandboxSession),
		webhookSecret: webhookSecret,
		successURL:    successURL,
		currency:      currency,
		now:           time.Now,
	}
}

func (s *Sandbox) CreateSession(ctx context.Context, req payment.SessionRequest) (*payment.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrGatewayUnavailable, err)
	}
	id := sandboxSessionPrefix + req.OrderID

	s.mu.Lock()
	s.sessions[id] = &sandboxSession{
		orderID:   req.OrderID,
		amount:    payment.MinorUnits(req.UnitPrice) * int64(req.Quantity),
		status:    stripeapi.CheckoutSessionStatusOpen,
		expiresAt: req.ExpiresAt,
	}
	s.mu.Unlock()

	redirect := s.successURL + "?session_id=" + url.QueryEscape(id)
	return &payment.Session{ID: id, RedirectURL: redirect}, nil
}

func (s *Sandbox) VerifyEvent(payload []byte, signature string) (*payment.Event, error) {
	return verifyEvent(payload, signature, s.webhookSecret)
}

func (s *Sandbox) ExpireSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return payment.ErrSessionNotFound
	}
	if sess.status != stripeapi.CheckoutSessionStatusOpen {
		return payment.ErrSessionClosed
	}
	sess.status = stripeapi.CheckoutSessionStatusExpired
	return nil
}

// CompleteSession marks an open session paid and returns the signed checkout.session.completed
// delivery (raw body and Stripe-Signature header) for the webhook receiver.
func (s *Sandbox) CompleteSession(_ context.Context, sessionID string) ([]byte, string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, "", payment.ErrSessionNotFound
	}
	if sess.status != stripeapi.CheckoutSessionStatusOpen {
		s.mu.Unlock()
		return nil, "", payment.ErrSessionClosed
	}
	sess.status = stripeapi.CheckoutSessionStatusComplete
	orderID, amount := sess.orderID, sess.amount
	s.mu.Unlock()

	return s.SignEvent(payment.EventSessionCompleted, map[string]any{
		"id":                  sessionID,
		"object":              "checkout.session",
		"mode":                "payment",
		"status":              string(stripeapi.CheckoutSessionStatusComplete),
		"payment_status":      string(stripeapi.CheckoutSessionPaymentStatusPaid),
		"payment_intent":      "pi_sandbox_" + uuid.NewString(),
		"client_reference_id": orderID,
		"metadata":            map[string]string{"order_id": orderID},
		"amount_total":        amount,
		"currency":            s.currency,
	})
}

// SignEvent wraps object in a Stripe event envelope of the given type and signs it with the webhook secret.
func (s *Sandbox) SignEvent(eventType payment.EventType, object map[string]any) ([]byte, string, error) {
	now := s.now()
	body, err := json.Marshal(map[string]any{
		"id":          "evt_sandbox_" + uuid.NewString(),
		"object":      "event",
		"api_version": stripeapi.APIVersion,
		"created":     now.Unix(),
		"livemode":    false,
		"type":        string(eventType),
		"data":        map[string]any{"object": object},
	})
	if err != nil {
		return nil, "", fmt.Errorf("sandbox: encode event: %w", err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   body,
		Secret:    s.webhookSecret,
		Timestamp: now,
	})
	return signed.Payload, signed.Header, nil
}
