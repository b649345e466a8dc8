package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature   = errors.New("payment: invalid signature")
	ErrGatewayUnavailable = errors.New("payment: gateway unavailable")
	ErrSessionNotFound    = errors.New("payment: session not found")
	ErrSessionClosed      = errors.New("payment: session is no longer open")
)

type EventType string

const (
	EventSessionCompleted      EventType = "checkout.session.completed"
	EventSessionExpired        EventType = "checkout.session.expired"
	EventAsyncPaymentSucceeded EventType = "checkout.session.async_payment_succeeded"
	EventAsyncPaymentFailed    EventType = "checkout.session.async_payment_failed"
)

// SessionRequest describes the hosted checkout to open for a pending order.
type SessionRequest struct {
	OrderID      string
	BuyerID      string
	ProductID    string
	ProductTitle string
	UnitPrice    decimal.Decimal
	Quantity     int
	ExpiresAt    time.Time
}

type Session struct {
	ID          string
	RedirectURL string
}

// Event is a verified provider notification, reduced to the fields the service acts on.
type Event struct {
	ID            string
	Type          EventType
	SessionID     string
	OrderID       string
	PaymentIntent string
	Paid          bool
	Payload       []byte
}

// Gateway is the hosted payment processor.
type Gateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// VerifyEvent authenticates payload against the signature header; failures wrap ErrInvalidSignature.
	VerifyEvent(payload []byte, signature string) (*Event, error)
	ExpireSession(ctx context.Context, sessionID string) error
}

// MinorUnits converts a decimal amount to the integer minor units (cents) the processor expects.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
