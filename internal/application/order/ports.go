package order

import (
	"context"
	"time"
)

type IDGenerator interface {
	NewID() string
}

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// Reference identifies the order behind a provider event: the checkout session id, and the order id
// the session was opened with as correlation metadata.
type Reference struct {
	SessionID string
	OrderID   string
}

func BySession(sessionID string) Reference { return Reference{SessionID: sessionID} }

// Orders is the payment-driven subset of the Manager used by the webhook receiver.
type Orders interface {
	Confirm(ctx context.Context, ref Reference, paymentIntent string) (string, error)
	ExpireByReference(ctx context.Context, ref Reference) error
	Fail(ctx context.Context, ref Reference, reason string) error
}

var _ Orders = (*Manager)(nil)
