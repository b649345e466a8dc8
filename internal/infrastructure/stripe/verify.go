package stripe

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	stripeapi "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// verifyEvent checks the Stripe-Signature header and extracts the checkout session fields.
func verifyEvent(payload []byte, header, secret string) (*payment.Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, header, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", payment.ErrInvalidSignature, err)
	}

	out := &payment.Event{
		ID:      ev.ID,
		Type:    payment.EventType(ev.Type),
		Payload: payload,
	}
	if ev.Data == nil || !strings.HasPrefix(string(ev.Type), "checkout.session.") {
		return out, nil
	}

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &session); err != nil {
		// signed but unreadable: acknowledged with no session, which dispatches as an unknown reference
		return out, nil
	}
	out.SessionID = session.ID
	out.OrderID = session.ClientReferenceID
	if id := session.Metadata["order_id"]; id != "" {
		out.OrderID = id
	}
	if session.PaymentIntent != nil {
		out.PaymentIntent = session.PaymentIntent.ID
	}
	out.Paid = session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusPaid ||
		session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusNoPaymentRequired
	return out, nil
}
