package stripe

import (
	"context"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxCompleteProducesVerifiableEvent(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox("whsec_test", "http://shop.local/success", "")

	sess, err := sb.CreateSession(ctx, payment.SessionRequest{
		OrderID:   "order-1",
		UnitPrice: decimal.RequireFromString("19.99"),
		Quantity:  2,
		ExpiresAt: time.Now().Add(30 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_sandbox_order-1", sess.ID)
	assert.Contains(t, sess.RedirectURL, "session_id=cs_sandbox_order-1")

	payload, header, err := sb.CompleteSession(ctx, sess.ID)
	require.NoError(t, err)

	ev, err := sb.VerifyEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, payment.EventSessionCompleted, ev.Type)
	assert.Equal(t, sess.ID, ev.SessionID)
	assert.Equal(t, "order-1", ev.OrderID)
	assert.True(t, ev.Paid)
	assert.NotEmpty(t, ev.PaymentIntent)

	_, _, err = sb.CompleteSession(ctx, sess.ID)
	assert.ErrorIs(t, err, payment.ErrSessionClosed)
	_, _, err = sb.CompleteSession(ctx, "cs_missing")
	assert.ErrorIs(t, err, payment.ErrSessionNotFound)
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	sb := NewSandbox("whsec_test", "", "")
	other := NewSandbox("whsec_other", "", "")

	payload, header, err := other.SignEvent(payment.EventSessionExpired, map[string]any{"id": "cs_1"})
	require.NoError(t, err)

	_, err = sb.VerifyEvent(payload, header)
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	_, err = sb.VerifyEvent(payload, "")
	assert.ErrorIs(t, err, payment.ErrInvalidSignature)

	ev, err := other.VerifyEvent(payload, header)
	require.NoError(t, err)
	assert.Equal(t, "cs_1", ev.SessionID)
	assert.False(t, ev.Paid)
}

func TestSandboxExpire(t *testing.T) {
	ctx := context.Background()
	sb := NewSandbox("whsec_test", "", "")
	sess, err := sb.CreateSession(ctx, payment.SessionRequest{OrderID: "o", UnitPrice: decimal.NewFromInt(1), Quantity: 1})
	require.NoError(t, err)

	require.NoError(t, sb.ExpireSession(ctx, sess.ID))
	assert.ErrorIs(t, sb.ExpireSession(ctx, sess.ID), payment.ErrSessionClosed)
	_, _, err = sb.CompleteSession(ctx, sess.ID)
	assert.ErrorIs(t, err, payment.ErrSessionClosed)
}

func TestNewGatewayRequiresCredentials(t *testing.T) {
	_, err := NewGateway(Config{WebhookSecret: "whsec"}, nil)
	assert.Error(t, err)
	_, err = NewGateway(Config{SecretKey: "sk_test"}, nil)
	assert.Error(t, err)

	gw, err := NewGateway(Config{SecretKey: "sk_test", WebhookSecret: "whsec"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, gw)
}
