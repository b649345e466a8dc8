package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, h http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGateway(Config{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "http://shop.local/success",
		CancelURL:     "http://shop.local/cancel",
		Timeout:       2 * time.Second,
		APIURL:        srv.URL,
	}, nil)
	require.NoError(t, err)
	return g
}

func TestCreateSessionSendsLineItemAndClampsExpiry(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	var form map[string]string

	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		form = map[string]string{}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})
	g.now = func() time.Time { return now }

	s, err := g.CreateSession(context.Background(), payment.SessionRequest{
		OrderID:      "o-1",
		BuyerID:      "buyer",
		ProductID:    "p-1",
		ProductTitle: "Glass cullet",
		UnitPrice:    decimal.RequireFromString("1.10"),
		Quantity:     3,
		ExpiresAt:    now.Add(5 * time.Minute),
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", s.RedirectURL)

	assert.Equal(t, "o-1", form["client_reference_id"])
	assert.Equal(t, "o-1", form["metadata[order_id]"])
	assert.Equal(t, "110", form["line_items[0][price_data][unit_amount]"])
	assert.Equal(t, "3", form["line_items[0][quantity]"])
	assert.Equal(t, "usd", form["line_items[0][price_data][currency]"])
	assert.Equal(t, "1746102660", form["expires_at"]) // now + 31m
}

func TestCreateSessionFailureIsGatewayUnavailable(t *testing.T) {
	var calls atomic.Int32
	g := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Stripe-Should-Retry", "false")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"type":"api_error","message":"down"}}`))
	})

	_, err := g.CreateSession(context.Background(), payment.SessionRequest{
		OrderID:   "o-1",
		UnitPrice: decimal.RequireFromString("1"),
		Quantity:  1,
		ExpiresAt: time.Now().Add(time.Hour),
	})
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	assert.EqualValues(t, 1, calls.Load())
}

func TestNewGatewayRequiresSecrets(t *testing.T) {
	_, err := NewGateway(Config{WebhookSecret: "whsec"}, nil)
	assert.Error(t, err)
	_, err = NewGateway(Config{SecretKey: "sk"}, nil)
	assert.Error(t, err)
}
