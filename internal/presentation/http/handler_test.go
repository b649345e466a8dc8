package httppresentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zhima-Mochi/ecomarket/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
	appwebhook "github.com/Zhima-Mochi/ecomarket/internal/application/webhook"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/auth"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/id"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/ecomarket/internal/infrastructure/stripe"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type HandlerSuite struct {
	suite.Suite

	stock   *memory.InventoryRepository
	orders  *memory.OrderRepository
	sandbox *stripe.Sandbox
	auth    *auth.Authenticator
	server  *httptest.Server
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctx := context.Background()
	s.stock = memory.NewInventoryRepository()
	s.orders = memory.NewOrderRepository()
	s.sandbox = stripe.NewSandbox("whsec_test", "http://shop.local/success", "usd")

	a, err := auth.NewAuthenticator("test-secret", "ecomarket")
	s.Require().NoError(err)
	s.auth = a

	p, err := product.New("p-1", "seller", product.Draft{
		Title:     "PET bottles, sorted",
		Price:     decimal.RequireFromString("0.40"),
		Quantity:  10,
		Category:  product.CategoryPlastic,
		Condition: product.ConditionUsed,
		Location:  product.Location{City: "Porto"},
	}, time.Now().UTC())
	s.Require().NoError(err)
	s.Require().NoError(s.stock.Insert(ctx, p))

	ids := id.NewUUIDGenerator()
	tel := observability.Nop()
	manager := apporder.NewManager(s.stock, s.stock, s.orders, s.sandbox, nil, ids, tel)
	h := NewHandler(Deps{
		Orders:   manager,
		Catalog:  catalog.NewService(s.stock, ids, tel),
		Webhooks: appwebhook.NewReceiver(s.sandbox, memory.NewInboxRepository(), manager, tel),
		Sandbox:  s.sandbox,
		Auth:     a,
		Tel:      tel,
	})
	s.server = httptest.NewServer(h.Router())
	s.T().Cleanup(s.server.Close)
}

func (s *HandlerSuite) token(userID string, role access.Role) string {
	tok, err := s.auth.Issue(userID, role, time.Hour)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) do(method, path, token string, body any, out any) *http.Response {
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			s.Require().NoError(json.NewEncoder(&buf).Encode(b))
		}
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (s *HandlerSuite) TestHealth() {
	var body map[string]string
	resp := s.do(http.MethodGet, "/health", "", nil, &body)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
	s.NotEmpty(resp.Header.Get(headerRequestID))
}

func (s *HandlerSuite) TestCheckoutThroughSandboxCompletion() {
	buyer := s.token("buyer", access.RoleUser)

	var co checkoutResponse
	resp := s.do(http.MethodPost, "/checkout", buyer, map[string]any{"productId": "p-1", "quantity": 3}, &co)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.NotEmpty(co.OrderID)
	s.Contains(co.RedirectURL, "http://shop.local/success")

	var p productResponse
	s.do(http.MethodGet, "/products/p-1", "", nil, &p)
	s.Equal(7, p.Available)

	var wh webhookResponse
	resp = s.do(http.MethodPost, "/sandbox/checkout/"+co.SessionID+"/complete", "", nil, &wh)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(appwebhook.OutcomeConfirmed, wh.Outcome)

	var o orderResponse
	resp = s.do(http.MethodGet, "/orders/"+co.OrderID, buyer, nil, &o)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("completed", o.Status)
	s.True(o.TotalPrice.Equal(decimal.RequireFromString("1.20")))

	s.do(http.MethodGet, "/products/p-1", "", nil, &p)
	s.Equal(7, p.Quantity)
	s.Equal(7, p.Available)

	var list orderListResponse
	resp = s.do(http.MethodGet, "/orders?role=seller", s.token("seller", access.RoleUser), nil, &list)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, list.Pagination.Total)

	var stranger errorBody
	resp = s.do(http.MethodGet, "/orders/"+co.OrderID, s.token("stranger", access.RoleUser), nil, &stranger)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(KindNotFound, stranger.Kind)
}

func (s *HandlerSuite) TestCheckoutErrors() {
	buyer := s.token("buyer", access.RoleUser)

	cases := []struct {
		name   string
		token  string
		body   any
		status int
		kind   string
	}{
		{"anonymous", "", map[string]any{"productId": "p-1", "quantity": 1}, http.StatusUnauthorized, KindUnauthorized},
		{"zero quantity", buyer, map[string]any{"productId": "p-1", "quantity": 0}, http.StatusBadRequest, KindValidation},
		{"unknown field", buyer, `{"productId":"p-1","quantity":1,"price":"0"}`, http.StatusBadRequest, KindValidation},
		{"missing product", buyer, map[string]any{"productId": "nope", "quantity": 1}, http.StatusNotFound, KindNotFound},
		{"too many", buyer, map[string]any{"productId": "p-1", "quantity": 11}, http.StatusBadRequest, KindInsufficientStock},
		{"own listing", s.token("seller", access.RoleUser), map[string]any{"productId": "p-1", "quantity": 1}, http.StatusBadRequest, KindForbidden},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			var body errorBody
			resp := s.do(http.MethodPost, "/checkout", tc.token, tc.body, &body)
			s.Equal(tc.status, resp.StatusCode)
			s.Equal(tc.kind, body.Kind)
		})
	}
}

func (s *HandlerSuite) TestCancelRestoresStock() {
	buyer := s.token("buyer", access.RoleUser)
	var co checkoutResponse
	s.do(http.MethodPost, "/checkout", buyer, map[string]any{"productId": "p-1", "quantity": 4}, &co)

	var o orderResponse
	resp := s.do(http.MethodPost, "/orders/"+co.OrderID+"/cancel", buyer, nil, &o)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("cancelled", o.Status)

	var p productResponse
	s.do(http.MethodGet, "/products/p-1", "", nil, &p)
	s.Equal(10, p.Available)
}

func (s *HandlerSuite) TestInvalidAuthorizationHeader() {
	var body errorBody
	resp := s.do(http.MethodGet, "/orders", "garbage", nil, &body)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal(KindUnauthorized, body.Kind)
}

func (s *HandlerSuite) TestWebhookSignature() {
	var body errorBody
	resp := s.do(http.MethodPost, "/payments/webhook", "", `{"id":"evt_1"}`, &body)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal(KindInvalidSignature, body.Kind)

	payload, sig, err := s.sandbox.SignEvent(payment.EventType("customer.created"), map[string]any{"id": "cus_1"})
	s.Require().NoError(err)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/payments/webhook", bytes.NewReader(payload))
	s.Require().NoError(err)
	req.Header.Set(headerStripeSignature, sig)
	r, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer r.Body.Close()

	var wh webhookResponse
	s.Require().NoError(json.NewDecoder(r.Body).Decode(&wh))
	s.Equal(http.StatusOK, r.StatusCode)
	s.True(wh.Received)
	s.Equal(appwebhook.OutcomeIgnored, wh.Outcome)
}

func (s *HandlerSuite) TestProductLifecycle() {
	owner := s.token("recycler", access.RoleUser)
	other := s.token("someone", access.RoleUser)

	var created productResponse
	resp := s.do(http.MethodPost, "/products", owner, map[string]any{
		"title":     "Copper wire offcuts",
		"price":     "6.50",
		"quantity":  12,
		"unit":      "kg",
		"category":  "metal",
		"condition": "scrap",
		"location":  map[string]string{"city": "Lille"},
	}, &created)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Equal("recycler", created.OwnerID)
	s.Equal("available", created.Status)

	var invalid errorBody
	resp = s.do(http.MethodPost, "/products", owner, map[string]any{"title": "x", "category": "wood"}, &invalid)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(invalid.Fields, "title")
	s.Contains(invalid.Fields, "category")

	var forbidden errorBody
	resp = s.do(http.MethodPut, "/products/"+created.ID, other, map[string]any{"title": "Stolen listing"}, &forbidden)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	var updated productResponse
	resp = s.do(http.MethodPut, "/products/"+created.ID, owner, map[string]any{"quantity": 20}, &updated)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(20, updated.Quantity)

	var paused productResponse
	resp = s.do(http.MethodPatch, "/products/"+created.ID+"/status", owner, map[string]any{"status": "paused"}, &paused)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal("paused", paused.Status)

	var public productListResponse
	s.do(http.MethodGet, "/products?category=metal", "", nil, &public)
	s.Equal(0, public.Pagination.Total)

	var mine productListResponse
	resp = s.do(http.MethodGet, "/products?owner=me", owner, nil, &mine)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Equal(1, mine.Pagination.Total)

	resp = s.do(http.MethodDelete, "/products/"+created.ID, owner, nil, nil)
	s.Equal(http.StatusNoContent, resp.StatusCode)

	var gone errorBody
	resp = s.do(http.MethodGet, "/products/"+created.ID, "", nil, &gone)
	s.Equal(http.StatusNotFound, resp.StatusCode)
	s.Equal(KindNotFound, gone.Kind)
}

func (s *HandlerSuite) TestListProductsQueryValidation() {
	var body errorBody
	resp := s.do(http.MethodGet, "/products?minPrice=abc&page=0", "", nil, &body)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Contains(body.Fields, "minPrice")
	s.Contains(body.Fields, "page")

	var list productListResponse
	resp = s.do(http.MethodGet, "/products?search=bottles&city=porto&maxPrice=1", "", nil, &list)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().Len(list.Items, 1)
	s.Equal("p-1", list.Items[0].ID)
}

func (s *HandlerSuite) TestHealthReportsUnready() {
	h := NewHandler(Deps{Ready: func(context.Context) error { return errors.New("db down") }})
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}
