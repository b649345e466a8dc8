package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Zhima-Mochi/ecomarket/internal/application/catalog"
	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
	appwebhook "github.com/Zhima-Mochi/ecomarket/internal/application/webhook"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"

	"github.com/go-playground/validator/v10"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

// SandboxCompleter pays an open sandbox session and returns the signed provider delivery.
type SandboxCompleter interface {
	CompleteSession(ctx context.Context, sessionID string) ([]byte, string, error)
}

// Deps are the collaborators of the HTTP surface. Sandbox is nil unless payment mode is sandbox.
type Deps struct {
	Orders   *apporder.Manager
	Catalog  *catalog.Service
	Webhooks *appwebhook.Receiver
	Sandbox  SandboxCompleter
	Auth     Authenticator
	Logger   observability.Logger
	Tel      observability.Observability
	// Ready reports dependency health for GET /health; nil means always ready.
	Ready func(ctx context.Context) error
}

type Handler struct {
	orders   *apporder.Manager
	catalog  *catalog.Service
	webhooks *appwebhook.Receiver
	sandbox  SandboxCompleter
	auth     Authenticator
	ready    func(ctx context.Context) error

	validate *validator.Validate
	log      observability.Logger
	requests observability.Counter   // http_requests_total{method,route,status}
	latency  observability.Histogram // http_request_duration_seconds{method,route,status}
}

func NewHandler(d Deps) *Handler {
	tel := observability.Or(d.Tel)
	base := d.Logger
	if base == nil {
		base = tel.Logger()
	}
	return &Handler{
		orders:   d.Orders,
		catalog:  d.Catalog,
		webhooks: d.Webhooks,
		sandbox:  d.Sandbox,
		auth:     d.Auth,
		ready:    d.Ready,
		validate: newValidator(),
		log:      base.With(observability.F("component", componentHTTPHandler)),
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		latency:  tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	h.muxHandle(mux, http.MethodGet, "/products", h.handleListProducts)
	h.muxHandle(mux, http.MethodPost, "/products", h.handleCreateProduct)
	h.muxHandle(mux, http.MethodGet, "/products/{id}", h.handleGetProduct)
	h.muxHandle(mux, http.MethodPut, "/products/{id}", h.handleUpdateProduct)
	h.muxHandle(mux, http.MethodPatch, "/products/{id}/status", h.handleSetProductStatus)
	h.muxHandle(mux, http.MethodDelete, "/products/{id}", h.handleDeleteProduct)

	h.muxHandle(mux, http.MethodPost, "/checkout", h.handleCheckout)
	h.muxHandle(mux, http.MethodGet, "/orders", h.handleListOrders)
	h.muxHandle(mux, http.MethodGet, "/orders/{id}", h.handleGetOrder)
	h.muxHandle(mux, http.MethodPost, "/orders/{id}/cancel", h.handleCancelOrder)

	h.muxHandle(mux, http.MethodPost, "/payments/webhook", h.handleWebhook)
	if h.sandbox != nil {
		h.muxHandle(mux, http.MethodPost, "/sandbox/checkout/{sessionId}/complete", h.handleSandboxComplete)
	}
	return mux
}

// muxHandle registers a method pattern wrapped as
// route → trace → request logger → access log → metrics → actor → handler.
func (h *Handler) muxHandle(mux *http.ServeMux, method, route string, handler http.HandlerFunc) {
	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			h.withAccessLog(
				h.withHTTPMetrics(
					h.withActor(handler),
				),
			),
		),
	)
	mux.HandleFunc(method+" "+route, func(w http.ResponseWriter, r *http.Request) {
		wrapped.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("health_check_failed", observability.Err(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst and validates it. On failure the 400 response is already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeValidation(w, fmt.Sprintf("invalid request body: %v", err), nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidation(w, "request validation failed", FormatValidationError(verrs))
			return false
		}
		writeValidation(w, err.Error(), nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
