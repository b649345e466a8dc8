package httppresentation

import (
	"net/http"

	apporder "github.com/Zhima-Mochi/ecomarket/internal/application/order"
)

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.Authenticated() {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required", Kind: KindUnauthorized})
		return
	}
	var req checkoutRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.orders.Initiate(r.Context(), actor, apporder.InitiateInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, checkoutResponse{
		OrderID:     res.OrderID,
		SessionID:   res.SessionID,
		RedirectURL: res.RedirectURL,
		ExpiresAt:   res.ExpiresAt,
	})
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}
	in := apporder.ListInput{
		Role:  q.Get("role"),
		Page:  parsePositive(q, "page", fields),
		Limit: parsePositive(q, "limit", fields),
	}
	if len(fields) > 0 {
		writeValidation(w, "invalid query parameters", fields)
		return
	}

	page, err := h.orders.List(r.Context(), actorFrom(r.Context()), in)
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(page))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), actorFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}
