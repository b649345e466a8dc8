package httppresentation

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/Zhima-Mochi/ecomarket/internal/application/catalog"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"

	"github.com/shopspring/decimal"
)

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, fields := parseProductFilter(q)
	if len(fields) > 0 {
		writeValidation(w, "invalid query parameters", fields)
		return
	}

	page, err := h.catalog.List(r.Context(), actorFrom(r.Context()), catalog.ListInput{
		Filter: f,
		Mine:   q.Get("owner") == "me",
	})
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}

	items := make([]productResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, productListResponse{
		Items:      items,
		Pagination: pagination{Page: page.Page, Limit: page.Limit, Total: page.Total, Pages: page.Pages()},
	})
}

func parseProductFilter(q url.Values) (product.Filter, map[string]string) {
	fields := map[string]string{}
	f := product.Filter{
		Category: product.Category(q.Get("category")),
		Search:   q.Get("search"),
		City:     q.Get("city"),
	}
	for _, p := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			fields[p.name] = p.name + " must be a non-negative number"
			continue
		}
		*p.dst = &d
	}
	f.Page = parsePositive(q, "page", fields)
	f.Limit = parsePositive(q, "limit", fields)
	return f, fields
}

func parsePositive(q url.Values, name string, fields map[string]string) int {
	raw := q.Get(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		fields[name] = name + " must be a positive integer"
		return 0
	}
	return n
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Create(r.Context(), actorFrom(r.Context()), req.draft())
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.catalog.Update(r.Context(), actorFrom(r.Context()), r.PathValue("id"), req.patch())
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleSetProductStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.catalog.SetStatus(r.Context(), actorFrom(r.Context()), r.PathValue("id"), product.Status(req.Status))
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.Delete(r.Context(), actorFrom(r.Context()), r.PathValue("id")); err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
