package httppresentation

import (
	"context"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/ecomarket/internal/application"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/inventory"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/order"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/domain/product"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
)

const (
	KindNotFound           = "not_found"
	KindForbidden          = "forbidden"
	KindInsufficientStock  = "insufficient_stock"
	KindNotAvailable       = "not_available"
	KindValidation         = "validation"
	KindUnauthorized       = "unauthorized"
	KindConflict           = "conflict"
	KindInvalidSignature   = "invalid_signature"
	KindGatewayUnavailable = "gateway_unavailable"
	KindUnknownReference   = "unknown_reference"
	KindInternal           = "internal"
)

type errorBody struct {
	Error  string            `json:"error"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
}

// classify maps a domain or application error to its HTTP status and kind.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrSelfPurchase):
		return http.StatusBadRequest, KindForbidden
	case errors.Is(err, access.ErrUnauthenticated):
		return http.StatusUnauthorized, KindUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return http.StatusForbidden, KindForbidden
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusBadRequest, KindInsufficientStock
	case errors.Is(err, product.ErrNotAvailable):
		return http.StatusBadRequest, KindNotAvailable
	case errors.Is(err, application.ErrValidation),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, order.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest, KindValidation
	case errors.Is(err, order.ErrUnknownReference):
		return http.StatusNotFound, KindUnknownReference
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrSessionNotFound):
		return http.StatusNotFound, KindNotFound
	case errors.Is(err, product.ErrConflict),
		errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrInvalidStateTransition),
		errors.Is(err, payment.ErrSessionClosed):
		return http.StatusConflict, KindConflict
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, KindInvalidSignature
	case errors.Is(err, payment.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, KindGatewayUnavailable
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

// writeDomainError renders err. Internal and gateway errors are logged in full and answered with a
// generic message.
func writeDomainError(ctx context.Context, w http.ResponseWriter, fallback observability.Logger, err error) {
	status, kind := classify(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logctx.FromOr(ctx, fallback).Error("http_internal_error", observability.Err(err))
		msg = "internal server error"
	case http.StatusServiceUnavailable:
		logctx.FromOr(ctx, fallback).Warn("http_gateway_unavailable", observability.Err(err))
		msg = "payment provider unavailable, try again later"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeValidation(w http.ResponseWriter, msg string, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: KindValidation, Fields: fields})
}
