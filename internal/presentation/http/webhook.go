package httppresentation

import (
	"errors"
	"io"
	"net/http"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/payment"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
)

const (
	headerStripeSignature = "Stripe-Signature"
	maxWebhookBytes       = 64 << 10
)

// handleWebhook acknowledges every verified delivery with 200. Only a bad signature (400) or an inbox
// write failure (500, so the provider redelivers) is reported as an error.
func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unreadable body", Kind: KindValidation})
		return
	}

	receipt, err := h.webhooks.Receive(r.Context(), payload, r.Header.Get(headerStripeSignature))
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			logctx.FromOr(r.Context(), h.log).Warn("webhook_signature_rejected", observability.Err(err))
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid signature", Kind: KindInvalidSignature})
			return
		}
		logctx.FromOr(r.Context(), h.log).Error("webhook_record_failed", observability.Err(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error", Kind: KindInternal})
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received:  true,
		EventID:   receipt.EventID,
		Duplicate: receipt.Duplicate,
		Outcome:   receipt.Outcome,
	})
}

// handleSandboxComplete pays a sandbox session and delivers the signed event through the webhook path.
func (h *Handler) handleSandboxComplete(w http.ResponseWriter, r *http.Request) {
	payload, sig, err := h.sandbox.CompleteSession(r.Context(), r.PathValue("sessionId"))
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	receipt, err := h.webhooks.Receive(r.Context(), payload, sig)
	if err != nil {
		writeDomainError(r.Context(), w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, webhookResponse{
		Received: true,
		EventID:  receipt.EventID,
		Outcome:  receipt.Outcome,
	})
}
