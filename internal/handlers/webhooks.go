package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const (
	maxWebhookBodySize    = 64 * 1024
	stripeSignatureHeader = "Stripe-Signature"
)

// WebhookHandlers receive payment provider callbacks. The payload signature is the only
// authentication, so the raw body must reach the verifier untouched.
type WebhookHandlers struct {
	checkout services.CheckoutService
}

// NewWebhookHandlers constructs webhook handlers.
func NewWebhookHandlers(checkout services.CheckoutService) *WebhookHandlers {
	return &WebhookHandlers{checkout: checkout}
}

// Routes registers /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/payments/stripe", h.stripe)
}

func (h *WebhookHandlers) stripe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "payment webhook")
		return
	}
	signature := r.Header.Get(stripeSignatureHeader)
	if signature == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "missing signature header", http.StatusBadRequest))
		return
	}
	payload, err := httpx.ReadBody(r, maxWebhookBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if err := h.checkout.HandleStripeWebhook(ctx, payload, signature); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
