package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const (
	maxCheckoutRequestBody = 8 * 1024
	idempotencyKeyHeader   = "Idempotency-Key"
)

// CheckoutHandlers turn the signed-in customer's cart into an order.
type CheckoutHandlers struct {
	authn       *auth.Authenticator
	sessions    services.SessionService
	checkout    services.CheckoutService
	idempotency func(http.Handler) http.Handler
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
// idempotency, when set, guards order placement against client retries.
func NewCheckoutHandlers(authn *auth.Authenticator, sessions services.SessionService, checkout services.CheckoutService, idempotency func(http.Handler) http.Handler) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:       authn,
		sessions:    sessions,
		checkout:    checkout,
		idempotency: idempotency,
	}
}

// Routes registers /checkout endpoints.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	place := http.Handler(http.HandlerFunc(h.placeOrder))
	if h.idempotency != nil {
		place = h.idempotency(place)
	}
	r.Method(http.MethodPost, "/", place)
	r.Post("/{orderID}/confirm", h.confirmPayment)
}

type placeOrderRequest struct {
	ShippingAddress addressPayload `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	PointsToUse     int64          `json:"points_to_use"`
	Note            string         `json:"note"`
	Email           string         `json:"email"`
}

type placeOrderResponse struct {
	Order       orderPayload `json:"order"`
	RedirectURL string       `json:"redirect_url,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil || h.sessions == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	session, err := h.sessions.Resolve(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, maxCheckoutRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	email := strings.TrimSpace(req.Email)
	if email == "" {
		email = identity.Email
	}

	result, err := h.checkout.PlaceOrder(ctx, session, services.PlaceOrderCommand{
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(strings.TrimSpace(req.PaymentMethod)),
		PointsToUse:     req.PointsToUse,
		Note:            req.Note,
		Email:           email,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get(idempotencyKeyHeader)),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/me/orders/"+result.Order.ID)
	writeJSONResponse(w, http.StatusCreated, placeOrderResponse{
		Order:       buildOrderPayload(result.Order),
		RedirectURL: result.RedirectURL,
		SessionID:   result.SessionID,
	})
}

// confirmPayment is called when the customer returns from the hosted payment page.
func (h *CheckoutHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, err := h.checkout.ConfirmPayment(ctx, identity.UID, urlParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}
