package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/requestctx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const (
	defaultSessionHeader = "X-Session-ID"
	maxCartBodySize      = 16 * 1024
	maxCartMergeBodySize = 256 * 1024
)

// SessionMiddleware binds the guest session id from header to the request context. Anonymous
// callers without one get a fresh id. The id in effect is echoed on the response so clients
// can persist it.
func SessionMiddleware(sessions services.SessionService, header string) func(http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = defaultSessionHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sid := strings.TrimSpace(r.Header.Get(header))
			if sid == "" && sessions != nil {
				if _, signedIn := auth.IdentityFromContext(ctx); !signedIn {
					sid = sessions.NewGuestID()
				}
			}
			if sid != "" {
				w.Header().Set(header, sid)
				ctx = requestctx.WithSessionID(ctx, sid)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CartHandlers expose the session cart for guests and signed-in customers.
type CartHandlers struct {
	authn         *auth.Authenticator
	sessions      services.SessionService
	carts         services.CartService
	sessionHeader string
}

// NewCartHandlers constructs cart handlers. Authentication is optional on cart routes.
func NewCartHandlers(authn *auth.Authenticator, sessions services.SessionService, carts services.CartService, sessionHeader string) *CartHandlers {
	return &CartHandlers{
		authn:         authn,
		sessions:      sessions,
		carts:         carts,
		sessionHeader: sessionHeader,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.OptionalFirebaseAuth())
	}
	r.Use(SessionMiddleware(h.sessions, h.sessionHeader))
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Patch("/items/{lineID}", h.updateItem)
	r.Delete("/items/{lineID}", h.removeItem)
	r.Post("/merge", h.merge)
}

func (h *CartHandlers) session(w http.ResponseWriter, r *http.Request) (services.Session, bool) {
	ctx := r.Context()
	if h.carts == nil || h.sessions == nil {
		writeUnavailable(ctx, w, "cart")
		return services.Session{}, false
	}
	session, err := h.sessions.Resolve(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return services.Session{}, false
	}
	return session, true
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.carts.GetCart(r.Context(), session)
	h.respond(w, r, view, err, http.StatusOK)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.carts.Clear(r.Context(), session); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCartItemRequest struct {
	ProductID    string         `json:"product_id"`
	VariantIndex *int           `json:"variant_index"`
	Selection    map[string]int `json:"selection"`
	Quantity     int            `json:"quantity"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req addCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartBodySize, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.BodyError(err))
		return
	}
	cmd := services.AddCartItemCommand{
		ProductID:    strings.TrimSpace(req.ProductID),
		VariantIndex: commerce.NoVariant,
		Selection:    req.Selection,
		Quantity:     req.Quantity,
	}
	if req.VariantIndex != nil {
		cmd.VariantIndex = *req.VariantIndex
	}
	view, err := h.carts.AddItem(r.Context(), session, cmd)
	h.respond(w, r, view, err, http.StatusCreated)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	var req updateCartItemRequest
	if err := httpx.DecodeJSON(r, maxCartBodySize, &req); err != nil {
		httpx.WriteError(r.Context(), w, httpx.BodyError(err))
		return
	}
	view, err := h.carts.UpdateQuantity(r.Context(), session, urlParam(r, "lineID"), req.Quantity)
	h.respond(w, r, view, err, http.StatusOK)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	view, err := h.carts.RemoveItem(r.Context(), session, urlParam(r, "lineID"))
	h.respond(w, r, view, err, http.StatusOK)
}

// merge accepts {"guest_session_id": "..."} to fold a guest cart into the signed-in cart,
// and/or a client-held cart in any of the accepted list shapes.
func (h *CartHandlers) merge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	body, err := httpx.ReadBody(r, maxCartMergeBodySize)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	var envelope struct {
		GuestSessionID string `json:"guest_session_id"`
	}
	_ = json.Unmarshal(body, &envelope)
	guestID := strings.TrimSpace(envelope.GuestSessionID)
	if guestID == "" && !session.IsGuest() {
		guestID = session.GuestID
	}

	var view services.CartView
	merged := false
	if guestID != "" && !session.IsGuest() {
		if view, err = h.carts.MergeGuestCart(ctx, session, guestID); err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		merged = true
	}
	if hasCartLines(body) {
		if view, err = h.carts.MergeLines(ctx, session, body); err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		merged = true
	}
	if !merged {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "nothing to merge", http.StatusBadRequest))
		return
	}
	h.respond(w, r, view, nil, http.StatusOK)
}

func (h *CartHandlers) respond(w http.ResponseWriter, r *http.Request, view services.CartView, err error, status int) {
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, status, cartResponse{Cart: buildCartPayload(view)})
}

// hasCartLines reports whether body is a bare array or carries a list envelope.
func hasCartLines(body []byte) bool {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		return true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return false
	}
	for _, key := range []string{"items", "lines", "data", "products"} {
		if raw, ok := obj[key]; ok && len(raw) > 0 && string(raw) != "null" {
			return true
		}
	}
	return false
}
