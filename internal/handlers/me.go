package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const maxMeBodySize = 4 * 1024

// MeHandlers expose the signed-in customer's profile, orders, loyalty ledger and wishlist.
type MeHandlers struct {
	authn     *auth.Authenticator
	customers services.CustomerService
	orders    services.OrderService
	loyalty   services.LoyaltyService
	wishlist  services.WishlistService
}

// NewMeHandlers constructs /me handlers. Nil services answer 503.
func NewMeHandlers(authn *auth.Authenticator, customers services.CustomerService, orders services.OrderService, loyalty services.LoyaltyService, wishlist services.WishlistService) *MeHandlers {
	return &MeHandlers{
		authn:     authn,
		customers: customers,
		orders:    orders,
		loyalty:   loyalty,
		wishlist:  wishlist,
	}
}

// Routes registers the /me endpoints.
func (h *MeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getProfile)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Get("/orders/{orderID}/timeline", h.getTimeline)
	r.Post("/orders/{orderID}:cancel", h.cancelOrder)

	r.Get("/loyalty", h.getLoyalty)

	r.Get("/wishlist", h.listWishlist)
	r.Post("/wishlist", h.addWishlist)
	r.Post("/wishlist/{productID}", h.addWishlist)
	r.Get("/wishlist/{productID}", h.containsWishlist)
	r.Delete("/wishlist/{productID}", h.removeWishlist)
}

// getProfile provisions the customer document on first call.
func (h *MeHandlers) getProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeUnavailable(ctx, w, "customer")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	customer, err := h.customers.EnsureProfile(ctx, services.CustomerIdentity{
		UID:   identity.UID,
		Email: identity.Email,
		Name:  identity.Name,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"customer": buildCustomerPayload(customer)})
}

func (h *MeHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	filter, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}
	page, err := h.orders.ListOrders(ctx, identity.UID, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page))
}

func (h *MeHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	order, err := h.orders.GetOrder(ctx, identity.UID, urlParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *MeHandlers) getTimeline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	timeline, err := h.orders.Timeline(ctx, identity.UID, urlParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildActivityPayloads(timeline)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *MeHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	var req cancelOrderRequest
	if err := httpx.DecodeJSON(r, maxMeBodySize, &req); err != nil && !errors.Is(err, httpx.ErrEmptyBody) {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		CustomerID: identity.UID,
		OrderID:    urlParam(r, "orderID"),
		Reason:     req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

func (h *MeHandlers) getLoyalty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.loyalty == nil {
		writeUnavailable(ctx, w, "loyalty")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	summary, err := h.loyalty.Summary(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"loyalty": buildLoyaltyPayload(summary)})
}

func (h *MeHandlers) listWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	products, err := h.wishlist.List(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildProductPayloads(products)})
}

type wishlistRequest struct {
	ProductID string `json:"product_id"`
}

func (h *MeHandlers) addWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	productID := urlParam(r, "productID")
	if productID == "" {
		var req wishlistRequest
		if err := httpx.DecodeJSON(r, maxMeBodySize, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.BodyError(err))
			return
		}
		productID = strings.TrimSpace(req.ProductID)
	}
	list, err := h.wishlist.Add(ctx, identity.UID, productID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product_ids": list.ProductIDs})
}

func (h *MeHandlers) containsWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	found, err := h.wishlist.Contains(ctx, identity.UID, urlParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product_id": urlParam(r, "productID"), "saved": found})
}

func (h *MeHandlers) removeWishlist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.wishlist == nil {
		writeUnavailable(ctx, w, "wishlist")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	list, err := h.wishlist.Remove(ctx, identity.UID, urlParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product_ids": list.ProductIDs})
}

// parseOrderFilter reads status (repeatable or comma separated), payment_status and q.
func parseOrderFilter(w http.ResponseWriter, r *http.Request) (services.OrderListFilter, bool) {
	ctx := r.Context()
	pager, ok := parsePagination(ctx, w, r)
	if !ok {
		return services.OrderListFilter{}, false
	}
	query := r.URL.Query()
	filter := services.OrderListFilter{
		Search:     strings.TrimSpace(firstQuery(query.Get("q"), query.Get("search"))),
		Pagination: pager,
	}
	for _, raw := range parseFilterValues(query["status"]) {
		status, ok := domain.ParseOrderStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status "+raw, http.StatusBadRequest))
			return services.OrderListFilter{}, false
		}
		filter.Status = append(filter.Status, status)
	}
	if raw := strings.TrimSpace(query.Get("payment_status")); raw != "" {
		status, ok := domain.ParsePaymentStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown payment status "+raw, http.StatusBadRequest))
			return services.OrderListFilter{}, false
		}
		filter.PaymentStatus = &status
	}
	return filter, true
}
