package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const maxAdminRequestBody = 8 * 1024

// AdminOperationsHandlers cover order fulfilment, customer management, loyalty adjustments and
// review moderation for staff.
type AdminOperationsHandlers struct {
	orders    services.OrderService
	customers services.CustomerService
	loyalty   services.LoyaltyService
	reviews   services.ReviewService
}

// NewAdminOperationsHandlers constructs the staff back-office handlers. Nil services answer 503.
func NewAdminOperationsHandlers(orders services.OrderService, customers services.CustomerService, loyalty services.LoyaltyService, reviews services.ReviewService) *AdminOperationsHandlers {
	return &AdminOperationsHandlers{
		orders:    orders,
		customers: customers,
		loyalty:   loyalty,
		reviews:   reviews,
	}
}

// Routes registers admin order, customer and review endpoints.
func (h *AdminOperationsHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderID}", h.getOrder)
	r.Put("/orders/{orderID}/status", h.updateOrderStatus)
	r.Put("/orders/{orderID}/payment-status", h.updatePaymentStatus)

	r.Get("/customers", h.listCustomers)
	r.Get("/customers/{customerID}", h.getCustomer)
	r.Patch("/customers/{customerID}", h.updateCustomer)
	r.Get("/customers/{customerID}/loyalty", h.getLoyalty)
	r.Post("/customers/{customerID}/loyalty", h.adjustLoyalty)

	r.Get("/reviews", h.listReviews)
	r.Put("/reviews/{reviewID}/visibility", h.setReviewVisibility)
	r.Delete("/reviews/{reviewID}", h.deleteReview)
}

func (h *AdminOperationsHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	filter, ok := parseOrderFilter(w, r)
	if !ok {
		return
	}
	page, err := h.orders.ListAllOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderList(page))
}

func (h *AdminOperationsHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	order, err := h.orders.AdminGetOrder(ctx, urlParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *AdminOperationsHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	var req updateOrderStatusRequest
	if err := httpx.DecodeJSON(r, maxAdminRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	status, ok := domain.ParseOrderStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown order status", http.StatusBadRequest))
		return
	}
	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: urlParam(r, "orderID"),
		Status:  status,
		Note:    req.Note,
		ActorID: actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type updatePaymentStatusRequest struct {
	Status string `json:"status"`
}

func (h *AdminOperationsHandlers) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	var req updatePaymentStatusRequest
	if err := httpx.DecodeJSON(r, maxAdminRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	status, ok := domain.ParsePaymentStatus(req.Status)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown payment status", http.StatusBadRequest))
		return
	}
	order, err := h.orders.UpdatePaymentStatus(ctx, services.UpdatePaymentStatusCommand{
		OrderID: urlParam(r, "orderID"),
		Status:  status,
		ActorID: actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"order": buildOrderPayload(order)})
}

type customerListResponse struct {
	Items         []customerPayload `json:"items"`
	NextPageToken string            `json:"next_page_token,omitempty"`
}

func (h *AdminOperationsHandlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeUnavailable(ctx, w, "customer")
		return
	}
	pager, ok := parsePagination(ctx, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.CustomerListFilter{
		Search:     strings.TrimSpace(firstQuery(query.Get("q"), query.Get("search"))),
		Pagination: pager,
	}
	if raw := strings.TrimSpace(query.Get("tier")); raw != "" {
		tier, ok := parseTier(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tier must be one of bronze, silver, gold, platinum", http.StatusBadRequest))
			return
		}
		filter.Tier = &tier
	}
	page, err := h.customers.ListCustomers(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]customerPayload, 0, len(page.Items))
	for _, c := range page.Items {
		items = append(items, buildCustomerPayload(c))
	}
	writeJSONResponse(w, http.StatusOK, customerListResponse{Items: items, NextPageToken: page.NextPageToken})
}

func (h *AdminOperationsHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeUnavailable(ctx, w, "customer")
		return
	}
	customer, err := h.customers.GetCustomer(ctx, urlParam(r, "customerID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"customer": buildCustomerPayload(customer)})
}

type updateCustomerRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Blocked *bool   `json:"blocked"`
}

func (h *AdminOperationsHandlers) updateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.customers == nil {
		writeUnavailable(ctx, w, "customer")
		return
	}
	var req updateCustomerRequest
	if err := httpx.DecodeJSON(r, maxAdminRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	customer, err := h.customers.UpdateCustomer(ctx, services.UpdateCustomerCommand{
		CustomerID: urlParam(r, "customerID"),
		Name:       req.Name,
		Phone:      req.Phone,
		Blocked:    req.Blocked,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"customer": buildCustomerPayload(customer)})
}

func (h *AdminOperationsHandlers) getLoyalty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.loyalty == nil {
		writeUnavailable(ctx, w, "loyalty")
		return
	}
	summary, err := h.loyalty.Summary(ctx, urlParam(r, "customerID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"loyalty": buildLoyaltyPayload(summary)})
}

type adjustLoyaltyRequest struct {
	Delta  int64  `json:"delta"`
	Reason string `json:"reason"`
}

func (h *AdminOperationsHandlers) adjustLoyalty(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.loyalty == nil {
		writeUnavailable(ctx, w, "loyalty")
		return
	}
	var req adjustLoyaltyRequest
	if err := httpx.DecodeJSON(r, maxAdminRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	summary, err := h.loyalty.Adjust(ctx, services.AdjustLoyaltyCommand{
		CustomerID: urlParam(r, "customerID"),
		Delta:      req.Delta,
		Reason:     req.Reason,
		ActorID:    actorID(ctx),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"loyalty": buildLoyaltyPayload(summary)})
}

func (h *AdminOperationsHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	pager, ok := parsePagination(ctx, w, r)
	if !ok {
		return
	}
	query := r.URL.Query()
	filter := services.ReviewListFilter{
		ProductID:  strings.TrimSpace(query.Get("product_id")),
		Pagination: pager,
	}
	if raw := strings.ToLower(strings.TrimSpace(query.Get("status"))); raw != "" {
		status := domain.ReviewStatus(raw)
		if status != domain.ReviewVisible && status != domain.ReviewHidden {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be visible or hidden", http.StatusBadRequest))
			return
		}
		filter.Status = &status
	}
	page, err := h.reviews.ListAll(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReviewList(page, true))
}

type reviewVisibilityRequest struct {
	Visible *bool `json:"visible"`
}

func (h *AdminOperationsHandlers) setReviewVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	var req reviewVisibilityRequest
	if err := httpx.DecodeJSON(r, maxAdminRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	if req.Visible == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "visible is required", http.StatusBadRequest))
		return
	}
	review, err := h.reviews.SetVisibility(ctx, urlParam(r, "reviewID"), *req.Visible)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"review": buildReviewPayload(review, true)})
}

func (h *AdminOperationsHandlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	if err := h.reviews.Delete(ctx, urlParam(r, "reviewID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseTier(raw string) (domain.Tier, bool) {
	switch tier := domain.Tier(strings.ToLower(strings.TrimSpace(raw))); tier {
	case domain.TierBronze, domain.TierSilver, domain.TierGold, domain.TierPlatinum:
		return tier, true
	}
	return "", false
}
