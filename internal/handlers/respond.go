package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/pagination"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	httpx.WriteJSON(w, status, payload)
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

// requireIdentity returns the verified caller or writes 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func actorID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		return strings.TrimSpace(identity.UID)
	}
	return ""
}

func urlParam(r *http.Request, name string) string {
	return strings.TrimSpace(chi.URLParam(r, name))
}

func parsePagination(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	pager, err := pagination.Parse(r.URL.Query(), pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.Pagination{}, false
	}
	return pager, true
}

func parseOptionalInt64(raw string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseFilterValues(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, dup := seen[part]; dup {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

type errorMapping struct {
	target error
	code   string
	status int
}

// serviceErrors maps service sentinels onto the HTTP envelope. Order matters only where
// one error wraps another.
var serviceErrors = []errorMapping{
	{services.ErrSessionRequired, "session_required", http.StatusBadRequest},

	{services.ErrCatalogInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCatalogNotFound, "product_not_found", http.StatusNotFound},
	{services.ErrCategoryInUse, "category_in_use", http.StatusConflict},
	{services.ErrInsufficientStock, "insufficient_stock", http.StatusConflict},
	{services.ErrCatalogUnavailable, "catalog_unavailable", http.StatusServiceUnavailable},

	{services.ErrCartInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCartLineNotFound, "cart_line_not_found", http.StatusNotFound},
	{services.ErrCartProductUnavailable, "product_unavailable", http.StatusConflict},
	{services.ErrCartConflict, "cart_conflict", http.StatusConflict},
	{services.ErrCartUnavailable, "cart_unavailable", http.StatusServiceUnavailable},

	{commerce.ErrInsufficientPoints, "insufficient_points", http.StatusConflict},
	{services.ErrCheckoutInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCheckoutEmptyCart, "cart_empty", http.StatusBadRequest},
	{services.ErrCheckoutProductUnavailable, "product_unavailable", http.StatusConflict},
	{services.ErrCheckoutInsufficientStock, "insufficient_stock", http.StatusConflict},
	{services.ErrCustomerBlocked, "customer_blocked", http.StatusForbidden},
	{services.ErrCheckoutConflict, "checkout_conflict", http.StatusConflict},
	{services.ErrCheckoutInvalidSignature, "invalid_signature", http.StatusBadRequest},
	{payments.ErrInvalidSignature, "invalid_signature", http.StatusBadRequest},
	{services.ErrCheckoutPaymentFailed, "payment_failed", http.StatusBadGateway},
	{services.ErrCheckoutPaymentUnavailable, "payment_unavailable", http.StatusServiceUnavailable},
	{services.ErrCheckoutUnavailable, "checkout_unavailable", http.StatusServiceUnavailable},

	{services.ErrOrderInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrOrderNotFound, "order_not_found", http.StatusNotFound},
	{services.ErrOrderInvalidTransition, "invalid_status_transition", http.StatusConflict},
	{services.ErrOrderConflict, "order_conflict", http.StatusConflict},
	{services.ErrOrderUnavailable, "order_unavailable", http.StatusServiceUnavailable},

	{services.ErrLoyaltyInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrLoyaltyCustomerNotFound, "customer_not_found", http.StatusNotFound},
	{services.ErrLoyaltyConflict, "loyalty_conflict", http.StatusConflict},
	{services.ErrLoyaltyUnavailable, "loyalty_unavailable", http.StatusServiceUnavailable},

	{services.ErrCustomerInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrCustomerNotFound, "customer_not_found", http.StatusNotFound},
	{services.ErrCustomerUnavailable, "customer_unavailable", http.StatusServiceUnavailable},

	{services.ErrReviewInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrReviewNotFound, "review_not_found", http.StatusNotFound},
	{services.ErrReviewExists, "review_exists", http.StatusConflict},
	{services.ErrReviewConflict, "review_conflict", http.StatusConflict},
	{services.ErrReviewUnavailable, "review_unavailable", http.StatusServiceUnavailable},

	{services.ErrWishlistInvalidInput, "invalid_request", http.StatusBadRequest},
	{services.ErrWishlistProductNotFound, "product_not_found", http.StatusNotFound},
	{services.ErrWishlistFull, "wishlist_full", http.StatusConflict},
	{services.ErrWishlistUnavailable, "wishlist_unavailable", http.StatusServiceUnavailable},
}

// writeServiceError writes the envelope for err. Unavailable errors hide their cause.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	for _, m := range serviceErrors {
		if !errors.Is(err, m.target) {
			continue
		}
		message := err.Error()
		if m.status >= http.StatusInternalServerError {
			message = m.target.Error()
		}
		httpx.WriteError(ctx, w, httpx.NewError(m.code, message, m.status))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
}
