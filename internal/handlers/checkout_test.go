package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/idempotency"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const checkoutBody = `{
	"shipping_address": {"full_name": "Nguyen Van A", "phone": "0901234567", "line1": "12 Le Loi", "city": "HCMC"},
	"payment_method": "cod",
	"points_to_use": 5
}`

func newCheckoutRouter(h *CheckoutHandlers, uid string) http.Handler {
	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(withCustomer(r.Context(), uid)))
		})
	})
	router.Route("/checkout", h.Routes)
	return router
}

func placedOrder(id string) services.Order {
	earned := int64(12)
	return services.Order{
		ID:            id,
		CustomerID:    "u1",
		Currency:      "VND",
		Subtotal:      100000,
		ShippingFee:   20000,
		Discount:      5000,
		Total:         115000,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		Status:        domain.OrderStatusPending,
		PointsEarned:  &earned,
		PointsUsed:    5,
		CreatedAt:     time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCheckoutPlaceOrder(t *testing.T) {
	var captured services.PlaceOrderCommand
	var session services.Session
	checkout := &stubCheckoutService{
		placeFn: func(ctx context.Context, s services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error) {
			session, captured = s, cmd
			return services.CheckoutResult{Order: placedOrder("ord_01hzabc123")}, nil
		},
	}
	router := newCheckoutRouter(NewCheckoutHandlers(nil, newTestSessions(t), checkout, nil), "u1")

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody))
	req.Header.Set("Idempotency-Key", "key-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Location") != "/api/v1/me/orders/ord_01hzabc123" {
		t.Fatalf("unexpected location %q", rec.Header().Get("Location"))
	}
	if session.CustomerID != "u1" {
		t.Fatalf("unexpected session %+v", session)
	}
	if captured.PaymentMethod != domain.PaymentMethodCOD || captured.PointsToUse != 5 || captured.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected command %+v", captured)
	}
	if captured.Email != "u1@example.com" {
		t.Fatalf("expected identity email fallback, got %q", captured.Email)
	}
	if captured.ShippingAddress.FullName != "Nguyen Van A" || captured.ShippingAddress.City != "HCMC" {
		t.Fatalf("unexpected address %+v", captured.ShippingAddress)
	}

	order, _ := decodeBody(t, rec)["order"].(map[string]any)
	if order["display_code"] != "#ABC123" {
		t.Fatalf("unexpected display code %v", order["display_code"])
	}
	if order["points_earned"] != float64(12) {
		t.Fatalf("unexpected points earned %v", order["points_earned"])
	}
	status, _ := order["status"].(map[string]any)
	if status["value"] != "pending" || status["label"] != "Pending" {
		t.Fatalf("unexpected status %v", status)
	}
}

func TestCheckoutCardReturnsRedirect(t *testing.T) {
	checkout := &stubCheckoutService{
		placeFn: func(ctx context.Context, s services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error) {
			order := placedOrder("ord_card01")
			order.PaymentMethod = domain.PaymentMethodCard
			return services.CheckoutResult{Order: order, RedirectURL: "https://checkout.stripe.test/cs_1", SessionID: "cs_1"}, nil
		},
	}
	router := newCheckoutRouter(NewCheckoutHandlers(nil, newTestSessions(t), checkout, nil), "u1")

	body := strings.Replace(checkoutBody, `"cod"`, `"card"`, 1)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	resp := decodeBody(t, rec)
	if resp["redirect_url"] != "https://checkout.stripe.test/cs_1" || resp["session_id"] != "cs_1" {
		t.Fatalf("unexpected response %v", resp)
	}
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{err: services.ErrCheckoutEmptyCart, status: http.StatusBadRequest, code: "cart_empty"},
		{err: services.ErrCustomerBlocked, status: http.StatusForbidden, code: "customer_blocked"},
		{err: services.ErrCheckoutInsufficientStock, status: http.StatusConflict, code: "insufficient_stock"},
		{err: services.ErrCheckoutPaymentFailed, status: http.StatusBadGateway, code: "payment_failed"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		checkout := &stubCheckoutService{
			placeFn: func(ctx context.Context, s services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error) {
				return services.CheckoutResult{}, tc.err
			},
		}
		router := newCheckoutRouter(NewCheckoutHandlers(nil, newTestSessions(t), checkout, nil), "u1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody)))
		assertErrorCode(t, rec, tc.status, tc.code)
	}
}

func TestCheckoutIdempotentReplay(t *testing.T) {
	calls := 0
	checkout := &stubCheckoutService{
		placeFn: func(ctx context.Context, s services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error) {
			calls++
			return services.CheckoutResult{Order: placedOrder("ord_once01")}, nil
		},
	}
	guard := idempotency.Middleware(idempotency.NewMemoryStore())
	router := newCheckoutRouter(NewCheckoutHandlers(nil, newTestSessions(t), checkout, guard), "u1")

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody))
		req.Header.Set("Idempotency-Key", "same-key")
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: "u1"}))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single order placement, got %d", calls)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(checkoutBody)))
	assertErrorCode(t, rec, http.StatusBadRequest, "idempotency_key_required")
}

func TestCheckoutConfirmPayment(t *testing.T) {
	checkout := &stubCheckoutService{
		confirmFn: func(ctx context.Context, customerID, orderID string) (services.Order, error) {
			if customerID != "u1" || orderID != "ord_card01" {
				t.Fatalf("unexpected confirm %s/%s", customerID, orderID)
			}
			order := placedOrder(orderID)
			order.PaymentStatus = domain.PaymentStatusPaid
			return order, nil
		},
	}
	router := newCheckoutRouter(NewCheckoutHandlers(nil, newTestSessions(t), checkout, nil), "u1")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/checkout/ord_card01/confirm", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	order, _ := decodeBody(t, rec)["order"].(map[string]any)
	payment, _ := order["payment_status"].(map[string]any)
	if payment["value"] != "Paid" {
		t.Fatalf("unexpected payment status %v", payment)
	}
}
