package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

// Stubs embed the service interface so unexercised methods panic if called.

type stubCatalogService struct {
	services.CatalogService
	listFn        func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error)
	getFn         func(ctx context.Context, productID string) (services.Product, error)
	categoriesFn  func(ctx context.Context) ([]services.Category, error)
	adminListFn   func(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error)
	upsertFn      func(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error)
	deleteFn      func(ctx context.Context, productID string) error
	bulkFn        func(ctx context.Context, raw []byte) (services.BulkUpsertResult, error)
	adjustStockFn func(ctx context.Context, productID string, delta int) (services.Product, error)
	upsertCatFn   func(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error)
	deleteCatFn   func(ctx context.Context, categoryID string) error
}

func (s *stubCatalogService) ListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	return s.listFn(ctx, filter)
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (services.Product, error) {
	return s.getFn(ctx, productID)
}

func (s *stubCatalogService) ListCategories(ctx context.Context) ([]services.Category, error) {
	return s.categoriesFn(ctx)
}

func (s *stubCatalogService) AdminListProducts(ctx context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	return s.adminListFn(ctx, filter)
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	return s.upsertFn(ctx, cmd)
}

func (s *stubCatalogService) DeleteProduct(ctx context.Context, productID string) error {
	return s.deleteFn(ctx, productID)
}

func (s *stubCatalogService) BulkUpsertProducts(ctx context.Context, raw []byte) (services.BulkUpsertResult, error) {
	return s.bulkFn(ctx, raw)
}

func (s *stubCatalogService) AdjustStock(ctx context.Context, productID string, delta int) (services.Product, error) {
	return s.adjustStockFn(ctx, productID, delta)
}

func (s *stubCatalogService) UpsertCategory(ctx context.Context, cmd services.UpsertCategoryCommand) (services.Category, error) {
	return s.upsertCatFn(ctx, cmd)
}

func (s *stubCatalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	return s.deleteCatFn(ctx, categoryID)
}

type stubReviewService struct {
	services.ReviewService
	createFn     func(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error)
	listFn       func(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error)
	listAllFn    func(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error)
	visibilityFn func(ctx context.Context, reviewID string, visible bool) (services.Review, error)
}

func (s *stubReviewService) Create(ctx context.Context, cmd services.CreateReviewCommand) (services.Review, error) {
	return s.createFn(ctx, cmd)
}

func (s *stubReviewService) ListByProduct(ctx context.Context, productID string, pager services.Pagination) (domain.CursorPage[services.Review], error) {
	return s.listFn(ctx, productID, pager)
}

func (s *stubReviewService) ListAll(ctx context.Context, filter services.ReviewListFilter) (domain.CursorPage[services.Review], error) {
	return s.listAllFn(ctx, filter)
}

func (s *stubReviewService) SetVisibility(ctx context.Context, reviewID string, visible bool) (services.Review, error) {
	return s.visibilityFn(ctx, reviewID, visible)
}

type stubCartService struct {
	services.CartService
	getFn        func(ctx context.Context, session services.Session) (services.CartView, error)
	addFn        func(ctx context.Context, session services.Session, cmd services.AddCartItemCommand) (services.CartView, error)
	updateFn     func(ctx context.Context, session services.Session, lineID string, quantity int) (services.CartView, error)
	mergeGuestFn func(ctx context.Context, session services.Session, guestID string) (services.CartView, error)
	mergeLinesFn func(ctx context.Context, session services.Session, raw []byte) (services.CartView, error)
}

func (s *stubCartService) GetCart(ctx context.Context, session services.Session) (services.CartView, error) {
	return s.getFn(ctx, session)
}

func (s *stubCartService) AddItem(ctx context.Context, session services.Session, cmd services.AddCartItemCommand) (services.CartView, error) {
	return s.addFn(ctx, session, cmd)
}

func (s *stubCartService) UpdateQuantity(ctx context.Context, session services.Session, lineID string, quantity int) (services.CartView, error) {
	return s.updateFn(ctx, session, lineID, quantity)
}

func (s *stubCartService) MergeGuestCart(ctx context.Context, session services.Session, guestID string) (services.CartView, error) {
	return s.mergeGuestFn(ctx, session, guestID)
}

func (s *stubCartService) MergeLines(ctx context.Context, session services.Session, raw []byte) (services.CartView, error) {
	return s.mergeLinesFn(ctx, session, raw)
}

type stubCheckoutService struct {
	services.CheckoutService
	placeFn   func(ctx context.Context, session services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error)
	confirmFn func(ctx context.Context, customerID, orderID string) (services.Order, error)
	webhookFn func(ctx context.Context, payload []byte, signature string) error
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, session services.Session, cmd services.PlaceOrderCommand) (services.CheckoutResult, error) {
	return s.placeFn(ctx, session, cmd)
}

func (s *stubCheckoutService) ConfirmPayment(ctx context.Context, customerID, orderID string) (services.Order, error) {
	return s.confirmFn(ctx, customerID, orderID)
}

func (s *stubCheckoutService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	return s.webhookFn(ctx, payload, signature)
}

type stubOrderService struct {
	services.OrderService
	listFn          func(ctx context.Context, customerID string, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	getFn           func(ctx context.Context, customerID, orderID string) (services.Order, error)
	cancelFn        func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	timelineFn      func(ctx context.Context, customerID, orderID string) ([]domain.ShippingActivity, error)
	listAllFn       func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateStatusFn  func(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error)
	updatePaymentFn func(ctx context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error)
}

func (s *stubOrderService) ListOrders(ctx context.Context, customerID string, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listFn(ctx, customerID, filter)
}

func (s *stubOrderService) GetOrder(ctx context.Context, customerID, orderID string) (services.Order, error) {
	return s.getFn(ctx, customerID, orderID)
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	return s.cancelFn(ctx, cmd)
}

func (s *stubOrderService) Timeline(ctx context.Context, customerID, orderID string) ([]domain.ShippingActivity, error) {
	return s.timelineFn(ctx, customerID, orderID)
}

func (s *stubOrderService) ListAllOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	return s.listAllFn(ctx, filter)
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	return s.updateStatusFn(ctx, cmd)
}

func (s *stubOrderService) UpdatePaymentStatus(ctx context.Context, cmd services.UpdatePaymentStatusCommand) (services.Order, error) {
	return s.updatePaymentFn(ctx, cmd)
}

type stubCustomerService struct {
	services.CustomerService
	ensureFn func(ctx context.Context, identity services.CustomerIdentity) (services.Customer, error)
	listFn   func(ctx context.Context, filter services.CustomerListFilter) (domain.CursorPage[services.Customer], error)
	updateFn func(ctx context.Context, cmd services.UpdateCustomerCommand) (services.Customer, error)
}

func (s *stubCustomerService) EnsureProfile(ctx context.Context, identity services.CustomerIdentity) (services.Customer, error) {
	return s.ensureFn(ctx, identity)
}

func (s *stubCustomerService) ListCustomers(ctx context.Context, filter services.CustomerListFilter) (domain.CursorPage[services.Customer], error) {
	return s.listFn(ctx, filter)
}

func (s *stubCustomerService) UpdateCustomer(ctx context.Context, cmd services.UpdateCustomerCommand) (services.Customer, error) {
	return s.updateFn(ctx, cmd)
}

type stubLoyaltyService struct {
	services.LoyaltyService
	summaryFn func(ctx context.Context, customerID string) (services.LoyaltySummary, error)
	adjustFn  func(ctx context.Context, cmd services.AdjustLoyaltyCommand) (services.LoyaltySummary, error)
}

func (s *stubLoyaltyService) Summary(ctx context.Context, customerID string) (services.LoyaltySummary, error) {
	return s.summaryFn(ctx, customerID)
}

func (s *stubLoyaltyService) Adjust(ctx context.Context, cmd services.AdjustLoyaltyCommand) (services.LoyaltySummary, error) {
	return s.adjustFn(ctx, cmd)
}

type stubWishlistService struct {
	services.WishlistService
	listFn     func(ctx context.Context, customerID string) ([]services.Product, error)
	addFn      func(ctx context.Context, customerID, productID string) (services.Wishlist, error)
	removeFn   func(ctx context.Context, customerID, productID string) (services.Wishlist, error)
	containsFn func(ctx context.Context, customerID, productID string) (bool, error)
}

func (s *stubWishlistService) List(ctx context.Context, customerID string) ([]services.Product, error) {
	return s.listFn(ctx, customerID)
}

func (s *stubWishlistService) Add(ctx context.Context, customerID, productID string) (services.Wishlist, error) {
	return s.addFn(ctx, customerID, productID)
}

func (s *stubWishlistService) Remove(ctx context.Context, customerID, productID string) (services.Wishlist, error) {
	return s.removeFn(ctx, customerID, productID)
}

func (s *stubWishlistService) Contains(ctx context.Context, customerID, productID string) (bool, error) {
	return s.containsFn(ctx, customerID, productID)
}

type stubSystemService struct {
	healthFn  func(ctx context.Context) (services.SystemHealthReport, error)
	cleanupFn func(ctx context.Context) (services.CleanupResult, error)
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	return s.healthFn(ctx)
}

func (s *stubSystemService) Cleanup(ctx context.Context) (services.CleanupResult, error) {
	return s.cleanupFn(ctx)
}

func newTestSessions(t *testing.T, ids ...string) services.SessionService {
	t.Helper()
	next := 0
	svc, err := services.NewSessionService(services.SessionServiceDeps{
		IDGenerator: func() string {
			if next < len(ids) {
				next++
				return ids[next-1]
			}
			return "guest-generated"
		},
	})
	if err != nil {
		t.Fatalf("NewSessionService: %v", err)
	}
	return svc
}

func withCustomer(ctx context.Context, uid string, roles ...string) context.Context {
	return auth.WithIdentity(ctx, &auth.Identity{UID: uid, Email: uid + "@example.com", Name: "Customer " + uid, Roles: roles})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return body
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["error"] != code {
		t.Fatalf("expected error %q, got %v", code, body["error"])
	}
}
