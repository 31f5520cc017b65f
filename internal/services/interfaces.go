package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	Category           = domain.Category
	Cart               = domain.Cart
	CartLine           = domain.CartLine
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	PaymentStatus      = domain.PaymentStatus
	Customer           = domain.Customer
	Loyalty            = domain.Loyalty
	Review             = domain.Review
	Wishlist           = domain.Wishlist
	SystemHealthReport = domain.SystemHealthReport
)

// Logger is the structured event hook every service logs through.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// SessionService resolves who a request acts for.
type SessionService interface {
	Resolve(ctx context.Context) (Session, error)
	NewGuestID() string
}

// CatalogService exposes the storefront catalog and its admin maintenance.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListCategories(ctx context.Context) ([]Category, error)

	AdminListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	AdminGetProduct(ctx context.Context, productID string) (Product, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
	BulkUpsertProducts(ctx context.Context, raw []byte) (BulkUpsertResult, error)
	AdjustStock(ctx context.Context, productID string, delta int) (Product, error)
	AdminListCategories(ctx context.Context) ([]Category, error)
	UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error)
	DeleteCategory(ctx context.Context, categoryID string) error
}

// CartService manages the cart of a session.
type CartService interface {
	GetCart(ctx context.Context, session Session) (CartView, error)
	AddItem(ctx context.Context, session Session, cmd AddCartItemCommand) (CartView, error)
	UpdateQuantity(ctx context.Context, session Session, lineID string, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, session Session, lineID string) (CartView, error)
	Clear(ctx context.Context, session Session) error
	MergeGuestCart(ctx context.Context, session Session, guestID string) (CartView, error)
	MergeLines(ctx context.Context, session Session, raw []byte) (CartView, error)
}

// CheckoutService turns a cart into an order and settles its payment.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, session Session, cmd PlaceOrderCommand) (CheckoutResult, error)
	ConfirmPayment(ctx context.Context, customerID, orderID string) (Order, error)
	HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error
}

// OrderService serves order history and fulfilment.
type OrderService interface {
	ListOrders(ctx context.Context, customerID string, filter OrderListFilter) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, customerID, orderID string) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	Timeline(ctx context.Context, customerID, orderID string) ([]domain.ShippingActivity, error)

	ListAllOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	AdminGetOrder(ctx context.Context, orderID string) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error)
}

// LoyaltyService reads and adjusts customer point ledgers.
type LoyaltyService interface {
	Summary(ctx context.Context, customerID string) (LoyaltySummary, error)
	Redeem(ctx context.Context, customerID string, points int64, orderID string) (LoyaltySummary, error)
	Credit(ctx context.Context, customerID string, points int64, orderID string) (LoyaltySummary, error)
	Adjust(ctx context.Context, cmd AdjustLoyaltyCommand) (LoyaltySummary, error)
}

// CustomerService manages customer profiles.
type CustomerService interface {
	EnsureProfile(ctx context.Context, identity CustomerIdentity) (Customer, error)
	ListCustomers(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error)
	GetCustomer(ctx context.Context, customerID string) (Customer, error)
	UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error)
}

// ReviewService handles product reviews and their moderation.
type ReviewService interface {
	Create(ctx context.Context, cmd CreateReviewCommand) (Review, error)
	ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error)
	ListAll(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error)
	SetVisibility(ctx context.Context, reviewID string, visible bool) (Review, error)
	Delete(ctx context.Context, reviewID string) error
}

// WishlistService manages saved products per customer.
type WishlistService interface {
	List(ctx context.Context, customerID string) ([]Product, error)
	Add(ctx context.Context, customerID, productID string) (Wishlist, error)
	Remove(ctx context.Context, customerID, productID string) (Wishlist, error)
	Contains(ctx context.Context, customerID, productID string) (bool, error)
}

// SystemService reports health and runs maintenance.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
	Cleanup(ctx context.Context) (CleanupResult, error)
}

// Order events published after state changes commit.
const (
	OrderEventCreated       = "order.created"
	OrderEventStatusChanged = "order.status_changed"
	OrderEventPaymentStatus = "order.payment_status_changed"
)

// OrderEvent is the message published for downstream consumers (notifications, analytics).
type OrderEvent struct {
	Type           string             `json:"type"`
	OrderID        string             `json:"orderId"`
	DisplayCode    string             `json:"displayCode"`
	CustomerID     string             `json:"customerId"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previousStatus,omitempty"`
	PaymentStatus  string             `json:"paymentStatus,omitempty"`
	Total          int64              `json:"total"`
	Currency       string             `json:"currency"`
	OccurredAt     time.Time          `json:"occurredAt"`
}

// OrderEventPublisher delivers order events. Publishing failures never roll back the order.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) (string, error)
}

// ProductListFilter narrows catalog listings. Status is honoured on admin listings only.
type ProductListFilter struct {
	CategoryID string
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Sort       domain.ProductSort
	Order      domain.SortOrder
	Status     *domain.ProductStatus
	Pagination Pagination
}

// UpsertProductCommand creates a product when ProductID is empty, else replaces it.
type UpsertProductCommand struct {
	ProductID     string
	Name          string
	Description   string
	CategoryID    string
	BasePrice     int64
	Currency      string
	VariantGroups []domain.VariantGroup
	Stock         *int
	Status        domain.ProductStatus
	Images        []string
	Tags          []string
}

// BulkUpsertResult summarises a bulk product import.
type BulkUpsertResult struct {
	Created  int
	Updated  int
	Skipped  int
	Products []Product
}

// UpsertCategoryCommand creates a category when CategoryID is empty, else replaces it.
type UpsertCategoryCommand struct {
	CategoryID  string
	Name        string
	Description string
	SortOrder   int
	Active      bool
}

// AddCartItemCommand adds a product to the cart. Selection, when set, picks options per variant
// group; otherwise VariantIndex selects on the primary group.
type AddCartItemCommand struct {
	ProductID    string
	VariantIndex int
	Selection    map[string]int
	Quantity     int
}

// CartView is a cart with its price estimate.
type CartView struct {
	Cart     Cart
	Estimate CartEstimate
}

// CartEstimate is the order total the cart would produce today, before points.
type CartEstimate struct {
	Subtotal    int64
	ShippingFee int64
	Discount    int64
	Tax         int64
	Total       int64
	ItemCount   int
}

// PlaceOrderCommand carries the checkout form.
type PlaceOrderCommand struct {
	ShippingAddress domain.Address
	PaymentMethod   domain.PaymentMethod
	PointsToUse     int64
	Note            string
	Email           string
	IdempotencyKey  string
}

// CheckoutResult is the placed order plus, for card payments, where to pay.
type CheckoutResult struct {
	Order       Order
	RedirectURL string
	SessionID   string
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	Status        []domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	Search        string
	Pagination    Pagination
}

// CancelOrderCommand is a customer cancellation request.
type CancelOrderCommand struct {
	CustomerID string
	OrderID    string
	Reason     string
}

// UpdateOrderStatusCommand is an admin status transition.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  domain.OrderStatus
	Note    string
	ActorID string
}

// UpdatePaymentStatusCommand is an admin payment status override.
type UpdatePaymentStatusCommand struct {
	OrderID string
	Status  domain.PaymentStatus
	ActorID string
}

// LoyaltySummary is the customer-facing view of a ledger.
type LoyaltySummary struct {
	CustomerID    string
	CurrentPoints int64
	TotalEarned   int64
	Tier          domain.Tier
	PointsToNext  *int64
	History       []domain.LoyaltyEntry
}

// AdjustLoyaltyCommand is a manual credit (positive) or debit (negative).
type AdjustLoyaltyCommand struct {
	CustomerID string
	Delta      int64
	Reason     string
	ActorID    string
}

// CustomerIdentity is the verified caller used to provision a profile.
type CustomerIdentity struct {
	UID   string
	Email string
	Name  string
}

// CustomerListFilter narrows admin customer listings.
type CustomerListFilter struct {
	Search     string
	Tier       *domain.Tier
	Pagination Pagination
}

// UpdateCustomerCommand patches admin-editable profile fields; nil fields are left unchanged.
type UpdateCustomerCommand struct {
	CustomerID string
	Name       *string
	Phone      *string
	Blocked    *bool
}

// CreateReviewCommand is a customer review submission.
type CreateReviewCommand struct {
	ProductID    string
	CustomerID   string
	CustomerName string
	Rating       int
	Comment      string
}

// ReviewListFilter narrows admin review listings.
type ReviewListFilter struct {
	ProductID  string
	Status     *domain.ReviewStatus
	Pagination Pagination
}

// CleanupResult reports maintenance outcomes.
type CleanupResult struct {
	IdempotencyKeys int
	GuestCarts      int
}

func isRepoNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepoConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

func isRepoUnavailable(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// runInTx runs fn inside uow when one is configured. Tests without a transaction manager run
// fn directly.
func runInTx(ctx context.Context, uow repositories.UnitOfWork, fn func(ctx context.Context) error) error {
	if uow == nil {
		return fn(ctx)
	}
	return uow.RunInTx(ctx, fn)
}
