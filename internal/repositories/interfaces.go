package repositories

import (
	"context"
	"time"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Categories() CategoryRepository
	Carts() CartRepository
	Orders() OrderRepository
	Customers() CustomerRepository
	Reviews() ReviewRepository
	Wishlists() WishlistRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork groups repository calls into one atomic boundary. Repositories invoked with the
// ctx passed to fn take part in the transaction; reads must precede writes.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository persists catalog products.
type ProductRepository interface {
	Get(ctx context.Context, productID string) (domain.Product, error)
	List(ctx context.Context, filter ProductFilter) (domain.CursorPage[domain.Product], error)
	Save(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	CountByCategory(ctx context.Context, categoryID string) (int64, error)
}

// CategoryRepository persists product categories.
type CategoryRepository interface {
	Get(ctx context.Context, categoryID string) (domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	Save(ctx context.Context, category domain.Category) error
	Delete(ctx context.Context, categoryID string) error
}

// CartRepository stores carts keyed by session cart key (user:<uid> or guest:<sid>).
type CartRepository interface {
	Get(ctx context.Context, cartKey string) (domain.Cart, error)
	Save(ctx context.Context, cartKey string, cart domain.Cart) error
	Delete(ctx context.Context, cartKey string) error
	DeleteStaleGuests(ctx context.Context, before time.Time, limit int) (int, error)
}

// OrderRepository persists placed orders.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// CustomerRepository persists customer profiles and their embedded loyalty ledger.
type CustomerRepository interface {
	Get(ctx context.Context, customerID string) (domain.Customer, error)
	Save(ctx context.Context, customer domain.Customer) error
	List(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[domain.Customer], error)
}

// ReviewRepository persists product reviews.
type ReviewRepository interface {
	Insert(ctx context.Context, review domain.Review) error
	Update(ctx context.Context, review domain.Review) error
	Get(ctx context.Context, reviewID string) (domain.Review, error)
	Delete(ctx context.Context, reviewID string) error
	FindByProductAndCustomer(ctx context.Context, productID, customerID string) (domain.Review, error)
	List(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[domain.Review], error)
	// VisibleRatings returns the ratings of every visible review of the product.
	VisibleRatings(ctx context.Context, productID string) ([]int, error)
}

// WishlistRepository stores one wishlist document per customer.
type WishlistRepository interface {
	Get(ctx context.Context, customerID string) (domain.Wishlist, error)
	Save(ctx context.Context, wishlist domain.Wishlist) error
}

// HealthRepository probes the backing dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// ProductFilter narrows catalog listings. Search is matched against the folded search key.
type ProductFilter struct {
	CategoryID string
	Status     *domain.ProductStatus
	Search     string
	MinPrice   *int64
	MaxPrice   *int64
	Sort       domain.ProductSort
	Order      domain.SortOrder
	Pagination domain.Pagination
}

// OrderListFilter narrows order listings. An empty CustomerID lists every customer's orders.
type OrderListFilter struct {
	CustomerID    string
	Status        []domain.OrderStatus
	PaymentStatus *domain.PaymentStatus
	// DisplayCode matches the trailing characters of the order id.
	DisplayCode string
	Placed      domain.RangeQuery[time.Time]
	Pagination  domain.Pagination
}

// CustomerListFilter narrows admin customer listings.
type CustomerListFilter struct {
	Search     string
	Tier       *domain.Tier
	Pagination domain.Pagination
}

// ReviewListFilter narrows review listings.
type ReviewListFilter struct {
	ProductID  string
	CustomerID string
	Status     *domain.ReviewStatus
	Pagination domain.Pagination
}
