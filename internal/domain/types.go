package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// ProductSort indicates the field used to order catalog listings.
type ProductSort string

const (
	ProductSortNewest ProductSort = "newest"
	ProductSortPrice  ProductSort = "price"
	ProductSortName   ProductSort = "name"
	ProductSortRating ProductSort = "rating"
)

// Product is a sellable catalog entry. Prices are integer minor units.
type Product struct {
	ID            string
	Name          string
	Slug          string
	Description   string
	CategoryID    string
	BasePrice     int64
	Currency      string
	VariantGroups []VariantGroup
	// Stock is nil when the quantity on hand is not tracked.
	Stock       *int
	Status      ProductStatus
	Images      []string
	Tags        []string
	RatingAvg   float64
	RatingCount int
	SearchKey   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VariantGroup is a named axis of differentiation such as size or milk.
type VariantGroup struct {
	Name    string
	Options []VariantOption
}

// VariantOption is a selectable choice inside a VariantGroup.
type VariantOption struct {
	Label      string
	PriceDelta int64
}

// Category groups products for browsing.
type Category struct {
	ID          string
	Name        string
	Slug        string
	Description string
	SortOrder   int
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// VariantChoice snapshots the selected option of one variant group.
type VariantChoice struct {
	Name  string
	Value string
	Index int
}

// CartLine is a snapshot of a product placed in a cart. UnitPrice is captured when the line is
// added and never re-derived from the live product.
type CartLine struct {
	ID        string
	ProductID string
	Name      string
	Image     string
	UnitPrice int64
	Quantity  int
	Variants  []VariantChoice
	AddedAt   time.Time
	UpdatedAt time.Time
}

// Cart holds the lines for a signed-in customer or a guest session.
type Cart struct {
	ID         string
	CustomerID string
	GuestID    string
	Currency   string
	Lines      []CartLine
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OrderItem is the immutable snapshot of a cart line at checkout.
type OrderItem struct {
	ProductID string
	Name      string
	Image     string
	UnitPrice int64
	Quantity  int
	Variants  []VariantChoice
}

// ShippingActivity is a timeline entry for order fulfilment.
type ShippingActivity struct {
	Status      string
	Description string
	Date        string
	Time        string
	Completed   bool
}

// Address is the delivery destination captured on an order.
type Address struct {
	FullName   string
	Phone      string
	Line1      string
	Line2      string
	Ward       string
	District   string
	City       string
	PostalCode string
	Country    string
}

// Order is created once at checkout. Status and ShippingActivity are the only fields mutated
// afterwards; PaymentStatus follows the payment provider.
type Order struct {
	ID              string
	CustomerID      string
	CustomerEmail   string
	Items           []OrderItem
	Currency        string
	Subtotal        int64
	ShippingFee     int64
	Discount        int64
	Tax             int64
	Total           int64
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentIntentID string
	Status          OrderStatus
	Activity        []ShippingActivity
	PointsEarned    *int64
	PointsUsed      int64
	PointsCredited  bool
	ShippingAddress Address
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CanceledAt      *time.Time
	DeliveredAt     *time.Time
}

// Loyalty is the points ledger embedded in a customer document.
type Loyalty struct {
	CurrentPoints int64
	TotalEarned   int64
	Tier          Tier
	History       []LoyaltyEntry
}

// LoyaltyEntryType separates credits from debits in the ledger history.
type LoyaltyEntryType string

const (
	LoyaltyEarned   LoyaltyEntryType = "earned"
	LoyaltyRedeemed LoyaltyEntryType = "redeemed"
	// LoyaltyRefunded returns previously redeemed points, e.g. when an order is cancelled.
	LoyaltyRefunded LoyaltyEntryType = "refunded"
	// LoyaltyReversed takes back points credited for an order that was later refunded.
	LoyaltyReversed LoyaltyEntryType = "reversed"
)

// LoyaltyEntry is one append-only ledger record.
type LoyaltyEntry struct {
	ID        string
	Type      LoyaltyEntryType
	Points    int64
	OrderID   string
	Reason    string
	Timestamp time.Time
}

// Tier is a loyalty level derived from lifetime points.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// Customer is the storefront account profile.
type Customer struct {
	ID        string
	Email     string
	Name      string
	Phone     string
	Blocked   bool
	Loyalty   Loyalty
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReviewStatus controls storefront visibility of a review.
type ReviewStatus string

const (
	ReviewVisible ReviewStatus = "visible"
	ReviewHidden  ReviewStatus = "hidden"
)

// Review is a customer's rating of a product.
type Review struct {
	ID           string
	ProductID    string
	CustomerID   string
	CustomerName string
	Rating       int
	Comment      string
	Status       ReviewStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Wishlist is the set of products a customer saved for later.
type Wishlist struct {
	CustomerID string
	ProductIDs []string
	UpdatedAt  time.Time
}

const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck is the outcome of one dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency probes for the health endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
