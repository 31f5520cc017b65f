package domain

import (
	"sort"
	"strings"
)

// OrderStatus enumerates the lifecycle states an order can be in.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusReadyToPickup  OrderStatus = "ready-to-pickup"
	OrderStatusDispatched     OrderStatus = "dispatched"
	OrderStatusOutForDelivery OrderStatus = "out-for-delivery"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRefunded       OrderStatus = "refunded"
	OrderStatusReturned       OrderStatus = "returned"
)

// StatusPresentation is the single source for how a status is labelled, coloured and ranked.
type StatusPresentation struct {
	Label string
	Color string
	// Rank is the position on the canonical pending → processing → shipped → delivered
	// timeline. Statuses outside that sequence carry 0.
	Rank     int
	Terminal bool
}

var orderStatusTable = map[OrderStatus]StatusPresentation{
	OrderStatusPending:        {Label: "Pending", Color: "#f59e0b", Rank: 0},
	OrderStatusProcessing:     {Label: "Processing", Color: "#3b82f6", Rank: 1},
	OrderStatusReadyToPickup:  {Label: "Ready to pickup", Color: "#6366f1", Rank: 2},
	OrderStatusDispatched:     {Label: "Dispatched", Color: "#06b6d4", Rank: 2},
	OrderStatusOutForDelivery: {Label: "Out for delivery", Color: "#14b8a6", Rank: 2},
	OrderStatusShipped:        {Label: "Shipped", Color: "#8b5cf6", Rank: 2},
	OrderStatusDelivered:      {Label: "Delivered", Color: "#22c55e", Rank: 3},
	OrderStatusCancelled:      {Label: "Cancelled", Color: "#ef4444", Rank: 0, Terminal: true},
	OrderStatusRefunded:       {Label: "Refunded", Color: "#6b7280", Rank: 3, Terminal: true},
	OrderStatusReturned:       {Label: "Returned", Color: "#f97316", Rank: 0, Terminal: true},
}

var orderStatusAliases = map[string]OrderStatus{
	"readytopickup":  OrderStatusReadyToPickup,
	"ready":          OrderStatusReadyToPickup,
	"canceled":       OrderStatusCancelled,
	"outfordelivery": OrderStatusOutForDelivery,
}

// ParseOrderStatus maps free-form input onto the closed status set. Case, surrounding space,
// underscores and spaces are ignored. Unknown input yields pending with ok=false.
func ParseOrderStatus(raw string) (OrderStatus, bool) {
	key := normaliseStatusKey(raw)
	if key == "" {
		return OrderStatusPending, false
	}
	if _, ok := orderStatusTable[OrderStatus(key)]; ok {
		return OrderStatus(key), true
	}
	if alias, ok := orderStatusAliases[key]; ok {
		return alias, true
	}
	return OrderStatusPending, false
}

// Presentation returns the label/colour/rank entry for the status. Unknown values fall back to
// the pending entry so callers always have something to render.
func (s OrderStatus) Presentation() StatusPresentation {
	if p, ok := orderStatusTable[s]; ok {
		return p
	}
	return orderStatusTable[OrderStatusPending]
}

// Valid reports whether s is a member of the closed set.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTable[s]
	return ok
}

// IsTerminal reports whether no further status changes are accepted.
func (s OrderStatus) IsTerminal() bool {
	return s.Presentation().Terminal
}

// IsShippingStage reports whether the status is one of the in-transit aliases of "shipped".
func (s OrderStatus) IsShippingStage() bool {
	switch s {
	case OrderStatusReadyToPickup, OrderStatusDispatched, OrderStatusOutForDelivery, OrderStatusShipped:
		return true
	}
	return false
}

// OrderStatuses lists the closed set ordered by rank then name.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(orderStatusTable))
	for status := range orderStatusTable {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := orderStatusTable[out[i]], orderStatusTable[out[j]]
		if ri.Terminal != rj.Terminal {
			return !ri.Terminal
		}
		if ri.Rank != rj.Rank {
			return ri.Rank < rj.Rank
		}
		return out[i] < out[j]
	})
	return out
}

// PaymentStatus tracks settlement of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "Pending"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusFailed   PaymentStatus = "Failed"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

var paymentStatusTable = map[PaymentStatus]StatusPresentation{
	PaymentStatusPending:  {Label: "Pending", Color: "#f59e0b"},
	PaymentStatusPaid:     {Label: "Paid", Color: "#22c55e"},
	PaymentStatusFailed:   {Label: "Failed", Color: "#ef4444", Terminal: true},
	PaymentStatusRefunded: {Label: "Refunded", Color: "#6b7280", Terminal: true},
}

// ParsePaymentStatus maps case-insensitive input onto the closed set; unknown yields Pending.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	for status := range paymentStatusTable {
		if strings.ToLower(string(status)) == key {
			return status, true
		}
	}
	return PaymentStatusPending, false
}

// Presentation returns the label/colour entry for the payment status.
func (s PaymentStatus) Presentation() StatusPresentation {
	if p, ok := paymentStatusTable[s]; ok {
		return p
	}
	return paymentStatusTable[PaymentStatusPending]
}

// PaymentStatuses lists the closed payment status set in settlement order.
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded}
}

// PaymentMethod is how the customer pays for an order.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
	PaymentMethodCard         PaymentMethod = "card"
)

// ParsePaymentMethod accepts the closed set plus common spellings.
func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	switch normaliseStatusKey(raw) {
	case "cod", "cash", "cash-on-delivery":
		return PaymentMethodCOD, true
	case "bank-transfer", "bank", "banktransfer", "transfer":
		return PaymentMethodBankTransfer, true
	case "card", "credit-card", "stripe":
		return PaymentMethodCard, true
	}
	return "", false
}

// ProductStatus controls catalog visibility.
type ProductStatus string

const (
	ProductStatusPublish  ProductStatus = "Publish"
	ProductStatusDraft    ProductStatus = "Draft"
	ProductStatusInactive ProductStatus = "Inactive"
)

// ParseProductStatus maps case-insensitive input onto the closed set; unknown yields Draft.
func ParseProductStatus(raw string) (ProductStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "publish", "published":
		return ProductStatusPublish, true
	case "draft":
		return ProductStatusDraft, true
	case "inactive":
		return ProductStatusInactive, true
	}
	return ProductStatusDraft, false
}

func normaliseStatusKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	return key
}
