package services

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

// orderReleaser undoes the side effects of placing an order: it puts tracked stock back and
// refunds redeemed points. It must run inside a transaction and only performs its writes after
// every read.
type orderReleaser struct {
	products  repositories.ProductRepository
	customers repositories.CustomerRepository
	newID     func() string
}

type pendingRelease struct {
	products []Product
	customer *Customer
}

// prepare reads the documents release will write.
func (r orderReleaser) prepare(ctx context.Context, order Order) (pendingRelease, error) {
	var pending pendingRelease
	quantities := itemQuantities(order.Items)
	for _, productID := range slices.Sorted(maps.Keys(quantities)) {
		product, err := r.products.Get(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				continue
			}
			return pendingRelease{}, err
		}
		if product.Stock == nil {
			continue
		}
		restored := *product.Stock + quantities[productID]
		product.Stock = &restored
		pending.products = append(pending.products, product)
	}
	if order.PointsUsed > 0 && order.CustomerID != "" {
		customer, err := r.customers.Get(ctx, order.CustomerID)
		if err != nil && !isRepoNotFound(err) {
			return pendingRelease{}, err
		}
		if err == nil {
			pending.customer = &customer
		}
	}
	return pending, nil
}

// apply writes the restored stock and refunded points.
func (r orderReleaser) apply(ctx context.Context, order Order, pending pendingRelease, reason string, now time.Time) error {
	for _, product := range pending.products {
		product.UpdatedAt = now
		if err := r.products.Save(ctx, product); err != nil {
			return err
		}
	}
	if pending.customer != nil {
		customer := *pending.customer
		customer.Loyalty = commerce.RefundPoints(customer.Loyalty, order.PointsUsed, commerce.EntryRef{
			ID:      r.newID(),
			OrderID: order.ID,
			Reason:  reason,
			At:      now,
		})
		customer.UpdatedAt = now
		if err := r.customers.Save(ctx, customer); err != nil {
			return err
		}
	}
	return nil
}

func itemQuantities(items []domain.OrderItem) map[string]int {
	out := make(map[string]int, len(items))
	for _, item := range items {
		out[item.ProductID] += max(item.Quantity, 1)
	}
	return out
}

// appendActivity records a status change on the order's explicit timeline. An order without
// explicit activity is first seeded with the timeline derived from its current status, so the
// history shown to the customer stays continuous.
func appendActivity(order Order, status domain.OrderStatus, note string, at time.Time) []domain.ShippingActivity {
	base := commerce.DeriveShippingTimeline(string(order.Status), order.CreatedAt, order.Activity)
	return append(base, commerce.ActivityFor(status, note, at))
}
