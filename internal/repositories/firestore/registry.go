package firestore

import (
	"context"
	"errors"
	"fmt"

	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

// Registry bundles the Firestore repositories behind repositories.Registry. RunInTx binds a
// Firestore transaction to the context so every repository call made with it joins the
// transaction.
type Registry struct {
	provider   *pfirestore.Provider
	products   *ProductRepository
	categories *CategoryRepository
	carts      *CartRepository
	orders     *OrderRepository
	customers  *CustomerRepository
	reviews    *ReviewRepository
	wishlists  *WishlistRepository
	health     repositories.HealthRepository
	txOpts     []pfirestore.TxOption
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds every repository on top of provider. health may be nil when the caller
// does not expose readiness probes.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository, txOpts ...pfirestore.TxOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	reg := &Registry{provider: provider, health: health, txOpts: txOpts}

	var err error
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	if reg.categories, err = NewCategoryRepository(provider); err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, fmt.Errorf("carts: %w", err)
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, fmt.Errorf("orders: %w", err)
	}
	if reg.customers, err = NewCustomerRepository(provider); err != nil {
		return nil, fmt.Errorf("customers: %w", err)
	}
	if reg.reviews, err = NewReviewRepository(provider); err != nil {
		return nil, fmt.Errorf("reviews: %w", err)
	}
	if reg.wishlists, err = NewWishlistRepository(provider); err != nil {
		return nil, fmt.Errorf("wishlists: %w", err)
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Categories() repositories.CategoryRepository { return r.categories }
func (r *Registry) Carts() repositories.CartRepository          { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Customers() repositories.CustomerRepository  { return r.customers }
func (r *Registry) Reviews() repositories.ReviewRepository      { return r.reviews }
func (r *Registry) Wishlists() repositories.WishlistRepository  { return r.wishlists }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }

// RunInTx runs fn in a Firestore transaction. fn may be retried on contention.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return pfirestore.RunInContext(ctx, r.provider, fn, r.txOpts...)
}
