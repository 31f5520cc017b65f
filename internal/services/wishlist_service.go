package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var (
	// ErrWishlistInvalidInput indicates missing identifiers.
	ErrWishlistInvalidInput = errors.New("wishlist: invalid input")
	// ErrWishlistProductNotFound indicates the product does not exist or is not published.
	ErrWishlistProductNotFound = errors.New("wishlist: product not found")
	// ErrWishlistFull indicates the wishlist reached its size limit.
	ErrWishlistFull = errors.New("wishlist: full")
	// ErrWishlistUnavailable indicates the wishlist store failed.
	ErrWishlistUnavailable = errors.New("wishlist: unavailable")
)

const maxWishlistItems = 100

// WishlistServiceDeps wires the wishlist service.
type WishlistServiceDeps struct {
	Wishlists repositories.WishlistRepository
	Products  repositories.ProductRepository
	Clock     func() time.Time
	Logger    Logger
}

type wishlistService struct {
	wishlists repositories.WishlistRepository
	products  repositories.ProductRepository
	now       func() time.Time
	logger    Logger
}

var _ WishlistService = (*wishlistService)(nil)

// NewWishlistService constructs a WishlistService.
func NewWishlistService(deps WishlistServiceDeps) (WishlistService, error) {
	if deps.Wishlists == nil {
		return nil, errors.New("wishlist service: wishlist repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("wishlist service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &wishlistService{
		wishlists: deps.Wishlists,
		products:  deps.Products,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// List resolves saved products in the order they were added, most recent first. Products that
// were deleted or unpublished are skipped.
func (s *wishlistService) List(ctx context.Context, customerID string) ([]Product, error) {
	wishlist, err := s.load(ctx, customerID)
	if err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(wishlist.ProductIDs))
	for i := len(wishlist.ProductIDs) - 1; i >= 0; i-- {
		product, err := s.products.Get(ctx, wishlist.ProductIDs[i])
		if err != nil {
			if isRepoNotFound(err) {
				continue
			}
			return nil, s.mapError(ctx, "wishlist.product_failed", err)
		}
		if product.Status == domain.ProductStatusPublish {
			products = append(products, product)
		}
	}
	return products, nil
}

func (s *wishlistService) Add(ctx context.Context, customerID, productID string) (Wishlist, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Wishlist{}, ErrWishlistInvalidInput
	}
	wishlist, err := s.load(ctx, customerID)
	if err != nil {
		return Wishlist{}, err
	}
	if slices.Contains(wishlist.ProductIDs, productID) {
		return wishlist, nil
	}
	if len(wishlist.ProductIDs) >= maxWishlistItems {
		return Wishlist{}, ErrWishlistFull
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return Wishlist{}, ErrWishlistProductNotFound
		}
		return Wishlist{}, s.mapError(ctx, "wishlist.product_failed", err)
	}
	if product.Status != domain.ProductStatusPublish {
		return Wishlist{}, ErrWishlistProductNotFound
	}
	wishlist.ProductIDs = append(slices.Clone(wishlist.ProductIDs), productID)
	return s.save(ctx, wishlist)
}

func (s *wishlistService) Remove(ctx context.Context, customerID, productID string) (Wishlist, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Wishlist{}, ErrWishlistInvalidInput
	}
	wishlist, err := s.load(ctx, customerID)
	if err != nil {
		return Wishlist{}, err
	}
	idx := slices.Index(wishlist.ProductIDs, productID)
	if idx < 0 {
		return wishlist, nil
	}
	wishlist.ProductIDs = slices.Delete(slices.Clone(wishlist.ProductIDs), idx, idx+1)
	return s.save(ctx, wishlist)
}

func (s *wishlistService) Contains(ctx context.Context, customerID, productID string) (bool, error) {
	wishlist, err := s.load(ctx, customerID)
	if err != nil {
		return false, err
	}
	return slices.Contains(wishlist.ProductIDs, strings.TrimSpace(productID)), nil
}

func (s *wishlistService) load(ctx context.Context, customerID string) (Wishlist, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return Wishlist{}, ErrWishlistInvalidInput
	}
	wishlist, err := s.wishlists.Get(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return Wishlist{CustomerID: id}, nil
		}
		return Wishlist{}, s.mapError(ctx, "wishlist.get_failed", err)
	}
	wishlist.CustomerID = id
	return wishlist, nil
}

func (s *wishlistService) save(ctx context.Context, wishlist Wishlist) (Wishlist, error) {
	wishlist.UpdatedAt = s.now()
	if err := s.wishlists.Save(ctx, wishlist); err != nil {
		return Wishlist{}, s.mapError(ctx, "wishlist.save_failed", err)
	}
	return wishlist, nil
}

func (s *wishlistService) mapError(ctx context.Context, event string, err error) error {
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrWishlistUnavailable, err)
}
