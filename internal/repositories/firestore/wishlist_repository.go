package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const wishlistCollection = "wishlists"

// WishlistRepository keeps one document per customer listing saved product ids.
type WishlistRepository struct {
	base *pfirestore.BaseRepository[wishlistDocument]
}

var _ repositories.WishlistRepository = (*WishlistRepository)(nil)

type wishlistDocument struct {
	ProductIDs []string  `firestore:"productIds"`
	UpdatedAt  time.Time `firestore:"updatedAt"`
}

// NewWishlistRepository constructs a Firestore-backed wishlist repository.
func NewWishlistRepository(provider *pfirestore.Provider) (*WishlistRepository, error) {
	if provider == nil {
		return nil, errors.New("wishlist repository requires firestore provider")
	}
	return &WishlistRepository{
		base: pfirestore.NewBaseRepository[wishlistDocument](provider, wishlistCollection, nil, nil),
	}, nil
}

func (r *WishlistRepository) Get(ctx context.Context, customerID string) (domain.Wishlist, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Wishlist{}, err
	}
	return domain.Wishlist{
		CustomerID: doc.ID,
		ProductIDs: doc.Data.ProductIDs,
		UpdatedAt:  doc.Data.UpdatedAt,
	}, nil
}

func (r *WishlistRepository) Save(ctx context.Context, wishlist domain.Wishlist) error {
	id := strings.TrimSpace(wishlist.CustomerID)
	if id == "" {
		return errors.New("wishlist repository: customer id is required")
	}
	ids := wishlist.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return r.base.Set(ctx, id, wishlistDocument{ProductIDs: ids, UpdatedAt: wishlist.UpdatedAt.UTC()})
}
