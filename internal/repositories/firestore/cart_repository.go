package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists carts as one document per session key with embedded lines.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.CartRepository = (*CartRepository)(nil)

type cartDocument struct {
	CustomerID string             `firestore:"customerId,omitempty"`
	GuestID    string             `firestore:"guestId,omitempty"`
	Guest      bool               `firestore:"guest"`
	Currency   string             `firestore:"currency"`
	Lines      []cartLineDocument `firestore:"lines"`
	ItemsCount int64              `firestore:"itemsCount"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartLineDocument struct {
	ID        string                  `firestore:"id"`
	ProductID string                  `firestore:"productId"`
	Name      string                  `firestore:"name"`
	Image     string                  `firestore:"image,omitempty"`
	UnitPrice int64                   `firestore:"unitPrice"`
	Quantity  int64                   `firestore:"quantity"`
	Variants  []variantChoiceDocument `firestore:"variants,omitempty"`
	AddedAt   time.Time               `firestore:"addedAt"`
	UpdatedAt time.Time               `firestore:"updatedAt"`
}

type variantChoiceDocument struct {
	Name  string `firestore:"name"`
	Value string `firestore:"value"`
	Index int64  `firestore:"index"`
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
	}, nil
}

// Get loads the cart stored under cartKey.
func (r *CartRepository) Get(ctx context.Context, cartKey string) (domain.Cart, error) {
	key := strings.TrimSpace(cartKey)
	doc, err := r.base.Get(ctx, key)
	if err != nil {
		return domain.Cart{}, err
	}
	cart := domain.Cart{
		ID:         doc.ID,
		CustomerID: doc.Data.CustomerID,
		GuestID:    doc.Data.GuestID,
		Currency:   doc.Data.Currency,
		Lines:      make([]domain.CartLine, 0, len(doc.Data.Lines)),
		CreatedAt:  doc.Data.CreatedAt,
		UpdatedAt:  doc.Data.UpdatedAt,
	}
	for _, line := range doc.Data.Lines {
		cart.Lines = append(cart.Lines, domain.CartLine{
			ID:        line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			UnitPrice: line.UnitPrice,
			Quantity:  int(line.Quantity),
			Variants:  decodeVariantChoices(line.Variants),
			AddedAt:   line.AddedAt,
			UpdatedAt: line.UpdatedAt,
		})
	}
	return cart, nil
}

// Save replaces the cart document.
func (r *CartRepository) Save(ctx context.Context, cartKey string, cart domain.Cart) error {
	key := strings.TrimSpace(cartKey)
	if key == "" {
		return errors.New("cart repository: cart key is required")
	}
	doc := cartDocument{
		CustomerID: strings.TrimSpace(cart.CustomerID),
		GuestID:    strings.TrimSpace(cart.GuestID),
		Guest:      strings.TrimSpace(cart.CustomerID) == "",
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Lines:      make([]cartLineDocument, 0, len(cart.Lines)),
		CreatedAt:  cart.CreatedAt.UTC(),
		UpdatedAt:  cart.UpdatedAt.UTC(),
	}
	for _, line := range cart.Lines {
		doc.ItemsCount += int64(line.Quantity)
		doc.Lines = append(doc.Lines, cartLineDocument{
			ID:        line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			UnitPrice: line.UnitPrice,
			Quantity:  int64(line.Quantity),
			Variants:  encodeVariantChoices(line.Variants),
			AddedAt:   line.AddedAt.UTC(),
			UpdatedAt: line.UpdatedAt.UTC(),
		})
	}
	return r.base.Set(ctx, key, doc)
}

// Delete removes the cart document.
func (r *CartRepository) Delete(ctx context.Context, cartKey string) error {
	return r.base.Delete(ctx, strings.TrimSpace(cartKey))
}

// DeleteStaleGuests removes up to limit guest carts untouched since before.
func (r *CartRepository) DeleteStaleGuests(ctx context.Context, before time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("guest", "==", true).
			Where("updatedAt", "<", before.UTC()).
			Limit(limit)
	})
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, doc := range docs {
		if err := r.base.Delete(ctx, doc.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func encodeVariantChoices(choices []domain.VariantChoice) []variantChoiceDocument {
	if len(choices) == 0 {
		return nil
	}
	out := make([]variantChoiceDocument, 0, len(choices))
	for _, c := range choices {
		out = append(out, variantChoiceDocument{Name: c.Name, Value: c.Value, Index: int64(c.Index)})
	}
	return out
}

func decodeVariantChoices(docs []variantChoiceDocument) []domain.VariantChoice {
	if len(docs) == 0 {
		return nil
	}
	out := make([]domain.VariantChoice, 0, len(docs))
	for _, d := range docs {
		out = append(out, domain.VariantChoice{Name: d.Name, Value: d.Value, Index: int(d.Index)})
	}
	return out
}
