package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/pagination"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/textutil"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const productCollection = "products"

// ProductRepository persists catalog products in Firestore.
type ProductRepository struct {
	base *pfirestore.BaseRepository[productDocument]
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

type productDocument struct {
	Name        string                 `firestore:"name"`
	Slug        string                 `firestore:"slug"`
	Description string                 `firestore:"description,omitempty"`
	CategoryID  string                 `firestore:"categoryId"`
	BasePrice   int64                  `firestore:"basePrice"`
	Currency    string                 `firestore:"currency"`
	Variants    []variantGroupDocument `firestore:"variants,omitempty"`
	Stock       *int64                 `firestore:"stock"`
	Status      string                 `firestore:"status"`
	Images      []string               `firestore:"images,omitempty"`
	Tags        []string               `firestore:"tags,omitempty"`
	RatingAvg   float64                `firestore:"ratingAvg"`
	RatingCount int64                  `firestore:"ratingCount"`
	SearchKey   string                 `firestore:"searchKey"`
	CreatedAt   time.Time              `firestore:"createdAt"`
	UpdatedAt   time.Time              `firestore:"updatedAt"`
}

type variantGroupDocument struct {
	Name    string                  `firestore:"name"`
	Options []variantOptionDocument `firestore:"options"`
}

type variantOptionDocument struct {
	Label      string `firestore:"label"`
	PriceDelta int64  `firestore:"priceDelta"`
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		base: pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

// Get loads one product.
func (r *ProductRepository) Get(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return decodeProduct(doc.ID, doc.Data), nil
}

// List applies the equality filters in Firestore and the search, price, and sort options in
// memory. The catalog of a single shop is small enough to scan per request.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		if id := strings.TrimSpace(filter.CategoryID); id != "" {
			q = q.Where("categoryId", "==", id)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	terms := strings.Fields(textutil.Fold(filter.Search))
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		product := decodeProduct(doc.ID, doc.Data)
		if !matchesTerms(product.SearchKey, terms) {
			continue
		}
		if filter.MinPrice != nil && product.BasePrice < *filter.MinPrice {
			continue
		}
		if filter.MaxPrice != nil && product.BasePrice > *filter.MaxPrice {
			continue
		}
		products = append(products, product)
	}
	sortProducts(products, filter.Sort, filter.Order)

	items, next, err := pagination.Window(products, filter.Pagination.PageSize, filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	return domain.CursorPage[domain.Product]{Items: items, NextPageToken: next}, nil
}

// Save upserts the product document.
func (r *ProductRepository) Save(ctx context.Context, product domain.Product) error {
	id := strings.TrimSpace(product.ID)
	if id == "" {
		return errors.New("product repository: product id is required")
	}
	return r.base.Set(ctx, id, encodeProduct(product))
}

// Delete removes the product document.
func (r *ProductRepository) Delete(ctx context.Context, productID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(productID))
}

// CountByCategory counts products referencing the category regardless of status.
func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID string) (int64, error) {
	return r.base.Count(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("categoryId", "==", strings.TrimSpace(categoryID))
	})
}

func matchesTerms(key string, terms []string) bool {
	for _, term := range terms {
		if !strings.Contains(key, term) {
			return false
		}
	}
	return true
}

func sortProducts(products []domain.Product, by domain.ProductSort, order domain.SortOrder) {
	desc := order == domain.SortDesc
	var less func(a, b domain.Product) bool
	switch by {
	case domain.ProductSortPrice:
		less = func(a, b domain.Product) bool { return a.BasePrice < b.BasePrice }
	case domain.ProductSortName:
		less = func(a, b domain.Product) bool { return textutil.Fold(a.Name) < textutil.Fold(b.Name) }
	case domain.ProductSortRating:
		less = func(a, b domain.Product) bool { return a.RatingAvg < b.RatingAvg }
	default:
		// newest first unless asc was requested explicitly
		desc = order != domain.SortAsc
		less = func(a, b domain.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

func encodeProduct(p domain.Product) productDocument {
	doc := productDocument{
		Name:        strings.TrimSpace(p.Name),
		Slug:        strings.TrimSpace(p.Slug),
		Description: p.Description,
		CategoryID:  strings.TrimSpace(p.CategoryID),
		BasePrice:   p.BasePrice,
		Currency:    strings.ToUpper(strings.TrimSpace(p.Currency)),
		Status:      string(p.Status),
		Images:      append([]string(nil), p.Images...),
		Tags:        append([]string(nil), p.Tags...),
		RatingAvg:   p.RatingAvg,
		RatingCount: int64(p.RatingCount),
		SearchKey:   p.SearchKey,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
	if p.Stock != nil {
		stock := int64(*p.Stock)
		doc.Stock = &stock
	}
	for _, group := range p.VariantGroups {
		g := variantGroupDocument{Name: group.Name}
		for _, opt := range group.Options {
			g.Options = append(g.Options, variantOptionDocument{Label: opt.Label, PriceDelta: opt.PriceDelta})
		}
		doc.Variants = append(doc.Variants, g)
	}
	return doc
}

func decodeProduct(id string, doc productDocument) domain.Product {
	status, _ := domain.ParseProductStatus(doc.Status)
	p := domain.Product{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		CategoryID:  doc.CategoryID,
		BasePrice:   doc.BasePrice,
		Currency:    doc.Currency,
		Status:      status,
		Images:      doc.Images,
		Tags:        doc.Tags,
		RatingAvg:   doc.RatingAvg,
		RatingCount: int(doc.RatingCount),
		SearchKey:   doc.SearchKey,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if p.SearchKey == "" {
		p.SearchKey = textutil.SearchKey(doc.Name, strings.Join(doc.Tags, " "))
	}
	if doc.Stock != nil {
		stock := int(*doc.Stock)
		p.Stock = &stock
	}
	for _, group := range doc.Variants {
		g := domain.VariantGroup{Name: group.Name}
		for _, opt := range group.Options {
			g.Options = append(g.Options, domain.VariantOption{Label: opt.Label, PriceDelta: opt.PriceDelta})
		}
		p.VariantGroups = append(p.VariantGroups, g)
	}
	return p
}
