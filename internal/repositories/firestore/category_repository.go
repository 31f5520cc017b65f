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
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const categoryCollection = "categories"

// CategoryRepository persists product categories.
type CategoryRepository struct {
	base *pfirestore.BaseRepository[categoryDocument]
}

var _ repositories.CategoryRepository = (*CategoryRepository)(nil)

type categoryDocument struct {
	Name        string    `firestore:"name"`
	Slug        string    `firestore:"slug"`
	Description string    `firestore:"description,omitempty"`
	SortOrder   int64     `firestore:"sortOrder"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// NewCategoryRepository constructs a Firestore-backed category repository.
func NewCategoryRepository(provider *pfirestore.Provider) (*CategoryRepository, error) {
	if provider == nil {
		return nil, errors.New("category repository requires firestore provider")
	}
	return &CategoryRepository{
		base: pfirestore.NewBaseRepository[categoryDocument](provider, categoryCollection, nil, nil),
	}, nil
}

func (r *CategoryRepository) Get(ctx context.Context, categoryID string) (domain.Category, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(categoryID))
	if err != nil {
		return domain.Category{}, err
	}
	return decodeCategory(doc.ID, doc.Data), nil
}

// List returns categories ordered by sortOrder then name.
func (r *CategoryRepository) List(ctx context.Context, includeInactive bool) ([]domain.Category, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if !includeInactive {
			q = q.Where("active", "==", true)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(docs))
	for _, doc := range docs {
		out = append(out, decodeCategory(doc.ID, doc.Data))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *CategoryRepository) Save(ctx context.Context, category domain.Category) error {
	id := strings.TrimSpace(category.ID)
	if id == "" {
		return errors.New("category repository: category id is required")
	}
	return r.base.Set(ctx, id, categoryDocument{
		Name:        strings.TrimSpace(category.Name),
		Slug:        strings.TrimSpace(category.Slug),
		Description: category.Description,
		SortOrder:   int64(category.SortOrder),
		Active:      category.Active,
		CreatedAt:   category.CreatedAt.UTC(),
		UpdatedAt:   category.UpdatedAt.UTC(),
	})
}

func (r *CategoryRepository) Delete(ctx context.Context, categoryID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(categoryID))
}

func decodeCategory(id string, doc categoryDocument) domain.Category {
	return domain.Category{
		ID:          id,
		Name:        doc.Name,
		Slug:        doc.Slug,
		Description: doc.Description,
		SortOrder:   int(doc.SortOrder),
		Active:      doc.Active,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
