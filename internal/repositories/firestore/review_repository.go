package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/pagination"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const reviewCollection = "reviews"

// ReviewRepository persists product reviews in a top-level collection.
type ReviewRepository struct {
	base *pfirestore.BaseRepository[reviewDocument]
}

var _ repositories.ReviewRepository = (*ReviewRepository)(nil)

type reviewDocument struct {
	ProductID    string    `firestore:"productId"`
	CustomerID   string    `firestore:"customerId"`
	CustomerName string    `firestore:"customerName"`
	Rating       int64     `firestore:"rating"`
	Comment      string    `firestore:"comment"`
	Status       string    `firestore:"status"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// NewReviewRepository constructs a Firestore-backed review repository.
func NewReviewRepository(provider *pfirestore.Provider) (*ReviewRepository, error) {
	if provider == nil {
		return nil, errors.New("review repository requires firestore provider")
	}
	return &ReviewRepository{
		base: pfirestore.NewBaseRepository[reviewDocument](provider, reviewCollection, nil, nil),
	}, nil
}

func (r *ReviewRepository) Insert(ctx context.Context, review domain.Review) error {
	id := strings.TrimSpace(review.ID)
	if id == "" {
		return errors.New("review repository: review id is required")
	}
	return r.base.Create(ctx, id, encodeReview(review))
}

func (r *ReviewRepository) Update(ctx context.Context, review domain.Review) error {
	id := strings.TrimSpace(review.ID)
	if id == "" {
		return errors.New("review repository: review id is required")
	}
	return r.base.Set(ctx, id, encodeReview(review))
}

func (r *ReviewRepository) Get(ctx context.Context, reviewID string) (domain.Review, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(reviewID))
	if err != nil {
		return domain.Review{}, err
	}
	return decodeReview(doc.ID, doc.Data), nil
}

func (r *ReviewRepository) Delete(ctx context.Context, reviewID string) error {
	return r.base.Delete(ctx, strings.TrimSpace(reviewID))
}

// FindByProductAndCustomer returns the customer's review of the product or a not-found error.
func (r *ReviewRepository) FindByProductAndCustomer(ctx context.Context, productID, customerID string) (domain.Review, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", strings.TrimSpace(productID)).
			Where("customerId", "==", strings.TrimSpace(customerID)).
			Limit(1)
	})
	if err != nil {
		return domain.Review{}, err
	}
	if len(docs) == 0 {
		return domain.Review{}, pfirestore.NotFound("reviews.find", "no review by customer for product")
	}
	return decodeReview(docs[0].ID, docs[0].Data), nil
}

// List returns reviews newest first.
func (r *ReviewRepository) List(ctx context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	docs, last, err := r.base.Page(ctx, func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.ProductID); id != "" {
			q = q.Where("productId", "==", id)
		}
		if id := strings.TrimSpace(filter.CustomerID); id != "" {
			q = q.Where("customerId", "==", id)
		}
		if filter.Status != nil {
			q = q.Where("status", "==", string(*filter.Status))
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}, filter.Pagination.PageSize, cursor.After)
	if err != nil {
		return domain.CursorPage[domain.Review]{}, err
	}
	page := domain.CursorPage[domain.Review]{Items: make([]domain.Review, 0, len(docs))}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeReview(doc.ID, doc.Data))
	}
	if last != "" {
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{After: last})
	}
	return page, nil
}

func (r *ReviewRepository) VisibleRatings(ctx context.Context, productID string) ([]int, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("productId", "==", strings.TrimSpace(productID)).
			Where("status", "==", string(domain.ReviewVisible)).
			Select("rating")
	})
	if err != nil {
		return nil, err
	}
	ratings := make([]int, 0, len(docs))
	for _, doc := range docs {
		ratings = append(ratings, int(doc.Data.Rating))
	}
	return ratings, nil
}

func encodeReview(review domain.Review) reviewDocument {
	return reviewDocument{
		ProductID:    review.ProductID,
		CustomerID:   review.CustomerID,
		CustomerName: review.CustomerName,
		Rating:       int64(review.Rating),
		Comment:      review.Comment,
		Status:       string(review.Status),
		CreatedAt:    review.CreatedAt.UTC(),
		UpdatedAt:    review.UpdatedAt.UTC(),
	}
}

func decodeReview(id string, doc reviewDocument) domain.Review {
	status := domain.ReviewStatus(doc.Status)
	if status != domain.ReviewHidden {
		status = domain.ReviewVisible
	}
	return domain.Review{
		ID:           id,
		ProductID:    doc.ProductID,
		CustomerID:   doc.CustomerID,
		CustomerName: doc.CustomerName,
		Rating:       int(doc.Rating),
		Comment:      doc.Comment,
		Status:       status,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
