package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var (
	// ErrReviewInvalidInput indicates invalid rating or comment.
	ErrReviewInvalidInput = errors.New("review: invalid input")
	// ErrReviewNotFound indicates the review or its product does not exist.
	ErrReviewNotFound = errors.New("review: not found")
	// ErrReviewExists indicates the customer already reviewed the product.
	ErrReviewExists = errors.New("review: already exists")
	// ErrReviewConflict indicates a concurrent modification.
	ErrReviewConflict = errors.New("review: conflict")
	// ErrReviewUnavailable indicates the review store failed.
	ErrReviewUnavailable = errors.New("review: unavailable")
)

const maxReviewCommentLength = 1000

// ReviewServiceDeps wires the review service.
type ReviewServiceDeps struct {
	Reviews     repositories.ReviewRepository
	Products    repositories.ProductRepository
	Tx          repositories.UnitOfWork
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
	// Sanitizer overrides comment cleaning; defaults to stripping all markup.
	Sanitizer func(string) string
}

type reviewService struct {
	reviews  repositories.ReviewRepository
	products repositories.ProductRepository
	tx       repositories.UnitOfWork
	now      func() time.Time
	logger   Logger
	newID    func() string
	sanitize func(string) string
}

var _ ReviewService = (*reviewService)(nil)

// NewReviewService constructs a ReviewService.
func NewReviewService(deps ReviewServiceDeps) (ReviewService, error) {
	if deps.Reviews == nil {
		return nil, errors.New("review service: review repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("review service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return "rev_" + strings.ToLower(ulid.Make().String()) }
	}
	sanitize := deps.Sanitizer
	if sanitize == nil {
		sanitize = newReviewSanitizer()
	}
	return &reviewService{
		reviews:  deps.Reviews,
		products: deps.Products,
		tx:       deps.Tx,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		newID:    idGen,
		sanitize: sanitize,
	}, nil
}

// Create stores a visible review and folds its rating into the product aggregate. Each
// customer may review a product once.
func (s *reviewService) Create(ctx context.Context, cmd CreateReviewCommand) (Review, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	customerID := strings.TrimSpace(cmd.CustomerID)
	if productID == "" || customerID == "" {
		return Review{}, ErrReviewInvalidInput
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Review{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrReviewInvalidInput)
	}
	comment := s.sanitize(cmd.Comment)
	if len([]rune(comment)) > maxReviewCommentLength {
		return Review{}, fmt.Errorf("%w: comment exceeds %d characters", ErrReviewInvalidInput, maxReviewCommentLength)
	}
	name := strings.TrimSpace(cmd.CustomerName)
	if name == "" {
		name = "Customer"
	}

	var created Review
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		product, err := s.products.Get(ctx, productID)
		if err != nil {
			return err
		}
		if product.Status != domain.ProductStatusPublish {
			return ErrReviewNotFound
		}
		if _, err := s.reviews.FindByProductAndCustomer(ctx, productID, customerID); err == nil {
			return ErrReviewExists
		} else if !isRepoNotFound(err) {
			return err
		}
		ratings, err := s.reviews.VisibleRatings(ctx, productID)
		if err != nil {
			return err
		}

		now := s.now()
		created = Review{
			ID:           s.newID(),
			ProductID:    productID,
			CustomerID:   customerID,
			CustomerName: name,
			Rating:       cmd.Rating,
			Comment:      comment,
			Status:       domain.ReviewVisible,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.reviews.Insert(ctx, created); err != nil {
			return err
		}
		return s.saveRating(ctx, product, append(ratings, cmd.Rating), now)
	})
	if err != nil {
		return Review{}, s.mapError(ctx, "review.create_failed", err)
	}
	s.logger(ctx, "review.created", map[string]any{"reviewId": created.ID, "productId": productID, "rating": created.Rating})
	return created, nil
}

func (s *reviewService) ListByProduct(ctx context.Context, productID string, pager Pagination) (domain.CursorPage[Review], error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.CursorPage[Review]{}, ErrReviewInvalidInput
	}
	visible := domain.ReviewVisible
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{ProductID: id, Status: &visible, Pagination: pager})
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapError(ctx, "review.list_failed", err)
	}
	return page, nil
}

func (s *reviewService) ListAll(ctx context.Context, filter ReviewListFilter) (domain.CursorPage[Review], error) {
	page, err := s.reviews.List(ctx, repositories.ReviewListFilter{
		ProductID:  strings.TrimSpace(filter.ProductID),
		Status:     filter.Status,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Review]{}, s.mapError(ctx, "review.list_failed", err)
	}
	return page, nil
}

// SetVisibility hides or shows a review. Only visible reviews count towards the rating.
func (s *reviewService) SetVisibility(ctx context.Context, reviewID string, visible bool) (Review, error) {
	id := strings.TrimSpace(reviewID)
	if id == "" {
		return Review{}, ErrReviewInvalidInput
	}
	status := domain.ReviewHidden
	if visible {
		status = domain.ReviewVisible
	}

	var updated Review
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		review, err := s.reviews.Get(ctx, id)
		if err != nil {
			return err
		}
		updated = review
		if review.Status == status {
			return nil
		}
		product, ratings, err := s.loadRatings(ctx, review.ProductID)
		if err != nil {
			return err
		}
		if visible {
			ratings = append(ratings, review.Rating)
		} else {
			ratings = removeRating(ratings, review.Rating)
		}
		now := s.now()
		review.Status = status
		review.UpdatedAt = now
		if err := s.reviews.Update(ctx, review); err != nil {
			return err
		}
		updated = review
		if product == nil {
			return nil
		}
		return s.saveRating(ctx, *product, ratings, now)
	})
	if err != nil {
		return Review{}, s.mapError(ctx, "review.visibility_failed", err)
	}
	return updated, nil
}

func (s *reviewService) Delete(ctx context.Context, reviewID string) error {
	id := strings.TrimSpace(reviewID)
	if id == "" {
		return ErrReviewInvalidInput
	}
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		review, err := s.reviews.Get(ctx, id)
		if err != nil {
			return err
		}
		var product *Product
		var ratings []int
		if review.Status == domain.ReviewVisible {
			if product, ratings, err = s.loadRatings(ctx, review.ProductID); err != nil {
				return err
			}
		}
		if err := s.reviews.Delete(ctx, id); err != nil {
			return err
		}
		if product == nil {
			return nil
		}
		return s.saveRating(ctx, *product, removeRating(ratings, review.Rating), s.now())
	})
	if err != nil {
		return s.mapError(ctx, "review.delete_failed", err)
	}
	s.logger(ctx, "review.deleted", map[string]any{"reviewId": id})
	return nil
}

// loadRatings returns the product and its visible ratings. A deleted product yields nil so the
// review can still be moderated.
func (s *reviewService) loadRatings(ctx context.Context, productID string) (*Product, []int, error) {
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		if isRepoNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	ratings, err := s.reviews.VisibleRatings(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	return &product, ratings, nil
}

func (s *reviewService) saveRating(ctx context.Context, product Product, ratings []int, now time.Time) error {
	product.RatingAvg, product.RatingCount = averageRating(ratings)
	product.UpdatedAt = now
	return s.products.Save(ctx, product)
}

// averageRating rounds to one decimal place.
func averageRating(ratings []int) (float64, int) {
	if len(ratings) == 0 {
		return 0, 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return math.Round(avg*10) / 10, len(ratings)
}

func removeRating(ratings []int, rating int) []int {
	for i, r := range ratings {
		if r == rating {
			return append(ratings[:i:i], ratings[i+1:]...)
		}
	}
	return ratings
}

// newReviewSanitizer strips all markup, then drops control characters and collapses spacing
// while keeping line breaks.
func newReviewSanitizer() func(string) string {
	policy := bluemonday.StrictPolicy()
	return func(input string) string {
		cleaned := policy.Sanitize(strings.TrimSpace(input))
		cleaned = strings.ReplaceAll(strings.ReplaceAll(cleaned, "\r\n", "\n"), "\r", "\n")
		lines := strings.Split(cleaned, "\n")
		for i, line := range lines {
			line = strings.Map(func(r rune) rune {
				if unicode.IsControl(r) {
					return -1
				}
				return r
			}, line)
			lines[i] = strings.Join(strings.Fields(line), " ")
		}
		return strings.TrimSpace(strings.Join(lines, "\n"))
	}
}

func (s *reviewService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, ErrReviewExists), errors.Is(err, ErrReviewNotFound), errors.Is(err, ErrReviewInvalidInput):
		return err
	case isRepoNotFound(err):
		return ErrReviewNotFound
	case isRepoConflict(err):
		return ErrReviewConflict
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrReviewUnavailable, err)
}
