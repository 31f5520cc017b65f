package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/auth"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const (
	maxReviewBodySize   = 8 * 1024
	reviewLimitPerHour  = 10
	catalogCacheControl = "public, max-age=60"
)

// CatalogHandlers expose the storefront catalog and product reviews.
type CatalogHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
	reviews services.ReviewService
	limiter rateLimiter
}

// CatalogOption customises CatalogHandlers.
type CatalogOption func(*CatalogHandlers)

// WithReviewRateLimit overrides how many reviews a customer may submit per window.
func WithReviewRateLimit(limit int, window time.Duration, clock func() time.Time) CatalogOption {
	return func(h *CatalogHandlers) {
		h.limiter = newWindowLimiter(limit, window, clock)
	}
}

// NewCatalogHandlers constructs catalog handlers. Reviews may be nil.
func NewCatalogHandlers(authn *auth.Authenticator, catalog services.CatalogService, reviews services.ReviewService, opts ...CatalogOption) *CatalogHandlers {
	h := &CatalogHandlers{
		authn:   authn,
		catalog: catalog,
		reviews: reviews,
		limiter: newWindowLimiter(reviewLimitPerHour, time.Hour, nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers /products and /categories.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/products/{productID}/reviews", h.listReviews)
	r.Get("/categories", h.listCategories)

	create := http.HandlerFunc(h.createReview)
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth()).Post("/products/{productID}/reviews", create)
	} else {
		r.Post("/products/{productID}/reviews", create)
	}
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	filter, ok := parseProductFilter(w, r)
	if !ok {
		return
	}
	page, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, urlParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *CatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildCategoryPayloads(categories)})
}

func (h *CatalogHandlers) listReviews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	pager, ok := parsePagination(ctx, w, r)
	if !ok {
		return
	}
	page, err := h.reviews.ListByProduct(ctx, urlParam(r, "productID"), pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReviewList(page, false))
}

type createReviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *CatalogHandlers) createReview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reviews == nil {
		writeUnavailable(ctx, w, "review")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.limiter != nil && !h.limiter.Allow(identity.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many reviews, try again later", http.StatusTooManyRequests))
		return
	}

	var req createReviewRequest
	if err := httpx.DecodeJSON(r, maxReviewBodySize, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}

	review, err := h.reviews.Create(ctx, services.CreateReviewCommand{
		ProductID:    urlParam(r, "productID"),
		CustomerID:   identity.UID,
		CustomerName: strings.TrimSpace(identity.Name),
		Rating:       req.Rating,
		Comment:      req.Comment,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, map[string]any{"review": buildReviewPayload(review, false)})
}

// parseProductFilter reads category, q, min_price, max_price, sort and order.
func parseProductFilter(w http.ResponseWriter, r *http.Request) (services.ProductListFilter, bool) {
	ctx := r.Context()
	query := r.URL.Query()
	pager, ok := parsePagination(ctx, w, r)
	if !ok {
		return services.ProductListFilter{}, false
	}
	filter := services.ProductListFilter{
		CategoryID: strings.TrimSpace(firstQuery(query.Get("category"), query.Get("category_id"))),
		Search:     strings.TrimSpace(firstQuery(query.Get("q"), query.Get("search"))),
		Pagination: pager,
	}

	var err error
	if filter.MinPrice, err = parseOptionalInt64(query.Get("min_price")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "min_price must be an integer", http.StatusBadRequest))
		return services.ProductListFilter{}, false
	}
	if filter.MaxPrice, err = parseOptionalInt64(query.Get("max_price")); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "max_price must be an integer", http.StatusBadRequest))
		return services.ProductListFilter{}, false
	}

	switch sort := domain.ProductSort(strings.ToLower(strings.TrimSpace(query.Get("sort")))); sort {
	case "":
	case domain.ProductSortNewest, domain.ProductSortPrice, domain.ProductSortName, domain.ProductSortRating:
		filter.Sort = sort
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "sort must be one of newest, price, name, rating", http.StatusBadRequest))
		return services.ProductListFilter{}, false
	}
	switch order := domain.SortOrder(strings.ToLower(strings.TrimSpace(query.Get("order")))); order {
	case "":
	case domain.SortAsc, domain.SortDesc:
		filter.Order = order
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order must be asc or desc", http.StatusBadRequest))
		return services.ProductListFilter{}, false
	}
	return filter, true
}

func firstQuery(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
