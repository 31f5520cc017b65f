package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/payload"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/textutil"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const (
	maxProductNameLength        = 200
	maxProductDescriptionLength = 5000
	maxBulkProducts             = 500
)

var (
	// ErrCatalogInvalidInput indicates the caller supplied invalid product or category data.
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	// ErrCatalogNotFound indicates the product or category does not exist or is not published.
	ErrCatalogNotFound = errors.New("catalog: not found")
	// ErrCatalogUnavailable indicates the catalog store failed.
	ErrCatalogUnavailable = errors.New("catalog: unavailable")
	// ErrCategoryInUse indicates a category still has products referencing it.
	ErrCategoryInUse = errors.New("catalog: category in use")
	// ErrInsufficientStock indicates a stock decrement would go below zero.
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
)

// CatalogServiceDeps wires the catalog service.
type CatalogServiceDeps struct {
	Products        repositories.ProductRepository
	Categories      repositories.CategoryRepository
	Tx              repositories.UnitOfWork
	Clock           func() time.Time
	Logger          Logger
	IDGenerator     func() string
	DefaultCurrency string
}

type catalogService struct {
	products   repositories.ProductRepository
	categories repositories.CategoryRepository
	tx         repositories.UnitOfWork
	now        func() time.Time
	logger     Logger
	newID      func() string
	currency   string
}

var _ CatalogService = (*catalogService)(nil)

// NewCatalogService constructs a CatalogService validating required dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Categories == nil {
		return nil, errors.New("catalog service: category repository is required")
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
		idGen = func() string { return ulid.Make().String() }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "VND"
	}
	return &catalogService{
		products:   deps.Products,
		categories: deps.Categories,
		tx:         deps.Tx,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		newID:      idGen,
		currency:   currency,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	published := domain.ProductStatusPublish
	filter.Status = &published
	return s.list(ctx, filter)
}

func (s *catalogService) AdminListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	return s.list(ctx, filter)
}

func (s *catalogService) list(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return domain.CursorPage[Product]{}, fmt.Errorf("%w: min_price exceeds max_price", ErrCatalogInvalidInput)
	}
	page, err := s.products.List(ctx, repositories.ProductFilter{
		CategoryID: strings.TrimSpace(filter.CategoryID),
		Status:     filter.Status,
		Search:     strings.TrimSpace(filter.Search),
		MinPrice:   filter.MinPrice,
		MaxPrice:   filter.MaxPrice,
		Sort:       filter.Sort,
		Order:      filter.Order,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Product]{}, s.mapError(ctx, "catalog.list_failed", err)
	}
	return page, nil
}

// GetProduct returns a published product; drafts and inactive products are reported missing.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	product, err := s.AdminGetProduct(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if product.Status != domain.ProductStatusPublish {
		return Product{}, ErrCatalogNotFound
	}
	return product, nil
}

func (s *catalogService) AdminGetProduct(ctx context.Context, productID string) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" {
		return Product{}, ErrCatalogInvalidInput
	}
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, s.mapError(ctx, "catalog.get_failed", err)
	}
	return product, nil
}

func (s *catalogService) ListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx, false)
	if err != nil {
		return nil, s.mapError(ctx, "catalog.categories_failed", err)
	}
	return sortCategories(categories), nil
}

func (s *catalogService) AdminListCategories(ctx context.Context) ([]Category, error) {
	categories, err := s.categories.List(ctx, true)
	if err != nil {
		return nil, s.mapError(ctx, "catalog.categories_failed", err)
	}
	return sortCategories(categories), nil
}

func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := s.buildProduct(ctx, cmd)
	if err != nil {
		return Product{}, err
	}
	if err := s.products.Save(ctx, product); err != nil {
		return Product{}, s.mapError(ctx, "catalog.save_failed", err)
	}
	s.logger(ctx, "catalog.product_saved", map[string]any{"productId": product.ID, "status": string(product.Status)})
	return product, nil
}

func (s *catalogService) buildProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" || len(name) > maxProductNameLength {
		return Product{}, fmt.Errorf("%w: name is required and must be at most %d characters", ErrCatalogInvalidInput, maxProductNameLength)
	}
	description := strings.TrimSpace(cmd.Description)
	if len(description) > maxProductDescriptionLength {
		return Product{}, fmt.Errorf("%w: description too long", ErrCatalogInvalidInput)
	}
	if cmd.BasePrice < 0 {
		return Product{}, fmt.Errorf("%w: base_price must be non-negative", ErrCatalogInvalidInput)
	}
	if cmd.Stock != nil && *cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must be non-negative", ErrCatalogInvalidInput)
	}
	groups, err := normaliseVariantGroups(cmd.VariantGroups)
	if err != nil {
		return Product{}, err
	}

	now := s.now()
	product := Product{
		ID:            strings.TrimSpace(cmd.ProductID),
		Name:          name,
		Description:   description,
		CategoryID:    strings.TrimSpace(cmd.CategoryID),
		BasePrice:     cmd.BasePrice,
		Currency:      strings.ToUpper(strings.TrimSpace(cmd.Currency)),
		VariantGroups: groups,
		Stock:         cmd.Stock,
		Status:        cmd.Status,
		Images:        compactStrings(cmd.Images),
		Tags:          compactStrings(cmd.Tags),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if product.Currency == "" {
		product.Currency = s.currency
	}
	if product.Status == "" {
		product.Status = domain.ProductStatusDraft
	}

	if product.CategoryID != "" {
		if _, err := s.categories.Get(ctx, product.CategoryID); err != nil {
			if isRepoNotFound(err) {
				return Product{}, fmt.Errorf("%w: unknown category %s", ErrCatalogInvalidInput, product.CategoryID)
			}
			return Product{}, s.mapError(ctx, "catalog.category_lookup_failed", err)
		}
	}

	if product.ID == "" {
		product.ID = s.newID()
	} else if existing, err := s.products.Get(ctx, product.ID); err == nil {
		product.CreatedAt = existing.CreatedAt
		product.RatingAvg = existing.RatingAvg
		product.RatingCount = existing.RatingCount
	} else if !isRepoNotFound(err) {
		return Product{}, s.mapError(ctx, "catalog.get_failed", err)
	}

	product.Slug = textutil.Slugify(product.Name)
	product.SearchKey = textutil.SearchKey(append([]string{product.Name, product.Description}, product.Tags...)...)
	return product, nil
}

func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	id := strings.TrimSpace(productID)
	if id == "" {
		return ErrCatalogInvalidInput
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return s.mapError(ctx, "catalog.delete_failed", err)
	}
	s.logger(ctx, "catalog.product_deleted", map[string]any{"productId": id})
	return nil
}

// BulkUpsertProducts imports a catalog export. Records without a name are skipped; records
// without an id create new products.
func (s *catalogService) BulkUpsertProducts(ctx context.Context, raw []byte) (BulkUpsertResult, error) {
	records, err := payload.Items(raw)
	if err != nil {
		return BulkUpsertResult{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if len(records) > maxBulkProducts {
		return BulkUpsertResult{}, fmt.Errorf("%w: at most %d products per import", ErrCatalogInvalidInput, maxBulkProducts)
	}

	var result BulkUpsertResult
	for _, rec := range records {
		parsed, ok := payload.ProductFromRecord(rec)
		if !ok {
			result.Skipped++
			continue
		}
		existed := false
		if parsed.ID != "" {
			if _, err := s.products.Get(ctx, parsed.ID); err == nil {
				existed = true
			} else if !isRepoNotFound(err) {
				return result, s.mapError(ctx, "catalog.bulk_failed", err)
			}
		}
		product, err := s.UpsertProduct(ctx, UpsertProductCommand{
			ProductID:     parsed.ID,
			Name:          parsed.Name,
			Description:   parsed.Description,
			CategoryID:    parsed.CategoryID,
			BasePrice:     parsed.BasePrice,
			Currency:      parsed.Currency,
			VariantGroups: parsed.VariantGroups,
			Stock:         parsed.Stock,
			Status:        parsed.Status,
			Images:        parsed.Images,
			Tags:          parsed.Tags,
		})
		switch {
		case errors.Is(err, ErrCatalogInvalidInput):
			result.Skipped++
			continue
		case err != nil:
			return result, err
		}
		if existed {
			result.Updated++
		} else {
			result.Created++
		}
		result.Products = append(result.Products, product)
	}
	s.logger(ctx, "catalog.bulk_upserted", map[string]any{
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
	return result, nil
}

// AdjustStock applies delta to the stock level inside a transaction. Untracked stock
// becomes tracked starting from zero.
func (s *catalogService) AdjustStock(ctx context.Context, productID string, delta int) (Product, error) {
	id := strings.TrimSpace(productID)
	if id == "" || delta == 0 {
		return Product{}, ErrCatalogInvalidInput
	}
	var product Product
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		current, err := s.products.Get(ctx, id)
		if err != nil {
			return err
		}
		have := 0
		if current.Stock != nil {
			have = *current.Stock
		}
		next := have + delta
		if next < 0 {
			return fmt.Errorf("%w: have %d, adjust %d", ErrInsufficientStock, have, delta)
		}
		current.Stock = &next
		current.UpdatedAt = s.now()
		if err := s.products.Save(ctx, current); err != nil {
			return err
		}
		product = current
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return Product{}, err
		}
		return Product{}, s.mapError(ctx, "catalog.stock_adjust_failed", err)
	}
	s.logger(ctx, "catalog.stock_adjusted", map[string]any{"productId": id, "delta": delta, "stock": *product.Stock})
	return product, nil
}

func (s *catalogService) UpsertCategory(ctx context.Context, cmd UpsertCategoryCommand) (Category, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" || len(name) > maxProductNameLength {
		return Category{}, fmt.Errorf("%w: category name is required", ErrCatalogInvalidInput)
	}
	now := s.now()
	category := Category{
		ID:          strings.TrimSpace(cmd.CategoryID),
		Name:        name,
		Slug:        textutil.Slugify(name),
		Description: strings.TrimSpace(cmd.Description),
		SortOrder:   cmd.SortOrder,
		Active:      cmd.Active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if category.ID == "" {
		category.ID = category.Slug
		if category.ID == "" {
			category.ID = s.newID()
		}
	}
	if existing, err := s.categories.Get(ctx, category.ID); err == nil {
		category.CreatedAt = existing.CreatedAt
	} else if !isRepoNotFound(err) {
		return Category{}, s.mapError(ctx, "catalog.category_lookup_failed", err)
	}
	if err := s.categories.Save(ctx, category); err != nil {
		return Category{}, s.mapError(ctx, "catalog.category_save_failed", err)
	}
	return category, nil
}

// DeleteCategory refuses to orphan products.
func (s *catalogService) DeleteCategory(ctx context.Context, categoryID string) error {
	id := strings.TrimSpace(categoryID)
	if id == "" {
		return ErrCatalogInvalidInput
	}
	count, err := s.products.CountByCategory(ctx, id)
	if err != nil {
		return s.mapError(ctx, "catalog.category_count_failed", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d products reference %s", ErrCategoryInUse, count, id)
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return s.mapError(ctx, "catalog.category_delete_failed", err)
	}
	return nil
}

func (s *catalogService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case isRepoNotFound(err):
		return ErrCatalogNotFound
	case errors.Is(err, ErrCatalogInvalidInput):
		return err
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
}

func normaliseVariantGroups(groups []domain.VariantGroup) ([]domain.VariantGroup, error) {
	if len(groups) == 0 {
		return nil, nil
	}
	out := make([]domain.VariantGroup, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, group := range groups {
		name := strings.TrimSpace(group.Name)
		if name == "" || len(group.Options) == 0 {
			return nil, fmt.Errorf("%w: variant groups need a name and at least one option", ErrCatalogInvalidInput)
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate variant group %s", ErrCatalogInvalidInput, name)
		}
		seen[key] = struct{}{}
		options := make([]domain.VariantOption, 0, len(group.Options))
		for _, opt := range group.Options {
			label := strings.TrimSpace(opt.Label)
			if label == "" {
				return nil, fmt.Errorf("%w: variant option label is required", ErrCatalogInvalidInput)
			}
			options = append(options, domain.VariantOption{Label: label, PriceDelta: opt.PriceDelta})
		}
		out = append(out, domain.VariantGroup{Name: name, Options: options})
	}
	return out, nil
}

func sortCategories(categories []Category) []Category {
	sort.SliceStable(categories, func(i, j int) bool {
		if categories[i].SortOrder != categories[j].SortOrder {
			return categories[i].SortOrder < categories[j].SortOrder
		}
		return categories[i].Name < categories[j].Name
	})
	return categories
}

func compactStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
