package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/httpx"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

const (
	maxCatalogRequestBody = 64 * 1024
	maxBulkImportBody     = 4 * 1024 * 1024
)

// AdminCatalogHandlers expose product and category maintenance. Authorisation is applied by the
// admin route group.
type AdminCatalogHandlers struct {
	catalog services.CatalogService
}

// NewAdminCatalogHandlers constructs admin catalog handlers.
func NewAdminCatalogHandlers(catalog services.CatalogService) *AdminCatalogHandlers {
	return &AdminCatalogHandlers{catalog: catalog}
}

// Routes registers admin catalog endpoints.
func (h *AdminCatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Post("/products:bulkUpsert", h.bulkUpsert)
	r.Get("/products/{productID}", h.getProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)
	r.Post("/products/{productID}/stock", h.adjustStock)

	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)
	r.Put("/categories/{categoryID}", h.updateCategory)
	r.Delete("/categories/{categoryID}", h.deleteCategory)
}

func (h *AdminCatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	filter, ok := parseProductFilter(w, r)
	if !ok {
		return
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := domain.ParseProductStatus(raw)
		if !ok {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be one of Publish, Draft, Inactive", http.StatusBadRequest))
			return
		}
		filter.Status = &status
	}
	page, err := h.catalog.AdminListProducts(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminCatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.AdminGetProduct(ctx, urlParam(r, "productID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	h.saveProduct(w, r, "", http.StatusCreated)
}

func (h *AdminCatalogHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	productID := urlParam(r, "productID")
	if productID == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}
	h.saveProduct(w, r, productID, http.StatusOK)
}

type adminProductRequest struct {
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	CategoryID    string                `json:"category_id"`
	BasePrice     int64                 `json:"base_price"`
	Currency      string                `json:"currency"`
	VariantGroups []variantGroupPayload `json:"variant_groups"`
	Stock         *int                  `json:"stock"`
	Status        string                `json:"status"`
	Images        []string              `json:"images"`
	Tags          []string              `json:"tags"`
}

func (req adminProductRequest) toCommand(productID string) services.UpsertProductCommand {
	// Unknown statuses fall back to Draft.
	status, _ := domain.ParseProductStatus(req.Status)
	cmd := services.UpsertProductCommand{
		ProductID:   productID,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		BasePrice:   req.BasePrice,
		Currency:    strings.ToUpper(strings.TrimSpace(req.Currency)),
		Stock:       req.Stock,
		Status:      status,
		Images:      req.Images,
		Tags:        req.Tags,
	}
	for _, group := range req.VariantGroups {
		g := domain.VariantGroup{Name: group.Name, Options: make([]domain.VariantOption, 0, len(group.Options))}
		for _, opt := range group.Options {
			g.Options = append(g.Options, domain.VariantOption{Label: opt.Label, PriceDelta: opt.PriceDelta})
		}
		cmd.VariantGroups = append(cmd.VariantGroups, g)
	}
	return cmd
}

func (h *AdminCatalogHandlers) saveProduct(w http.ResponseWriter, r *http.Request, productID string, status int) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adminProductRequest
	if err := httpx.DecodeJSON(r, maxCatalogRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	product, err := h.catalog.UpsertProduct(ctx, req.toCommand(productID))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteProduct(ctx, urlParam(r, "productID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type bulkUpsertResponse struct {
	Created int              `json:"created"`
	Updated int              `json:"updated"`
	Skipped int              `json:"skipped"`
	Items   []productPayload `json:"items"`
}

// bulkUpsert accepts the loose import formats the catalog parser understands, so the raw body
// is handed through undecoded.
func (h *AdminCatalogHandlers) bulkUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	body, err := httpx.ReadBody(r, maxBulkImportBody)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	result, err := h.catalog.BulkUpsertProducts(ctx, body)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, bulkUpsertResponse{
		Created: result.Created,
		Updated: result.Updated,
		Skipped: result.Skipped,
		Items:   buildProductPayloads(result.Products),
	})
}

type adjustStockRequest struct {
	Delta int `json:"delta"`
}

func (h *AdminCatalogHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adjustStockRequest
	if err := httpx.DecodeJSON(r, maxCatalogRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	product, err := h.catalog.AdjustStock(ctx, urlParam(r, "productID"), req.Delta)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"product": buildProductPayload(product)})
}

func (h *AdminCatalogHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	categories, err := h.catalog.AdminListCategories(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildCategoryPayloads(categories)})
}

type adminCategoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
	Active      *bool  `json:"active"`
}

func (h *AdminCatalogHandlers) createCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, "", http.StatusCreated)
}

func (h *AdminCatalogHandlers) updateCategory(w http.ResponseWriter, r *http.Request) {
	h.saveCategory(w, r, urlParam(r, "categoryID"), http.StatusOK)
}

func (h *AdminCatalogHandlers) saveCategory(w http.ResponseWriter, r *http.Request, categoryID string, status int) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req adminCategoryRequest
	if err := httpx.DecodeJSON(r, maxCatalogRequestBody, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BodyError(err))
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	category, err := h.catalog.UpsertCategory(ctx, services.UpsertCategoryCommand{
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		Active:      active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, status, map[string]any{"category": buildCategoryPayload(category)})
}

func (h *AdminCatalogHandlers) deleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteCategory(ctx, urlParam(r, "categoryID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
