package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var catalogNow = time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

func newCatalogFixture(t *testing.T, products ...domain.Product) (CatalogService, *memProducts, *memCategories) {
	t.Helper()
	repo := newMemProducts(products...)
	categories := newMemCategories(
		domain.Category{ID: "coffee", Name: "Coffee", SortOrder: 2, Active: true},
		domain.Category{ID: "tea", Name: "Tea", SortOrder: 1, Active: true},
		domain.Category{ID: "seasonal", Name: "Seasonal", SortOrder: 0, Active: false},
	)
	svc, err := NewCatalogService(CatalogServiceDeps{
		Products:    repo,
		Categories:  categories,
		Tx:          &stubUnitOfWork{},
		Clock:       fixedClock(catalogNow),
		IDGenerator: sequentialIDs("prod-"),
	})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc, repo, categories
}

func TestNewCatalogServiceRequiresRepositories(t *testing.T) {
	if _, err := NewCatalogService(CatalogServiceDeps{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCatalogPublicReadsOnlyPublished(t *testing.T) {
	draft := domain.Product{ID: "draft", Name: "Draft", Status: domain.ProductStatusDraft}
	svc, repo, _ := newCatalogFixture(t, latte(), draft)
	ctx := context.Background()

	var seen repositories.ProductFilter
	repo.listFn = func(filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
		seen = filter
		return domain.CursorPage[domain.Product]{}, nil
	}
	if _, err := svc.ListProducts(ctx, ProductListFilter{Search: " latte "}); err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if seen.Status == nil || *seen.Status != domain.ProductStatusPublish || seen.Search != "latte" {
		t.Fatalf("unexpected filter %+v", seen)
	}

	if _, err := svc.GetProduct(ctx, "draft"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("drafts must be hidden, got %v", err)
	}
	if _, err := svc.AdminGetProduct(ctx, "draft"); err != nil {
		t.Fatalf("admins should see drafts, got %v", err)
	}

	lo, hi := int64(10), int64(5)
	if _, err := svc.ListProducts(ctx, ProductListFilter{MinPrice: &lo, MaxPrice: &hi}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid range, got %v", err)
	}
}

func TestCatalogCategoriesSorted(t *testing.T) {
	svc, _, _ := newCatalogFixture(t)
	public, _ := svc.ListCategories(context.Background())
	if len(public) != 2 || public[0].ID != "tea" {
		t.Fatalf("unexpected public categories %+v", public)
	}
	all, _ := svc.AdminListCategories(context.Background())
	if len(all) != 3 || all[0].ID != "seasonal" {
		t.Fatalf("unexpected admin categories %+v", all)
	}
}

func TestCatalogUpsertProduct(t *testing.T) {
	existing := latte()
	existing.CreatedAt = catalogNow.Add(-24 * time.Hour)
	existing.RatingAvg, existing.RatingCount = 4.5, 2
	svc, repo, _ := newCatalogFixture(t, existing)
	ctx := context.Background()

	if _, err := svc.UpsertProduct(ctx, UpsertProductCommand{Name: "Mocha", CategoryID: "nope"}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected unknown category rejected, got %v", err)
	}

	created, err := svc.UpsertProduct(ctx, UpsertProductCommand{Name: "Cà Phê Sữa Đá", CategoryID: "coffee", BasePrice: 29000, Tags: []string{"iced", "iced", " "}})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if created.ID != "prod-A" || created.Slug != "ca-phe-sua-da" || created.Status != domain.ProductStatusDraft || created.Currency != "VND" {
		t.Fatalf("unexpected product %+v", created)
	}
	if len(created.Tags) != 1 || created.SearchKey == "" {
		t.Fatalf("unexpected tags/search key %+v / %q", created.Tags, created.SearchKey)
	}

	updated, err := svc.UpsertProduct(ctx, UpsertProductCommand{ProductID: "latte", Name: "Latte", BasePrice: 47000, Status: domain.ProductStatusPublish})
	if err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	if !updated.CreatedAt.Equal(existing.CreatedAt) || updated.RatingCount != 2 || repo.items["latte"].BasePrice != 47000 {
		t.Fatalf("update should keep creation time and rating, got %+v", updated)
	}

	bad := []domain.VariantGroup{{Name: "Size"}}
	if _, err := svc.UpsertProduct(ctx, UpsertProductCommand{Name: "X", VariantGroups: bad}); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("expected invalid variants, got %v", err)
	}
}

func TestCatalogBulkUpsert(t *testing.T) {
	svc, repo, _ := newCatalogFixture(t, latte())
	raw := []byte(`{"products":[
		{"_id":"latte","name":"Latte","price":"46000","status":"Publish"},
		{"name":""},
		{"name":"Mocha","price":50000,"stock":"7"}
	]}`)

	result, err := svc.BulkUpsertProducts(context.Background(), raw)
	if err != nil {
		t.Fatalf("BulkUpsertProducts: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if repo.items["latte"].BasePrice != 46000 {
		t.Fatalf("expected updated price, got %d", repo.items["latte"].BasePrice)
	}
	mocha := result.Products[1]
	if mocha.Stock == nil || *mocha.Stock != 7 {
		t.Fatalf("unexpected mocha %+v", mocha)
	}
}

func TestCatalogAdjustStock(t *testing.T) {
	untracked := domain.Product{ID: "beans", Name: "Beans", Status: domain.ProductStatusPublish}
	svc, _, _ := newCatalogFixture(t, latte(), untracked)
	ctx := context.Background()

	if _, err := svc.AdjustStock(ctx, "latte", -11); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	p, err := svc.AdjustStock(ctx, "latte", -4)
	if err != nil || *p.Stock != 6 {
		t.Fatalf("AdjustStock: %v %+v", err, p.Stock)
	}
	p, err = svc.AdjustStock(ctx, "beans", 5)
	if err != nil || p.Stock == nil || *p.Stock != 5 {
		t.Fatalf("untracked stock should start at zero: %v %+v", err, p.Stock)
	}
	if _, err := svc.AdjustStock(ctx, "ghost", 1); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCatalogCategoryLifecycle(t *testing.T) {
	svc, repo, categories := newCatalogFixture(t)
	ctx := context.Background()

	created, err := svc.UpsertCategory(ctx, UpsertCategoryCommand{Name: "Trà Sữa", Active: true})
	if err != nil {
		t.Fatalf("UpsertCategory: %v", err)
	}
	if created.ID != "tra-sua" {
		t.Fatalf("expected slug id, got %q", created.ID)
	}

	repo.counts = map[string]int64{"coffee": 3}
	if err := svc.DeleteCategory(ctx, "coffee"); !errors.Is(err, ErrCategoryInUse) {
		t.Fatalf("expected category in use, got %v", err)
	}
	if err := svc.DeleteCategory(ctx, "tra-sua"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, ok := categories.items["tra-sua"]; ok {
		t.Fatal("category not deleted")
	}
}
