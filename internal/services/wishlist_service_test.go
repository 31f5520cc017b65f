package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

func TestWishlistAddListRemove(t *testing.T) {
	mocha := domain.Product{ID: "mocha", Name: "Mocha", Status: domain.ProductStatusPublish}
	draft := domain.Product{ID: "draft", Name: "Secret", Status: domain.ProductStatusDraft}
	products := newMemProducts(latte(), mocha, draft)
	repo := newMemWishlists()
	svc, err := NewWishlistService(WishlistServiceDeps{Wishlists: repo, Products: products})
	if err != nil {
		t.Fatalf("NewWishlistService: %v", err)
	}
	ctx := context.Background()

	if _, err := svc.Add(ctx, "c1", "latte"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := svc.Add(ctx, "c1", "mocha"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if w, _ := svc.Add(ctx, "c1", "latte"); len(w.ProductIDs) != 2 {
		t.Fatalf("adding twice should be idempotent, got %v", w.ProductIDs)
	}
	if _, err := svc.Add(ctx, "c1", "draft"); !errors.Is(err, ErrWishlistProductNotFound) {
		t.Fatalf("expected unpublished product rejected, got %v", err)
	}

	// Deleted products disappear from the listing without failing it.
	delete(products.items, "latte")
	listed, err := svc.List(ctx, "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != "mocha" {
		t.Fatalf("unexpected listing %+v", listed)
	}

	if ok, _ := svc.Contains(ctx, "c1", "mocha"); !ok {
		t.Fatal("expected mocha in wishlist")
	}
	w, err := svc.Remove(ctx, "c1", "mocha")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if len(w.ProductIDs) != 1 || w.ProductIDs[0] != "latte" {
		t.Fatalf("unexpected ids %v", w.ProductIDs)
	}
	if _, err := svc.List(ctx, ""); !errors.Is(err, ErrWishlistInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
