package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

func TestRouterUnregisteredGroupsReturnNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/api/v1/products", "/api/v1/cart", "/api/v1/me", "/api/v1/admin/orders", "/api/v1/meta/statuses"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusNotImplemented {
			t.Fatalf("%s: expected 501, got %d", path, rec.Code)
		}
	}
}

func TestRouterUnknownRouteUsesEnvelope(t *testing.T) {
	router := NewRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assertErrorCode(t, rec, http.StatusNotFound, "route_not_found")
}

func TestRouterMountsRegistrarsUnderPrefix(t *testing.T) {
	var hit string
	router := NewRouter(
		WithCatalogRoutes(func(r chi.Router) {
			r.Get("/products", func(w http.ResponseWriter, r *http.Request) { hit = "catalog" })
		}),
		WithAdminRoutes(
			func(r chi.Router) {
				r.Get("/orders", func(w http.ResponseWriter, r *http.Request) { hit = "admin-orders" })
			},
			func(r chi.Router) {
				r.Get("/products", func(w http.ResponseWriter, r *http.Request) { hit = "admin-products" })
			},
		),
		WithAdminMiddlewares(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("X-Staff") == "" {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
			})
		}),
	)

	cases := []struct {
		path   string
		staff  bool
		status int
		hit    string
	}{
		{path: "/api/v1/products", status: http.StatusOK, hit: "catalog"},
		{path: "/api/v1/admin/orders", staff: true, status: http.StatusOK, hit: "admin-orders"},
		{path: "/api/v1/admin/products", staff: true, status: http.StatusOK, hit: "admin-products"},
		{path: "/api/v1/admin/orders", status: http.StatusForbidden},
	}
	for _, tc := range cases {
		hit = ""
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.staff {
			req.Header.Set("X-Staff", "1")
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.path, tc.status, rec.Code)
		}
		if hit != tc.hit {
			t.Fatalf("%s: expected handler %q, got %q", tc.path, tc.hit, hit)
		}
	}
}

func TestHealthzReportsLiveness(t *testing.T) {
	started := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Second)
	health := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "1.2.3", Environment: "test", StartedAt: started}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" || body["version"] != "1.2.3" || body["uptime"] != "1m30s" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestReadyzFailsOnErrorReport(t *testing.T) {
	system := &stubSystemService{
		healthFn: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded", Latency: 2 * time.Second},
					"pubsub":    {Status: domain.HealthStatusOK},
				},
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithHealthSystemService(system))))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	checks, _ := body["checks"].(map[string]any)
	firestore, _ := checks["firestore"].(map[string]any)
	if firestore["error"] != "deadline exceeded" || firestore["latency_ms"] != float64(2000) {
		t.Fatalf("unexpected firestore check %v", firestore)
	}
}

func TestReadyzDegradedStillReady(t *testing.T) {
	system := &stubSystemService{
		healthFn: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{Status: domain.HealthStatusDegraded}, nil
		},
	}
	health := NewHealthHandlers(WithHealthSystemService(system))

	rec := httptest.NewRecorder()
	health.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	system.healthFn = func(ctx context.Context) (services.SystemHealthReport, error) {
		return services.SystemHealthReport{}, errors.New("boom")
	}
	rec = httptest.NewRecorder()
	health.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 on probe failure, got %d", rec.Code)
	}
}
