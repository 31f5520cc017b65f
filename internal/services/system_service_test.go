package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

type stubIdempotencyCleaner struct {
	n     int
	err   error
	now   time.Time
	limit int
}

func (s *stubIdempotencyCleaner) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	s.now, s.limit = now, limit
	return s.n, s.err
}

func TestSystemHealthReportFillsBuildInfo(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubHealthRepository{report: domain.SystemHealthReport{
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK},
			"pubsub":    {Status: domain.HealthStatusDegraded},
		},
	}}
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock(now),
		Build:            BuildInfo{Version: "1.4.0", Environment: "prod", StartedAt: now.Add(-time.Hour)},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}
	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded || report.Version != "1.4.0" || report.Uptime != time.Hour || !report.GeneratedAt.Equal(now) {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestSystemCleanup(t *testing.T) {
	now := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	cleaner := &stubIdempotencyCleaner{n: 3}
	carts := newMemCarts()
	var before time.Time
	carts.staleFn = func(b time.Time, limit int) (int, error) {
		before = b
		return 2, nil
	}
	svc, _ := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{},
		Carts:            carts,
		Idempotency:      cleaner,
		GuestCartTTL:     7 * 24 * time.Hour,
		Clock:            fixedClock(now),
	})

	result, err := svc.Cleanup(context.Background())
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.IdempotencyKeys != 3 || result.GuestCarts != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !before.Equal(now.Add(-7*24*time.Hour)) || cleaner.limit != defaultCleanupBatch {
		t.Fatalf("unexpected sweep bounds before=%v limit=%d", before, cleaner.limit)
	}

	cleaner.err = errBoom
	result, err = svc.Cleanup(context.Background())
	if !errors.Is(err, errBoom) || result.GuestCarts != 2 {
		t.Fatalf("cart sweep should still run after an idempotency failure, got %+v %v", result, err)
	}
}
