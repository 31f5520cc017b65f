package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const (
	defaultCleanupBatch = 500
	defaultGuestCartTTL = 30 * 24 * time.Hour
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	Environment string
	StartedAt   time.Time
}

// IdempotencyCleaner purges expired idempotency reservations.
type IdempotencyCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Carts            repositories.CartRepository
	Idempotency      IdempotencyCleaner
	GuestCartTTL     time.Duration
	CleanupBatch     int
	Clock            func() time.Time
	Build            BuildInfo
	Logger           Logger
}

type systemService struct {
	healthRepo   repositories.HealthRepository
	carts        repositories.CartRepository
	idempotency  IdempotencyCleaner
	guestCartTTL time.Duration
	batch        int
	clock        func() time.Time
	build        BuildInfo
	logger       Logger
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the system utility service providing health reports and
// maintenance sweeps.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	build := deps.Build
	if build.StartedAt.IsZero() {
		build.StartedAt = clock()
	}
	ttl := deps.GuestCartTTL
	if ttl <= 0 {
		ttl = defaultGuestCartTTL
	}
	batch := deps.CleanupBatch
	if batch <= 0 {
		batch = defaultCleanupBatch
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &systemService{
		healthRepo:   deps.HealthRepository,
		carts:        deps.Carts,
		idempotency:  deps.Idempotency,
		guestCartTTL: ttl,
		batch:        batch,
		clock: func() time.Time {
			return clock().UTC()
		},
		build:  build,
		logger: logger,
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	report, err := s.healthRepo.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.clock()
	report.GeneratedAt = ensureTimestamp(report.GeneratedAt, now)
	report.Version = chooseFirstNonEmpty(report.Version, s.build.Version)
	report.Environment = chooseFirstNonEmpty(report.Environment, s.build.Environment)
	if report.Uptime <= 0 && !s.build.StartedAt.IsZero() {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
	if len(report.Checks) == 0 {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	if strings.TrimSpace(report.Status) == "" {
		report.Status = deriveStatus(report.Checks)
	}
	return report, nil
}

// Cleanup purges expired idempotency keys and guest carts idle longer than the guest TTL.
// Both sweeps run even if one fails; the errors are joined.
func (s *systemService) Cleanup(ctx context.Context) (CleanupResult, error) {
	now := s.clock()
	var result CleanupResult
	var errs []error

	if s.idempotency != nil {
		n, err := s.idempotency.CleanupExpired(ctx, now, s.batch)
		result.IdempotencyKeys = n
		if err != nil {
			errs = append(errs, fmt.Errorf("idempotency cleanup: %w", err))
		}
	}
	if s.carts != nil {
		n, err := s.carts.DeleteStaleGuests(ctx, now.Add(-s.guestCartTTL), s.batch)
		result.GuestCarts = n
		if err != nil {
			errs = append(errs, fmt.Errorf("guest cart cleanup: %w", err))
		}
	}

	fields := map[string]any{"idempotencyKeys": result.IdempotencyKeys, "guestCarts": result.GuestCarts}
	if err := errors.Join(errs...); err != nil {
		fields["error"] = err.Error()
		s.logger(ctx, "system.cleanup_failed", fields)
		return result, err
	}
	s.logger(ctx, "system.cleanup", fields)
	return result, nil
}

func ensureTimestamp(ts time.Time, fallback time.Time) time.Time {
	if ts.IsZero() {
		return fallback
	}
	return ts.UTC()
}

func chooseFirstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func deriveStatus(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		switch check.Status {
		case domain.HealthStatusOK, "":
			continue
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
