package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var (
	// ErrLoyaltyInvalidInput indicates invalid points or identifiers.
	ErrLoyaltyInvalidInput = errors.New("loyalty: invalid input")
	// ErrLoyaltyCustomerNotFound indicates the ledger owner does not exist.
	ErrLoyaltyCustomerNotFound = errors.New("loyalty: customer not found")
	// ErrLoyaltyConflict indicates a concurrent ledger update.
	ErrLoyaltyConflict = errors.New("loyalty: conflict")
	// ErrLoyaltyUnavailable indicates the customer store failed.
	ErrLoyaltyUnavailable = errors.New("loyalty: unavailable")
)

const maxSummaryHistory = 50

// LoyaltyServiceDeps wires the loyalty service.
type LoyaltyServiceDeps struct {
	Customers   repositories.CustomerRepository
	Tx          repositories.UnitOfWork
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
}

type loyaltyService struct {
	customers repositories.CustomerRepository
	tx        repositories.UnitOfWork
	now       func() time.Time
	logger    Logger
	newID     func() string
}

var _ LoyaltyService = (*loyaltyService)(nil)

// NewLoyaltyService constructs a LoyaltyService.
func NewLoyaltyService(deps LoyaltyServiceDeps) (LoyaltyService, error) {
	if deps.Customers == nil {
		return nil, errors.New("loyalty service: customer repository is required")
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
	return &loyaltyService{
		customers: deps.Customers,
		tx:        deps.Tx,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		newID:     idGen,
	}, nil
}

// Summary returns the ledger of customerID. Customers without a profile yet start at bronze
// with no points.
func (s *loyaltyService) Summary(ctx context.Context, customerID string) (LoyaltySummary, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return LoyaltySummary{}, ErrLoyaltyInvalidInput
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		if isRepoNotFound(err) {
			return summarize(id, domain.Loyalty{Tier: domain.TierBronze}), nil
		}
		return LoyaltySummary{}, s.mapError(ctx, "loyalty.summary_failed", err)
	}
	return summarize(id, customer.Loyalty), nil
}

func (s *loyaltyService) Redeem(ctx context.Context, customerID string, points int64, orderID string) (LoyaltySummary, error) {
	if points <= 0 {
		return LoyaltySummary{}, ErrLoyaltyInvalidInput
	}
	return s.mutate(ctx, customerID, func(ledger domain.Loyalty, now time.Time) (domain.Loyalty, error) {
		return commerce.RedeemPoints(ledger, points, commerce.EntryRef{ID: s.newID(), OrderID: orderID, Reason: "redeemed", At: now})
	})
}

func (s *loyaltyService) Credit(ctx context.Context, customerID string, points int64, orderID string) (LoyaltySummary, error) {
	if points <= 0 {
		return LoyaltySummary{}, ErrLoyaltyInvalidInput
	}
	return s.mutate(ctx, customerID, func(ledger domain.Loyalty, now time.Time) (domain.Loyalty, error) {
		return commerce.EarnPoints(ledger, points, commerce.EntryRef{ID: s.newID(), OrderID: orderID, Reason: "credited", At: now}), nil
	})
}

// Adjust applies a manual correction. Positive deltas count as earned points; negative deltas
// are debited and may not take the balance below zero.
func (s *loyaltyService) Adjust(ctx context.Context, cmd AdjustLoyaltyCommand) (LoyaltySummary, error) {
	reason := strings.TrimSpace(cmd.Reason)
	if cmd.Delta == 0 || reason == "" {
		return LoyaltySummary{}, ErrLoyaltyInvalidInput
	}
	summary, err := s.mutate(ctx, cmd.CustomerID, func(ledger domain.Loyalty, now time.Time) (domain.Loyalty, error) {
		ref := commerce.EntryRef{ID: s.newID(), Reason: "adjustment: " + reason, At: now}
		if cmd.Delta > 0 {
			return commerce.EarnPoints(ledger, cmd.Delta, ref), nil
		}
		return commerce.RedeemPoints(ledger, -cmd.Delta, ref)
	})
	if err == nil {
		s.logger(ctx, "loyalty.adjusted", map[string]any{"customerId": summary.CustomerID, "delta": cmd.Delta, "actorId": cmd.ActorID})
	}
	return summary, err
}

func (s *loyaltyService) mutate(ctx context.Context, customerID string, fn func(domain.Loyalty, time.Time) (domain.Loyalty, error)) (LoyaltySummary, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return LoyaltySummary{}, ErrLoyaltyInvalidInput
	}
	var saved domain.Customer
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		customer, err := s.customers.Get(ctx, id)
		if err != nil {
			return err
		}
		now := s.now()
		ledger, err := fn(customer.Loyalty, now)
		if err != nil {
			return err
		}
		customer.Loyalty = ledger
		customer.UpdatedAt = now
		if err := s.customers.Save(ctx, customer); err != nil {
			return err
		}
		saved = customer
		return nil
	})
	if err != nil {
		return LoyaltySummary{}, s.mapError(ctx, "loyalty.update_failed", err)
	}
	return summarize(id, saved.Loyalty), nil
}

func summarize(customerID string, ledger domain.Loyalty) LoyaltySummary {
	tier := ledger.Tier
	if tier == "" {
		tier = commerce.TierFor(ledger.TotalEarned)
	}
	history := make([]domain.LoyaltyEntry, 0, min(len(ledger.History), maxSummaryHistory))
	for i := len(ledger.History) - 1; i >= 0 && len(history) < maxSummaryHistory; i-- {
		history = append(history, ledger.History[i])
	}
	return LoyaltySummary{
		CustomerID:    customerID,
		CurrentPoints: commerce.NonNegative(ledger.CurrentPoints),
		TotalEarned:   commerce.NonNegative(ledger.TotalEarned),
		Tier:          tier,
		PointsToNext:  commerce.PointsToNextTier(tier, ledger.CurrentPoints),
		History:       history,
	}
}

func (s *loyaltyService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, commerce.ErrInsufficientPoints), errors.Is(err, ErrLoyaltyInvalidInput):
		return err
	case isRepoNotFound(err):
		return ErrLoyaltyCustomerNotFound
	case isRepoConflict(err):
		return ErrLoyaltyConflict
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrLoyaltyUnavailable, err)
}
