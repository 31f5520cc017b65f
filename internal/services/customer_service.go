package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var (
	// ErrCustomerInvalidInput indicates invalid profile fields.
	ErrCustomerInvalidInput = errors.New("customer: invalid input")
	// ErrCustomerNotFound indicates the profile does not exist.
	ErrCustomerNotFound = errors.New("customer: not found")
	// ErrCustomerUnavailable indicates the customer store failed.
	ErrCustomerUnavailable = errors.New("customer: unavailable")
)

const maxCustomerNameLength = 120

// CustomerServiceDeps wires the customer service.
type CustomerServiceDeps struct {
	Customers repositories.CustomerRepository
	Clock     func() time.Time
	Logger    Logger
}

type customerService struct {
	customers repositories.CustomerRepository
	now       func() time.Time
	logger    Logger
}

var _ CustomerService = (*customerService)(nil)

// NewCustomerService constructs a CustomerService.
func NewCustomerService(deps CustomerServiceDeps) (CustomerService, error) {
	if deps.Customers == nil {
		return nil, errors.New("customer service: customer repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &customerService{
		customers: deps.Customers,
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
	}, nil
}

// EnsureProfile returns the profile for identity.UID, creating it on first sign-in. Missing
// email or name on an existing profile are filled from the token.
func (s *customerService) EnsureProfile(ctx context.Context, identity CustomerIdentity) (Customer, error) {
	uid := strings.TrimSpace(identity.UID)
	if uid == "" {
		return Customer{}, ErrCustomerInvalidInput
	}
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	name := strings.TrimSpace(identity.Name)

	customer, err := s.customers.Get(ctx, uid)
	switch {
	case err == nil:
		dirty := false
		if customer.Email == "" && email != "" {
			customer.Email, dirty = email, true
		}
		if customer.Name == "" && name != "" {
			customer.Name, dirty = name, true
		}
		if !dirty {
			return customer, nil
		}
		customer.UpdatedAt = s.now()
	case isRepoNotFound(err):
		now := s.now()
		customer = Customer{
			ID:        uid,
			Email:     email,
			Name:      name,
			Loyalty:   domain.Loyalty{Tier: domain.TierBronze},
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.logger(ctx, "customer.created", map[string]any{"customerId": uid})
	default:
		return Customer{}, s.mapError(ctx, "customer.get_failed", err)
	}
	if err := s.customers.Save(ctx, customer); err != nil {
		return Customer{}, s.mapError(ctx, "customer.save_failed", err)
	}
	return customer, nil
}

func (s *customerService) ListCustomers(ctx context.Context, filter CustomerListFilter) (domain.CursorPage[Customer], error) {
	page, err := s.customers.List(ctx, repositories.CustomerListFilter{
		Search:     strings.TrimSpace(filter.Search),
		Tier:       filter.Tier,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Customer]{}, s.mapError(ctx, "customer.list_failed", err)
	}
	return page, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID string) (Customer, error) {
	id := strings.TrimSpace(customerID)
	if id == "" {
		return Customer{}, ErrCustomerInvalidInput
	}
	customer, err := s.customers.Get(ctx, id)
	if err != nil {
		return Customer{}, s.mapError(ctx, "customer.get_failed", err)
	}
	return customer, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, cmd UpdateCustomerCommand) (Customer, error) {
	customer, err := s.GetCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return Customer{}, err
	}
	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" || len([]rune(name)) > maxCustomerNameLength {
			return Customer{}, fmt.Errorf("%w: name must be 1-%d characters", ErrCustomerInvalidInput, maxCustomerNameLength)
		}
		customer.Name = name
	}
	if cmd.Phone != nil {
		phone := strings.TrimSpace(*cmd.Phone)
		if phone != "" && !validPhone(phone) {
			return Customer{}, fmt.Errorf("%w: phone is invalid", ErrCustomerInvalidInput)
		}
		customer.Phone = phone
	}
	if cmd.Blocked != nil {
		customer.Blocked = *cmd.Blocked
	}
	customer.UpdatedAt = s.now()
	if err := s.customers.Save(ctx, customer); err != nil {
		return Customer{}, s.mapError(ctx, "customer.save_failed", err)
	}
	return customer, nil
}

// validPhone accepts digits with an optional leading "+" and space or dash separators.
func validPhone(phone string) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' && i == 0, r == ' ', r == '-':
		default:
			return false
		}
	}
	return digits >= 8 && digits <= 15
}

func (s *customerService) mapError(ctx context.Context, event string, err error) error {
	if isRepoNotFound(err) {
		return ErrCustomerNotFound
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCustomerUnavailable, err)
}
