package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/pagination"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/textutil"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const customerCollection = "customers"

// CustomerRepository stores customer profiles keyed by Firebase uid. The loyalty ledger lives
// on the same document so point mutations are a single-document transaction.
type CustomerRepository struct {
	base *pfirestore.BaseRepository[customerDocument]
}

var _ repositories.CustomerRepository = (*CustomerRepository)(nil)

type customerDocument struct {
	Email     string          `firestore:"email"`
	Name      string          `firestore:"name"`
	Phone     string          `firestore:"phone,omitempty"`
	Blocked   bool            `firestore:"blocked"`
	Loyalty   loyaltyDocument `firestore:"loyalty"`
	CreatedAt time.Time       `firestore:"createdAt"`
	UpdatedAt time.Time       `firestore:"updatedAt"`
}

type loyaltyDocument struct {
	CurrentPoints int64                  `firestore:"currentPoints"`
	TotalEarned   int64                  `firestore:"totalEarned"`
	Tier          string                 `firestore:"tier"`
	History       []loyaltyEntryDocument `firestore:"history"`
}

type loyaltyEntryDocument struct {
	ID        string    `firestore:"id"`
	Type      string    `firestore:"type"`
	Points    int64     `firestore:"points"`
	OrderID   string    `firestore:"orderId,omitempty"`
	Reason    string    `firestore:"reason,omitempty"`
	Timestamp time.Time `firestore:"timestamp"`
}

// NewCustomerRepository constructs a Firestore-backed customer repository.
func NewCustomerRepository(provider *pfirestore.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires firestore provider")
	}
	return &CustomerRepository{
		base: pfirestore.NewBaseRepository[customerDocument](provider, customerCollection, nil, nil),
	}, nil
}

func (r *CustomerRepository) Get(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(customerID))
	if err != nil {
		return domain.Customer{}, err
	}
	return decodeCustomer(doc.ID, doc.Data), nil
}

func (r *CustomerRepository) Save(ctx context.Context, customer domain.Customer) error {
	id := strings.TrimSpace(customer.ID)
	if id == "" {
		return errors.New("customer repository: customer id is required")
	}
	doc := customerDocument{
		Email:     strings.TrimSpace(customer.Email),
		Name:      strings.TrimSpace(customer.Name),
		Phone:     strings.TrimSpace(customer.Phone),
		Blocked:   customer.Blocked,
		CreatedAt: customer.CreatedAt.UTC(),
		UpdatedAt: customer.UpdatedAt.UTC(),
		Loyalty: loyaltyDocument{
			CurrentPoints: customer.Loyalty.CurrentPoints,
			TotalEarned:   customer.Loyalty.TotalEarned,
			Tier:          string(customer.Loyalty.Tier),
			History:       make([]loyaltyEntryDocument, 0, len(customer.Loyalty.History)),
		},
	}
	for _, entry := range customer.Loyalty.History {
		doc.Loyalty.History = append(doc.Loyalty.History, loyaltyEntryDocument{
			ID:        entry.ID,
			Type:      string(entry.Type),
			Points:    entry.Points,
			OrderID:   entry.OrderID,
			Reason:    entry.Reason,
			Timestamp: entry.Timestamp.UTC(),
		})
	}
	return r.base.Set(ctx, id, doc)
}

// List returns customers newest first, filtered by tier in Firestore and by name/email/phone
// search in memory.
func (r *CustomerRepository) List(ctx context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Tier != nil {
			q = q.Where("loyalty.tier", "==", string(*filter.Tier))
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}

	customers := make([]domain.Customer, 0, len(docs))
	for _, doc := range docs {
		c := decodeCustomer(doc.ID, doc.Data)
		if !textutil.ContainsFolded(strings.Join([]string{c.Name, c.Email, c.Phone}, " "), filter.Search) {
			continue
		}
		customers = append(customers, c)
	}
	sort.SliceStable(customers, func(i, j int) bool {
		return customers[i].CreatedAt.After(customers[j].CreatedAt)
	})

	items, next, err := pagination.Window(customers, filter.Pagination.PageSize, filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Customer]{}, err
	}
	return domain.CursorPage[domain.Customer]{Items: items, NextPageToken: next}, nil
}

func decodeCustomer(id string, doc customerDocument) domain.Customer {
	c := domain.Customer{
		ID:        id,
		Email:     doc.Email,
		Name:      doc.Name,
		Phone:     doc.Phone,
		Blocked:   doc.Blocked,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Loyalty: domain.Loyalty{
			CurrentPoints: doc.Loyalty.CurrentPoints,
			TotalEarned:   doc.Loyalty.TotalEarned,
			Tier:          domain.Tier(doc.Loyalty.Tier),
		},
	}
	if c.Loyalty.Tier == "" {
		c.Loyalty.Tier = domain.TierBronze
	}
	for _, entry := range doc.Loyalty.History {
		c.Loyalty.History = append(c.Loyalty.History, domain.LoyaltyEntry{
			ID:        entry.ID,
			Type:      domain.LoyaltyEntryType(entry.Type),
			Points:    entry.Points,
			OrderID:   entry.OrderID,
			Reason:    entry.Reason,
			Timestamp: entry.Timestamp,
		})
	}
	return c
}
