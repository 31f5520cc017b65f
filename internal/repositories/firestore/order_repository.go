package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	pfirestore "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/firestore"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/pagination"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders with their items, address, and activity embedded.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

type orderDocument struct {
	CustomerID      string                     `firestore:"customerId"`
	CustomerEmail   string                     `firestore:"customerEmail,omitempty"`
	Items           []orderItemDocument        `firestore:"items"`
	Currency        string                     `firestore:"currency"`
	Subtotal        int64                      `firestore:"subtotal"`
	ShippingFee     int64                      `firestore:"shippingFee"`
	Discount        int64                      `firestore:"discount"`
	Tax             int64                      `firestore:"tax"`
	Total           int64                      `firestore:"total"`
	PaymentMethod   string                     `firestore:"paymentMethod"`
	PaymentStatus   string                     `firestore:"paymentStatus"`
	PaymentIntentID string                     `firestore:"paymentIntentId,omitempty"`
	Status          string                     `firestore:"status"`
	Activity        []shippingActivityDocument `firestore:"shippingActivity,omitempty"`
	PointsEarned    *int64                     `firestore:"pointsEarned"`
	PointsUsed      int64                      `firestore:"pointsUsed"`
	PointsCredited  bool                       `firestore:"pointsCredited"`
	ShippingAddress addressDocument            `firestore:"shippingAddress"`
	Note            string                     `firestore:"note,omitempty"`
	CreatedAt       time.Time                  `firestore:"createdAt"`
	UpdatedAt       time.Time                  `firestore:"updatedAt"`
	CanceledAt      *time.Time                 `firestore:"canceledAt,omitempty"`
	DeliveredAt     *time.Time                 `firestore:"deliveredAt,omitempty"`
}

type orderItemDocument struct {
	ProductID string                  `firestore:"productId"`
	Name      string                  `firestore:"name"`
	Image     string                  `firestore:"image,omitempty"`
	UnitPrice int64                   `firestore:"unitPrice"`
	Quantity  int64                   `firestore:"quantity"`
	Variants  []variantChoiceDocument `firestore:"variants,omitempty"`
}

type shippingActivityDocument struct {
	Status      string `firestore:"status"`
	Description string `firestore:"description"`
	Date        string `firestore:"date"`
	Time        string `firestore:"time"`
	Completed   bool   `firestore:"completed"`
}

type addressDocument struct {
	FullName   string `firestore:"fullName"`
	Phone      string `firestore:"phone"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	Ward       string `firestore:"ward,omitempty"`
	District   string `firestore:"district,omitempty"`
	City       string `firestore:"city"`
	PostalCode string `firestore:"postalCode,omitempty"`
	Country    string `firestore:"country"`
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
	}, nil
}

// Insert creates the order and fails with a conflict if the id is taken.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Create(ctx, id, encodeOrder(order))
}

// Update replaces the order document.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return errors.New("order repository: order id is required")
	}
	return r.base.Set(ctx, id, encodeOrder(order))
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByPaymentIntent resolves the order a Stripe payment intent belongs to.
func (r *OrderRepository) FindByPaymentIntent(ctx context.Context, intentID string) (domain.Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return domain.Order{}, pfirestore.NotFound("orders.find_by_payment_intent", "payment intent id is empty")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentIntentId", "==", intentID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFound("orders.find_by_payment_intent", "no order for payment intent "+intentID)
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// List returns orders newest first. A display code search is matched in memory over the
// equality-filtered result.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	build := func(q firestore.Query) firestore.Query {
		if id := strings.TrimSpace(filter.CustomerID); id != "" {
			q = q.Where("customerId", "==", id)
		}
		switch len(filter.Status) {
		case 0:
		case 1:
			q = q.Where("status", "==", string(filter.Status[0]))
		default:
			statuses := make([]string, 0, len(filter.Status))
			for _, s := range filter.Status {
				statuses = append(statuses, string(s))
			}
			q = q.Where("status", "in", statuses)
		}
		if filter.PaymentStatus != nil {
			q = q.Where("paymentStatus", "==", string(*filter.PaymentStatus))
		}
		if filter.Placed.From != nil {
			q = q.Where("createdAt", ">=", filter.Placed.From.UTC())
		}
		if filter.Placed.To != nil {
			q = q.Where("createdAt", "<", filter.Placed.To.UTC())
		}
		return q.OrderBy("createdAt", firestore.Desc)
	}

	if code := strings.TrimSpace(filter.DisplayCode); code != "" {
		docs, err := r.base.Query(ctx, build)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		matched := make([]domain.Order, 0)
		for _, doc := range docs {
			if domain.MatchesDisplayCode(doc.ID, code) {
				matched = append(matched, decodeOrder(doc.ID, doc.Data))
			}
		}
		items, next, err := pagination.Window(matched, filter.Pagination.PageSize, filter.Pagination.PageToken)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		return domain.CursorPage[domain.Order]{Items: items, NextPageToken: next}, nil
	}

	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	docs, last, err := r.base.Page(ctx, build, filter.Pagination.PageSize, cursor.After)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, len(docs))}
	for _, doc := range docs {
		page.Items = append(page.Items, decodeOrder(doc.ID, doc.Data))
	}
	if last != "" {
		page.NextPageToken = pagination.EncodeToken(pagination.Cursor{After: last})
	}
	return page, nil
}

func encodeOrder(o domain.Order) orderDocument {
	doc := orderDocument{
		CustomerID:      o.CustomerID,
		CustomerEmail:   o.CustomerEmail,
		Items:           make([]orderItemDocument, 0, len(o.Items)),
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		Discount:        o.Discount,
		Tax:             o.Tax,
		Total:           o.Total,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		PaymentIntentID: o.PaymentIntentID,
		Status:          string(o.Status),
		PointsEarned:    o.PointsEarned,
		PointsUsed:      o.PointsUsed,
		PointsCredited:  o.PointsCredited,
		ShippingAddress: addressDocument(o.ShippingAddress),
		Note:            o.Note,
		CreatedAt:       o.CreatedAt.UTC(),
		UpdatedAt:       o.UpdatedAt.UTC(),
		CanceledAt:      utcPtr(o.CanceledAt),
		DeliveredAt:     utcPtr(o.DeliveredAt),
	}
	for _, item := range o.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  int64(item.Quantity),
			Variants:  encodeVariantChoices(item.Variants),
		})
	}
	for _, a := range o.Activity {
		doc.Activity = append(doc.Activity, shippingActivityDocument(a))
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	status, _ := domain.ParseOrderStatus(doc.Status)
	paymentStatus, _ := domain.ParsePaymentStatus(doc.PaymentStatus)
	method, _ := domain.ParsePaymentMethod(doc.PaymentMethod)
	o := domain.Order{
		ID:              id,
		CustomerID:      doc.CustomerID,
		CustomerEmail:   doc.CustomerEmail,
		Items:           make([]domain.OrderItem, 0, len(doc.Items)),
		Currency:        doc.Currency,
		Subtotal:        doc.Subtotal,
		ShippingFee:     doc.ShippingFee,
		Discount:        doc.Discount,
		Tax:             doc.Tax,
		Total:           doc.Total,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		PaymentIntentID: doc.PaymentIntentID,
		Status:          status,
		PointsEarned:    doc.PointsEarned,
		PointsUsed:      doc.PointsUsed,
		PointsCredited:  doc.PointsCredited,
		ShippingAddress: domain.Address(doc.ShippingAddress),
		Note:            doc.Note,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
		CanceledAt:      doc.CanceledAt,
		DeliveredAt:     doc.DeliveredAt,
	}
	for _, item := range doc.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  int(item.Quantity),
			Variants:  decodeVariantChoices(item.Variants),
		})
	}
	for _, a := range doc.Activity {
		o.Activity = append(o.Activity, domain.ShippingActivity(a))
	}
	return o
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
