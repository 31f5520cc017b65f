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
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied invalid parameters.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order does not exist or belongs to someone else.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidTransition indicates the requested status change is not allowed.
	ErrOrderInvalidTransition = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates a concurrent modification prevented the update.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrOrderUnavailable indicates the order store failed.
	ErrOrderUnavailable = errors.New("order: unavailable")
)

// OrderServiceDeps wires the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Products  repositories.ProductRepository
	Customers repositories.CustomerRepository
	Tx        repositories.UnitOfWork
	// Payments is optional; when set, paid card orders are refunded on cancel/refund.
	Payments    payments.Provider
	Events      OrderEventPublisher
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
}

type orderService struct {
	orders    repositories.OrderRepository
	customers repositories.CustomerRepository
	tx        repositories.UnitOfWork
	payments  payments.Provider
	events    OrderEventPublisher
	releaser  orderReleaser
	now       func() time.Time
	logger    Logger
	newID     func() string
}

var _ OrderService = (*orderService)(nil)

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product repository is required")
	case deps.Customers == nil:
		return nil, errors.New("order service: customer repository is required")
	case deps.Tx == nil:
		return nil, errors.New("order service: unit of work is required")
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
	return &orderService{
		orders:    deps.Orders,
		customers: deps.Customers,
		tx:        deps.Tx,
		payments:  deps.Payments,
		events:    deps.Events,
		releaser:  orderReleaser{products: deps.Products, customers: deps.Customers, newID: idGen},
		now:       func() time.Time { return clock().UTC() },
		logger:    logger,
		newID:     idGen,
	}, nil
}

func (s *orderService) ListOrders(ctx context.Context, customerID string, filter OrderListFilter) (domain.CursorPage[Order], error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}
	return s.list(ctx, customerID, filter)
}

func (s *orderService) ListAllOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	return s.list(ctx, "", filter)
}

func (s *orderService) list(ctx context.Context, customerID string, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		CustomerID:    customerID,
		Status:        filter.Status,
		PaymentStatus: filter.PaymentStatus,
		DisplayCode:   strings.TrimSpace(filter.Search),
		Pagination:    filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapError(ctx, "order.list_failed", err)
	}
	return page, nil
}

// GetOrder returns the order when it belongs to customerID.
func (s *orderService) GetOrder(ctx context.Context, customerID, orderID string) (Order, error) {
	order, err := s.AdminGetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.CustomerID != strings.TrimSpace(customerID) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) AdminGetOrder(ctx context.Context, orderID string) (Order, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return Order{}, s.mapError(ctx, "order.get_failed", err)
	}
	return order, nil
}

func (s *orderService) Timeline(ctx context.Context, customerID, orderID string) ([]domain.ShippingActivity, error) {
	order, err := s.GetOrder(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	return commerce.DeriveShippingTimeline(string(order.Status), order.CreatedAt, order.Activity), nil
}

// CancelOrder lets a customer cancel while the order is pending or processing. Stock is put
// back and redeemed points are refunded in the same transaction.
func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	orderID := strings.TrimSpace(cmd.OrderID)
	if customerID == "" || orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	note := strings.TrimSpace(cmd.Reason)
	if note == "" {
		note = "Cancelled by customer"
	}

	var order Order
	var previous domain.OrderStatus
	var paid bool
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		if current.CustomerID != customerID {
			return ErrOrderNotFound
		}
		if current.Status != domain.OrderStatusPending && current.Status != domain.OrderStatusProcessing {
			return fmt.Errorf("%w: cannot cancel a %s order", ErrOrderInvalidTransition, current.Status)
		}
		previous = current.Status
		paid = current.PaymentStatus == domain.PaymentStatusPaid
		pending, err := s.releaser.prepare(ctx, current)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.releaser.apply(ctx, current, pending, "order_cancelled", now); err != nil {
			return err
		}
		current.Activity = appendActivity(current, domain.OrderStatusCancelled, note, now)
		current.Status = domain.OrderStatusCancelled
		current.CanceledAt = &now
		current.UpdatedAt = now
		if err := s.orders.Update(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, s.mapError(ctx, "order.cancel_failed", err)
	}
	s.logger(ctx, "order.cancelled", map[string]any{"orderId": order.ID, "customerId": customerID, "pointsRefunded": order.PointsUsed})
	if paid {
		order = s.refund(ctx, order)
	}
	s.publishStatus(ctx, order, previous)
	return order, nil
}

// UpdateStatus applies an admin transition. Terminal orders cannot move, and an order that has
// left the shop can no longer be cancelled. The first move to delivered credits the order's
// points; cancelling restores stock and points. Refunding returns redeemed points and takes
// back credited ones; a paid card order keeps its payment status until the provider confirms.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" || !cmd.Status.Valid() {
		return Order{}, ErrOrderInvalidInput
	}
	next := cmd.Status

	var order Order
	var previous domain.OrderStatus
	changed, paid := false, false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		changed = false
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		order = current
		previous = current.Status
		paid = current.PaymentStatus == domain.PaymentStatusPaid
		if current.Status == next {
			return nil
		}
		if current.Status.IsTerminal() {
			return fmt.Errorf("%w: %s is final", ErrOrderInvalidTransition, current.Status)
		}
		if next == domain.OrderStatusCancelled && current.Status.Presentation().Rank >= domain.OrderStatusShipped.Presentation().Rank {
			return fmt.Errorf("%w: a %s order is returned, not cancelled", ErrOrderInvalidTransition, current.Status)
		}

		now := s.now()
		var release *pendingRelease
		if next == domain.OrderStatusCancelled {
			pending, err := s.releaser.prepare(ctx, current)
			if err != nil {
				return err
			}
			release = &pending
		}
		credit := next == domain.OrderStatusDelivered && !current.PointsCredited
		reverse := next == domain.OrderStatusRefunded && (current.PointsUsed > 0 || current.PointsCredited)
		var customer *Customer
		if (credit || reverse) && current.CustomerID != "" {
			c, err := s.customers.Get(ctx, current.CustomerID)
			if err != nil && !isRepoNotFound(err) {
				return err
			}
			if err == nil {
				customer = &c
			}
		}

		// writes
		if release != nil {
			if err := s.releaser.apply(ctx, current, *release, "order_cancelled", now); err != nil {
				return err
			}
			current.CanceledAt = &now
		}
		if next == domain.OrderStatusDelivered {
			current.DeliveredAt = &now
		}
		if customer != nil {
			ledger := customer.Loyalty
			if credit {
				ledger = commerce.EarnPoints(ledger, commerce.ComputePointsEarned(current), s.entryRef(current, "order_delivered", now))
				current.PointsCredited = true
			}
			if reverse {
				ledger = commerce.RefundPoints(ledger, current.PointsUsed, s.entryRef(current, "order_refunded", now))
				if current.PointsCredited {
					ledger = commerce.ReverseEarnedPoints(ledger, commerce.ComputePointsEarned(current), s.entryRef(current, "order_refunded", now))
					current.PointsCredited = false
				}
			}
			customer.Loyalty = ledger
			customer.UpdatedAt = now
			if err := s.customers.Save(ctx, *customer); err != nil {
				return err
			}
		}
		if next == domain.OrderStatusRefunded && !(paid && s.refundsThroughProvider(current)) {
			current.PaymentStatus = domain.PaymentStatusRefunded
		}
		current.Activity = appendActivity(current, next, strings.TrimSpace(cmd.Note), now)
		current.Status = next
		current.UpdatedAt = now
		if err := s.orders.Update(ctx, current); err != nil {
			return err
		}
		order = current
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, s.mapError(ctx, "order.status_update_failed", err)
	}
	if !changed {
		return order, nil
	}
	s.logger(ctx, "order.status_updated", map[string]any{
		"orderId":  order.ID,
		"from":     string(previous),
		"to":       string(order.Status),
		"actorId":  cmd.ActorID,
		"credited": order.PointsCredited,
	})
	if paid && (next == domain.OrderStatusCancelled || next == domain.OrderStatusRefunded) {
		order = s.refund(ctx, order)
	}
	s.publishStatus(ctx, order, previous)
	return order, nil
}

func (s *orderService) entryRef(order Order, reason string, at time.Time) commerce.EntryRef {
	return commerce.EntryRef{ID: s.newID(), OrderID: order.ID, Reason: reason, At: at}
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, cmd UpdatePaymentStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if _, ok := domain.ParsePaymentStatus(string(cmd.Status)); orderID == "" || !ok {
		return Order{}, ErrOrderInvalidInput
	}
	var order Order
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		order = current
		changed = current.PaymentStatus != cmd.Status
		if !changed {
			return nil
		}
		current.PaymentStatus = cmd.Status
		current.UpdatedAt = s.now()
		if err := s.orders.Update(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		return Order{}, s.mapError(ctx, "order.payment_update_failed", err)
	}
	if changed {
		s.logger(ctx, "order.payment_status_updated", map[string]any{"orderId": order.ID, "status": string(order.PaymentStatus), "actorId": cmd.ActorID})
		s.publish(ctx, OrderEvent{
			Type:          OrderEventPaymentStatus,
			OrderID:       order.ID,
			DisplayCode:   domain.DisplayCode(order.ID),
			CustomerID:    order.CustomerID,
			Status:        order.Status,
			PaymentStatus: string(order.PaymentStatus),
			Total:         order.Total,
			Currency:      order.Currency,
			OccurredAt:    order.UpdatedAt,
		})
	}
	return order, nil
}

// refund returns a captured card payment. Failures are logged and the order keeps its
// payment status so staff can retry from the admin.
func (s *orderService) refund(ctx context.Context, order Order) Order {
	if !s.refundsThroughProvider(order) {
		return order
	}
	if _, err := s.payments.Refund(ctx, payments.RefundRequest{
		IntentID:       order.PaymentIntentID,
		Reason:         "requested_by_customer",
		IdempotencyKey: "refund-" + order.ID,
	}); err != nil {
		s.logger(ctx, "order.refund_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return order
	}
	if order.PaymentStatus == domain.PaymentStatusRefunded {
		return order
	}
	updated, err := s.UpdatePaymentStatus(ctx, UpdatePaymentStatusCommand{OrderID: order.ID, Status: domain.PaymentStatusRefunded, ActorID: "system"})
	if err != nil {
		s.logger(ctx, "order.refund_status_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return order
	}
	return updated
}

func (s *orderService) refundsThroughProvider(order Order) bool {
	return s.payments != nil && order.PaymentMethod == domain.PaymentMethodCard && order.PaymentIntentID != ""
}

func (s *orderService) publishStatus(ctx context.Context, order Order, previous domain.OrderStatus) {
	s.publish(ctx, OrderEvent{
		Type:           OrderEventStatusChanged,
		OrderID:        order.ID,
		DisplayCode:    domain.DisplayCode(order.ID),
		CustomerID:     order.CustomerID,
		Status:         order.Status,
		PreviousStatus: previous,
		PaymentStatus:  string(order.PaymentStatus),
		Total:          order.Total,
		Currency:       order.Currency,
		OccurredAt:     order.UpdatedAt,
	})
}

func (s *orderService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.publish_failed", map[string]any{"orderId": event.OrderID, "type": event.Type, "error": err.Error()})
	}
}

func (s *orderService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, ErrOrderNotFound), isRepoNotFound(err):
		return ErrOrderNotFound
	case errors.Is(err, ErrOrderInvalidTransition), errors.Is(err, ErrOrderInvalidInput):
		return err
	case isRepoConflict(err):
		return ErrOrderConflict
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}
