package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const (
	orderIDPrefix          = "ord_"
	defaultPointValue      = 1000
	maxOrderNoteLength     = 500
	checkoutInstrumentName = "github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

var (
	// ErrCheckoutInvalidInput indicates the checkout form is incomplete or malformed.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutEmptyCart indicates there is nothing to order.
	ErrCheckoutEmptyCart = errors.New("checkout: cart is empty")
	// ErrCheckoutProductUnavailable indicates a cart product is missing or unpublished.
	ErrCheckoutProductUnavailable = errors.New("checkout: product unavailable")
	// ErrCheckoutInsufficientStock indicates stock cannot cover the cart.
	ErrCheckoutInsufficientStock = errors.New("checkout: insufficient stock")
	// ErrCheckoutConflict indicates a concurrent modification prevented completing checkout.
	ErrCheckoutConflict = errors.New("checkout: conflict")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrCheckoutPaymentFailed indicates the payment session could not be created.
	ErrCheckoutPaymentFailed = errors.New("checkout: payment failed")
	// ErrCheckoutPaymentUnavailable indicates card payments are not configured.
	ErrCheckoutPaymentUnavailable = errors.New("checkout: card payments unavailable")
	// ErrCheckoutInvalidSignature indicates a webhook failed signature verification.
	ErrCheckoutInvalidSignature = errors.New("checkout: invalid webhook signature")
	// ErrCustomerBlocked indicates the account may not place orders.
	ErrCustomerBlocked = errors.New("checkout: customer blocked")
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts     repositories.CartRepository
	Products  repositories.ProductRepository
	Orders    repositories.OrderRepository
	Customers repositories.CustomerRepository
	Tx        repositories.UnitOfWork
	// Payments is optional; without it card checkout is rejected.
	Payments payments.Provider
	Events   OrderEventPublisher
	// Shipping returns the shipping fee for a subtotal.
	Shipping func(subtotal int64) int64
	// PointValue is the discount per redeemed point in minor units.
	PointValue      int64
	DefaultCurrency string
	SuccessURL      string
	CancelURL       string
	Meter           metric.Meter
	Clock           func() time.Time
	Logger          Logger
	IDGenerator     func() string
}

type checkoutService struct {
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	orders     repositories.OrderRepository
	customers  repositories.CustomerRepository
	tx         repositories.UnitOfWork
	payments   payments.Provider
	events     OrderEventPublisher
	shipping   func(int64) int64
	pointValue int64
	currency   string
	successURL string
	cancelURL  string
	placed     metric.Int64Counter
	now        func() time.Time
	logger     Logger
	newID      func() string
}

var _ CheckoutService = (*checkoutService)(nil)

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	switch {
	case deps.Carts == nil:
		return nil, errors.New("checkout service: cart repository is required")
	case deps.Products == nil:
		return nil, errors.New("checkout service: product repository is required")
	case deps.Orders == nil:
		return nil, errors.New("checkout service: order repository is required")
	case deps.Customers == nil:
		return nil, errors.New("checkout service: customer repository is required")
	case deps.Tx == nil:
		return nil, errors.New("checkout service: unit of work is required")
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
	shipping := deps.Shipping
	if shipping == nil {
		shipping = func(int64) int64 { return 0 }
	}
	pointValue := deps.PointValue
	if pointValue <= 0 {
		pointValue = defaultPointValue
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "VND"
	}
	meter := deps.Meter
	if meter == nil {
		meter = otel.Meter(checkoutInstrumentName)
	}
	placed, err := meter.Int64Counter("checkout.orders",
		metric.WithDescription("Checkout attempts by outcome and payment method"))
	if err != nil {
		return nil, fmt.Errorf("checkout service: create counter: %w", err)
	}

	return &checkoutService{
		carts:      deps.Carts,
		products:   deps.Products,
		orders:     deps.Orders,
		customers:  deps.Customers,
		tx:         deps.Tx,
		payments:   deps.Payments,
		events:     deps.Events,
		shipping:   shipping,
		pointValue: pointValue,
		currency:   currency,
		successURL: strings.TrimSpace(deps.SuccessURL),
		cancelURL:  strings.TrimSpace(deps.CancelURL),
		placed:     placed,
		now:        func() time.Time { return clock().UTC() },
		logger:     logger,
		newID:      idGen,
	}, nil
}

// PlaceOrder converts the session cart into an order in one transaction: products and stock
// are re-checked, stock is decremented, points are redeemed and the cart is cleared. Card
// orders then get a hosted payment session; if that fails the order is rolled back.
func (s *checkoutService) PlaceOrder(ctx context.Context, session Session, cmd PlaceOrderCommand) (CheckoutResult, error) {
	if session.IsGuest() {
		return CheckoutResult{}, ErrSessionRequired
	}
	method, err := s.validate(&cmd)
	if err != nil {
		s.record(ctx, "invalid", cmd.PaymentMethod)
		return CheckoutResult{}, err
	}

	orderID := orderIDPrefix + strings.ToLower(s.newID())
	var order Order
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		placed, err := s.placeInTx(ctx, session, cmd, method, orderID)
		if err != nil {
			return err
		}
		order = placed
		return nil
	})
	if err != nil {
		s.record(ctx, outcomeFor(err), method)
		return CheckoutResult{}, s.mapError(ctx, "checkout.place_failed", err)
	}

	result := CheckoutResult{Order: order}
	if method == domain.PaymentMethodCard {
		paymentSession, err := s.createPaymentSession(ctx, order, cmd.IdempotencyKey)
		if err != nil {
			s.record(ctx, "payment_failed", method)
			s.rollback(ctx, order)
			return CheckoutResult{}, fmt.Errorf("%w: %v", ErrCheckoutPaymentFailed, err)
		}
		result.RedirectURL = paymentSession.RedirectURL
		result.SessionID = paymentSession.ID
		if paymentSession.IntentID != "" {
			order.PaymentIntentID = paymentSession.IntentID
			order.UpdatedAt = s.now()
			if err := s.orders.Update(ctx, order); err != nil {
				s.logger(ctx, "checkout.intent_save_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
			}
			result.Order = order
		}
	}

	s.record(ctx, "placed", method)
	s.logger(ctx, "checkout.order_placed", map[string]any{
		"orderId":       order.ID,
		"customerId":    order.CustomerID,
		"total":         order.Total,
		"pointsUsed":    order.PointsUsed,
		"paymentMethod": string(method),
	})
	s.publish(ctx, OrderEvent{
		Type:          OrderEventCreated,
		OrderID:       order.ID,
		DisplayCode:   domain.DisplayCode(order.ID),
		CustomerID:    order.CustomerID,
		Status:        order.Status,
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Total,
		Currency:      order.Currency,
		OccurredAt:    order.CreatedAt,
	})
	return result, nil
}

func (s *checkoutService) validate(cmd *PlaceOrderCommand) (domain.PaymentMethod, error) {
	method, ok := domain.ParsePaymentMethod(string(cmd.PaymentMethod))
	if !ok {
		return "", fmt.Errorf("%w: unsupported payment method %q", ErrCheckoutInvalidInput, cmd.PaymentMethod)
	}
	if method == domain.PaymentMethodCard && s.payments == nil {
		return "", ErrCheckoutPaymentUnavailable
	}
	addr := &cmd.ShippingAddress
	addr.FullName = strings.TrimSpace(addr.FullName)
	addr.Phone = strings.TrimSpace(addr.Phone)
	addr.Line1 = strings.TrimSpace(addr.Line1)
	addr.City = strings.TrimSpace(addr.City)
	if addr.FullName == "" || addr.Phone == "" || addr.Line1 == "" || addr.City == "" {
		return "", fmt.Errorf("%w: shipping address requires full_name, phone, line1 and city", ErrCheckoutInvalidInput)
	}
	if cmd.PointsToUse < 0 {
		return "", fmt.Errorf("%w: points_to_use must be non-negative", ErrCheckoutInvalidInput)
	}
	cmd.Note = strings.TrimSpace(cmd.Note)
	if len(cmd.Note) > maxOrderNoteLength {
		return "", fmt.Errorf("%w: note too long", ErrCheckoutInvalidInput)
	}
	return method, nil
}

func (s *checkoutService) placeInTx(ctx context.Context, session Session, cmd PlaceOrderCommand, method domain.PaymentMethod, orderID string) (Order, error) {
	now := s.now()
	key := session.CartKey()

	cart, err := s.carts.Get(ctx, key)
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrCheckoutEmptyCart
		}
		return Order{}, err
	}
	if len(cart.Lines) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	needed := make(map[string]int, len(cart.Lines))
	for _, line := range cart.Lines {
		needed[line.ProductID] += max(line.Quantity, 1)
	}
	products := make([]Product, 0, len(needed))
	for _, productID := range slices.Sorted(maps.Keys(needed)) {
		product, err := s.products.Get(ctx, productID)
		if err != nil {
			if isRepoNotFound(err) {
				return Order{}, fmt.Errorf("%w: %s", ErrCheckoutProductUnavailable, productID)
			}
			return Order{}, err
		}
		if product.Status != domain.ProductStatusPublish {
			return Order{}, fmt.Errorf("%w: %s", ErrCheckoutProductUnavailable, productID)
		}
		if product.Stock != nil {
			if *product.Stock < needed[productID] {
				return Order{}, fmt.Errorf("%w: %s has %d, need %d", ErrCheckoutInsufficientStock, productID, *product.Stock, needed[productID])
			}
			remaining := *product.Stock - needed[productID]
			product.Stock = &remaining
			product.UpdatedAt = now
			products = append(products, product)
		}
	}

	customer, err := s.customers.Get(ctx, session.CustomerID)
	switch {
	case isRepoNotFound(err):
		customer = Customer{ID: session.CustomerID, Email: strings.TrimSpace(cmd.Email), CreatedAt: now}
		customer.Loyalty.Tier = commerce.TierFor(0)
	case err != nil:
		return Order{}, err
	}
	if customer.Blocked {
		return Order{}, ErrCustomerBlocked
	}

	items := make([]domain.OrderItem, 0, len(cart.Lines))
	for _, line := range cart.Lines {
		items = append(items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			UnitPrice: line.UnitPrice,
			Quantity:  max(line.Quantity, 1),
			Variants:  line.Variants,
		})
	}
	lines := commerce.OrderLines(items)
	subtotal := commerce.ComputeOrderTotals(lines, 0, 0, 0).Subtotal
	shippingFee := s.shipping(subtotal)

	if cmd.PointsToUse > customer.Loyalty.CurrentPoints {
		return Order{}, &commerce.InsufficientPointsError{Have: commerce.NonNegative(customer.Loyalty.CurrentPoints), Need: cmd.PointsToUse}
	}
	pointsUsed := min(cmd.PointsToUse, (subtotal+shippingFee)/s.pointValue)
	discount := pointsUsed * s.pointValue
	totals := commerce.ComputeOrderTotals(lines, shippingFee, discount, 0)

	redeemed := pointsUsed > 0
	if redeemed {
		ledger, err := commerce.RedeemPoints(customer.Loyalty, pointsUsed, commerce.EntryRef{
			ID:      s.newID(),
			OrderID: orderID,
			Reason:  "checkout",
			At:      now,
		})
		if err != nil {
			return Order{}, err
		}
		customer.Loyalty = ledger
	}

	earned := commerce.PointsForAmounts(totals.Subtotal, totals.ShippingFee, totals.Discount)
	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		email = customer.Email
	}
	currency := cart.Currency
	if currency == "" {
		currency = s.currency
	}
	order := Order{
		ID:              orderID,
		CustomerID:      session.CustomerID,
		CustomerEmail:   email,
		Items:           items,
		Currency:        currency,
		Subtotal:        totals.Subtotal,
		ShippingFee:     totals.ShippingFee,
		Discount:        totals.Discount,
		Tax:             totals.Tax,
		Total:           totals.Total,
		PaymentMethod:   method,
		PaymentStatus:   domain.PaymentStatusPending,
		Status:          domain.OrderStatusPending,
		PointsEarned:    &earned,
		PointsUsed:      pointsUsed,
		ShippingAddress: cmd.ShippingAddress,
		Note:            cmd.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// writes
	for _, product := range products {
		if err := s.products.Save(ctx, product); err != nil {
			return Order{}, err
		}
	}
	if redeemed || customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = now
		if err := s.customers.Save(ctx, customer); err != nil {
			return Order{}, err
		}
	}
	if err := s.orders.Insert(ctx, order); err != nil {
		return Order{}, err
	}
	if err := s.carts.Delete(ctx, key); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *checkoutService) createPaymentSession(ctx context.Context, order Order, idempotencyKey string) (payments.CheckoutSession, error) {
	items := make([]payments.CheckoutLineItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payments.CheckoutLineItem{
			Name:     item.Name,
			Variant:  variantLabel(item.Variants),
			Quantity: int64(item.Quantity),
			Amount:   item.UnitPrice,
		})
	}
	key := "checkout-" + order.ID
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		key = "checkout-" + k
	}
	return s.payments.CreateCheckoutSession(ctx, payments.CheckoutSessionRequest{
		OrderID:        order.ID,
		Amount:         order.Total,
		Currency:       order.Currency,
		CustomerEmail:  order.CustomerEmail,
		SuccessURL:     s.successURL,
		CancelURL:      s.cancelURL,
		IdempotencyKey: key,
		Items:          items,
	})
}

// rollback cancels an order whose payment session could not be created.
func (s *checkoutService) rollback(ctx context.Context, order Order) {
	releaser := orderReleaser{products: s.products, customers: s.customers, newID: s.newID}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		pending, err := releaser.prepare(ctx, current)
		if err != nil {
			return err
		}
		now := s.now()
		if err := releaser.apply(ctx, current, pending, "payment_failed", now); err != nil {
			return err
		}
		current.Activity = appendActivity(current, domain.OrderStatusCancelled, "Payment could not be started", now)
		current.Status = domain.OrderStatusCancelled
		current.PaymentStatus = domain.PaymentStatusFailed
		current.CanceledAt = &now
		current.UpdatedAt = now
		return s.orders.Update(ctx, current)
	})
	if err != nil {
		s.logger(ctx, "checkout.rollback_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
	}
}

// ConfirmPayment refreshes the payment status of a card order from the provider.
func (s *checkoutService) ConfirmPayment(ctx context.Context, customerID, orderID string) (Order, error) {
	order, err := s.orders.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, s.mapError(ctx, "checkout.confirm_failed", err)
	}
	if order.CustomerID != strings.TrimSpace(customerID) {
		return Order{}, ErrOrderNotFound
	}
	if order.PaymentMethod != domain.PaymentMethodCard || order.PaymentIntentID == "" || s.payments == nil {
		return order, nil
	}
	details, err := s.payments.LookupPayment(ctx, order.PaymentIntentID)
	if err != nil {
		s.logger(ctx, "checkout.lookup_failed", map[string]any{"orderId": order.ID, "error": err.Error()})
		return Order{}, fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
	}
	return s.applyPayment(ctx, order.ID, details.IntentID, details.Status)
}

// HandleStripeWebhook verifies a Stripe notification and applies its payment outcome. Events
// that do not reference a known order are acknowledged and ignored.
func (s *checkoutService) HandleStripeWebhook(ctx context.Context, body []byte, signature string) error {
	if s.payments == nil {
		return ErrCheckoutPaymentUnavailable
	}
	event, err := s.payments.ParseWebhook(body, signature)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidSignature) {
			return ErrCheckoutInvalidSignature
		}
		if errors.Is(err, payments.ErrWebhookNotConfigured) {
			return ErrCheckoutPaymentUnavailable
		}
		return fmt.Errorf("%w: %v", ErrCheckoutInvalidInput, err)
	}
	s.logger(ctx, "checkout.webhook_received", map[string]any{"eventId": event.ID, "type": event.Type, "orderId": event.OrderID})

	orderID := event.OrderID
	if orderID == "" && event.IntentID != "" {
		order, err := s.orders.FindByPaymentIntent(ctx, event.IntentID)
		switch {
		case isRepoNotFound(err):
			return nil
		case err != nil:
			return s.mapError(ctx, "checkout.webhook_failed", err)
		}
		orderID = order.ID
	}
	if orderID == "" || event.Status == "" {
		return nil
	}
	_, err = s.applyPayment(ctx, orderID, event.IntentID, event.Status)
	if errors.Is(err, ErrOrderNotFound) {
		return nil
	}
	return err
}

// applyPayment moves the payment status forward. Paid and Refunded are never downgraded by
// late or replayed notifications.
func (s *checkoutService) applyPayment(ctx context.Context, orderID, intentID string, status payments.Status) (Order, error) {
	next, ok := paymentStatusFor(status)
	var order Order
	changed := false
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return err
		}
		order = current
		changed = false
		if intentID != "" && current.PaymentIntentID == "" {
			current.PaymentIntentID = intentID
			changed = true
		}
		if ok && allowsPaymentTransition(current.PaymentStatus, next) {
			current.PaymentStatus = next
			changed = true
		}
		if !changed {
			return nil
		}
		current.UpdatedAt = s.now()
		if err := s.orders.Update(ctx, current); err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		if isRepoNotFound(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, s.mapError(ctx, "checkout.payment_update_failed", err)
	}
	if changed {
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

func (s *checkoutService) publish(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.publish_failed", map[string]any{"orderId": event.OrderID, "type": event.Type, "error": err.Error()})
	}
}

func (s *checkoutService) record(ctx context.Context, outcome string, method domain.PaymentMethod) {
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("payment_method", string(method)),
	))
}

func (s *checkoutService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, ErrCheckoutInvalidInput),
		errors.Is(err, ErrCheckoutEmptyCart),
		errors.Is(err, ErrCheckoutProductUnavailable),
		errors.Is(err, ErrCheckoutInsufficientStock),
		errors.Is(err, ErrCustomerBlocked),
		errors.Is(err, commerce.ErrInsufficientPoints),
		errors.Is(err, ErrOrderNotFound):
		return err
	case isRepoConflict(err):
		return ErrCheckoutConflict
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCheckoutUnavailable, err)
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, ErrCheckoutEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrCheckoutInsufficientStock), errors.Is(err, ErrCheckoutProductUnavailable):
		return "out_of_stock"
	case errors.Is(err, commerce.ErrInsufficientPoints):
		return "insufficient_points"
	default:
		return "error"
	}
}

func paymentStatusFor(status payments.Status) (domain.PaymentStatus, bool) {
	switch status {
	case payments.StatusSucceeded:
		return domain.PaymentStatusPaid, true
	case payments.StatusFailed:
		return domain.PaymentStatusFailed, true
	case payments.StatusRefunded:
		return domain.PaymentStatusRefunded, true
	}
	return "", false
}

func allowsPaymentTransition(from, to domain.PaymentStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case domain.PaymentStatusRefunded:
		return false
	case domain.PaymentStatusPaid:
		return to == domain.PaymentStatusRefunded
	}
	return true
}

func variantLabel(choices []domain.VariantChoice) string {
	parts := make([]string, 0, len(choices))
	for _, c := range choices {
		parts = append(parts, c.Value)
	}
	return strings.Join(parts, " / ")
}
