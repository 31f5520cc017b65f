package payments

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the normalised payment states reported by the provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails signature verification.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrWebhookNotConfigured is returned when no webhook secret is configured.
	ErrWebhookNotConfigured = errors.New("payments: webhook secret not configured")
)

// MetadataOrderID is the metadata key linking provider objects back to an order.
const MetadataOrderID = "order_id"

// CheckoutLineItem describes a single line item to include in a checkout session.
type CheckoutLineItem struct {
	Name     string
	Variant  string
	Quantity int64
	Amount   int64
}

// CheckoutSessionRequest captures the payload required to create a hosted checkout session.
type CheckoutSessionRequest struct {
	OrderID        string
	Amount         int64
	Currency       string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
	Items          []CheckoutLineItem
}

// CheckoutSession is the hosted payment page the client is redirected to.
type CheckoutSession struct {
	ID          string
	RedirectURL string
	IntentID    string
	ExpiresAt   time.Time
}

// RefundRequest refunds a payment, fully when Amount is nil.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Reason         string
	IdempotencyKey string
}

// PaymentDetails normalises provider fields for reconciliation.
type PaymentDetails struct {
	IntentID string
	OrderID  string
	Status   Status
	Amount   int64
	Currency string
}

// WebhookEvent is the part of a provider notification the order flow acts on.
type WebhookEvent struct {
	ID       string
	Type     string
	OrderID  string
	IntentID string
	Status   Status
}

// Provider is the payment service provider contract used by checkout.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error)
	LookupPayment(ctx context.Context, intentID string) (PaymentDetails, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	ParseWebhook(payload []byte, signature string) (WebhookEvent, error)
}
