package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/missionlab/payment-service/svc/billing"
)

// Provider is the payment processor boundary. Implementations wrap every
// failure with billing.ErrUpstreamProvider and never retry on their own.
type Provider interface {
	// CreateCustomer registers a billing customer and returns its reference.
	CreateCustomer(ctx context.Context, req CustomerRequest) (string, error)
	// CreateProduct registers a catalog product and returns its reference.
	CreateProduct(ctx context.Context, req ProductRequest) (string, error)
	// CreatePrice registers a recurring price for a product.
	CreatePrice(ctx context.Context, req PriceRequest) (string, error)
	// CreateCheckoutSession opens a hosted checkout for one price.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	// ConfirmPayment asks the processor whether an order was paid.
	ConfirmPayment(ctx context.Context, req ConfirmRequest) (*PaymentResult, error)
}

// CustomerRequest describes a customer to create.
type CustomerRequest struct {
	Email  string
	Name   string
	UserID int64
}

// ProductRequest describes a catalog product.
type ProductRequest struct {
	Name        string
	Description string
}

// PriceRequest describes a recurring price. Amount is in major units.
type PriceRequest struct {
	ProductID   string
	Description string
	Amount      decimal.Decimal
	Currency    string
	Cycle       billing.BillingCycle
}

// CheckoutRequest contains the data needed to open a checkout session.
type CheckoutRequest struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	UserID     int64 // echoed back as "user_id" metadata on completion
}

// CheckoutSession is a hosted checkout the user is redirected to.
type CheckoutSession struct {
	ID        string
	URL       string
	ExpiresAt time.Time
}

// ConfirmRequest identifies a payment to confirm.
type ConfirmRequest struct {
	PaymentKey string
	OrderID    string
	Amount     decimal.Decimal
}

// PaymentResult is the processor's view of a confirmed payment.
type PaymentResult struct {
	PaymentKey string
	OrderID    string
	Status     string
	Amount     decimal.Decimal
	Currency   string
	ApprovedAt time.Time
}
