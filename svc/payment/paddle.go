package payment

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

// PaddleConfig holds configuration for the Paddle provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"sandbox"`
	Currency      string `env:"BILLING_CURRENCY" envDefault:"USD"`
}

// PaddleProvider implements Provider on top of Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	currency string
	logger   *slog.Logger
}

// NewPaddleProvider creates a Paddle provider for the configured environment.
func NewPaddleProvider(cfg PaddleConfig, log *slog.Logger) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if log == nil {
		log = slog.Default()
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox", "":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	cur := cfg.Currency
	if cur == "" {
		cur = "USD"
	}
	if cur, err = billing.NormalizeCurrency(cur); err != nil {
		return nil, err
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		currency: cur,
		logger:   log.With(logger.Component("paddle")),
	}, nil
}

func (p *PaddleProvider) CreateCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	email := req.Email
	if email == "" {
		email = fmt.Sprintf("user%d@example.com", req.UserID)
	}

	in := &paddle.CreateCustomerRequest{
		Email:      email,
		CustomData: paddle.CustomData{"user_id": strconv.FormatInt(req.UserID, 10)},
	}
	if req.Name != "" {
		in.Name = paddle.PtrTo(req.Name)
	}

	customer, err := p.client.CustomersClient.CreateCustomer(ctx, in)
	if err != nil {
		return "", upstream("create customer", err)
	}
	p.logger.InfoContext(ctx, "paddle customer created",
		logger.UserID(req.UserID),
		slog.String("customer_id", customer.ID))
	return customer.ID, nil
}

func (p *PaddleProvider) CreateProduct(ctx context.Context, req ProductRequest) (string, error) {
	in := &paddle.CreateProductRequest{
		Name:        req.Name,
		TaxCategory: paddle.TaxCategoryStandard,
	}
	if req.Description != "" {
		in.Description = paddle.PtrTo(req.Description)
	}

	product, err := p.client.ProductsClient.CreateProduct(ctx, in)
	if err != nil {
		return "", upstream("create product", err)
	}
	return product.ID, nil
}

func (p *PaddleProvider) CreatePrice(ctx context.Context, req PriceRequest) (string, error) {
	cur := req.Currency
	if cur == "" {
		cur = p.currency
	}
	interval := paddle.IntervalMonth
	if req.Cycle == billing.CycleYearly {
		interval = paddle.IntervalYear
	}

	price, err := p.client.PricesClient.CreatePrice(ctx, &paddle.CreatePriceRequest{
		Description: req.Description,
		ProductID:   req.ProductID,
		UnitPrice: paddle.Money{
			Amount:       strconv.FormatInt(billing.ToMinor(req.Amount, cur), 10),
			CurrencyCode: paddle.CurrencyCode(cur),
		},
		BillingCycle: &paddle.Duration{Interval: interval, Frequency: 1},
	})
	if err != nil {
		return "", upstream("create price", err)
	}
	return price.ID, nil
}

func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if req.CustomerID == "" {
		return nil, ErrMissingCustomerID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})
	in := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(req.CustomerID),
		CustomData: paddle.CustomData{"user_id": strconv.FormatInt(req.UserID, 10)},
	}
	if req.CancelURL != "" {
		in.CustomData["cancel_url"] = req.CancelURL
	}
	if req.SuccessURL != "" {
		in.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	txn, err := p.client.TransactionsClient.CreateTransaction(ctx, in)
	if err != nil {
		return nil, upstream("create checkout", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return nil, upstream("create checkout", ErrNoCheckoutURL)
	}

	return &CheckoutSession{
		ID:        txn.ID,
		URL:       *txn.Checkout.URL,
		ExpiresAt: time.Now().UTC().Add(24 * time.Hour),
	}, nil
}

// ConfirmPayment loads the Paddle transaction named by OrderID and checks it
// was paid for the expected amount.
func (p *PaddleProvider) ConfirmPayment(ctx context.Context, req ConfirmRequest) (*PaymentResult, error) {
	if req.OrderID == "" {
		return nil, ErrMissingOrderID
	}

	txn, err := p.client.TransactionsClient.GetTransaction(ctx, &paddle.GetTransactionRequest{
		TransactionID: req.OrderID,
	})
	if err != nil {
		return nil, upstream("confirm payment", err)
	}

	status := string(txn.Status)
	if status != "paid" && status != "completed" {
		return nil, upstream("confirm payment", fmt.Errorf("%w: status %s", ErrPaymentNotCompleted, status))
	}

	cur := string(txn.CurrencyCode)
	minor, err := strconv.ParseInt(txn.Details.Totals.Total, 10, 64)
	if err != nil {
		return nil, upstream("confirm payment", fmt.Errorf("%w: total %q", ErrInvalidWebhookPayload, txn.Details.Totals.Total))
	}
	amount := billing.FromMinor(minor, cur)
	if !req.Amount.IsZero() && !amount.Equal(req.Amount) {
		return nil, upstream("confirm payment", fmt.Errorf("%w: expected %s, paid %s", ErrAmountMismatch, req.Amount, amount))
	}

	approved := time.Now().UTC()
	if txn.BilledAt != nil {
		if t, err := time.Parse(time.RFC3339, *txn.BilledAt); err == nil {
			approved = t.UTC()
		}
	}

	return &PaymentResult{
		PaymentKey: req.PaymentKey,
		OrderID:    txn.ID,
		Status:     strings.ToUpper(status),
		Amount:     amount,
		Currency:   cur,
		ApprovedAt: approved,
	}, nil
}

func upstream(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", billing.ErrUpstreamProvider, op, err)
}

var _ Provider = (*PaddleProvider)(nil)
