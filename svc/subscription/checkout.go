package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/payment"
)

func (s *service) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*payment.CheckoutSession, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	if !req.Cycle.Valid() {
		return nil, billing.ErrInvalidBillingCycle
	}

	plan, err := s.store.GetPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	priceID := plan.ProviderPriceFor(req.Cycle)
	if priceID == "" {
		return nil, billing.ErrMissingPriceRef
	}

	email, name := req.Email, req.Name
	if email == "" {
		email = fmt.Sprintf("user%d@example.com", req.UserID)
	}
	if name == "" {
		name = fmt.Sprintf("User %d", req.UserID)
	}

	customerID, err := s.provider.CreateCustomer(ctx, payment.CustomerRequest{
		Email:  email,
		Name:   name,
		UserID: req.UserID,
	})
	if err != nil {
		return nil, upstream(err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
		UserID:     req.UserID,
	})
	if err != nil {
		return nil, upstream(err)
	}

	s.logger.InfoContext(ctx, "checkout session created",
		logger.UserID(req.UserID),
		logger.PlanID(plan.ID),
		slog.String("session_id", session.ID))
	return session, nil
}

func (s *service) ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*payment.PaymentResult, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	if orderID == "" {
		return nil, billing.NewError(billing.ErrValidation, "order id is required")
	}
	if !amount.IsPositive() {
		return nil, billing.ErrInvalidAmount
	}

	res, err := s.provider.ConfirmPayment(ctx, payment.ConfirmRequest{
		PaymentKey: paymentKey,
		OrderID:    orderID,
		Amount:     amount,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "payment confirmation failed",
			slog.String("order_id", orderID),
			logger.Error(err))
		return nil, upstream(err)
	}

	s.logger.InfoContext(ctx, "payment confirmed",
		slog.String("order_id", orderID),
		slog.String("status", res.Status))
	return res, nil
}

func upstream(err error) error {
	if errors.Is(err, billing.ErrUpstreamProvider) {
		return err
	}
	return fmt.Errorf("%w: %w", billing.ErrUpstreamProvider, err)
}
