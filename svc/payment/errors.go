package payment

import "errors"

var (
	ErrMissingAPIKey              = errors.New("payment provider API key is required")
	ErrMissingWebhookSecret       = errors.New("payment provider webhook secret is required")
	ErrInvalidProviderEnvironment = errors.New("invalid payment provider environment")
	ErrWebhookVerificationFailed  = errors.New("webhook signature verification failed")
	ErrInvalidWebhookPayload      = errors.New("invalid webhook payload")
	ErrNoCheckoutURL              = errors.New("no checkout URL returned from provider")
	ErrPaymentNotCompleted        = errors.New("payment is not completed")
	ErrAmountMismatch             = errors.New("payment amount does not match order")
	ErrMissingCustomerID          = errors.New("customer ID is required")
	ErrMissingPriceID             = errors.New("price ID is required")
	ErrMissingOrderID             = errors.New("order ID is required")
)
