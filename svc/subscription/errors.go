package subscription

import "github.com/missionlab/payment-service/svc/billing"

var ErrProviderNotConfigured = billing.NewError(billing.ErrValidation, "payment provider is not configured")
