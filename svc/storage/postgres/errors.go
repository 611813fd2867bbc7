package postgres

import (
	"fmt"

	"github.com/missionlab/payment-service/pkg/pg"
	"github.com/missionlab/payment-service/svc/billing"
)

// constraint names from migrations/00001_billing.sql
var constraintErrors = map[string]error{
	"subscription_plans_name_key":               billing.ErrDuplicatePlanName,
	"subscriptions_one_active_per_user":         billing.ErrActiveSubscriptionExists,
	"subscriptions_plan_id_fkey":                billing.ErrPlanNotFound,
	"user_tickets_user_id_key":                  billing.ErrDuplicateTicketAccount,
	"user_tickets_balance_check":                billing.ErrInsufficientBalance,
	"payment_transactions_invoice_key":          billing.ErrDuplicateInvoice,
	"payment_transactions_subscription_id_fkey": billing.ErrSubscriptionNotFound,
}

// mapErr translates driver errors into the billing taxonomy. notFound is
// returned for an empty result.
func mapErr(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if pg.IsNotFoundError(err) && notFound != nil {
		return notFound
	}
	if known, ok := constraintErrors[pg.ConstraintName(err)]; ok {
		return known
	}
	switch {
	case pg.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %w", billing.ErrConflict, err)
	case pg.IsForeignKeyViolationError(err):
		return fmt.Errorf("%w: %w", billing.ErrNotFound, err)
	case pg.IsCheckViolationError(err):
		return fmt.Errorf("%w: %w", billing.ErrValidation, err)
	}
	return err
}
