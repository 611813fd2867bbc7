package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/missionlab/payment-service/svc/billing"
)

const (
	planColumns = `id, name, tier, description, monthly_price, yearly_price,
		provider_product_id, provider_monthly_price_id, provider_yearly_price_id,
		max_team_members, max_monthly_attempts, ticket_limit, refill_amount,
		refill_interval_hours, features, active, created_at, updated_at`

	subscriptionColumns = `id, user_id, team_id, plan_id, status, billing_cycle, amount, currency,
		provider_subscription_id, provider_customer_id, current_period_start,
		current_period_end, trial_start, trial_end, cancel_at_period_end,
		canceled_at, auto_renewal, created_at, updated_at`

	ticketColumns = `id, user_id, current_tickets, last_ticket_refill, next_refill_at, created_at, updated_at`

	ledgerColumns = `id, user_id, type, amount, balance_before, balance_after, related_attempt_id, reason, created_at`

	paymentColumns = `id, subscription_id, amount, currency, method, status, type,
		provider_payment_intent_id, provider_invoice_id, provider_charge_id,
		failure_reason, processed_at, created_at`
)

type scanner interface {
	Scan(dest ...any) error
}

// reader implements billing.Reader over either the pool or a transaction.
type reader struct {
	q querier
}

func (r reader) GetPlan(ctx context.Context, id int64) (*billing.Plan, error) {
	row := r.q.QueryRow(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = $1`, id)
	p, err := scanPlan(row)
	if err != nil {
		return nil, mapErr(err, billing.ErrPlanNotFound)
	}
	return &p, nil
}

func (r reader) ListPlans(ctx context.Context) ([]billing.Plan, error) {
	rows, err := r.q.Query(ctx, `SELECT `+planColumns+` FROM subscription_plans ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.Plan, error) { return scanPlan(row) })
}

func (r reader) GetSubscription(ctx context.Context, id int64) (*billing.Subscription, error) {
	row := r.q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapErr(err, billing.ErrSubscriptionNotFound)
	}
	return &s, nil
}

func (r reader) GetSubscriptionByProviderID(ctx context.Context, ref string) (*billing.Subscription, error) {
	if ref == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	row := r.q.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE provider_subscription_id = $1 ORDER BY id DESC LIMIT 1`, ref)
	s, err := scanSubscription(row)
	if err != nil {
		return nil, mapErr(err, billing.ErrSubscriptionNotFound)
	}
	return &s, nil
}

func (r reader) ListSubscriptionsByUser(ctx context.Context, userID int64, statuses ...billing.SubscriptionStatus) ([]billing.Subscription, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := r.q.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at DESC, id DESC`, userID, names)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectSubscription)
}

func (r reader) ListActiveSubscriptionsEndingBy(ctx context.Context, t time.Time) ([]billing.Subscription, error) {
	rows, err := r.q.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = $1 AND current_period_end <= $2 ORDER BY id`, string(billing.StatusActive), t)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, collectSubscription)
}

func (r reader) GetUserTicket(ctx context.Context, userID int64) (*billing.UserTicket, error) {
	row := r.q.QueryRow(ctx, `SELECT `+ticketColumns+` FROM user_tickets WHERE user_id = $1`, userID)
	t, err := scanTicket(row)
	if err != nil {
		return nil, mapErr(err, billing.ErrTicketAccountNotFound)
	}
	return &t, nil
}

func (r reader) ListTicketsDueForRefill(ctx context.Context, now time.Time) ([]billing.UserTicket, error) {
	rows, err := r.q.Query(ctx, `SELECT `+ticketColumns+` FROM user_tickets
		WHERE next_refill_at <= $1 ORDER BY id`, now)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.UserTicket, error) { return scanTicket(row) })
}

func (r reader) ListTicketTransactions(ctx context.Context, userID int64) ([]billing.TicketTransaction, error) {
	rows, err := r.q.Query(ctx, `SELECT `+ledgerColumns+` FROM ticket_transactions
		WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.TicketTransaction, error) {
		var t billing.TicketTransaction
		err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.RelatedAttemptID, &t.Reason, &t.CreatedAt)
		return t, err
	})
}

func (r reader) GetPaymentByProviderPaymentID(ctx context.Context, id string) (*billing.PaymentTransaction, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	return r.onePayment(ctx, `SELECT `+paymentColumns+` FROM payment_transactions
		WHERE provider_payment_intent_id = $1 ORDER BY id DESC LIMIT 1`, id)
}

func (r reader) GetPaymentByInvoiceID(ctx context.Context, id string) (*billing.PaymentTransaction, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	return r.onePayment(ctx, `SELECT `+paymentColumns+` FROM payment_transactions
		WHERE provider_invoice_id = $1`, id)
}

func (r reader) ListPaymentsBySubscription(ctx context.Context, subscriptionID int64) ([]billing.PaymentTransaction, error) {
	rows, err := r.q.Query(ctx, `SELECT `+paymentColumns+` FROM payment_transactions
		WHERE subscription_id = $1 ORDER BY id`, subscriptionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (billing.PaymentTransaction, error) { return scanPayment(row) })
}

func (r reader) onePayment(ctx context.Context, sql string, arg string) (*billing.PaymentTransaction, error) {
	p, err := scanPayment(r.q.QueryRow(ctx, sql, arg))
	if err != nil {
		return nil, mapErr(err, billing.ErrPaymentNotFound)
	}
	return &p, nil
}

func scanPlan(row scanner) (billing.Plan, error) {
	var p billing.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Tier, &p.Description, &p.MonthlyPrice, &p.YearlyPrice,
		&p.ProviderProductID, &p.ProviderMonthlyPriceID, &p.ProviderYearlyPriceID,
		&p.MaxTeamMembers, &p.MaxMonthlyAttempts, &p.TicketLimit, &p.RefillAmount,
		&p.RefillIntervalHours, &p.Features, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func scanSubscription(row scanner) (billing.Subscription, error) {
	var s billing.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.TeamID, &s.PlanID, &s.Status, &s.BillingCycle, &s.Amount, &s.Currency,
		&s.ProviderSubscriptionID, &s.ProviderCustomerID, &s.CurrentPeriodStart,
		&s.CurrentPeriodEnd, &s.TrialStart, &s.TrialEnd, &s.CancelAtPeriodEnd,
		&s.CanceledAt, &s.AutoRenewal, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func collectSubscription(row pgx.CollectableRow) (billing.Subscription, error) {
	return scanSubscription(row)
}

func scanTicket(row scanner) (billing.UserTicket, error) {
	var t billing.UserTicket
	err := row.Scan(&t.ID, &t.UserID, &t.CurrentTickets, &t.LastTicketRefill, &t.NextRefillAt, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func scanPayment(row scanner) (billing.PaymentTransaction, error) {
	var p billing.PaymentTransaction
	err := row.Scan(&p.ID, &p.SubscriptionID, &p.Amount, &p.Currency, &p.Method, &p.Status, &p.Type,
		&p.ProviderPaymentIntentID, &p.ProviderInvoiceID, &p.ProviderChargeID,
		&p.FailureReason, &p.ProcessedAt, &p.CreatedAt)
	return p, err
}
