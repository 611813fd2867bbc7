package postgres

import (
	"context"
	"time"

	"github.com/missionlab/payment-service/svc/billing"
)

// tx is the billing.Tx of one Atomic call.
type tx struct {
	reader
	now func() time.Time
}

// Lock takes a transaction-scoped advisory lock on the 64-bit hash of key.
func (t *tx) Lock(ctx context.Context, key string) error {
	_, err := t.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return err
}

func (t *tx) SavePlan(ctx context.Context, p *billing.Plan) error {
	now := t.now()
	features := p.Features
	if features == nil {
		features = map[string]any{}
	}

	if p.ID == 0 {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		err := t.q.QueryRow(ctx, `INSERT INTO subscription_plans (
				name, tier, description, monthly_price, yearly_price,
				provider_product_id, provider_monthly_price_id, provider_yearly_price_id,
				max_team_members, max_monthly_attempts, ticket_limit, refill_amount,
				refill_interval_hours, features, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
			RETURNING id`,
			p.Name, string(p.Tier), p.Description, p.MonthlyPrice, p.YearlyPrice,
			p.ProviderProductID, p.ProviderMonthlyPriceID, p.ProviderYearlyPriceID,
			p.MaxTeamMembers, p.MaxMonthlyAttempts, p.TicketLimit, p.RefillAmount,
			p.RefillIntervalHours, features, p.Active, p.CreatedAt, now,
		).Scan(&p.ID)
		if err != nil {
			return mapErr(err, nil)
		}
		p.UpdatedAt = now
		return nil
	}

	tag, err := t.q.Exec(ctx, `UPDATE subscription_plans SET
			name = $2, tier = $3, description = $4, monthly_price = $5, yearly_price = $6,
			provider_product_id = $7, provider_monthly_price_id = $8, provider_yearly_price_id = $9,
			max_team_members = $10, max_monthly_attempts = $11, ticket_limit = $12, refill_amount = $13,
			refill_interval_hours = $14, features = $15, active = $16, updated_at = $17
		WHERE id = $1`,
		p.ID, p.Name, string(p.Tier), p.Description, p.MonthlyPrice, p.YearlyPrice,
		p.ProviderProductID, p.ProviderMonthlyPriceID, p.ProviderYearlyPriceID,
		p.MaxTeamMembers, p.MaxMonthlyAttempts, p.TicketLimit, p.RefillAmount,
		p.RefillIntervalHours, features, p.Active, now,
	)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPlanNotFound
	}
	p.UpdatedAt = now
	return nil
}

func (t *tx) SaveSubscription(ctx context.Context, s *billing.Subscription) error {
	now := t.now()

	if s.ID == 0 {
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		err := t.q.QueryRow(ctx, `INSERT INTO subscriptions (
				user_id, team_id, plan_id, status, billing_cycle, amount, currency,
				provider_subscription_id, provider_customer_id, current_period_start,
				current_period_end, trial_start, trial_end, cancel_at_period_end,
				canceled_at, auto_renewal, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id`,
			s.UserID, s.TeamID, s.PlanID, string(s.Status), string(s.BillingCycle), s.Amount, s.Currency,
			s.ProviderSubscriptionID, s.ProviderCustomerID, s.CurrentPeriodStart,
			s.CurrentPeriodEnd, s.TrialStart, s.TrialEnd, s.CancelAtPeriodEnd,
			s.CanceledAt, s.AutoRenewal, s.CreatedAt, now,
		).Scan(&s.ID)
		if err != nil {
			return mapErr(err, nil)
		}
		s.UpdatedAt = now
		return nil
	}

	tag, err := t.q.Exec(ctx, `UPDATE subscriptions SET
			user_id = $2, team_id = $3, plan_id = $4, status = $5, billing_cycle = $6, amount = $7,
			currency = $8, provider_subscription_id = $9, provider_customer_id = $10,
			current_period_start = $11, current_period_end = $12, trial_start = $13, trial_end = $14,
			cancel_at_period_end = $15, canceled_at = $16, auto_renewal = $17, updated_at = $18
		WHERE id = $1`,
		s.ID, s.UserID, s.TeamID, s.PlanID, string(s.Status), string(s.BillingCycle), s.Amount,
		s.Currency, s.ProviderSubscriptionID, s.ProviderCustomerID,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.TrialStart, s.TrialEnd,
		s.CancelAtPeriodEnd, s.CanceledAt, s.AutoRenewal, now,
	)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrSubscriptionNotFound
	}
	s.UpdatedAt = now
	return nil
}

func (t *tx) SaveUserTicket(ctx context.Context, u *billing.UserTicket) error {
	now := t.now()

	if u.ID == 0 {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		err := t.q.QueryRow(ctx, `INSERT INTO user_tickets (
				user_id, current_tickets, last_ticket_refill, next_refill_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			u.UserID, u.CurrentTickets, u.LastTicketRefill, u.NextRefillAt, u.CreatedAt, now,
		).Scan(&u.ID)
		if err != nil {
			return mapErr(err, nil)
		}
		u.UpdatedAt = now
		return nil
	}

	tag, err := t.q.Exec(ctx, `UPDATE user_tickets SET
			current_tickets = $3, last_ticket_refill = $4, next_refill_at = $5, updated_at = $6
		WHERE id = $1 AND user_id = $2`,
		u.ID, u.UserID, u.CurrentTickets, u.LastTicketRefill, u.NextRefillAt, now,
	)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrTicketAccountNotFound
	}
	u.UpdatedAt = now
	return nil
}

func (t *tx) AppendTicketTransaction(ctx context.Context, row *billing.TicketTransaction) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = t.now()
	}
	err := t.q.QueryRow(ctx, `INSERT INTO ticket_transactions (
			user_id, type, amount, balance_before, balance_after, related_attempt_id, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		row.UserID, string(row.Type), row.Amount, row.BalanceBefore, row.BalanceAfter,
		row.RelatedAttemptID, row.Reason, row.CreatedAt,
	).Scan(&row.ID)
	return mapErr(err, nil)
}

func (t *tx) SavePaymentTransaction(ctx context.Context, p *billing.PaymentTransaction) error {
	if p.ID == 0 {
		if p.CreatedAt.IsZero() {
			p.CreatedAt = t.now()
		}
		err := t.q.QueryRow(ctx, `INSERT INTO payment_transactions (
				subscription_id, amount, currency, method, status, type,
				provider_payment_intent_id, provider_invoice_id, provider_charge_id,
				failure_reason, processed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			p.SubscriptionID, p.Amount, p.Currency, string(p.Method), string(p.Status), string(p.Type),
			p.ProviderPaymentIntentID, p.ProviderInvoiceID, p.ProviderChargeID,
			p.FailureReason, p.ProcessedAt, p.CreatedAt,
		).Scan(&p.ID)
		return mapErr(err, nil)
	}

	tag, err := t.q.Exec(ctx, `UPDATE payment_transactions SET
			subscription_id = $2, amount = $3, currency = $4, method = $5, status = $6, type = $7,
			provider_payment_intent_id = $8, provider_invoice_id = $9, provider_charge_id = $10,
			failure_reason = $11, processed_at = $12
		WHERE id = $1`,
		p.ID, p.SubscriptionID, p.Amount, p.Currency, string(p.Method), string(p.Status), string(p.Type),
		p.ProviderPaymentIntentID, p.ProviderInvoiceID, p.ProviderChargeID,
		p.FailureReason, p.ProcessedAt,
	)
	if err != nil {
		return mapErr(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPaymentNotFound
	}
	return nil
}
