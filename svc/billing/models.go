package billing

import (
	"maps"
	"time"

	"github.com/shopspring/decimal"
)

// Plan is a catalog entry. Once referenced by a live subscription only the
// Active flag may change.
type Plan struct {
	ID                     int64
	Name                   string
	Tier                   PlanTier
	Description            string
	MonthlyPrice           decimal.Decimal
	YearlyPrice            decimal.Decimal
	ProviderProductID      string
	ProviderMonthlyPriceID string
	ProviderYearlyPriceID  string
	MaxTeamMembers         int
	MaxMonthlyAttempts     int
	TicketLimit            int
	RefillAmount           int
	RefillIntervalHours    int
	Features               map[string]any
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// PriceFor returns the amount charged per period of the given cycle.
func (p Plan) PriceFor(cycle BillingCycle) decimal.Decimal {
	if cycle == CycleYearly {
		return p.YearlyPrice
	}
	return p.MonthlyPrice
}

// ProviderPriceFor returns the provider price reference for the cycle.
func (p Plan) ProviderPriceFor(cycle BillingCycle) string {
	if cycle == CycleYearly {
		return p.ProviderYearlyPriceID
	}
	return p.ProviderMonthlyPriceID
}

func (p Plan) RefillInterval() time.Duration {
	return time.Duration(p.RefillIntervalHours) * time.Hour
}

func (p Plan) Clone() Plan {
	p.Features = maps.Clone(p.Features)
	return p
}

// Subscription is one user's enrollment in a plan.
type Subscription struct {
	ID                     int64
	UserID                 int64
	TeamID                 *int64
	PlanID                 int64
	Status                 SubscriptionStatus
	BillingCycle           BillingCycle
	Amount                 decimal.Decimal
	Currency               string
	ProviderSubscriptionID string
	ProviderCustomerID     string
	CurrentPeriodStart     *time.Time
	CurrentPeriodEnd       *time.Time
	TrialStart             *time.Time
	TrialEnd               *time.Time
	CancelAtPeriodEnd      bool
	CanceledAt             *time.Time
	AutoRenewal            bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// UserTicket is a user's ticket balance account.
type UserTicket struct {
	ID               int64
	UserID           int64
	CurrentTickets   int
	LastTicketRefill *time.Time
	NextRefillAt     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TicketTransaction is an immutable ledger row. Amount is signed: negative
// for SPENT and for downward adjustments.
type TicketTransaction struct {
	ID               int64
	UserID           int64
	Type             TicketTransactionType
	Amount           int
	BalanceBefore    int
	BalanceAfter     int
	RelatedAttemptID *int64
	Reason           string
	CreatedAt        time.Time
}

// PaymentTransaction records a provider charge or refund attempt. It is
// owned by its subscription.
type PaymentTransaction struct {
	ID                      int64
	SubscriptionID          int64
	Amount                  decimal.Decimal
	Currency                string
	Method                  PaymentMethod
	Status                  PaymentStatus
	Type                    PaymentType
	ProviderPaymentIntentID string
	ProviderInvoiceID       string
	ProviderChargeID        string
	FailureReason           string
	ProcessedAt             *time.Time
	CreatedAt               time.Time
}
