package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/missionlab/payment-service/svc/billing"
)

type planView struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	PlanType           string          `json:"planType"`
	Description        string          `json:"description,omitempty"`
	MonthlyPrice       decimal.Decimal `json:"monthlyPrice"`
	YearlyPrice        decimal.Decimal `json:"yearlyPrice"`
	MaxTeamMembers     int             `json:"maxTeamMembers"`
	MaxMonthlyAttempts int             `json:"maxMonthlyAttempts"`
	TicketLimit        int             `json:"ticketLimit"`
	TicketRefillAmount int             `json:"ticketRefillAmount"`
	TicketRefillHours  int             `json:"ticketRefillIntervalHours"`
	Features           map[string]any  `json:"features,omitempty"`
	Active             bool            `json:"isActive"`
}

func newPlanView(p billing.Plan) planView {
	return planView{
		ID:                 p.ID,
		Name:               p.Name,
		PlanType:           string(p.Tier),
		Description:        p.Description,
		MonthlyPrice:       p.MonthlyPrice,
		YearlyPrice:        p.YearlyPrice,
		MaxTeamMembers:     p.MaxTeamMembers,
		MaxMonthlyAttempts: p.MaxMonthlyAttempts,
		TicketLimit:        p.TicketLimit,
		TicketRefillAmount: p.RefillAmount,
		TicketRefillHours:  p.RefillIntervalHours,
		Features:           p.Features,
		Active:             p.Active,
	}
}

type subscriptionView struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"userId"`
	TeamID             *int64          `json:"teamId,omitempty"`
	PlanID             int64           `json:"planId"`
	Status             string          `json:"status"`
	BillingCycle       string          `json:"billingCycle"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	CurrentPeriodStart *time.Time      `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   *time.Time      `json:"currentPeriodEnd,omitempty"`
	TrialStart         *time.Time      `json:"trialStart,omitempty"`
	TrialEnd           *time.Time      `json:"trialEnd,omitempty"`
	CancelAtPeriodEnd  bool            `json:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time      `json:"canceledAt,omitempty"`
	AutoRenewal        bool            `json:"autoRenewal"`
	CreatedAt          time.Time       `json:"createdAt"`
}

func newSubscriptionView(s billing.Subscription) subscriptionView {
	return subscriptionView{
		ID:                 s.ID,
		UserID:             s.UserID,
		TeamID:             s.TeamID,
		PlanID:             s.PlanID,
		Status:             string(s.Status),
		BillingCycle:       string(s.BillingCycle),
		Amount:             s.Amount,
		Currency:           s.Currency,
		CurrentPeriodStart: s.CurrentPeriodStart,
		CurrentPeriodEnd:   s.CurrentPeriodEnd,
		TrialStart:         s.TrialStart,
		TrialEnd:           s.TrialEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		CanceledAt:         s.CanceledAt,
		AutoRenewal:        s.AutoRenewal,
		CreatedAt:          s.CreatedAt,
	}
}

type ticketView struct {
	UserID           int64      `json:"userId"`
	CurrentTickets   int        `json:"currentTickets"`
	LastTicketRefill *time.Time `json:"lastTicketRefill,omitempty"`
	NextRefillAt     *time.Time `json:"nextRefillAt,omitempty"`
}

func newTicketView(t billing.UserTicket) ticketView {
	return ticketView{
		UserID:           t.UserID,
		CurrentTickets:   t.CurrentTickets,
		LastTicketRefill: t.LastTicketRefill,
		NextRefillAt:     t.NextRefillAt,
	}
}

type ticketTransactionView struct {
	ID               int64     `json:"id"`
	Type             string    `json:"transactionType"`
	Amount           int       `json:"amount"`
	BalanceBefore    int       `json:"balanceBefore"`
	BalanceAfter     int       `json:"balanceAfter"`
	RelatedAttemptID *int64    `json:"relatedAttemptId,omitempty"`
	Reason           string    `json:"reason,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newTicketTransactionView(t billing.TicketTransaction) ticketTransactionView {
	return ticketTransactionView{
		ID:               t.ID,
		Type:             string(t.Type),
		Amount:           t.Amount,
		BalanceBefore:    t.BalanceBefore,
		BalanceAfter:     t.BalanceAfter,
		RelatedAttemptID: t.RelatedAttemptID,
		Reason:           t.Reason,
		CreatedAt:        t.CreatedAt,
	}
}

type paymentView struct {
	ID                      int64           `json:"id"`
	SubscriptionID          int64           `json:"subscriptionId"`
	Amount                  decimal.Decimal `json:"amount"`
	Currency                string          `json:"currency"`
	PaymentMethod           string          `json:"paymentMethod,omitempty"`
	Status                  string          `json:"status"`
	TransactionType         string          `json:"transactionType"`
	ProviderPaymentIntentID string          `json:"providerPaymentIntentId,omitempty"`
	ProviderInvoiceID       string          `json:"providerInvoiceId,omitempty"`
	FailureReason           string          `json:"failureReason,omitempty"`
	ProcessedAt             *time.Time      `json:"processedAt,omitempty"`
	CreatedAt               time.Time       `json:"createdAt"`
}

func newPaymentView(p billing.PaymentTransaction) paymentView {
	return paymentView{
		ID:                      p.ID,
		SubscriptionID:          p.SubscriptionID,
		Amount:                  p.Amount,
		Currency:                p.Currency,
		PaymentMethod:           string(p.Method),
		Status:                  string(p.Status),
		TransactionType:         string(p.Type),
		ProviderPaymentIntentID: p.ProviderPaymentIntentID,
		ProviderInvoiceID:       p.ProviderInvoiceID,
		FailureReason:           p.FailureReason,
		ProcessedAt:             p.ProcessedAt,
		CreatedAt:               p.CreatedAt,
	}
}

func mapViews[T, V any](in []T, fn func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
