package billing

import "strings"

// PlanTier identifies the catalog tier of a plan.
type PlanTier string

const (
	TierEconomy  PlanTier = "ECONOMY"
	TierBusiness PlanTier = "BUSINESS"
	TierFirst    PlanTier = "FIRST"
)

// BillingCycle determines the charged amount and the length of a period.
type BillingCycle string

const (
	CycleMonthly BillingCycle = "MONTHLY"
	CycleYearly  BillingCycle = "YEARLY"
)

func (c BillingCycle) Valid() bool {
	return c == CycleMonthly || c == CycleYearly
}

// Months returns the number of calendar months one period spans.
func (c BillingCycle) Months() int {
	if c == CycleYearly {
		return 12
	}
	return 1
}

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	StatusIncomplete        SubscriptionStatus = "INCOMPLETE"
	StatusIncompleteExpired SubscriptionStatus = "INCOMPLETE_EXPIRED"
	StatusTrial             SubscriptionStatus = "TRIAL"
	StatusActive            SubscriptionStatus = "ACTIVE"
	StatusPastDue           SubscriptionStatus = "PAST_DUE"
	StatusCanceled          SubscriptionStatus = "CANCELED"
	StatusExpired           SubscriptionStatus = "EXPIRED"
	StatusSuspended         SubscriptionStatus = "SUSPENDED"
)

// ActiveLikeStatuses is the set of statuses a user may hold at most one
// subscription in.
var ActiveLikeStatuses = []SubscriptionStatus{StatusActive, StatusTrial}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case StatusIncomplete, StatusIncompleteExpired, StatusTrial, StatusActive,
		StatusPastDue, StatusCanceled, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

func (s SubscriptionStatus) IsActiveLike() bool {
	return s == StatusActive || s == StatusTrial
}

func (s SubscriptionStatus) IsTerminal() bool {
	return s == StatusCanceled || s == StatusExpired || s == StatusIncompleteExpired
}

// Name implements statemachine.State.
func (s SubscriptionStatus) Name() string { return string(s) }

// ParseStatus parses a status name case-insensitively.
func ParseStatus(v string) (SubscriptionStatus, error) {
	s := SubscriptionStatus(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

// TicketTransactionType classifies a ledger row.
type TicketTransactionType string

const (
	TicketEarned      TicketTransactionType = "EARNED"
	TicketSpent       TicketTransactionType = "SPENT"
	TicketRefund      TicketTransactionType = "REFUND"
	TicketAdminAdjust TicketTransactionType = "ADMIN_ADJUST"
)

// PaymentStatus is the state of a provider charge or refund.
type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "PENDING"
	PaymentProcessing        PaymentStatus = "PROCESSING"
	PaymentSucceeded         PaymentStatus = "SUCCEEDED"
	PaymentFailed            PaymentStatus = "FAILED"
	PaymentCanceled          PaymentStatus = "CANCELED"
	PaymentRefunded          PaymentStatus = "REFUNDED"
	PaymentPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

// PaymentType classifies what a payment transaction pays for.
type PaymentType string

const (
	PaymentTypeSubscription  PaymentType = "SUBSCRIPTION_PAYMENT"
	PaymentTypeSetupFee      PaymentType = "SETUP_FEE"
	PaymentTypeUpgrade       PaymentType = "UPGRADE"
	PaymentTypeDowngrade     PaymentType = "DOWNGRADE"
	PaymentTypeRefund        PaymentType = "REFUND"
	PaymentTypePartialRefund PaymentType = "PARTIAL_REFUND"
	PaymentTypeChargeback    PaymentType = "CHARGEBACK"
)

// PaymentMethod is the instrument a charge was made with.
type PaymentMethod string

const (
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodWallet       PaymentMethod = "WALLET"
)
