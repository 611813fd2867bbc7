package billing

import (
	"context"
	"strconv"
	"time"
)

// Reader is the read side of the billing storage.
type Reader interface {
	GetPlan(ctx context.Context, id int64) (*Plan, error)
	ListPlans(ctx context.Context) ([]Plan, error)

	GetSubscription(ctx context.Context, id int64) (*Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*Subscription, error)
	// ListSubscriptionsByUser returns the user's subscriptions newest first,
	// restricted to the given statuses when any are passed.
	ListSubscriptionsByUser(ctx context.Context, userID int64, statuses ...SubscriptionStatus) ([]Subscription, error)
	// ListActiveSubscriptionsEndingBy returns ACTIVE subscriptions whose
	// current period ends at or before t.
	ListActiveSubscriptionsEndingBy(ctx context.Context, t time.Time) ([]Subscription, error)

	GetUserTicket(ctx context.Context, userID int64) (*UserTicket, error)
	// ListTicketsDueForRefill returns accounts whose next refill is at or
	// before now.
	ListTicketsDueForRefill(ctx context.Context, now time.Time) ([]UserTicket, error)
	// ListTicketTransactions returns the user's ledger oldest first.
	ListTicketTransactions(ctx context.Context, userID int64) ([]TicketTransaction, error)

	// GetPaymentByProviderPaymentID returns the newest row for the intent.
	GetPaymentByProviderPaymentID(ctx context.Context, paymentIntentID string) (*PaymentTransaction, error)
	GetPaymentByInvoiceID(ctx context.Context, invoiceID string) (*PaymentTransaction, error)
	ListPaymentsBySubscription(ctx context.Context, subscriptionID int64) ([]PaymentTransaction, error)
}

// Writer persists entities. Save methods assign an ID to new entities.
type Writer interface {
	SavePlan(ctx context.Context, p *Plan) error
	SaveSubscription(ctx context.Context, s *Subscription) error
	SaveUserTicket(ctx context.Context, t *UserTicket) error
	AppendTicketTransaction(ctx context.Context, t *TicketTransaction) error
	SavePaymentTransaction(ctx context.Context, p *PaymentTransaction) error
}

// Tx is a unit of work.
type Tx interface {
	Reader
	Writer
	// Lock blocks until the caller holds the exclusive lock for key. The lock
	// is released when the unit ends.
	Lock(ctx context.Context, key string) error
}

// Store is the storage contract implemented by every backend.
type Store interface {
	Reader
	// Atomic runs fn in a unit of work. A non-nil error from fn discards
	// every write made through tx.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// UserLockKey serializes ticket mutations and subscription creation per user.
func UserLockKey(userID int64) string {
	return "billing:user:" + strconv.FormatInt(userID, 10)
}

// SubscriptionLockKey serializes status transitions per subscription.
func SubscriptionLockKey(id int64) string {
	return "billing:subscription:" + strconv.FormatInt(id, 10)
}
