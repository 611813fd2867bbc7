package reconcile

import "time"

// Event is a provider notification the reconciler understands. The set of
// implementations is closed; Handle matches over all of them.
type Event interface {
	ID() string
	Kind() string
	event()
}

// Meta carries the delivery identity shared by every event.
type Meta struct {
	EventID    string
	OccurredAt time.Time
}

func (m Meta) ID() string { return m.EventID }

func (Meta) event() {}

// ProviderSubscription is the provider's view of a subscription.
type ProviderSubscription struct {
	ID                 string
	CustomerID         string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	CanceledAt         *time.Time
}

// Invoice is a charge against a provider subscription. Amount is in minor
// units of Currency.
type Invoice struct {
	ID              string
	SubscriptionID  string
	PaymentIntentID string
	ChargeID        string
	AmountMinor     int64
	Currency        string
	FailureReason   string
}

// CheckoutSession is a completed hosted checkout. Invoice is the first
// charge when the provider reports it with the session.
type CheckoutSession struct {
	ID             string
	SubscriptionID string
	CustomerID     string
	Metadata       map[string]string
	Invoice        *Invoice
}

type SubscriptionCreated struct {
	Meta
	Subscription ProviderSubscription
}

type SubscriptionUpdated struct {
	Meta
	Subscription ProviderSubscription
}

type SubscriptionDeleted struct {
	Meta
	SubscriptionID string
}

type InvoicePaymentSucceeded struct {
	Meta
	Invoice Invoice
}

type InvoicePaymentFailed struct {
	Meta
	Invoice Invoice
}

type PaymentIntentSucceeded struct {
	Meta
	PaymentIntentID string
}

type PaymentIntentFailed struct {
	Meta
	PaymentIntentID string
	FailureReason   string
}

type CheckoutSessionCompleted struct {
	Meta
	Session CheckoutSession
}

// Unhandled is any provider event without a local effect.
type Unhandled struct {
	Meta
	Type string
}

func (SubscriptionCreated) Kind() string      { return "subscription.created" }
func (SubscriptionUpdated) Kind() string      { return "subscription.updated" }
func (SubscriptionDeleted) Kind() string      { return "subscription.deleted" }
func (InvoicePaymentSucceeded) Kind() string  { return "invoice.payment_succeeded" }
func (InvoicePaymentFailed) Kind() string     { return "invoice.payment_failed" }
func (PaymentIntentSucceeded) Kind() string   { return "payment_intent.succeeded" }
func (PaymentIntentFailed) Kind() string      { return "payment_intent.payment_failed" }
func (CheckoutSessionCompleted) Kind() string { return "checkout.session.completed" }
func (u Unhandled) Kind() string              { return u.Type }

// Result reports what Handle did with an event.
type Result int

const (
	// Applied means local state changed.
	Applied Result = iota
	// Skipped means the event referenced nothing known locally.
	Skipped
	// Duplicate means the event was handled before.
	Duplicate
	// Ignored means the event kind has no local effect.
	Ignored
)

func (r Result) String() string {
	switch r {
	case Applied:
		return "applied"
	case Skipped:
		return "skipped"
	case Duplicate:
		return "duplicate"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}
