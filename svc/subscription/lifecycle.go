package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/missionlab/payment-service/pkg/statemachine"
	"github.com/missionlab/payment-service/svc/billing"
)

// Lifecycle events a caller may fire against a subscription.
const (
	EventActivate      = statemachine.StringEvent("activate")
	EventCancel        = statemachine.StringEvent("cancel")
	EventExpire        = statemachine.StringEvent("expire")
	EventPaymentFailed = statemachine.StringEvent("payment_failed")
	EventAbandon       = statemachine.StringEvent("abandon")
)

// change is the data handed to transition actions.
type change struct {
	sub *billing.Subscription
	now time.Time
}

// Lifecycle is the transition table of caller-driven status changes.
// Provider-driven updates go through UpdateStatus and the reconciler
// instead, since the provider is authoritative.
var Lifecycle = statemachine.MustNew(
	statemachine.FromAny(
		[]statemachine.State{billing.StatusIncomplete, billing.StatusTrial, billing.StatusPastDue, billing.StatusActive},
		billing.StatusActive, EventActivate,
		statemachine.WithAction(startPeriod),
	),
	statemachine.FromAny(
		[]statemachine.State{billing.StatusIncomplete, billing.StatusTrial, billing.StatusActive, billing.StatusPastDue, billing.StatusSuspended},
		billing.StatusCanceled, EventCancel,
		statemachine.WithAction(markCanceled),
	),
	statemachine.WithTransition(billing.StatusActive, billing.StatusExpired, EventExpire,
		statemachine.WithGuard(periodOver),
	),
	statemachine.WithTransition(billing.StatusActive, billing.StatusPastDue, EventPaymentFailed),
	statemachine.WithTransition(billing.StatusIncomplete, billing.StatusIncompleteExpired, EventAbandon),
)

func startPeriod(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	c := data.(change)
	start := c.now
	end := addMonths(start, c.sub.BillingCycle.Months())
	c.sub.CurrentPeriodStart = &start
	c.sub.CurrentPeriodEnd = &end
	return nil
}

func markCanceled(_ context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	c := data.(change)
	at := c.now
	c.sub.CanceledAt = &at
	return nil
}

func periodOver(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	c, ok := data.(change)
	if !ok {
		return false
	}
	return c.sub.CurrentPeriodEnd != nil && !c.sub.CurrentPeriodEnd.After(c.now)
}

// fire moves sub along the table and stores the new status on it.
func fire(ctx context.Context, sub *billing.Subscription, event statemachine.Event, now time.Time) error {
	to, err := Lifecycle.Fire(ctx, sub.Status, event, change{sub: sub, now: now})
	if err != nil {
		if statemachine.IsTransitionError(err) {
			return fmt.Errorf("%w: %w", billing.ErrInvalidTransition, err)
		}
		return err
	}
	sub.Status = to.(billing.SubscriptionStatus)
	return nil
}

// addMonths adds calendar months, clamping to the last day of the target
// month: Jan 31 + 1 month is Feb 28 (or 29).
func addMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(d, last)-1)
}
