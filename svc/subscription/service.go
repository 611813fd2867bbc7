package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/payment"
)

// Service manages the subscription lifecycle.
type Service interface {
	// Create opens a subscription in INCOMPLETE, or TRIAL when a trial is
	// requested. Fails with ErrActiveSubscriptionExists if the user already
	// holds an ACTIVE or TRIAL subscription.
	Create(ctx context.Context, req CreateRequest) (*billing.Subscription, error)
	// Activate starts a billing period of one cycle from now.
	Activate(ctx context.Context, id int64) (*billing.Subscription, error)
	// Cancel cancels immediately, or only flags the subscription when
	// atPeriodEnd is set.
	Cancel(ctx context.Context, id int64, atPeriodEnd bool) (*billing.Subscription, error)
	// ProcessExpired expires ACTIVE subscriptions whose period ended.
	ProcessExpired(ctx context.Context, now time.Time) (SweepReport, error)
	// ProcessExpiring announces ACTIVE subscriptions ending within the
	// next daysBefore days. Nothing is changed.
	ProcessExpiring(ctx context.Context, now time.Time, daysBefore int) (int, error)
	// UpdateStatus sets the status of the subscription bound to a provider
	// reference.
	UpdateStatus(ctx context.Context, providerRef string, status billing.SubscriptionStatus) (*billing.Subscription, error)

	// ListByUser returns every subscription of the user, newest first.
	ListByUser(ctx context.Context, userID int64) ([]billing.Subscription, error)
	// GetActive returns the newest ACTIVE or TRIAL subscription, or
	// ErrSubscriptionNotFound.
	GetActive(ctx context.Context, userID int64) (*billing.Subscription, error)
	// Payments lists the payment transactions owned by a subscription.
	Payments(ctx context.Context, subscriptionID int64) ([]billing.PaymentTransaction, error)

	// CreateCheckoutSession opens a hosted provider checkout for a plan.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*payment.CheckoutSession, error)
	// ConfirmPayment asks the provider to confirm a paid order.
	ConfirmPayment(ctx context.Context, paymentKey, orderID string, amount decimal.Decimal) (*payment.PaymentResult, error)
}

// CreateRequest describes a new subscription.
type CreateRequest struct {
	UserID     int64
	TeamID     *int64
	PlanID     int64
	Cycle      billing.BillingCycle
	StartTrial bool
	TrialDays  int
}

// CheckoutRequest describes a hosted checkout.
type CheckoutRequest struct {
	UserID     int64
	PlanID     int64
	Cycle      billing.BillingCycle
	Email      string
	Name       string
	SuccessURL string
	CancelURL  string
}

// SweepReport summarizes one expiry sweep.
type SweepReport struct {
	Due     int
	Expired int
	Skipped int
	Failed  int
}

type service struct {
	store     billing.Store
	provider  payment.Provider
	publisher eventbus.Publisher
	topic     string
	currency  string
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the lifecycle manager. Panics if store is nil.
func NewService(store billing.Store, opts ...ServiceOption) Service {
	if store == nil {
		panic("subscription: store is required")
	}

	s := &service{
		store:     store,
		publisher: eventbus.Discard,
		topic:     billing.TopicSubscriptionEvents,
		currency:  "USD",
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("subscription"))

	return s
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*billing.Subscription, error) {
	if !req.Cycle.Valid() {
		return nil, billing.ErrInvalidBillingCycle
	}
	if req.TrialDays < 0 {
		return nil, billing.NewError(billing.ErrValidation, "trial days must not be negative")
	}

	var (
		sub *billing.Subscription
		out eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		if err := tx.Lock(ctx, billing.UserLockKey(req.UserID)); err != nil {
			return err
		}

		active, err := tx.ListSubscriptionsByUser(ctx, req.UserID, billing.ActiveLikeStatuses...)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return billing.ErrActiveSubscriptionExists
		}

		plan, err := tx.GetPlan(ctx, req.PlanID)
		if err != nil {
			return err
		}
		if !plan.Active {
			return billing.ErrPlanInactive
		}

		now := s.now()
		sub = &billing.Subscription{
			UserID:       req.UserID,
			TeamID:       req.TeamID,
			PlanID:       plan.ID,
			Status:       billing.StatusIncomplete,
			BillingCycle: req.Cycle,
			Amount:       plan.PriceFor(req.Cycle),
			Currency:     s.currency,
			AutoRenewal:  true,
		}
		if req.StartTrial && req.TrialDays > 0 {
			start, end := now, now.AddDate(0, 0, req.TrialDays)
			sub.Status = billing.StatusTrial
			sub.TrialStart, sub.TrialEnd = &start, &end
			sub.CurrentPeriodStart, sub.CurrentPeriodEnd = &start, &end
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topic, billing.SubscriptionCreatedEvent(*sub, plan))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription created",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
		logger.PlanID(sub.PlanID),
		slog.String("status", string(sub.Status)))
	out.Flush(ctx, s.publisher, s.logger)
	return sub, nil
}

func (s *service) Activate(ctx context.Context, id int64) (*billing.Subscription, error) {
	var (
		sub *billing.Subscription
		out eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()

		var err error
		sub, err = lockSubscription(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fire(ctx, sub, EventActivate, s.now()); err != nil {
			return err
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		plan, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil && !errors.Is(err, billing.ErrNotFound) {
			return err
		}
		out.Add(s.topic, billing.SubscriptionCreatedEvent(*sub, plan))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription activated",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID))
	out.Flush(ctx, s.publisher, s.logger)
	return sub, nil
}

func (s *service) Cancel(ctx context.Context, id int64, atPeriodEnd bool) (*billing.Subscription, error) {
	var (
		sub *billing.Subscription
		out eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()

		var err error
		sub, err = lockSubscription(ctx, tx, id, false)
		if err != nil {
			return err
		}

		if atPeriodEnd {
			if sub.Status.IsTerminal() {
				return fmt.Errorf("%w: subscription is %s", billing.ErrInvalidTransition, sub.Status)
			}
			sub.CancelAtPeriodEnd = true
		} else if err := fire(ctx, sub, EventCancel, s.now()); err != nil {
			return err
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topic, billing.SubscriptionCancelledEvent(*sub))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription cancelled",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
		slog.Bool("at_period_end", atPeriodEnd))
	out.Flush(ctx, s.publisher, s.logger)
	return sub, nil
}

// ProcessExpired runs one unit of work per subscription so a failure on
// one row never rolls back another.
func (s *service) ProcessExpired(ctx context.Context, now time.Time) (SweepReport, error) {
	var report SweepReport

	due, err := s.store.ListActiveSubscriptionsEndingBy(ctx, now)
	if err != nil {
		return report, err
	}
	report.Due = len(due)

	for _, candidate := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		expired, err := s.expireOne(ctx, candidate.ID, now)
		switch {
		case err != nil:
			report.Failed++
			s.logger.ErrorContext(ctx, "failed to expire subscription",
				logger.SubscriptionID(candidate.ID),
				logger.Error(err))
		case expired:
			report.Expired++
		default:
			report.Skipped++
		}
	}

	s.logger.InfoContext(ctx, "expiry sweep finished",
		slog.Int("due", report.Due),
		slog.Int("expired", report.Expired),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (s *service) expireOne(ctx context.Context, id int64, now time.Time) (bool, error) {
	var (
		expired bool
		sub     *billing.Subscription
		out     eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		expired = false

		var err error
		sub, err = lockSubscription(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if !Lifecycle.CanFire(ctx, sub.Status, EventExpire, change{sub: sub, now: now}) {
			return nil
		}
		if err := fire(ctx, sub, EventExpire, now); err != nil {
			return err
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topic, billing.SubscriptionExpiredEvent(*sub, now))
		expired = true
		return nil
	})
	if err != nil || !expired {
		return false, err
	}

	s.logger.InfoContext(ctx, "subscription expired",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID))
	out.Flush(ctx, s.publisher, s.logger)
	return true, nil
}

func (s *service) ProcessExpiring(ctx context.Context, now time.Time, daysBefore int) (int, error) {
	if daysBefore < 0 {
		return 0, billing.NewError(billing.ErrValidation, "days before expiry must not be negative")
	}

	subs, err := s.store.ListActiveSubscriptionsEndingBy(ctx, now.AddDate(0, 0, daysBefore))
	if err != nil {
		return 0, err
	}

	var out eventbus.Batch
	for _, sub := range subs {
		out.Add(s.topic, billing.SubscriptionExpiringEvent(sub, daysBefore))
		s.logger.InfoContext(ctx, "subscription expiring",
			logger.UserID(sub.UserID),
			logger.SubscriptionID(sub.ID),
			slog.Int("days_before_expiry", daysBefore))
	}
	out.Flush(ctx, s.publisher, s.logger)
	return len(subs), nil
}

func (s *service) UpdateStatus(ctx context.Context, providerRef string, status billing.SubscriptionStatus) (*billing.Subscription, error) {
	if providerRef == "" {
		return nil, billing.ErrMissingProviderRef
	}
	if !status.Valid() {
		return nil, billing.ErrInvalidStatus
	}

	var (
		sub *billing.Subscription
		out eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()

		found, err := tx.GetSubscriptionByProviderID(ctx, providerRef)
		if err != nil {
			return err
		}
		if sub, err = lockSubscription(ctx, tx, found.ID, status.IsActiveLike()); err != nil {
			return err
		}

		sub.Status = status
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topic, billing.SubscriptionStatusUpdatedEvent(*sub))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription status updated",
		logger.SubscriptionID(sub.ID),
		slog.String("status", string(status)))
	out.Flush(ctx, s.publisher, s.logger)
	return sub, nil
}

func (s *service) ListByUser(ctx context.Context, userID int64) ([]billing.Subscription, error) {
	return s.store.ListSubscriptionsByUser(ctx, userID)
}

func (s *service) GetActive(ctx context.Context, userID int64) (*billing.Subscription, error) {
	subs, err := s.store.ListSubscriptionsByUser(ctx, userID, billing.ActiveLikeStatuses...)
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &subs[0], nil
}

func (s *service) Payments(ctx context.Context, subscriptionID int64) ([]billing.PaymentTransaction, error) {
	if _, err := s.store.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.store.ListPaymentsBySubscription(ctx, subscriptionID)
}

// lockSubscription takes the subscription lock, plus the owner's user lock
// when the change may create an active-like row, and re-reads the row.
func lockSubscription(ctx context.Context, tx billing.Tx, id int64, userLock bool) (*billing.Subscription, error) {
	sub, err := tx.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if userLock {
		if err := tx.Lock(ctx, billing.UserLockKey(sub.UserID)); err != nil {
			return nil, err
		}
	}
	if err := tx.Lock(ctx, billing.SubscriptionLockKey(id)); err != nil {
		return nil, err
	}
	return tx.GetSubscription(ctx, id)
}
