package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/idempotency"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

// CheckoutUserKey is the checkout metadata key carrying the local user id.
const CheckoutUserKey = "user_id"

// Service applies provider events to local state.
type Service interface {
	// Handle applies ev. Events that reference nothing local are reported
	// as Skipped with a nil error so transports do not redeliver them.
	Handle(ctx context.Context, ev Event) (Result, error)
}

type service struct {
	store     billing.Store
	publisher eventbus.Publisher
	topics    billing.Topics
	seen      idempotency.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates the reconciler. Panics if store is nil.
func NewService(store billing.Store, opts ...ServiceOption) Service {
	if store == nil {
		panic("reconcile: store is required")
	}

	s := &service{
		store:     store,
		publisher: eventbus.Discard,
		topics:    billing.DefaultTopics(),
		seen:      idempotency.Nop,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("reconcile"))

	return s
}

func (s *service) Handle(ctx context.Context, ev Event) (Result, error) {
	if ev == nil {
		return Ignored, ErrNilEvent
	}

	log := s.logger.With(logger.EventID(ev.ID()), logger.EventType(ev.Kind()))

	key := idempotency.Key("reconcile", ev.ID())
	if ev.ID() != "" {
		seen, err := s.seen.Seen(ctx, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency lookup failed", logger.Error(err))
		} else if seen {
			log.InfoContext(ctx, "duplicate provider event")
			return Duplicate, nil
		}
	}

	var (
		out    eventbus.Batch
		result Result
		err    error
	)
	switch e := ev.(type) {
	case SubscriptionCreated:
		result, err = s.syncSubscription(ctx, &out, e.Subscription)
	case SubscriptionUpdated:
		result, err = s.syncSubscription(ctx, &out, e.Subscription)
	case SubscriptionDeleted:
		result, err = s.deleteSubscription(ctx, &out, e.SubscriptionID)
	case InvoicePaymentSucceeded:
		result, err = s.recordInvoice(ctx, &out, e.Invoice, billing.PaymentSucceeded, e.OccurredAt)
	case InvoicePaymentFailed:
		result, err = s.recordInvoice(ctx, &out, e.Invoice, billing.PaymentFailed, e.OccurredAt)
	case PaymentIntentSucceeded:
		result, err = s.settleIntent(ctx, &out, e.PaymentIntentID, billing.PaymentSucceeded, "", e.OccurredAt)
	case PaymentIntentFailed:
		result, err = s.settleIntent(ctx, &out, e.PaymentIntentID, billing.PaymentFailed, e.FailureReason, e.OccurredAt)
	case CheckoutSessionCompleted:
		result, err = s.checkoutCompleted(ctx, &out, e.Session, e.OccurredAt)
	case Unhandled:
		result = Ignored
	default:
		result = Ignored
	}
	if err != nil {
		log.ErrorContext(ctx, "failed to reconcile provider event", logger.Error(err))
		return result, err
	}

	switch result {
	case Applied:
		log.InfoContext(ctx, "provider event applied")
		out.Flush(ctx, s.publisher, s.logger)
	case Skipped:
		log.WarnContext(ctx, "provider event references unknown local records")
	case Ignored:
		log.InfoContext(ctx, "unhandled provider event type")
	}

	if ev.ID() != "" && result != Ignored {
		if err := s.seen.Mark(ctx, key); err != nil {
			log.WarnContext(ctx, "failed to mark provider event handled", logger.Error(err))
		}
	}
	return result, nil
}

// syncSubscription copies the provider's view onto the matching local row.
// Provider data never creates a subscription on its own.
func (s *service) syncSubscription(ctx context.Context, out *eventbus.Batch, ps ProviderSubscription) (Result, error) {
	if ps.ID == "" {
		return Skipped, nil
	}

	result := Skipped
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		result = Skipped

		sub, err := s.lockByProviderID(ctx, tx, ps.ID)
		if errors.Is(err, billing.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		sub.ProviderSubscriptionID = ps.ID
		if ps.CustomerID != "" {
			sub.ProviderCustomerID = ps.CustomerID
		}
		if err := s.setStatus(ctx, tx, sub, MapProviderStatus(ps.Status)); err != nil {
			return err
		}
		if ps.CurrentPeriodStart != nil {
			sub.CurrentPeriodStart = ps.CurrentPeriodStart
		}
		if ps.CurrentPeriodEnd != nil {
			sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
		}
		sub.CancelAtPeriodEnd = ps.CancelAtPeriodEnd
		if ps.CanceledAt != nil {
			sub.CanceledAt = ps.CanceledAt
		}
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topics.Subscription, billing.SubscriptionStatusUpdatedEvent(*sub))
		result = Applied
		return nil
	})
	return result, err
}

func (s *service) deleteSubscription(ctx context.Context, out *eventbus.Batch, providerID string) (Result, error) {
	if providerID == "" {
		return Skipped, nil
	}

	result := Skipped
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		result = Skipped

		sub, err := s.lockByProviderID(ctx, tx, providerID)
		if errors.Is(err, billing.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now()
		sub.Status = billing.StatusCanceled
		sub.CanceledAt = &now
		if err := tx.SaveSubscription(ctx, sub); err != nil {
			return err
		}

		out.Add(s.topics.Subscription, billing.SubscriptionCancelledEvent(*sub))
		result = Applied
		return nil
	})
	return result, err
}

// recordInvoice appends one payment row per provider invoice and moves the
// subscription to ACTIVE or PAST_DUE. A second delivery of the same invoice
// finds the existing row and reports Duplicate.
func (s *service) recordInvoice(ctx context.Context, out *eventbus.Batch, inv Invoice, status billing.PaymentStatus, at time.Time) (Result, error) {
	if inv.SubscriptionID == "" {
		return Skipped, nil
	}
	if err := checkCurrency(inv); err != nil {
		return Skipped, err
	}

	result := Skipped
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		result = Skipped

		sub, err := s.lockByProviderID(ctx, tx, inv.SubscriptionID)
		if errors.Is(err, billing.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		recorded, err := s.appendPayment(ctx, tx, out, sub, inv, status, at)
		if err != nil {
			return err
		}
		if !recorded {
			result = Duplicate
			return nil
		}

		// A failed charge always re-announces PAST_DUE; a paid one only when
		// it changes something.
		target := billing.StatusActive
		if status == billing.PaymentFailed {
			target = billing.StatusPastDue
		}
		if sub.Status != target || status == billing.PaymentFailed {
			if err := s.setStatus(ctx, tx, sub, target); err != nil {
				return err
			}
			if sub.Status == target {
				if err := tx.SaveSubscription(ctx, sub); err != nil {
					return err
				}
				out.Add(s.topics.Subscription, billing.SubscriptionStatusUpdatedEvent(*sub))
			}
		}

		result = Applied
		return nil
	})
	return result, err
}

// appendPayment stores inv as a payment row of sub. It reports false when
// the invoice, or a successful charge of the same payment, is already on
// record.
func (s *service) appendPayment(ctx context.Context, tx billing.Tx, out *eventbus.Batch, sub *billing.Subscription, inv Invoice, status billing.PaymentStatus, at time.Time) (bool, error) {
	if inv.ID != "" {
		if _, err := tx.GetPaymentByInvoiceID(ctx, inv.ID); err == nil {
			return false, nil
		} else if !errors.Is(err, billing.ErrNotFound) {
			return false, err
		}
	}
	if status == billing.PaymentSucceeded && inv.PaymentIntentID != "" {
		pays, err := tx.ListPaymentsBySubscription(ctx, sub.ID)
		if err != nil {
			return false, err
		}
		for _, p := range pays {
			if p.ProviderPaymentIntentID == inv.PaymentIntentID && p.Status == billing.PaymentSucceeded {
				return false, nil
			}
		}
	}

	if at.IsZero() {
		at = s.now()
	}
	cur := sub.Currency
	if inv.Currency != "" {
		cur, _ = billing.NormalizeCurrency(inv.Currency)
	}
	pay := &billing.PaymentTransaction{
		SubscriptionID:          sub.ID,
		Amount:                  billing.FromMinor(inv.AmountMinor, cur),
		Currency:                cur,
		Method:                  billing.MethodCard,
		Status:                  status,
		Type:                    billing.PaymentTypeSubscription,
		ProviderPaymentIntentID: inv.PaymentIntentID,
		ProviderInvoiceID:       inv.ID,
		ProviderChargeID:        inv.ChargeID,
	}
	if status == billing.PaymentSucceeded {
		pay.ProcessedAt = &at
	} else {
		pay.FailureReason = orDefault(inv.FailureReason, "Payment failed")
	}
	if err := tx.SavePaymentTransaction(ctx, pay); err != nil {
		return false, err
	}
	out.Add(s.topics.Payment, billing.PaymentEvent(*pay, *sub))
	return true, nil
}

// settleIntent updates an existing payment row in place. Unknown intents
// are skipped.
func (s *service) settleIntent(ctx context.Context, out *eventbus.Batch, intentID string, status billing.PaymentStatus, reason string, at time.Time) (Result, error) {
	if intentID == "" {
		return Skipped, nil
	}

	result := Skipped
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		result = Skipped

		pay, err := tx.GetPaymentByProviderPaymentID(ctx, intentID)
		if errors.Is(err, billing.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Lock(ctx, billing.SubscriptionLockKey(pay.SubscriptionID)); err != nil {
			return err
		}
		sub, err := tx.GetSubscription(ctx, pay.SubscriptionID)
		if err != nil {
			return err
		}

		if pay.Status == status {
			result = Duplicate
			return nil
		}
		// A failed invoice attempt stays on record; the retry that succeeds
		// arrives as its own invoice.
		if pay.Status == billing.PaymentFailed && pay.ProviderInvoiceID != "" {
			return nil
		}

		pay.Status = status
		if status == billing.PaymentSucceeded {
			if at.IsZero() {
				at = s.now()
			}
			pay.ProcessedAt = &at
		} else {
			pay.FailureReason = orDefault(reason, "Payment failed")
		}
		if err := tx.SavePaymentTransaction(ctx, pay); err != nil {
			return err
		}

		out.Add(s.topics.Payment, billing.PaymentEvent(*pay, *sub))
		result = Applied
		return nil
	})
	return result, err
}

// checkoutCompleted binds the provider references to the user's pending
// subscription, activates it and records the first charge when the session
// carries one.
func (s *service) checkoutCompleted(ctx context.Context, out *eventbus.Batch, cs CheckoutSession, at time.Time) (Result, error) {
	raw, ok := cs.Metadata[CheckoutUserKey]
	if !ok || cs.SubscriptionID == "" {
		return Skipped, nil
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid user id in checkout metadata", slog.String("value", raw))
		return Skipped, nil
	}
	if cs.Invoice != nil {
		if err := checkCurrency(*cs.Invoice); err != nil {
			return Skipped, err
		}
	}

	result := Skipped
	err = s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		result = Skipped

		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}
		pending, err := tx.ListSubscriptionsByUser(ctx, userID, billing.StatusIncomplete)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		sub := pending[0]
		sub.ProviderSubscriptionID = cs.SubscriptionID
		if cs.CustomerID != "" {
			sub.ProviderCustomerID = cs.CustomerID
		}
		if err := s.setStatus(ctx, tx, &sub, billing.StatusActive); err != nil {
			return err
		}
		if err := tx.SaveSubscription(ctx, &sub); err != nil {
			return err
		}
		out.Add(s.topics.Subscription, billing.SubscriptionStatusUpdatedEvent(sub))

		if cs.Invoice != nil {
			inv := *cs.Invoice
			inv.SubscriptionID = cs.SubscriptionID
			if _, err := s.appendPayment(ctx, tx, out, &sub, inv, billing.PaymentSucceeded, at); err != nil {
				return err
			}
		}

		result = Applied
		return nil
	})
	return result, err
}

// setStatus moves sub to status unless that would give its user a second
// active-like subscription. A refused move keeps the current status.
func (s *service) setStatus(ctx context.Context, tx billing.Tx, sub *billing.Subscription, status billing.SubscriptionStatus) error {
	if status.IsActiveLike() && !sub.Status.IsActiveLike() {
		others, err := tx.ListSubscriptionsByUser(ctx, sub.UserID, billing.ActiveLikeStatuses...)
		if err != nil {
			return err
		}
		for _, o := range others {
			if o.ID != sub.ID {
				s.logger.WarnContext(ctx, "provider activated a subscription while another is active",
					logger.UserID(sub.UserID),
					slog.Int64("subscription_id", sub.ID),
					slog.Int64("active_subscription_id", o.ID),
					slog.String("status", string(sub.Status)))
				return nil
			}
		}
	}
	sub.Status = status
	return nil
}

func (s *service) lockByProviderID(ctx context.Context, tx billing.Tx, providerID string) (*billing.Subscription, error) {
	sub, err := tx.GetSubscriptionByProviderID(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if err := tx.Lock(ctx, billing.SubscriptionLockKey(sub.ID)); err != nil {
		return nil, err
	}
	// re-read under the lock
	return tx.GetSubscription(ctx, sub.ID)
}

// MapProviderStatus maps a provider subscription status onto the local
// lifecycle. Unknown values map to ACTIVE.
func MapProviderStatus(status string) billing.SubscriptionStatus {
	switch status {
	case "active":
		return billing.StatusActive
	case "canceled", "cancelled":
		return billing.StatusCanceled
	case "incomplete":
		return billing.StatusIncomplete
	case "incomplete_expired":
		return billing.StatusIncompleteExpired
	case "past_due":
		return billing.StatusPastDue
	case "trialing":
		return billing.StatusTrial
	default:
		return billing.StatusActive
	}
}

func checkCurrency(inv Invoice) error {
	if inv.Currency == "" {
		return nil
	}
	_, err := billing.NormalizeCurrency(inv.Currency)
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
