package ticket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

// Default ledger reasons.
const (
	ReasonSpend        = "Mission attempt"
	ReasonRefund       = "Ticket refund"
	ReasonAdjust       = "Admin adjustment"
	ReasonRefill       = "Automatic ticket refill"
	ReasonInitialGrant = "Initial ticket grant"
)

// Service mutates ticket balances. Every mutation writes exactly one
// ledger row in the same unit of work as the balance update.
type Service interface {
	// GetBalance returns the user's account, creating it on first access
	// with the refill amount of the user's active plan as opening balance.
	GetBalance(ctx context.Context, userID int64) (*billing.UserTicket, error)
	// Spend deducts amount. It reports false, without writing anything, if
	// the balance is too low.
	Spend(ctx context.Context, userID int64, amount int, attemptID *int64, reason string) (bool, error)
	// Refund credits amount. Refunds are not bounded by the plan ceiling.
	Refund(ctx context.Context, userID int64, amount int, attemptID *int64, reason string) error
	// AdminAdjust applies a signed correction. A negative delta larger than
	// the balance fails with billing.ErrInsufficientBalance.
	AdminAdjust(ctx context.Context, userID int64, delta int, reason string) error
	// ProcessScheduledRefills tops up every account whose refill is due.
	ProcessScheduledRefills(ctx context.Context, now time.Time) (RefillReport, error)
	// History returns the user's ledger, oldest first.
	History(ctx context.Context, userID int64) ([]billing.TicketTransaction, error)
}

// RefillReport summarizes one refill sweep.
type RefillReport struct {
	Due      int // accounts returned by the due query
	Refilled int // accounts that received tickets
	AtLimit  int // accounts already at the ceiling; schedule advanced only
	Skipped  int // accounts without an active subscription or no longer due
	Failed   int
}

type service struct {
	store     billing.Store
	publisher eventbus.Publisher
	topic     string
	logger    *slog.Logger
	now       func() time.Time
	lowMark   int
}

// NewService creates the ticket service. Panics if store is nil.
func NewService(store billing.Store, opts ...ServiceOption) Service {
	if store == nil {
		panic("ticket: store is required")
	}

	s := &service{
		store:     store,
		publisher: eventbus.Discard,
		topic:     billing.TopicPaymentEvents,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("ticket"))

	return s
}

func (s *service) GetBalance(ctx context.Context, userID int64) (*billing.UserTicket, error) {
	acct, err := s.store.GetUserTicket(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, billing.ErrNotFound) {
		return nil, err
	}

	err = s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}
		acct, err = s.account(ctx, tx, userID, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *service) Spend(ctx context.Context, userID int64, amount int, attemptID *int64, reason string) (bool, error) {
	if amount <= 0 {
		return false, billing.ErrInvalidAmount
	}

	var (
		spent bool
		acct  *billing.UserTicket
		out   eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		spent = false
		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}

		var err error
		now := s.now()
		acct, err = s.account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if acct.CurrentTickets < amount {
			return nil
		}

		if err := s.apply(ctx, tx, acct, billing.TicketSpent, -amount, attemptID, orDefault(reason, ReasonSpend), now); err != nil {
			return err
		}
		spent = true

		out.Add(s.topic, eventbus.NewEnvelope(billing.EventTicketsUsed, userID, nil, map[string]any{
			"ticketsUsed":      amount,
			"remainingBalance": acct.CurrentTickets,
		}))
		if s.lowMark > 0 && acct.CurrentTickets < s.lowMark {
			out.Add(s.topic, eventbus.NewEnvelope(billing.EventTicketBalanceLow, userID, nil, map[string]any{
				"currentBalance": acct.CurrentTickets,
				"threshold":      s.lowMark,
			}))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if !spent {
		s.logger.WarnContext(ctx, "insufficient tickets",
			logger.UserID(userID),
			slog.Int("required", amount),
			slog.Int("available", acct.CurrentTickets))
		return false, nil
	}

	s.logger.InfoContext(ctx, "tickets spent",
		logger.UserID(userID),
		slog.Int("amount", amount),
		slog.Int("balance", acct.CurrentTickets))
	out.Flush(ctx, s.publisher, s.logger)
	return true, nil
}

func (s *service) Refund(ctx context.Context, userID int64, amount int, attemptID *int64, reason string) error {
	if amount <= 0 {
		return billing.ErrInvalidAmount
	}

	var (
		acct *billing.UserTicket
		out  eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}

		var err error
		now := s.now()
		acct, err = s.account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		if err := s.apply(ctx, tx, acct, billing.TicketRefund, amount, attemptID, orDefault(reason, ReasonRefund), now); err != nil {
			return err
		}

		out.Add(s.topic, eventbus.NewEnvelope(billing.EventTicketsRefunded, userID, nil, map[string]any{
			"ticketsRefunded": amount,
			"newBalance":      acct.CurrentTickets,
		}))
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "tickets refunded",
		logger.UserID(userID),
		slog.Int("amount", amount),
		slog.Int("balance", acct.CurrentTickets))
	out.Flush(ctx, s.publisher, s.logger)
	return nil
}

func (s *service) AdminAdjust(ctx context.Context, userID int64, delta int, reason string) error {
	if delta == 0 {
		return billing.ErrInvalidDelta
	}

	var acct *billing.UserTicket
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}

		var err error
		now := s.now()
		acct, err = s.account(ctx, tx, userID, now)
		if err != nil {
			return err
		}
		return s.apply(ctx, tx, acct, billing.TicketAdminAdjust, delta, nil, orDefault(reason, ReasonAdjust), now)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "tickets adjusted",
		logger.UserID(userID),
		slog.Int("delta", delta),
		slog.Int("balance", acct.CurrentTickets))
	return nil
}

func (s *service) History(ctx context.Context, userID int64) ([]billing.TicketTransaction, error) {
	return s.store.ListTicketTransactions(ctx, userID)
}

// account loads the user's account or creates it. Must run under the user lock.
func (s *service) account(ctx context.Context, tx billing.Tx, userID int64, now time.Time) (*billing.UserTicket, error) {
	acct, err := tx.GetUserTicket(ctx, userID)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, billing.ErrNotFound) {
		return nil, err
	}

	_, plan, err := ActivePlan(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	last := now
	acct = &billing.UserTicket{UserID: userID, LastTicketRefill: &last}
	if plan != nil {
		acct.CurrentTickets = plan.RefillAmount
		next := now.Add(plan.RefillInterval())
		acct.NextRefillAt = &next
	}
	if err := tx.SaveUserTicket(ctx, acct); err != nil {
		return nil, err
	}

	if acct.CurrentTickets > 0 {
		if err := tx.AppendTicketTransaction(ctx, &billing.TicketTransaction{
			UserID:        userID,
			Type:          billing.TicketEarned,
			Amount:        acct.CurrentTickets,
			BalanceBefore: 0,
			BalanceAfter:  acct.CurrentTickets,
			Reason:        ReasonInitialGrant,
			CreatedAt:     now,
		}); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "ticket account created",
		logger.UserID(userID),
		slog.Int("opening_balance", acct.CurrentTickets))
	return acct, nil
}

// apply moves the balance by delta and records the ledger row.
func (s *service) apply(ctx context.Context, tx billing.Tx, acct *billing.UserTicket, typ billing.TicketTransactionType, delta int, attemptID *int64, reason string, now time.Time) error {
	before := acct.CurrentTickets
	after := before + delta
	if after < 0 {
		return fmt.Errorf("%w: balance %d cannot absorb %d", billing.ErrInsufficientBalance, before, delta)
	}

	acct.CurrentTickets = after
	if err := tx.SaveUserTicket(ctx, acct); err != nil {
		return err
	}
	return tx.AppendTicketTransaction(ctx, &billing.TicketTransaction{
		UserID:           acct.UserID,
		Type:             typ,
		Amount:           delta,
		BalanceBefore:    before,
		BalanceAfter:     after,
		RelatedAttemptID: attemptID,
		Reason:           reason,
		CreatedAt:        now,
	})
}

// ActivePlan resolves the newest ACTIVE or TRIAL subscription of a user and
// its plan. Both are nil when the user has none.
func ActivePlan(ctx context.Context, r billing.Reader, userID int64) (*billing.Subscription, *billing.Plan, error) {
	subs, err := r.ListSubscriptionsByUser(ctx, userID, billing.ActiveLikeStatuses...)
	if err != nil {
		return nil, nil, err
	}
	if len(subs) == 0 {
		return nil, nil, nil
	}
	plan, err := r.GetPlan(ctx, subs[0].PlanID)
	if err != nil {
		return nil, nil, err
	}
	return &subs[0], plan, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
