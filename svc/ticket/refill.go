package ticket

import (
	"context"
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

type refillOutcome int

const (
	refillSkipped refillOutcome = iota
	refillAtLimit
	refillApplied
)

// ProcessScheduledRefills runs one unit of work per due account so a failure
// on one user never rolls back another.
func (s *service) ProcessScheduledRefills(ctx context.Context, now time.Time) (RefillReport, error) {
	var report RefillReport

	due, err := s.store.ListTicketsDueForRefill(ctx, now)
	if err != nil {
		return report, err
	}
	report.Due = len(due)

	for _, acct := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, out, err := s.refillOne(ctx, acct.UserID, now)
		if err != nil {
			report.Failed++
			s.logger.ErrorContext(ctx, "ticket refill failed",
				logger.UserID(acct.UserID),
				logger.Error(err))
			continue
		}

		switch outcome {
		case refillApplied:
			report.Refilled++
			out.Flush(ctx, s.publisher, s.logger)
		case refillAtLimit:
			report.AtLimit++
		default:
			report.Skipped++
		}
	}

	s.logger.InfoContext(ctx, "ticket refill sweep finished",
		slog.Int("due", report.Due),
		slog.Int("refilled", report.Refilled),
		slog.Int("at_limit", report.AtLimit),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed))

	return report, nil
}

func (s *service) refillOne(ctx context.Context, userID int64, now time.Time) (refillOutcome, *eventbus.Batch, error) {
	var (
		outcome refillOutcome
		out     eventbus.Batch
	)
	err := s.store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		out.Reset()
		outcome = refillSkipped
		if err := tx.Lock(ctx, billing.UserLockKey(userID)); err != nil {
			return err
		}

		acct, err := tx.GetUserTicket(ctx, userID)
		if err != nil {
			return err
		}
		// Another worker may have handled it between the query and the lock.
		if acct.NextRefillAt == nil || acct.NextRefillAt.After(now) {
			return nil
		}

		_, plan, err := ActivePlan(ctx, tx, userID)
		if err != nil {
			return err
		}
		if plan == nil {
			return nil
		}

		next := now.Add(plan.RefillInterval())
		toAdd := min(plan.RefillAmount, plan.TicketLimit-acct.CurrentTickets)
		if toAdd <= 0 {
			outcome = refillAtLimit
			acct.NextRefillAt = &next
			return tx.SaveUserTicket(ctx, acct)
		}

		last := now
		acct.LastTicketRefill = &last
		acct.NextRefillAt = &next
		if err := s.apply(ctx, tx, acct, billing.TicketEarned, toAdd, nil, ReasonRefill, now); err != nil {
			return err
		}
		outcome = refillApplied

		out.Add(s.topic, eventbus.NewEnvelope(billing.EventTicketsRefilled, userID, nil, map[string]any{
			"ticketsAdded": toAdd,
			"newBalance":   acct.CurrentTickets,
		}))
		return nil
	})
	if err != nil {
		return refillSkipped, nil, err
	}
	return outcome, &out, nil
}
