package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/scheduler"
	"github.com/missionlab/payment-service/svc/subscription"
	"github.com/missionlab/payment-service/svc/ticket"
)

// Job names.
const (
	jobTicketRefill       = "ticket-refill"
	jobSubscriptionExpiry = "subscription-expiry"
	jobExpiringNotice     = "subscription-expiring-notice"
)

// newScheduler registers the periodic sweeps. The services log their own
// sweep reports.
func newScheduler(cfg appConfig, log *slog.Logger, tickets ticket.Service, subs subscription.Service, opts ...scheduler.Option) (*scheduler.Scheduler, error) {
	s := scheduler.New(append([]scheduler.Option{scheduler.WithLogger(log)}, opts...)...)
	err := errors.Join(
		s.Add(jobTicketRefill, scheduler.EveryInterval(cfg.RefillSweepInterval),
			refillJob(tickets), scheduler.RunOnStart(), scheduler.WithTimeout(cfg.JobTimeout)),
		s.Add(jobSubscriptionExpiry, scheduler.EveryInterval(cfg.ExpirySweepInterval),
			expiryJob(subs), scheduler.RunOnStart(), scheduler.WithTimeout(cfg.JobTimeout)),
		s.Add(jobExpiringNotice, scheduler.DailyAt(cfg.ExpiringNoticeHour, 0),
			expiringNoticeJob(subs, cfg.ExpiringNoticeDays), scheduler.WithTimeout(cfg.JobTimeout)),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func refillJob(tickets ticket.Service) scheduler.Job {
	return func(ctx context.Context, now time.Time) error {
		_, err := tickets.ProcessScheduledRefills(ctx, now)
		return err
	}
}

func expiryJob(subs subscription.Service) scheduler.Job {
	return func(ctx context.Context, now time.Time) error {
		_, err := subs.ProcessExpired(ctx, now)
		return err
	}
}

func expiringNoticeJob(subs subscription.Service, days int) scheduler.Job {
	return func(ctx context.Context, now time.Time) error {
		_, err := subs.ProcessExpiring(ctx, now, days)
		return err
	}
}
