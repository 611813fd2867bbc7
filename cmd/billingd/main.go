// Command billingd runs the billing service: the HTTP API and provider
// webhook intake, the periodic sweeps and the bonus event consumer.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/missionlab/payment-service/pkg/config"
	"github.com/missionlab/payment-service/pkg/httpserver"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/pkg/requestid"
	"github.com/missionlab/payment-service/svc/api"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/bonus"
	"github.com/missionlab/payment-service/svc/catalog"
	"github.com/missionlab/payment-service/svc/payment"
	"github.com/missionlab/payment-service/svc/reconcile"
	"github.com/missionlab/payment-service/svc/subscription"
	"github.com/missionlab/payment-service/svc/ticket"
)

func main() {
	if err := run(); err != nil {
		slog.Error("billingd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}

	logOverride, err := cfg.Log.Option()
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Name),
		logOverride,
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)
	logger.SetAsDefault(log)

	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close()

	var (
		provider payment.Provider
		webhooks api.WebhookParser
	)
	if cfg.PaddleEnabled {
		var paddleCfg payment.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return err
		}
		paddle, err := payment.NewPaddleProvider(paddleCfg, log)
		if err != nil {
			return err
		}
		provider, webhooks = paddle, paddle
	}

	if err := seedCatalog(ctx, cfg, in.store, provider, log); err != nil {
		return err
	}

	tickets := ticket.NewService(in.store,
		ticket.WithLogger(log),
		ticket.WithPublisher(in.publisher),
		ticket.WithTopic(cfg.Topics.Payment),
		ticket.WithLowBalanceThreshold(cfg.LowBalanceThreshold),
	)

	subOpts := []subscription.ServiceOption{
		subscription.WithLogger(log),
		subscription.WithPublisher(in.publisher),
		subscription.WithTopic(cfg.Topics.Subscription),
		subscription.WithCurrency(cfg.Currency),
	}
	if provider != nil {
		subOpts = append(subOpts, subscription.WithProvider(provider))
	}
	subs := subscription.NewService(in.store, subOpts...)

	reconciler := reconcile.NewService(in.store,
		reconcile.WithLogger(log),
		reconcile.WithPublisher(in.publisher),
		reconcile.WithTopics(cfg.Topics),
		reconcile.WithIdempotency(in.seen),
	)

	consumer, err := bonus.NewConsumer(tickets,
		bonus.WithLogger(log),
		bonus.WithIdempotency(in.seen),
	)
	if err != nil {
		return err
	}

	sched, err := newScheduler(cfg, log, tickets, subs)
	if err != nil {
		return err
	}

	resolver, err := in.resolver(ctx, cfg, log)
	if err != nil {
		return err
	}

	deps := api.Dependencies{
		Tickets:       tickets,
		Subscriptions: subs,
		Reconciler:    reconciler,
		Store:         in.store,
		Resolver:      resolver,
		Webhooks:      webhooks,
	}
	if in.archive != nil {
		deps.Events = in.archive
	}
	router := api.NewRouter(deps, api.WithLogger(log))
	router.Get("/health/live", httpserver.Liveness())
	router.Get("/health/ready", httpserver.Readiness(log, cfg.ReadinessTimeout, in.checks...))

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx, router) })
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error { return consumer.Run(ctx, in.bus) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("billingd shut down")
	return nil
}

// seedCatalog loads the plan catalog into an empty store and, with a
// provider configured, creates provider prices for plans lacking them.
func seedCatalog(ctx context.Context, cfg appConfig, store billing.Store, provider payment.Provider, log *slog.Logger) error {
	var (
		plans []billing.Plan
		err   error
	)
	if cfg.PlanCatalogPath != "" {
		plans, err = catalog.LoadFile(cfg.PlanCatalogPath)
	} else {
		plans, err = catalog.Default()
	}
	if err != nil {
		return err
	}

	n, err := catalog.Seed(ctx, store, plans)
	if err != nil {
		return err
	}
	if n > 0 {
		log.InfoContext(ctx, "plan catalog seeded", slog.Int("plans", n))
	}

	if provider == nil || !cfg.SyncPlanPrices {
		return nil
	}
	synced, err := catalog.SyncProvider(ctx, store, provider, log)
	if err != nil {
		return err
	}
	if synced > 0 {
		log.InfoContext(ctx, "plan prices synced with provider", slog.Int("plans", synced))
	}
	return nil
}
