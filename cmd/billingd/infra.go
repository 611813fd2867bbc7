package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/missionlab/payment-service/pkg/config"
	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/httpserver"
	"github.com/missionlab/payment-service/pkg/idempotency"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/pkg/mongo"
	"github.com/missionlab/payment-service/pkg/pg"
	"github.com/missionlab/payment-service/pkg/redis"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/identity"
	"github.com/missionlab/payment-service/svc/storage/memory"
	"github.com/missionlab/payment-service/svc/storage/postgres"
)

// infra holds the process-wide backends selected by configuration.
type infra struct {
	store     billing.Store
	publisher eventbus.Publisher
	archive   *eventbus.Archive
	bus       eventbus.Subscriber
	seen      idempotency.Store
	mappings  identity.MappingStore
	checks    []httpserver.Check
	closers   []func()
}

func (in *infra) close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
}

func openInfra(ctx context.Context, cfg appConfig, log *slog.Logger) (*infra, error) {
	in := &infra{}
	ok := false
	defer func() {
		if !ok {
			in.close()
		}
	}()

	if err := in.openStore(ctx, cfg, log); err != nil {
		return nil, err
	}
	if err := in.openBus(ctx, cfg, log); err != nil {
		return nil, err
	}
	if cfg.ArchiveEvents {
		if err := in.openArchive(ctx, log); err != nil {
			return nil, err
		}
	}

	ok = true
	return in, nil
}

func (in *infra) openStore(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	switch cfg.StoreDriver {
	case driverMemory:
		in.store = memory.New()
		log.WarnContext(ctx, "using in-memory store, state is lost on restart")
		return nil
	case driverPostgres:
	default:
		return fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, pool.Close)

	if err := pg.Migrate(ctx, pool, pgCfg, postgres.Migrations, log.With(logger.Component("migrate"))); err != nil {
		return err
	}

	in.store = postgres.New(pool)
	in.mappings = postgres.NewIdentityMappings(pool)
	in.checks = append(in.checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(pool)})
	return nil
}

func (in *infra) openBus(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	switch cfg.BusDriver {
	case driverMemory:
		bus := eventbus.NewMemoryBus(eventbus.WithMemoryLogger(log))
		in.closers = append(in.closers, func() { _ = bus.Close() })
		in.publisher, in.bus = bus, bus
		in.seen = idempotency.NewMemoryStore(cfg.IdempotencySize, cfg.IdempotencyTTL)
		if in.mappings == nil {
			in.mappings = identity.NewMemoryMappings(1)
		}
		return nil
	case driverRedis:
	default:
		return fmt.Errorf("unknown bus driver %q", cfg.BusDriver)
	}

	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	client, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, func() { _ = client.Close() })

	bus := eventbus.NewRedisBus(client,
		eventbus.WithConsumerGroup(cfg.Name),
		eventbus.WithRedisLogger(log),
	)
	in.publisher, in.bus = bus, bus
	in.seen = idempotency.NewRedisStore(client, redisCfg.KeyPrefix+"seen:", cfg.IdempotencyTTL)
	if in.mappings == nil {
		in.mappings = identity.NewRedisMappings(client, redisCfg.KeyPrefix+"identity:")
	}
	in.checks = append(in.checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(client)})
	return nil
}

// resolver returns the configured identity resolver. The table resolver
// keeps its mappings next to the billing data when the store is Postgres,
// in Redis when only the bus is, and in memory otherwise.
func (in *infra) resolver(ctx context.Context, cfg appConfig, log *slog.Logger) (identity.Resolver, error) {
	switch cfg.IdentityResolver {
	case resolverHash:
		return identity.HashResolver{}, nil
	case resolverTable:
		if _, ok := in.mappings.(*identity.MemoryMappings); ok {
			log.WarnContext(ctx, "identity mappings are in memory, ids are reassigned on restart")
		}
		return identity.NewTableResolver(in.mappings, log), nil
	default:
		return nil, fmt.Errorf("unknown identity resolver %q", cfg.IdentityResolver)
	}
}

// openArchive wraps the publisher so every event is also stored in MongoDB.
func (in *infra) openArchive(ctx context.Context, log *slog.Logger) error {
	var mongoCfg mongo.Config
	if err := config.Load(&mongoCfg); err != nil {
		return fmt.Errorf("mongodb config: %w", err)
	}
	client, err := mongo.New(ctx, mongoCfg)
	if err != nil {
		return err
	}
	in.closers = append(in.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), mongoCfg.ConnectTimeout)
		defer cancel()
		_ = client.Disconnect(ctx)
	})

	coll, err := mongo.Collection(ctx, client, mongoCfg)
	if err != nil {
		return err
	}
	in.archive = eventbus.NewArchive(in.publisher, coll, log)
	in.publisher = in.archive
	in.checks = append(in.checks, httpserver.Check{Name: "mongodb", Probe: mongo.Healthcheck(client)})
	return nil
}
