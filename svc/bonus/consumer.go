package bonus

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/idempotency"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

// ErrNilGranter is returned by NewConsumer without a ticket granter.
var ErrNilGranter = errors.New("bonus: ticket granter is required")

// Granter credits tickets. ticket.Service satisfies it.
type Granter interface {
	AdminAdjust(ctx context.Context, userID int64, delta int, reason string) error
}

// Consumer applies bonus grants for inbound events.
type Consumer struct {
	tickets Granter
	seen    idempotency.Store
	topics  []string
	logger  *slog.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIdempotency drops events whose id was already granted.
func WithIdempotency(store idempotency.Store) Option {
	return func(c *Consumer) {
		if store != nil {
			c.seen = store
		}
	}
}

// WithTopics overrides the topics Run subscribes to.
func WithTopics(topics ...string) Option {
	return func(c *Consumer) {
		if len(topics) > 0 {
			c.topics = topics
		}
	}
}

// NewConsumer creates a consumer crediting tickets through g.
func NewConsumer(g Granter, opts ...Option) (*Consumer, error) {
	if g == nil {
		return nil, ErrNilGranter
	}

	c := &Consumer{
		tickets: g,
		seen:    idempotency.Nop,
		topics:  []string{billing.TopicUserEvents, billing.TopicMissionEvents},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(logger.Component("bonus"))

	return c, nil
}

// Handle processes one event. It always returns nil so the transport
// acknowledges the delivery; failures are logged.
func (c *Consumer) Handle(ctx context.Context, e eventbus.Envelope) error {
	log := c.logger.With(
		logger.EventID(e.EventID),
		logger.EventType(e.EventType),
		logger.UserID(e.UserID))

	grant, ok := GrantFor(e)
	if !ok {
		log.InfoContext(ctx, "unhandled event type")
		return nil
	}
	if grant.Tickets <= 0 {
		return nil
	}

	key := idempotency.Key("bonus", e.EventID)
	if e.EventID != "" {
		seen, err := c.seen.Seen(ctx, key)
		if err != nil {
			log.WarnContext(ctx, "idempotency lookup failed", logger.Error(err))
		} else if seen {
			log.InfoContext(ctx, "duplicate bonus event")
			return nil
		}
	}

	if err := c.tickets.AdminAdjust(ctx, grant.UserID, grant.Tickets, grant.Reason); err != nil {
		log.ErrorContext(ctx, "failed to grant bonus tickets",
			slog.Int("tickets", grant.Tickets),
			logger.Error(err))
		return nil
	}

	if e.EventID != "" {
		if err := c.seen.Mark(ctx, key); err != nil {
			log.WarnContext(ctx, "failed to mark bonus event handled", logger.Error(err))
		}
	}
	log.InfoContext(ctx, "bonus tickets granted",
		slog.Int("tickets", grant.Tickets),
		slog.String("reason", grant.Reason))
	return nil
}

// Run subscribes Handle to every configured topic and blocks until ctx is
// done or a subscription fails.
func (c *Consumer) Run(ctx context.Context, sub eventbus.Subscriber) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, topic := range c.topics {
		g.Go(func() error {
			c.logger.InfoContext(ctx, "consuming topic", logger.Topic(topic))
			return sub.Subscribe(ctx, topic, c.Handle)
		})
	}
	return g.Wait()
}
