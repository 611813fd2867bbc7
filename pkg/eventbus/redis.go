package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const payloadField = "payload"

// RedisBus publishes to and consumes from Redis Streams, one stream per
// topic. Consumers sharing a group split the stream between them.
type RedisBus struct {
	client    redis.UniversalClient
	group     string
	consumer  string
	maxLen    int64
	batchSize int64
	block     time.Duration
	backoff   time.Duration
	claimIdle time.Duration
	logger    *slog.Logger
}

// RedisOption configures a RedisBus.
type RedisOption func(*RedisBus)

// WithConsumerGroup sets the consumer group name.
func WithConsumerGroup(group string) RedisOption {
	return func(b *RedisBus) {
		if group != "" {
			b.group = group
		}
	}
}

// WithConsumerName sets this process's consumer name within the group.
func WithConsumerName(name string) RedisOption {
	return func(b *RedisBus) {
		if name != "" {
			b.consumer = name
		}
	}
}

// WithMaxLen caps each stream approximately at n entries. Zero disables trimming.
func WithMaxLen(n int64) RedisOption {
	return func(b *RedisBus) {
		if n >= 0 {
			b.maxLen = n
		}
	}
}

// WithReadBlock sets how long one read waits for new entries.
func WithReadBlock(d time.Duration) RedisOption {
	return func(b *RedisBus) {
		if d > 0 {
			b.block = d
		}
	}
}

// WithClaimIdle sets how long an entry must sit unacknowledged with another
// consumer before Subscribe takes it over. Zero disables reclaiming.
func WithClaimIdle(d time.Duration) RedisOption {
	return func(b *RedisBus) {
		if d >= 0 {
			b.claimIdle = d
		}
	}
}

// WithRedisLogger sets the logger.
func WithRedisLogger(l *slog.Logger) RedisOption {
	return func(b *RedisBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewRedisBus creates a Redis Streams bus.
func NewRedisBus(client redis.UniversalClient, opts ...RedisOption) *RedisBus {
	if client == nil {
		panic("eventbus: redis client is required")
	}
	b := &RedisBus{
		client:    client,
		group:     "payment-service",
		consumer:  "consumer-" + uuid.NewString(),
		maxLen:    100_000,
		batchSize: 16,
		block:     5 * time.Second,
		backoff:   time.Second,
		claimIdle: time.Minute,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends e to the topic stream.
func (b *RedisBus) Publish(ctx context.Context, topic string, e Envelope) error {
	payload, err := Encode(e)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{
			"event_id":   e.EventID,
			"event_type": e.EventType,
			payloadField: payload,
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	if err := b.client.XAdd(ctx, args).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Subscribe consumes topic as a member of the configured group. It first
// takes over entries left pending by consumers that stopped before
// acknowledging them. Every delivered entry is acknowledged once h returns,
// even when it fails or the entry cannot be decoded.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	if err := b.ensureGroup(ctx, topic); err != nil {
		return err
	}

	log := b.logger.With(slog.String("topic", topic), slog.String("group", b.group))
	log.InfoContext(ctx, "subscribed to stream", slog.String("consumer", b.consumer))

	if err := b.reclaim(ctx, log, topic, h); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.ErrorContext(ctx, "failed to reclaim pending entries", slog.Any("error", err))
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: b.consumer,
			Streams:  []string{topic, ">"},
			Count:    b.batchSize,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.ErrorContext(ctx, "failed to read stream", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.backoff):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				b.dispatch(ctx, log, topic, msg, h)
			}
		}
	}
}

// reclaim walks the group's pending list once and dispatches every entry
// idle for at least claimIdle. Requires Redis 6.2 or later.
func (b *RedisBus) reclaim(ctx context.Context, log *slog.Logger, topic string, h Handler) error {
	if b.claimIdle <= 0 {
		return nil
	}

	start := "0-0"
	for {
		msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   topic,
			Group:    b.group,
			Consumer: b.consumer,
			MinIdle:  b.claimIdle,
			Start:    start,
			Count:    b.batchSize,
		}).Result()
		if err != nil {
			return err
		}
		if len(msgs) > 0 {
			log.InfoContext(ctx, "reclaimed pending stream entries", slog.Int("count", len(msgs)))
		}
		for _, msg := range msgs {
			b.dispatch(ctx, log, topic, msg, h)
		}
		if next == "0-0" || next == "" || ctx.Err() != nil {
			return ctx.Err()
		}
		start = next
	}
}

func (b *RedisBus) dispatch(ctx context.Context, log *slog.Logger, topic string, msg redis.XMessage, h Handler) {
	defer func() {
		// ack even when ctx was cancelled mid-handler
		if err := b.client.XAck(context.WithoutCancel(ctx), topic, b.group, msg.ID).Err(); err != nil {
			log.ErrorContext(ctx, "failed to ack stream entry",
				slog.String("entry_id", msg.ID), slog.Any("error", err))
		}
	}()

	e, err := decodeEntry(msg.Values)
	if err != nil {
		log.ErrorContext(ctx, "dropping undecodable stream entry",
			slog.String("entry_id", msg.ID), slog.Any("error", err))
		return
	}

	if err := h(ctx, e); err != nil {
		log.ErrorContext(ctx, "event handler failed",
			slog.String("entry_id", msg.ID),
			slog.String("event_id", e.EventID),
			slog.String("event_type", e.EventType),
			slog.Any("error", err))
	}
}

func (b *RedisBus) ensureGroup(ctx context.Context, topic string) error {
	err := b.client.XGroupCreateMkStream(ctx, topic, b.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return errors.Join(ErrSubscribeFailed, err)
	}
	return nil
}

func decodeEntry(values map[string]any) (Envelope, error) {
	switch raw := values[payloadField].(type) {
	case string:
		return Decode([]byte(raw))
	case []byte:
		return Decode(raw)
	default:
		return Envelope{}, errors.Join(ErrDecode, fmt.Errorf("unexpected payload type %T", raw))
	}
}
