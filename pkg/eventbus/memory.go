package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// MemoryBus fans envelopes out to in-process subscribers. Messages are
// dropped for subscribers whose buffer is full rather than blocking Publish.
// All methods are safe for concurrent use.
type MemoryBus struct {
	subscribers map[string]map[*memorySubscriber]struct{}
	bufferSize  int
	closed      bool
	logger      *slog.Logger
	mu          sync.RWMutex
}

type memorySubscriber struct {
	ch     chan Envelope
	closed bool
	mu     sync.RWMutex
}

// MemoryOption configures a MemoryBus.
type MemoryOption func(*MemoryBus)

// WithBufferSize sets the per-subscriber buffer. A minimum of 1 is enforced.
func WithBufferSize(n int) MemoryOption {
	return func(b *MemoryBus) { b.bufferSize = max(n, 1) }
}

// WithMemoryLogger sets the logger used for handler failures and drops.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(b *MemoryBus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewMemoryBus creates an in-memory bus.
func NewMemoryBus(opts ...MemoryOption) *MemoryBus {
	b := &MemoryBus{
		subscribers: make(map[string]map[*memorySubscriber]struct{}),
		bufferSize:  64,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers e to every current subscriber of topic without blocking.
func (b *MemoryBus) Publish(ctx context.Context, topic string, e Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for sub := range b.subscribers[topic] {
		if !sub.send(e) {
			b.logger.WarnContext(ctx, "dropped event for slow subscriber",
				slog.String("topic", topic),
				slog.String("event_id", e.EventID),
				slog.String("event_type", e.EventType))
		}
	}
	return nil
}

// Subscribe registers h for topic and dispatches deliveries until ctx is
// done or the bus is closed. Handler errors are logged and do not stop the
// subscription.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, h Handler) error {
	if h == nil {
		return ErrNilHandler
	}

	sub := &memorySubscriber{ch: make(chan Envelope, b.bufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[*memorySubscriber]struct{})
	}
	b.subscribers[topic][sub] = struct{}{}
	b.mu.Unlock()

	defer b.unsubscribe(topic, sub)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.ch:
			if !ok {
				return nil
			}
			if err := h(ctx, e); err != nil {
				b.logger.ErrorContext(ctx, "event handler failed",
					slog.String("topic", topic),
					slog.String("event_id", e.EventID),
					slog.String("event_type", e.EventType),
					slog.Any("error", err))
			}
		}
	}
}

// Subscribers returns the number of active subscribers of topic.
func (b *MemoryBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

// Close stops all subscriptions. It is safe to call Close multiple times.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subscribers {
		for sub := range subs {
			sub.close()
		}
	}
	clear(b.subscribers)
	return nil
}

func (b *MemoryBus) unsubscribe(topic string, sub *memorySubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers[topic], sub)
	sub.close()
}

func (s *memorySubscriber) send(e Envelope) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *memorySubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.ch)
		s.closed = true
	}
}
