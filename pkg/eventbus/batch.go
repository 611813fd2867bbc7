package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

type pending struct {
	topic    string
	envelope Envelope
}

// Batch collects envelopes while a unit of work runs. Callers Reset it at
// the start of every attempt and Flush it only after the unit committed.
type Batch struct {
	items []pending
	mu    sync.Mutex
}

func (b *Batch) Add(topic string, e Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, pending{topic: topic, envelope: e})
}

func (b *Batch) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = b.items[:0]
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Flush publishes the collected envelopes in order. Failures are logged and
// never returned; notifications are fire-and-forget for the producer.
func (b *Batch) Flush(ctx context.Context, pub Publisher, log *slog.Logger) {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()

	for _, it := range items {
		if err := pub.Publish(ctx, it.topic, it.envelope); err != nil {
			log.ErrorContext(ctx, "failed to publish event",
				slog.String("topic", it.topic),
				slog.String("event_id", it.envelope.EventID),
				slog.String("event_type", it.envelope.EventType),
				slog.Any("error", err))
		}
	}
}
