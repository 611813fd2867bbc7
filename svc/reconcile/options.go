package reconcile

import (
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/idempotency"
	"github.com/missionlab/payment-service/svc/billing"
)

// ServiceOption configures the reconciler.
type ServiceOption func(*service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for processed and canceled times.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher sets where subscription and payment events are published.
func WithPublisher(p eventbus.Publisher) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTopics overrides the topics subscription and payment events go to.
func WithTopics(t billing.Topics) ServiceOption {
	return func(s *service) {
		if t.Subscription != "" {
			s.topics.Subscription = t.Subscription
		}
		if t.Payment != "" {
			s.topics.Payment = t.Payment
		}
	}
}

// WithIdempotency sets the store used to drop redelivered events.
func WithIdempotency(store idempotency.Store) ServiceOption {
	return func(s *service) {
		if store != nil {
			s.seen = store
		}
	}
}
