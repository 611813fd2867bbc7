package subscription

import (
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/payment"
)

// ServiceOption configures the lifecycle manager.
type ServiceOption func(*service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublisher sets where lifecycle events are published.
func WithPublisher(p eventbus.Publisher) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTopic overrides the topic lifecycle events are published on.
func WithTopic(topic string) ServiceOption {
	return func(s *service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithProvider enables checkout and payment confirmation.
func WithProvider(p payment.Provider) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithCurrency sets the ISO 4217 code new subscriptions are billed in.
// Invalid codes are ignored.
func WithCurrency(code string) ServiceOption {
	return func(s *service) {
		if cur, err := billing.NormalizeCurrency(code); err == nil {
			s.currency = cur
		}
	}
}
