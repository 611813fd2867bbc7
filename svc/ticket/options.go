package ticket

import (
	"log/slog"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
)

// ServiceOption configures the ticket service.
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

// WithPublisher sets where balance events go. Defaults to eventbus.Discard.
func WithPublisher(p eventbus.Publisher) ServiceOption {
	return func(s *service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithTopic overrides the topic ticket events are published on.
func WithTopic(topic string) ServiceOption {
	return func(s *service) {
		if topic != "" {
			s.topic = topic
		}
	}
}

// WithLowBalanceThreshold enables TICKET_BALANCE_LOW once a spend leaves the
// balance below n. Zero disables it.
func WithLowBalanceThreshold(n int) ServiceOption {
	return func(s *service) {
		if n >= 0 {
			s.lowMark = n
		}
	}
}
