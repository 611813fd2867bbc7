package billing

import (
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
)

// Default topics.
const (
	TopicSubscriptionEvents = "subscription-events"
	TopicPaymentEvents      = "payment-events"
	TopicUserEvents         = "user-events"
	TopicMissionEvents      = "mission-events"
)

// Outbound event types.
const (
	EventSubscriptionCreated       = "SUBSCRIPTION_CREATED"
	EventSubscriptionCancelled     = "SUBSCRIPTION_CANCELLED"
	EventSubscriptionExpired       = "SUBSCRIPTION_EXPIRED"
	EventSubscriptionExpiring      = "SUBSCRIPTION_EXPIRING"
	EventSubscriptionStatusUpdated = "SUBSCRIPTION_STATUS_UPDATED"
	EventPaymentSucceeded          = "PAYMENT_SUCCEEDED"
	EventPaymentFailed             = "PAYMENT_FAILED"
	EventTicketsUsed               = "TICKETS_USED"
	EventTicketsRefunded           = "TICKETS_REFUNDED"
	EventTicketsRefilled           = "TICKETS_REFILLED"
	EventTicketBalanceLow          = "TICKET_BALANCE_LOW"
)

// Topics groups the topic names services publish to.
type Topics struct {
	Subscription string `env:"TOPIC_SUBSCRIPTION_EVENTS" envDefault:"subscription-events"`
	Payment      string `env:"TOPIC_PAYMENT_EVENTS" envDefault:"payment-events"`
}

// DefaultTopics returns the standard topic names.
func DefaultTopics() Topics {
	return Topics{Subscription: TopicSubscriptionEvents, Payment: TopicPaymentEvents}
}

// SubscriptionCreatedEvent announces a new or newly activated subscription.
func SubscriptionCreatedEvent(s Subscription, plan *Plan) eventbus.Envelope {
	data := map[string]any{
		"subscriptionId": s.ID,
		"planId":         s.PlanID,
		"billingCycle":   string(s.BillingCycle),
		"amount":         s.Amount,
		"currency":       s.Currency,
		"status":         string(s.Status),
	}
	if plan != nil {
		data["planType"] = string(plan.Tier)
	}
	return eventbus.NewEnvelope(EventSubscriptionCreated, s.UserID, s.TeamID, data)
}

func SubscriptionCancelledEvent(s Subscription) eventbus.Envelope {
	return eventbus.NewEnvelope(EventSubscriptionCancelled, s.UserID, s.TeamID, map[string]any{
		"subscriptionId":    s.ID,
		"cancelAtPeriodEnd": s.CancelAtPeriodEnd,
		"canceledAt":        s.CanceledAt,
	})
}

func SubscriptionExpiredEvent(s Subscription, at time.Time) eventbus.Envelope {
	return eventbus.NewEnvelope(EventSubscriptionExpired, s.UserID, s.TeamID, map[string]any{
		"subscriptionId": s.ID,
		"expiredAt":      at,
	})
}

func SubscriptionExpiringEvent(s Subscription, daysBefore int) eventbus.Envelope {
	return eventbus.NewEnvelope(EventSubscriptionExpiring, s.UserID, s.TeamID, map[string]any{
		"subscriptionId":   s.ID,
		"expiresAt":        s.CurrentPeriodEnd,
		"daysBeforeExpiry": daysBefore,
	})
}

func SubscriptionStatusUpdatedEvent(s Subscription) eventbus.Envelope {
	return eventbus.NewEnvelope(EventSubscriptionStatusUpdated, s.UserID, s.TeamID, map[string]any{
		"subscriptionId": s.ID,
		"status":         string(s.Status),
		"updatedAt":      s.UpdatedAt,
	})
}

// PaymentEvent announces a settled payment. The type follows p.Status.
func PaymentEvent(p PaymentTransaction, s Subscription) eventbus.Envelope {
	data := map[string]any{
		"transactionId":           p.ID,
		"subscriptionId":          p.SubscriptionID,
		"amount":                  p.Amount,
		"currency":                p.Currency,
		"providerPaymentIntentId": p.ProviderPaymentIntentID,
	}
	eventType := EventPaymentSucceeded
	if p.Status == PaymentFailed {
		eventType = EventPaymentFailed
		data["failureReason"] = p.FailureReason
	} else {
		data["paymentMethod"] = string(p.Method)
	}
	return eventbus.NewEnvelope(eventType, s.UserID, s.TeamID, data)
}
