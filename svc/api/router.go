package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/pkg/requestid"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/identity"
	"github.com/missionlab/payment-service/svc/reconcile"
	"github.com/missionlab/payment-service/svc/subscription"
	"github.com/missionlab/payment-service/svc/ticket"
)

// WebhookParser verifies and decodes a provider webhook delivery.
type WebhookParser interface {
	ParseWebhook(r *http.Request) (reconcile.Event, error)
}

// Dependencies are the collaborators served by the router. Webhooks may be
// nil when no payment provider is configured, Events when no archive is.
type Dependencies struct {
	Tickets       ticket.Service
	Subscriptions subscription.Service
	Reconciler    reconcile.Service
	Store         billing.Reader
	Resolver      identity.Resolver
	Webhooks      WebhookParser
	Events        EventHistory
}

// Option configures the router.
type Option func(*handler)

// WithLogger sets the logger used for request errors.
func WithLogger(l *slog.Logger) Option {
	return func(h *handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithClock overrides the time source of manually triggered sweeps.
func WithClock(now func() time.Time) Option {
	return func(h *handler) {
		if now != nil {
			h.now = now
		}
	}
}

type handler struct {
	Dependencies
	logger *slog.Logger
	now    func() time.Time
}

// NewRouter builds the HTTP routes. Panics if a required dependency is nil.
func NewRouter(deps Dependencies, opts ...Option) chi.Router {
	if deps.Tickets == nil || deps.Subscriptions == nil || deps.Reconciler == nil || deps.Store == nil || deps.Resolver == nil {
		panic("api: tickets, subscriptions, reconciler, store and resolver are required")
	}

	h := &handler{
		Dependencies: deps,
		logger:       slog.Default(),
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(logger.Component("api"))

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		respondError(w, req, h.logger, ErrNotFound)
	})

	if h.Webhooks != nil {
		r.Post("/webhooks/paddle", h.paddleWebhook)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/subscription-plans", h.listPlans)
		r.Get("/subscription-plans/{planId}", h.getPlan)

		r.Group(func(r chi.Router) {
			r.Use(gateway(h.Resolver, h.logger))

			r.Route("/tickets", func(r chi.Router) {
				r.Post("/refill", h.processRefills)
				r.Route("/users/{userId}", func(r chi.Router) {
					r.Use(selfOnly(h.logger))
					r.Get("/", h.getTickets)
					r.Get("/history", h.ticketHistory)
					r.Post("/use", h.useTickets)
					r.Post("/refund", h.refundTickets)
					r.Post("/adjust", h.adjustTickets)
				})
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Post("/", h.createSubscription)
				r.Post("/checkout", h.createCheckout)
				r.Post("/confirm", h.confirmPayment)
				r.Route("/users/{userId}", func(r chi.Router) {
					r.Use(selfOnly(h.logger))
					r.Get("/", h.listSubscriptions)
					r.Get("/active", h.activeSubscription)
				})
				r.Get("/{subscriptionId}", h.getSubscription)
				r.Get("/{subscriptionId}/payments", h.subscriptionPayments)
				r.Post("/{subscriptionId}/cancel", h.cancelSubscription)
			})

			if h.Events != nil {
				r.With(selfOnly(h.logger)).Get("/events/users/{userId}", h.eventHistory)
			}
		})
	})

	return r
}
