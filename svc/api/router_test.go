package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/pkg/requestid"
	"github.com/missionlab/payment-service/svc/api"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/identity"
	"github.com/missionlab/payment-service/svc/payment"
	"github.com/missionlab/payment-service/svc/reconcile"
	"github.com/missionlab/payment-service/svc/storage/memory"
	"github.com/missionlab/payment-service/svc/subscription"
	"github.com/missionlab/payment-service/svc/ticket"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type webhookStub struct {
	ev  reconcile.Event
	err error
}

func (s webhookStub) ParseWebhook(*http.Request) (reconcile.Event, error) { return s.ev, s.err }

type fixture struct {
	store   *memory.Store
	plan    billing.Plan
	retired billing.Plan
	router  http.Handler
}

func newFixture(t *testing.T, hook api.WebhookParser) *fixture {
	t.Helper()

	clock := func() time.Time { return t0 }
	f := &fixture{store: memory.New(memory.WithClock(clock))}
	f.plan = billing.Plan{
		Name:                "Economy",
		Tier:                billing.TierEconomy,
		MonthlyPrice:        decimal.NewFromInt(29),
		YearlyPrice:         decimal.NewFromInt(290),
		TicketLimit:         3,
		RefillAmount:        3,
		RefillIntervalHours: 24,
		Active:              true,
	}
	f.retired = billing.Plan{Name: "Legacy", Tier: billing.TierFirst, Active: false}
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx billing.Tx) error {
		if err := tx.SavePlan(ctx, &f.plan); err != nil {
			return err
		}
		return tx.SavePlan(ctx, &f.retired)
	}))

	f.router = api.NewRouter(api.Dependencies{
		Tickets:       ticket.NewService(f.store, ticket.WithClock(clock)),
		Subscriptions: subscription.NewService(f.store, subscription.WithClock(clock)),
		Reconciler:    reconcile.NewService(f.store, reconcile.WithClock(clock)),
		Store:         f.store,
		Resolver:      identity.NewTableResolver(identity.NewMemoryMappings(100), nil),
		Webhooks:      hook,
	}, api.WithClock(clock))
	return f
}

type envelope struct {
	Data  json.RawMessage  `json:"data"`
	Meta  map[string]any   `json:"meta"`
	Error *api.ErrorDetail `json:"error"`
}

func (f *fixture) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(api.HeaderUserID, user)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestNewRouter_PanicsWithoutDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { api.NewRouter(api.Dependencies{}) })
}

func TestRouter_GatewayAuthentication(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	t.Run("missing header", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/tickets/users/alice", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "unauthorized", env.Error.Code)
	})

	t.Run("other user", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/tickets/users/bob", "alice", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "forbidden", env.Error.Code)
	})

	t.Run("request id echoed", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/tickets/users/alice", "alice", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get(requestid.Header))
	})
}

func TestRouter_TicketFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	const user = "alice"
	base := "/api/v1/tickets/users/" + user

	rec, env := f.do(t, http.MethodPost, "/api/v1/subscriptions", user, map[string]any{
		"planId":       f.plan.ID,
		"billingCycle": "MONTHLY",
		"startTrial":   true,
		"trialDays":    7,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sub := decode[map[string]any](t, env.Data)
	assert.Equal(t, "TRIAL", sub["status"])
	assert.EqualValues(t, 100, sub["userId"])

	rec, env = f.do(t, http.MethodGet, base, user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, env.Data)["currentTickets"])

	rec, env = f.do(t, http.MethodPost, base+"/use", user, map[string]any{"amount": 2, "attemptId": 42})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, env.Data)["currentTickets"])

	rec, env = f.do(t, http.MethodPost, base+"/use", user, map[string]any{"amount": 5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "insufficient_balance", env.Error.Code)

	rec, env = f.do(t, http.MethodPost, base+"/refund", user, map[string]any{"amount": 1, "attemptId": 42})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, env.Data)["currentTickets"])

	rec, env = f.do(t, http.MethodPost, base+"/adjust", user, map[string]any{"adjustment": -3})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "insufficient_balance", env.Error.Code)

	rec, env = f.do(t, http.MethodPost, base+"/adjust", user, map[string]any{"adjustment": -2, "reason": "chargeback"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, env.Data)["currentTickets"])

	rec, env = f.do(t, http.MethodGet, base+"/history", user, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rows := decode[[]map[string]any](t, env.Data)
	require.Len(t, rows, 4)
	assert.Equal(t, "EARNED", rows[0]["transactionType"])
	assert.Equal(t, "SPENT", rows[1]["transactionType"])
	assert.EqualValues(t, -2, rows[1]["amount"])
	assert.Equal(t, "REFUND", rows[2]["transactionType"])
	assert.Equal(t, "ADMIN_ADJUST", rows[3]["transactionType"])
	assert.Equal(t, "chargeback", rows[3]["reason"])
	assert.EqualValues(t, 4, env.Meta["total"])
}

func TestRouter_InvalidAmount(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec, env := f.do(t, http.MethodPost, "/api/v1/tickets/users/alice/use", "alice", map[string]any{"amount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestRouter_StrictJSON(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	path := "/api/v1/tickets/users/alice/refund"

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"missing content type", "", `{"amount":1}`, http.StatusUnsupportedMediaType},
		{"wrong content type", "text/plain", `{"amount":1}`, http.StatusUnsupportedMediaType},
		{"unknown field", "application/json", `{"amount":1,"bonus":true}`, http.StatusBadRequest},
		{"empty body", "application/json", ``, http.StatusBadRequest},
		{"trailing data", "application/json", `{"amount":1}{}`, http.StatusBadRequest},
		{"charset accepted", "application/json; charset=utf-8", `{"amount":1}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(tt.body))
			req.Header.Set(api.HeaderUserID, "alice")
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			f.router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestRouter_SubscriptionEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	const user = "alice"

	rec, env := f.do(t, http.MethodPost, "/api/v1/subscriptions", user, map[string]any{
		"planId":       f.plan.ID,
		"billingCycle": "YEARLY",
		"startTrial":   true,
		"trialDays":    14,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]any](t, env.Data)
	id := int64(created["id"].(float64))
	assert.Equal(t, "290", created["amount"])

	t.Run("second active subscription conflicts", func(t *testing.T) {
		rec, env := f.do(t, http.MethodPost, "/api/v1/subscriptions", user, map[string]any{
			"planId": f.plan.ID, "billingCycle": "MONTHLY", "startTrial": true, "trialDays": 7,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "conflict", env.Error.Code)
	})

	t.Run("invalid cycle", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodPost, "/api/v1/subscriptions", "carol", map[string]any{
			"planId": f.plan.ID, "billingCycle": "WEEKLY",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list and active", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/subscriptions/users/"+user, user, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

		rec, env = f.do(t, http.MethodGet, "/api/v1/subscriptions/users/"+user+"/active", user, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, id, decode[map[string]any](t, env.Data)["id"])
	})

	t.Run("no active subscription", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, "/api/v1/subscriptions/users/dave/active", "dave", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "not_found", env.Error.Code)
	})

	t.Run("foreign subscription is hidden", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subscriptions/%d", id), "mallory", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/subscriptions/%d/cancel", id), "mallory", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		rec, _ := f.do(t, http.MethodGet, "/api/v1/subscriptions/abc", user, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("payments", func(t *testing.T) {
		rec, env := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subscriptions/%d/payments", id), user, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[[]map[string]any](t, env.Data))
	})

	t.Run("cancel at period end by default", func(t *testing.T) {
		rec, env := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/subscriptions/%d/cancel", id), user, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[map[string]any](t, env.Data)
		assert.Equal(t, true, got["cancelAtPeriodEnd"])
		assert.Equal(t, "TRIAL", got["status"])

		rec, env = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/subscriptions/%d/cancel?cancelAtPeriodEnd=false", id), user, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "CANCELED", decode[map[string]any](t, env.Data)["status"])
	})
}

func TestRouter_CheckoutWithoutProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec, env := f.do(t, http.MethodPost, "/api/v1/subscriptions/checkout", "alice", map[string]any{
		"planId": f.plan.ID, "billingCycle": "MONTHLY",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestRouter_Plans(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rec, env := f.do(t, http.MethodGet, "/api/v1/subscription-plans", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plans := decode[[]map[string]any](t, env.Data)
	require.Len(t, plans, 1)
	assert.Equal(t, "Economy", plans[0]["name"])
	assert.Equal(t, "29", plans[0]["monthlyPrice"])

	rec, env = f.do(t, http.MethodGet, "/api/v1/subscription-plans?all=true", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 2)

	rec, env = f.do(t, http.MethodGet, "/api/v1/subscription-plans?all=true&type=FIRST", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, env.Data), 1)

	rec, env = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subscription-plans/%d", f.plan.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode[map[string]any](t, env.Data)["ticketLimit"])

	rec, _ = f.do(t, http.MethodGet, "/api/v1/subscription-plans/999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec, env := f.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestRouter_PaddleWebhook(t *testing.T) {
	t.Parallel()

	t.Run("not mounted without parser", func(t *testing.T) {
		f := newFixture(t, nil)
		rec, _ := f.do(t, http.MethodPost, "/webhooks/paddle", "", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newFixture(t, webhookStub{err: payment.ErrWebhookVerificationFailed})
		rec, env := f.do(t, http.MethodPost, "/webhooks/paddle", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_webhook", env.Error.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		f := newFixture(t, webhookStub{err: errors.Join(payment.ErrInvalidWebhookPayload, errors.New("eof"))})
		rec, _ := f.do(t, http.MethodPost, "/webhooks/paddle", "", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unhandled type", func(t *testing.T) {
		f := newFixture(t, webhookStub{ev: reconcile.Unhandled{Meta: reconcile.Meta{EventID: "evt_1"}, Type: "address.created"}})
		rec, env := f.do(t, http.MethodPost, "/webhooks/paddle", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ignored", decode[map[string]string](t, env.Data)["result"])
	})

	t.Run("checkout completion activates pending subscription", func(t *testing.T) {
		ev := reconcile.CheckoutSessionCompleted{
			Meta: reconcile.Meta{EventID: "evt_2", OccurredAt: t0},
			Session: reconcile.CheckoutSession{
				ID:             "txn_1",
				SubscriptionID: "sub_1",
				CustomerID:     "ctm_1",
				Metadata:       map[string]string{reconcile.CheckoutUserKey: "100"},
			},
		}
		f := newFixture(t, webhookStub{ev: ev})

		rec, _ := f.do(t, http.MethodPost, "/api/v1/subscriptions", "alice", map[string]any{
			"planId": f.plan.ID, "billingCycle": "MONTHLY",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec, env := f.do(t, http.MethodPost, "/webhooks/paddle", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "applied", decode[map[string]string](t, env.Data)["result"])

		rec, env = f.do(t, http.MethodGet, "/api/v1/subscriptions/users/alice/active", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ACTIVE", decode[map[string]any](t, env.Data)["status"])
	})
}

type historyStub struct {
	userID int64
	limit  int64
	events []eventbus.Envelope
}

func (s *historyStub) History(_ context.Context, userID int64, limit int64) ([]eventbus.Envelope, error) {
	s.userID, s.limit = userID, limit
	return s.events, nil
}

func TestRouter_EventHistory(t *testing.T) {
	t.Parallel()

	store := memory.New()
	deps := api.Dependencies{
		Tickets:       ticket.NewService(store),
		Subscriptions: subscription.NewService(store),
		Reconciler:    reconcile.NewService(store),
		Store:         store,
		Resolver:      identity.NewTableResolver(identity.NewMemoryMappings(100), nil),
	}

	get := func(router http.Handler, path, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(api.HeaderUserID, user)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("not mounted without archive", func(t *testing.T) {
		t.Parallel()
		rec := get(api.NewRouter(deps), "/api/v1/events/users/alice", "alice")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("lists the caller's events", func(t *testing.T) {
		t.Parallel()
		stub := &historyStub{events: []eventbus.Envelope{
			eventbus.NewEnvelope(billing.EventTicketsUsed, 100, nil, map[string]any{"ticketsUsed": 2}),
		}}
		withEvents := deps
		withEvents.Events = stub
		router := api.NewRouter(withEvents)

		rec := get(router, "/api/v1/events/users/alice?limit=10", "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var env envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		rows := decode[[]map[string]any](t, env.Data)
		require.Len(t, rows, 1)
		assert.Equal(t, billing.EventTicketsUsed, rows[0]["eventType"])
		assert.Equal(t, int64(100), stub.userID)
		assert.Equal(t, int64(10), stub.limit)

		assert.Equal(t, http.StatusForbidden, get(router, "/api/v1/events/users/bob", "alice").Code)
		assert.Equal(t, http.StatusBadRequest, get(router, "/api/v1/events/users/alice?limit=0", "alice").Code)
	})
}
