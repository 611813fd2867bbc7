package payment_test

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/payment"
	"github.com/missionlab/payment-service/svc/reconcile"
	"github.com/missionlab/payment-service/svc/storage/memory"
)

func TestDecodeWebhook_Subscription(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"event_id": "evt_01",
		"event_type": "subscription.updated",
		"occurred_at": "2025-05-01T10:00:00.000000Z",
		"data": {
			"id": "sub_01",
			"status": "past_due",
			"customer_id": "ctm_01",
			"current_billing_period": {"starts_at": "2025-05-01T00:00:00Z", "ends_at": "2025-06-01T00:00:00Z"},
			"scheduled_change": {"action": "cancel", "effective_at": "2025-06-01T00:00:00Z"}
		}
	}`)

	ev, err := payment.DecodeWebhook(payload)
	require.NoError(t, err)

	upd, ok := ev.(reconcile.SubscriptionUpdated)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "evt_01", upd.ID())
	assert.Equal(t, time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC), upd.OccurredAt)
	assert.Equal(t, "sub_01", upd.Subscription.ID)
	assert.Equal(t, "ctm_01", upd.Subscription.CustomerID)
	assert.Equal(t, "past_due", upd.Subscription.Status)
	assert.True(t, upd.Subscription.CancelAtPeriodEnd)
	require.NotNil(t, upd.Subscription.CurrentPeriodEnd)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *upd.Subscription.CurrentPeriodEnd)
	assert.Nil(t, upd.Subscription.CanceledAt)
}

func TestDecodeWebhook_SubscriptionKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		eventType string
		want      any
	}{
		{"subscription.created", reconcile.SubscriptionCreated{}},
		{"subscription.activated", reconcile.SubscriptionCreated{}},
		{"subscription.resumed", reconcile.SubscriptionUpdated{}},
		{"subscription.canceled", reconcile.SubscriptionDeleted{}},
		{"customer.updated", reconcile.Unhandled{}},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			t.Parallel()
			payload := []byte(`{"event_id":"evt_x","event_type":"` + tt.eventType + `","data":{"id":"sub_x","status":"active"}}`)
			ev, err := payment.DecodeWebhook(payload)
			require.NoError(t, err)
			assert.IsType(t, tt.want, ev)
			assert.Equal(t, "evt_x", ev.ID())
		})
	}
}

func TestDecodeWebhook_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"event_id": "evt_02",
		"event_type": "transaction.completed",
		"data": {
			"id": "txn_01",
			"origin": "web",
			"customer_id": "ctm_02",
			"subscription_id": "sub_02",
			"currency_code": "USD",
			"custom_data": {"user_id": "42"},
			"details": {"totals": {"total": "2900", "grand_total": "2900"}}
		}
	}`)

	ev, err := payment.DecodeWebhook(payload)
	require.NoError(t, err)

	done, ok := ev.(reconcile.CheckoutSessionCompleted)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "txn_01", done.Session.ID)
	assert.Equal(t, "sub_02", done.Session.SubscriptionID)
	assert.Equal(t, "ctm_02", done.Session.CustomerID)
	assert.Equal(t, "42", done.Session.Metadata[reconcile.CheckoutUserKey])
	require.NotNil(t, done.Session.Invoice)
	assert.Equal(t, reconcile.Invoice{
		ID:              "txn_01",
		SubscriptionID:  "sub_02",
		PaymentIntentID: "txn_01",
		AmountMinor:     2900,
		Currency:        "USD",
	}, *done.Session.Invoice)
}

func TestDecodeWebhook_RenewalCompleted(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"event_id": "evt_03",
		"event_type": "transaction.completed",
		"data": {
			"id": "txn_02",
			"origin": "subscription_recurring",
			"subscription_id": "sub_02",
			"currency_code": "EUR",
			"custom_data": {"user_id": 42},
			"details": {"totals": {"total": "2900"}},
			"payments": [{"payment_attempt_id": "pay_1", "status": "captured"}]
		}
	}`)

	ev, err := payment.DecodeWebhook(payload)
	require.NoError(t, err)

	paid, ok := ev.(reconcile.InvoicePaymentSucceeded)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, reconcile.Invoice{
		ID:              "txn_02",
		SubscriptionID:  "sub_02",
		PaymentIntentID: "txn_02",
		ChargeID:        "pay_1",
		AmountMinor:     2900,
		Currency:        "EUR",
	}, paid.Invoice)
}

func TestDecodeWebhook_PaymentFailed(t *testing.T) {
	t.Parallel()

	withSub := []byte(`{
		"event_id": "evt_04",
		"event_type": "transaction.payment_failed",
		"data": {
			"id": "txn_03",
			"subscription_id": "sub_03",
			"currency_code": "USD",
			"details": {"totals": {"grand_total": "4900"}},
			"payments": [{"payment_attempt_id": "pay_9", "status": "error", "error_code": "declined"}]
		}
	}`)
	ev, err := payment.DecodeWebhook(withSub)
	require.NoError(t, err)
	failed, ok := ev.(reconcile.InvoicePaymentFailed)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "pay_9", failed.Invoice.ID)
	assert.Equal(t, "declined", failed.Invoice.FailureReason)
	assert.Equal(t, int64(4900), failed.Invoice.AmountMinor)

	oneOff := []byte(`{"event_id":"evt_05","event_type":"transaction.payment_failed","data":{"id":"txn_04"}}`)
	ev, err = payment.DecodeWebhook(oneOff)
	require.NoError(t, err)
	intent, ok := ev.(reconcile.PaymentIntentFailed)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "txn_04", intent.PaymentIntentID)
}

func TestDecodeWebhook_TransactionPaid(t *testing.T) {
	t.Parallel()

	ev, err := payment.DecodeWebhook([]byte(`{"event_id":"evt_06","event_type":"transaction.paid","data":{"id":"txn_05"}}`))
	require.NoError(t, err)
	assert.Equal(t, reconcile.PaymentIntentSucceeded{Meta: reconcile.Meta{EventID: "evt_06"}, PaymentIntentID: "txn_05"}, ev)
}

func TestDecodeWebhook_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":           `{`,
		"no type":            `{"event_id":"evt_1","data":{}}`,
		"transaction no id":  `{"event_id":"evt_1","event_type":"transaction.paid","data":{}}`,
		"malformed resource": `{"event_id":"evt_1","event_type":"subscription.updated","data":"oops"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := payment.DecodeWebhook([]byte(body))
			assert.ErrorIs(t, err, payment.ErrInvalidWebhookPayload)
		})
	}
}

func TestPaddleProvider_ParseWebhookRejectsUnsigned(t *testing.T) {
	t.Parallel()

	p, err := payment.NewPaddleProvider(payment.PaddleConfig{APIKey: "test_key", WebhookSecret: "pdl_ntfset_secret"}, nil)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/webhooks/paddle", bytes.NewReader([]byte(`{"event_type":"transaction.paid"}`)))
	_, err = p.ParseWebhook(req)
	assert.ErrorIs(t, err, payment.ErrWebhookVerificationFailed)
}

func TestNewPaddleProvider_Validation(t *testing.T) {
	t.Parallel()

	_, err := payment.NewPaddleProvider(payment.PaddleConfig{WebhookSecret: "s"}, nil)
	assert.ErrorIs(t, err, payment.ErrMissingAPIKey)

	_, err = payment.NewPaddleProvider(payment.PaddleConfig{APIKey: "k"}, nil)
	assert.ErrorIs(t, err, payment.ErrMissingWebhookSecret)

	_, err = payment.NewPaddleProvider(payment.PaddleConfig{APIKey: "k", WebhookSecret: "s", Environment: "staging"}, nil)
	assert.ErrorIs(t, err, payment.ErrInvalidProviderEnvironment)
}

func TestDecodeWebhook_RetriedChargeIsCountedOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	plan := billing.Plan{Name: "Economy", Tier: billing.TierEconomy, MonthlyPrice: decimal.NewFromInt(29), Active: true}
	sub := billing.Subscription{
		UserID: 3, Status: billing.StatusActive, BillingCycle: billing.CycleMonthly,
		Amount: decimal.NewFromInt(29), Currency: "USD", ProviderSubscriptionID: "sub_2",
	}
	require.NoError(t, store.Atomic(ctx, func(ctx context.Context, tx billing.Tx) error {
		if err := tx.SavePlan(ctx, &plan); err != nil {
			return err
		}
		sub.PlanID = plan.ID
		return tx.SaveSubscription(ctx, &sub)
	}))
	rec := reconcile.NewService(store)

	txn := `"id":"txn_2","subscription_id":"sub_2","origin":"subscription_recurring","currency_code":"USD","details":{"totals":{"grand_total":"2900"}}`
	deliveries := []struct {
		body string
		want reconcile.Result
	}{
		{`{"event_id":"evt_f","event_type":"transaction.payment_failed","data":{` + txn + `,"payments":[{"payment_attempt_id":"att_1","status":"error","error_code":"declined"}]}}`, reconcile.Applied},
		{`{"event_id":"evt_p","event_type":"transaction.paid","data":{` + txn + `}}`, reconcile.Skipped},
		{`{"event_id":"evt_c","event_type":"transaction.completed","data":{` + txn + `,"payments":[{"payment_attempt_id":"att_2","status":"captured"}]}}`, reconcile.Applied},
		{`{"event_id":"evt_p2","event_type":"transaction.paid","data":{` + txn + `}}`, reconcile.Duplicate},
	}
	for _, d := range deliveries {
		ev, err := payment.DecodeWebhook([]byte(d.body))
		require.NoError(t, err)
		res, err := rec.Handle(ctx, ev)
		require.NoError(t, err)
		assert.Equal(t, d.want, res, ev.Kind())
	}

	pays, err := store.ListPaymentsBySubscription(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, pays, 2)
	byStatus := map[billing.PaymentStatus]billing.PaymentTransaction{}
	for _, p := range pays {
		byStatus[p.Status] = p
	}
	require.Contains(t, byStatus, billing.PaymentFailed)
	require.Contains(t, byStatus, billing.PaymentSucceeded)
	assert.Equal(t, "att_1", byStatus[billing.PaymentFailed].ProviderInvoiceID)
	assert.Equal(t, "declined", byStatus[billing.PaymentFailed].FailureReason)
	assert.Equal(t, "txn_2", byStatus[billing.PaymentSucceeded].ProviderInvoiceID)
	assert.True(t, decimal.NewFromInt(29).Equal(byStatus[billing.PaymentSucceeded].Amount))
}
