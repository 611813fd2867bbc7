package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/reconcile"
)

// Paddle notification types the reconciler acts on.
const (
	paddleSubscriptionCreated   = "subscription.created"
	paddleSubscriptionActivated = "subscription.activated"
	paddleSubscriptionUpdated   = "subscription.updated"
	paddleSubscriptionPastDue   = "subscription.past_due"
	paddleSubscriptionPaused    = "subscription.paused"
	paddleSubscriptionResumed   = "subscription.resumed"
	paddleSubscriptionTrialing  = "subscription.trialing"
	paddleSubscriptionCanceled  = "subscription.canceled"
	paddleTransactionCompleted  = "transaction.completed"
	paddleTransactionPaid       = "transaction.paid"
	paddleTransactionFailed     = "transaction.payment_failed"
)

// MaxWebhookBody caps the size of an accepted notification.
const MaxWebhookBody = 1 << 20

type paddleNotification struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddlePeriod struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type paddleSubscription struct {
	ID                   string        `json:"id"`
	Status               string        `json:"status"`
	CustomerID           string        `json:"customer_id"`
	CurrentBillingPeriod *paddlePeriod `json:"current_billing_period"`
	CanceledAt           *string       `json:"canceled_at"`
	ScheduledChange      *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

type paddleTransaction struct {
	ID             string         `json:"id"`
	Status         string         `json:"status"`
	Origin         string         `json:"origin"`
	CustomerID     string         `json:"customer_id"`
	SubscriptionID string         `json:"subscription_id"`
	InvoiceID      string         `json:"invoice_id"`
	CurrencyCode   string         `json:"currency_code"`
	CustomData     map[string]any `json:"custom_data"`
	Details        struct {
		Totals struct {
			Total      string `json:"total"`
			GrandTotal string `json:"grand_total"`
		} `json:"totals"`
	} `json:"details"`
	Payments []struct {
		PaymentAttemptID string `json:"payment_attempt_id"`
		Status           string `json:"status"`
		ErrorCode        string `json:"error_code"`
	} `json:"payments"`
}

// ParseWebhook verifies the Paddle-Signature header of req and decodes the
// body into a reconciler event.
func (p *PaddleProvider) ParseWebhook(req *http.Request) (reconcile.Event, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, MaxWebhookBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read webhook body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	ev, err := DecodeWebhook(body)
	if err != nil {
		return nil, err
	}
	p.logger.InfoContext(req.Context(), "paddle webhook received",
		logger.EventID(ev.ID()),
		logger.EventType(ev.Kind()))
	return ev, nil
}

// DecodeWebhook maps a Paddle notification body onto a reconciler event.
// Notification types without a local effect decode to reconcile.Unhandled.
func DecodeWebhook(payload []byte) (reconcile.Event, error) {
	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidWebhookPayload, err)
	}
	if n.EventType == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidWebhookPayload)
	}

	meta := reconcile.Meta{EventID: n.EventID}
	if t := parseTime(n.OccurredAt); t != nil {
		meta.OccurredAt = *t
	}

	switch n.EventType {
	case paddleSubscriptionCreated, paddleSubscriptionActivated:
		ps, err := decodeSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return reconcile.SubscriptionCreated{Meta: meta, Subscription: ps}, nil

	case paddleSubscriptionUpdated, paddleSubscriptionPastDue, paddleSubscriptionPaused,
		paddleSubscriptionResumed, paddleSubscriptionTrialing:
		ps, err := decodeSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return reconcile.SubscriptionUpdated{Meta: meta, Subscription: ps}, nil

	case paddleSubscriptionCanceled:
		ps, err := decodeSubscription(n.Data)
		if err != nil {
			return nil, err
		}
		return reconcile.SubscriptionDeleted{Meta: meta, SubscriptionID: ps.ID}, nil

	case paddleTransactionCompleted:
		txn, err := decodeTransaction(n.Data)
		if err != nil {
			return nil, err
		}
		// The first transaction of a hosted checkout carries the user id
		// set when the checkout was opened, and is also the first charge.
		// Renewals are plain invoices.
		if userID := customString(txn.CustomData, reconcile.CheckoutUserKey); userID != "" &&
			txn.SubscriptionID != "" && txn.Origin != "subscription_recurring" {
			inv := invoiceOf(txn, txn.ID, "")
			return reconcile.CheckoutSessionCompleted{Meta: meta, Session: reconcile.CheckoutSession{
				ID:             txn.ID,
				SubscriptionID: txn.SubscriptionID,
				CustomerID:     txn.CustomerID,
				Metadata:       map[string]string{reconcile.CheckoutUserKey: userID},
				Invoice:        &inv,
			}}, nil
		}
		if txn.SubscriptionID == "" {
			return reconcile.PaymentIntentSucceeded{Meta: meta, PaymentIntentID: txn.ID}, nil
		}
		return reconcile.InvoicePaymentSucceeded{Meta: meta, Invoice: invoiceOf(txn, txn.ID, "")}, nil

	case paddleTransactionPaid:
		txn, err := decodeTransaction(n.Data)
		if err != nil {
			return nil, err
		}
		return reconcile.PaymentIntentSucceeded{Meta: meta, PaymentIntentID: txn.ID}, nil

	case paddleTransactionFailed:
		txn, err := decodeTransaction(n.Data)
		if err != nil {
			return nil, err
		}
		attempt, reason := lastAttempt(txn)
		if txn.SubscriptionID == "" {
			return reconcile.PaymentIntentFailed{Meta: meta, PaymentIntentID: txn.ID, FailureReason: reason}, nil
		}
		// Each failed attempt is its own invoice row; the transaction id is
		// kept for the eventual success.
		id := txn.ID + ":failed"
		if attempt != "" {
			id = attempt
		}
		return reconcile.InvoicePaymentFailed{Meta: meta, Invoice: invoiceOf(txn, id, reason)}, nil
	}

	return reconcile.Unhandled{Meta: meta, Type: n.EventType}, nil
}

func decodeSubscription(raw json.RawMessage) (reconcile.ProviderSubscription, error) {
	var s paddleSubscription
	if err := json.Unmarshal(raw, &s); err != nil {
		return reconcile.ProviderSubscription{}, fmt.Errorf("%w: subscription: %w", ErrInvalidWebhookPayload, err)
	}

	ps := reconcile.ProviderSubscription{
		ID:                s.ID,
		CustomerID:        s.CustomerID,
		Status:            s.Status,
		CancelAtPeriodEnd: s.ScheduledChange != nil && s.ScheduledChange.Action == "cancel",
	}
	if s.CurrentBillingPeriod != nil {
		ps.CurrentPeriodStart = parseTime(s.CurrentBillingPeriod.StartsAt)
		ps.CurrentPeriodEnd = parseTime(s.CurrentBillingPeriod.EndsAt)
	}
	if s.CanceledAt != nil {
		ps.CanceledAt = parseTime(*s.CanceledAt)
	}
	return ps, nil
}

func decodeTransaction(raw json.RawMessage) (paddleTransaction, error) {
	var t paddleTransaction
	if err := json.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("%w: transaction: %w", ErrInvalidWebhookPayload, err)
	}
	if t.ID == "" {
		return t, fmt.Errorf("%w: transaction id is missing", ErrInvalidWebhookPayload)
	}
	return t, nil
}

func invoiceOf(t paddleTransaction, id, reason string) reconcile.Invoice {
	total := t.Details.Totals.GrandTotal
	if total == "" {
		total = t.Details.Totals.Total
	}
	minor, _ := strconv.ParseInt(total, 10, 64)

	attempt, _ := lastAttempt(t)
	return reconcile.Invoice{
		ID:              id,
		SubscriptionID:  t.SubscriptionID,
		PaymentIntentID: t.ID,
		ChargeID:        attempt,
		AmountMinor:     minor,
		Currency:        t.CurrencyCode,
		FailureReason:   reason,
	}
}

func lastAttempt(t paddleTransaction) (id, errorCode string) {
	if len(t.Payments) == 0 {
		return "", ""
	}
	// Paddle lists the newest attempt first.
	p := t.Payments[0]
	return p.PaymentAttemptID, p.ErrorCode
}

func customString(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
