package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/subscription"
)

type createSubscriptionRequest struct {
	PlanID       int64  `json:"planId"`
	BillingCycle string `json:"billingCycle"`
	TeamID       *int64 `json:"teamId,omitempty"`
	StartTrial   bool   `json:"startTrial,omitempty"`
	TrialDays    int    `json:"trialDays,omitempty"`
}

type checkoutRequest struct {
	PlanID       int64  `json:"planId"`
	BillingCycle string `json:"billingCycle"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	SuccessURL   string `json:"successUrl,omitempty"`
	CancelURL    string `json:"cancelUrl,omitempty"`
}

type checkoutResponse struct {
	SessionID   string    `json:"sessionId"`
	CheckoutURL string    `json:"checkoutUrl"`
	ExpiresAt   time.Time `json:"expiresAt,omitzero"`
}

type confirmRequest struct {
	PaymentKey string          `json:"paymentKey"`
	OrderID    string          `json:"orderId"`
	Amount     decimal.Decimal `json:"amount"`
}

type confirmResponse struct {
	PaymentKey string          `json:"paymentKey"`
	OrderID    string          `json:"orderId"`
	Status     string          `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency,omitempty"`
	ApprovedAt time.Time       `json:"approvedAt,omitzero"`
}

func (h *handler) createSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	sub, err := h.Subscriptions.Create(r.Context(), subscription.CreateRequest{
		UserID:     mustCaller(r).UserID,
		TeamID:     req.TeamID,
		PlanID:     req.PlanID,
		Cycle:      billing.BillingCycle(req.BillingCycle),
		StartTrial: req.StartTrial,
		TrialDays:  req.TrialDays,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusCreated, newSubscriptionView(*sub))
}

func (h *handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	caller := mustCaller(r)
	email := req.Email
	if email == "" {
		email = caller.Email
	}
	session, err := h.Subscriptions.CreateCheckoutSession(r.Context(), subscription.CheckoutRequest{
		UserID:     caller.UserID,
		PlanID:     req.PlanID,
		Cycle:      billing.BillingCycle(req.BillingCycle),
		Email:      email,
		Name:       req.Name,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, checkoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		ExpiresAt:   session.ExpiresAt,
	})
}

func (h *handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	res, err := h.Subscriptions.ConfirmPayment(r.Context(), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, confirmResponse{
		PaymentKey: res.PaymentKey,
		OrderID:    res.OrderID,
		Status:     res.Status,
		Amount:     res.Amount,
		Currency:   res.Currency,
		ApprovedAt: res.ApprovedAt,
	})
}

func (h *handler) listSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Subscriptions.ListByUser(r.Context(), mustCaller(r).UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMeta(w, mapViews(subs, newSubscriptionView), map[string]any{"total": len(subs)})
}

func (h *handler) activeSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Subscriptions.GetActive(r.Context(), mustCaller(r).UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(*sub))
}

func (h *handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(*sub))
}

func (h *handler) subscriptionPayments(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}
	payments, err := h.Subscriptions.Payments(r.Context(), sub.ID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMeta(w, mapViews(payments, newPaymentView), map[string]any{"total": len(payments)})
}

// cancelSubscription cancels at period end unless cancelAtPeriodEnd=false.
func (h *handler) cancelSubscription(w http.ResponseWriter, r *http.Request) {
	atPeriodEnd := true
	if v := r.URL.Query().Get("cancelAtPeriodEnd"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, r, h.logger, fmt.Errorf("%w: cancelAtPeriodEnd", ErrInvalidJSON))
			return
		}
		atPeriodEnd = b
	}

	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}
	sub, err := h.Subscriptions.Cancel(r.Context(), sub.ID, atPeriodEnd)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, newSubscriptionView(*sub))
}

// ownedSubscription loads the {subscriptionId} subscription. Subscriptions
// of other users are reported as missing.
func (h *handler) ownedSubscription(w http.ResponseWriter, r *http.Request) (*billing.Subscription, bool) {
	id, err := pathInt64(r, "subscriptionId")
	if err != nil {
		respondError(w, r, h.logger, err)
		return nil, false
	}
	sub, err := h.Store.GetSubscription(r.Context(), id)
	if err == nil && sub.UserID != mustCaller(r).UserID {
		err = billing.ErrSubscriptionNotFound
	}
	if err != nil {
		respondError(w, r, h.logger, err)
		return nil, false
	}
	return sub, true
}
