package api

import (
	"net/http"

	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/ticket"
)

var errNotEnoughTickets = billing.NewError(billing.ErrInsufficientBalance, "not enough tickets available")

type ticketChangeRequest struct {
	Amount    int    `json:"amount"`
	AttemptID *int64 `json:"attemptId,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type adjustRequest struct {
	Adjustment int    `json:"adjustment"`
	Reason     string `json:"reason,omitempty"`
}

func (h *handler) getTickets(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Tickets.GetBalance(r.Context(), mustCaller(r).UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, newTicketView(*acct))
}

func (h *handler) ticketHistory(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Tickets.History(r.Context(), mustCaller(r).UserID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMeta(w, mapViews(rows, newTicketTransactionView), map[string]any{"total": len(rows)})
}

func (h *handler) useTickets(w http.ResponseWriter, r *http.Request) {
	var req ticketChangeRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	userID := mustCaller(r).UserID
	ok, err := h.Tickets.Spend(r.Context(), userID, req.Amount, req.AttemptID, req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if !ok {
		respondError(w, r, h.logger, errNotEnoughTickets)
		return
	}
	h.balance(w, r, userID)
}

func (h *handler) refundTickets(w http.ResponseWriter, r *http.Request) {
	var req ticketChangeRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	userID := mustCaller(r).UserID
	if err := h.Tickets.Refund(r.Context(), userID, req.Amount, req.AttemptID, req.Reason); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.balance(w, r, userID)
}

func (h *handler) adjustTickets(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := bindJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	userID := mustCaller(r).UserID
	if err := h.Tickets.AdminAdjust(r.Context(), userID, req.Adjustment, req.Reason); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.balance(w, r, userID)
}

// processRefills runs the refill sweep on demand.
func (h *handler) processRefills(w http.ResponseWriter, r *http.Request) {
	report, err := h.Tickets.ProcessScheduledRefills(r.Context(), h.now())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, refillReportView(report))
}

func (h *handler) balance(w http.ResponseWriter, r *http.Request, userID int64) {
	acct, err := h.Tickets.GetBalance(r.Context(), userID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, newTicketView(*acct))
}

func refillReportView(r ticket.RefillReport) map[string]int {
	return map[string]int{
		"due":      r.Due,
		"refilled": r.Refilled,
		"atLimit":  r.AtLimit,
		"skipped":  r.Skipped,
		"failed":   r.Failed,
	}
}
