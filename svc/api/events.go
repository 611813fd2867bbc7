package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/svc/billing"
)

// Event history page sizes.
const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

var errInvalidLimit = billing.NewError(billing.ErrValidation, "limit must be between 1 and 500")

// EventHistory lists the domain events recorded for a user, newest first.
type EventHistory interface {
	History(ctx context.Context, userID int64, limit int64) ([]eventbus.Envelope, error)
}

type eventView struct {
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	TeamID    *int64         `json:"teamId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

func newEventView(e eventbus.Envelope) eventView {
	return eventView{
		EventID:   e.EventID,
		EventType: e.EventType,
		Timestamp: e.Timestamp,
		TeamID:    e.TeamID,
		Data:      e.Data,
	}
}

func (h *handler) eventHistory(w http.ResponseWriter, r *http.Request) {
	limit := int64(defaultEventLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 || n > maxEventLimit {
			respondError(w, r, h.logger, errInvalidLimit)
			return
		}
		limit = n
	}

	events, err := h.Events.History(r.Context(), mustCaller(r).UserID, limit)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondMeta(w, mapViews(events, newEventView), map[string]any{"total": len(events), "limit": limit})
}
