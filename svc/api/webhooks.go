package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/payment"
)

// paddleWebhook verifies a Paddle delivery and hands it to the reconciler.
// Handling failures answer 500 so the provider retries the delivery.
func (h *handler) paddleWebhook(w http.ResponseWriter, r *http.Request) {
	ev, err := h.Webhooks.ParseWebhook(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, payment.ErrWebhookVerificationFailed) {
			status = http.StatusUnauthorized
		}
		h.logger.WarnContext(r.Context(), "webhook rejected",
			logger.Error(err),
			slog.Int("status_code", status))
		writeJSON(w, status, JSONResponse{Error: &ErrorDetail{Code: "invalid_webhook", Message: http.StatusText(status)}})
		return
	}

	result, err := h.Reconciler.Handle(r.Context(), ev)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, http.StatusOK, map[string]string{"result": result.String()})
}
