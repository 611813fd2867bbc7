package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/pkg/requestid"
	"github.com/missionlab/payment-service/svc/billing"
)

// JSONResponse is the envelope of every response body.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body JSONResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respond(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, JSONResponse{Data: data})
}

func respondMeta(w http.ResponseWriter, data any, meta map[string]any) {
	writeJSON(w, http.StatusOK, JSONResponse{Data: data, Meta: meta})
}

// respondError classifies err, logs it and writes the error envelope.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status, detail := errorToDetail(err)

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	log.LogAttrs(r.Context(), level, "request error",
		logger.RequestID(requestid.FromContext(r.Context())),
		logger.Error(err),
		slog.Int("status_code", status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	)

	writeJSON(w, status, JSONResponse{Error: detail})
}

// errorToDetail maps an error onto a status code and a client safe detail.
func errorToDetail(err error) (int, *ErrorDetail) {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, &ErrorDetail{Code: httpErr.Key, Message: httpErr.Error()}
	}

	switch {
	case errors.Is(err, ErrMissingContentType), errors.Is(err, ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, &ErrorDetail{Code: "unsupported_media_type", Message: err.Error()}
	case errors.Is(err, ErrInvalidJSON), errors.Is(err, ErrInvalidPathParam):
		return http.StatusBadRequest, &ErrorDetail{Code: "bad_request", Message: err.Error()}
	}

	switch billing.Kind(err) {
	case billing.ErrValidation:
		return http.StatusBadRequest, &ErrorDetail{Code: "validation_error", Message: err.Error()}
	case billing.ErrNotFound:
		return http.StatusNotFound, &ErrorDetail{Code: "not_found", Message: err.Error()}
	case billing.ErrConflict:
		return http.StatusConflict, &ErrorDetail{Code: "conflict", Message: err.Error()}
	case billing.ErrInsufficientBalance:
		return http.StatusConflict, &ErrorDetail{Code: "insufficient_balance", Message: err.Error()}
	case billing.ErrUpstreamProvider:
		return http.StatusBadGateway, &ErrorDetail{Code: "upstream_error", Message: "payment provider unavailable"}
	}

	return http.StatusInternalServerError, &ErrorDetail{Code: "internal_error", Message: "internal server error"}
}
