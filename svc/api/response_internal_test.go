package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/missionlab/payment-service/svc/billing"
)

func TestErrorToDetail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"http error", ErrForbidden, http.StatusForbidden, "forbidden"},
		{"media type", ErrUnsupportedMediaType, http.StatusUnsupportedMediaType, "unsupported_media_type"},
		{"bad json", fmt.Errorf("%w: eof", ErrInvalidJSON), http.StatusBadRequest, "bad_request"},
		{"validation", billing.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"not found", billing.ErrPlanNotFound, http.StatusNotFound, "not_found"},
		{"conflict", billing.ErrActiveSubscriptionExists, http.StatusConflict, "conflict"},
		{"balance", fmt.Errorf("%w: short", billing.ErrInsufficientBalance), http.StatusConflict, "insufficient_balance"},
		{"upstream", fmt.Errorf("%w: timeout", billing.ErrUpstreamProvider), http.StatusBadGateway, "upstream_error"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, detail := errorToDetail(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, detail.Code)
		})
	}

	_, detail := errorToDetail(errors.New("password=hunter2"))
	assert.Equal(t, "internal server error", detail.Message)
}
