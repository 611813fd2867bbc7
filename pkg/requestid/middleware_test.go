package requestid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/pkg/requestid"
)

func serve(t *testing.T, header string) (ctxID, respID string) {
	t.Helper()
	h := requestid.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = requestid.FromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/paddle", nil)
	if header != "" {
		req.Header.Set(requestid.Header, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return ctxID, rec.Header().Get(requestid.Header)
}

func TestMiddleware_KeepsValidID(t *testing.T) {
	t.Parallel()

	ctxID, respID := serve(t, "ntf_01hv8x2a_retry-1")
	assert.Equal(t, "ntf_01hv8x2a_retry-1", ctxID)
	assert.Equal(t, ctxID, respID)
}

func TestMiddleware_ReplacesInvalidID(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "has space", "semi;colon", "a/b", strings.Repeat("x", 129)} {
		ctxID, respID := serve(t, in)
		assert.NotEqual(t, in, ctxID)
		assert.Equal(t, ctxID, respID)
		_, err := uuid.Parse(ctxID)
		assert.NoError(t, err, "input %q", in)
	}
}

func TestLoggerExtractor(t *testing.T) {
	t.Parallel()

	extract := requestid.LoggerExtractor()

	_, ok := extract(context.Background())
	assert.False(t, ok)

	attr, ok := extract(requestid.WithContext(context.Background(), "req-1"))
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-1", attr.Value.String())
}
