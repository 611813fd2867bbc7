package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/missionlab/payment-service/svc/identity"
)

// Gateway headers.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

// Caller is the authenticated user of a request.
type Caller struct {
	External string
	Email    string
	UserID   int64
}

type callerKey struct{}

// CallerFromContext returns the caller stored by the gateway middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}

// gateway authenticates requests from the X-User-Id header and resolves the
// numeric user id.
func gateway(resolver identity.Resolver, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			external := strings.TrimSpace(r.Header.Get(HeaderUserID))
			if external == "" {
				respondError(w, r, log, ErrUnauthorized)
				return
			}
			id, err := resolver.Resolve(r.Context(), external)
			if err != nil {
				respondError(w, r, log, err)
				return
			}
			c := Caller{External: external, Email: r.Header.Get(HeaderUserEmail), UserID: id}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, c)))
		})
	}
}

// selfOnly rejects requests whose {userId} path segment is not the caller.
func selfOnly(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, ok := CallerFromContext(r.Context())
			if !ok {
				respondError(w, r, log, ErrUnauthorized)
				return
			}
			if chi.URLParam(r, "userId") != c.External {
				respondError(w, r, log, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func mustCaller(r *http.Request) Caller {
	c, _ := CallerFromContext(r.Context())
	return c
}
