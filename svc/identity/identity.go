package identity

import (
	"context"
	"strings"

	"github.com/missionlab/payment-service/svc/billing"
)

// ErrEmptyIdentity is returned for a blank external identity.
var ErrEmptyIdentity = billing.NewError(billing.ErrValidation, "external identity is required")

// Resolver maps an external identity to a numeric user id.
type Resolver interface {
	Resolve(ctx context.Context, external string) (int64, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, external string) (int64, error)

func (f ResolverFunc) Resolve(ctx context.Context, external string) (int64, error) {
	return f(ctx, external)
}

func normalize(external string) (string, error) {
	v := strings.TrimSpace(external)
	if v == "" {
		return "", ErrEmptyIdentity
	}
	return v, nil
}
