// Package idempotency remembers which externally delivered events have
// already been handled, so at-least-once transports can be consumed without
// applying an event twice.
//
// Consumers check Seen before handling and call Mark only after the
// handling committed. A crash between the two leads to a redelivery that is
// handled again, which is why handlers also match on natural keys.
package idempotency

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrEmptyKey    = errors.New("idempotency: key is required")
	ErrStoreFailed = errors.New("idempotency: store operation failed")
)

// Store records handled keys.
type Store interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// Key builds a namespaced key, e.g. Key("paddle", eventID).
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Nop never reports a key as seen.
var Nop Store = nop{}

type nop struct{}

func (nop) Seen(context.Context, string) (bool, error) { return false, nil }
func (nop) Mark(context.Context, string) error         { return nil }
