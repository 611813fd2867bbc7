package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format shared by all topics.
type Envelope struct {
	EventID   string         `json:"eventId"`
	EventType string         `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	UserID    int64          `json:"userId"`
	TeamID    *int64         `json:"teamId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEnvelope stamps a fresh event id and the current UTC time.
func NewEnvelope(eventType string, userID int64, teamID *int64, data map[string]any) Envelope {
	return Envelope{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		UserID:    userID,
		TeamID:    teamID,
		Data:      data,
	}
}

// Validate checks the fields every consumer relies on.
func (e Envelope) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if e.EventType == "" {
		return ErrMissingEventType
	}
	return nil
}

// String returns the data value for key, or def if it is absent or not a string.
func (e Envelope) String(key, def string) string {
	if v, ok := e.Data[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Int returns the data value for key as an int64. JSON numbers and numeric
// strings are accepted.
func (e Envelope) Int(key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Encode serializes an envelope for transports that carry bytes.
func Encode(e Envelope) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return b, nil
}

// Decode parses and validates an envelope.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, errors.Join(ErrDecode, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// Publisher sends an envelope to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, e Envelope) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, topic string, e Envelope) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, e Envelope) error {
	return f(ctx, topic, e)
}

// Handler processes one delivered envelope.
type Handler func(ctx context.Context, e Envelope) error

// Subscriber delivers envelopes of a topic to a handler. Subscribe blocks
// until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, h Handler) error
}

// Discard is a Publisher that drops everything.
var Discard Publisher = PublisherFunc(func(context.Context, string, Envelope) error { return nil })
