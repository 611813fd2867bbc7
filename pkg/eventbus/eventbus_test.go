package eventbus_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/pkg/eventbus"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	team := int64(9)
	e := eventbus.NewEnvelope("TICKETS_USED", 42, &team, map[string]any{"ticketsUsed": 2})
	require.NotEmpty(t, e.EventID)
	assert.Equal(t, time.UTC, e.Timestamp.Location())

	raw, err := eventbus.Encode(e)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(raw, &wire))
	assert.Equal(t, "TICKETS_USED", wire["eventType"])
	assert.EqualValues(t, 42, wire["userId"])
	assert.EqualValues(t, 9, wire["teamId"])

	back, err := eventbus.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, back.EventID)
	assert.Equal(t, int64(42), back.UserID)
	n, ok := back.Int("ticketsUsed")
	assert.True(t, ok)
	assert.Equal(t, int64(2), n)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	_, err := eventbus.Decode([]byte("{"))
	assert.ErrorIs(t, err, eventbus.ErrDecode)

	_, err = eventbus.Decode([]byte(`{"eventType":"x"}`))
	assert.ErrorIs(t, err, eventbus.ErrMissingEventID)

	_, err = eventbus.Decode([]byte(`{"eventId":"1"}`))
	assert.ErrorIs(t, err, eventbus.ErrMissingEventType)
}

func TestEnvelope_Accessors(t *testing.T) {
	t.Parallel()

	e := eventbus.Envelope{Data: map[string]any{
		"difficulty": "hard",
		"empty":      "",
		"n":          "17",
		"f":          float64(3),
	}}

	assert.Equal(t, "hard", e.String("difficulty", "EASY"))
	assert.Equal(t, "EASY", e.String("empty", "EASY"))
	assert.Equal(t, "EASY", e.String("missing", "EASY"))

	n, ok := e.Int("n")
	assert.True(t, ok)
	assert.Equal(t, int64(17), n)
	n, ok = e.Int("f")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)
	_, ok = e.Int("difficulty")
	assert.False(t, ok)
}

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewMemoryBus(eventbus.WithMemoryLogger(quietLogger()))
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan eventbus.Envelope, 4)
	done := make(chan error, 1)
	go func() {
		done <- bus.Subscribe(ctx, "user-events", func(_ context.Context, e eventbus.Envelope) error {
			got <- e
			if e.EventType == "fail" {
				return errors.New("handler failure")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return bus.Subscribers("user-events") == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, "user-events", eventbus.NewEnvelope("fail", 1, nil, nil)))
	require.NoError(t, bus.Publish(ctx, "user-events", eventbus.NewEnvelope("user.registered", 1, nil, nil)))
	require.NoError(t, bus.Publish(ctx, "other", eventbus.NewEnvelope("ignored", 1, nil, nil)))

	first := <-got
	second := <-got
	assert.Equal(t, "fail", first.EventType)
	assert.Equal(t, "user.registered", second.EventType)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Eventually(t, func() bool { return bus.Subscribers("user-events") == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBus_Closed(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewMemoryBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), "t", eventbus.NewEnvelope("x", 1, nil, nil))
	assert.ErrorIs(t, err, eventbus.ErrBusClosed)

	err = bus.Subscribe(context.Background(), "t", func(context.Context, eventbus.Envelope) error { return nil })
	assert.ErrorIs(t, err, eventbus.ErrBusClosed)

	assert.ErrorIs(t, bus.Subscribe(context.Background(), "t", nil), eventbus.ErrNilHandler)
}

func TestMemoryBus_RejectsInvalidEnvelope(t *testing.T) {
	t.Parallel()

	bus := eventbus.NewMemoryBus()
	defer bus.Close()

	err := bus.Publish(context.Background(), "t", eventbus.Envelope{EventType: "x"})
	assert.ErrorIs(t, err, eventbus.ErrMissingEventID)
}

func TestBatch_Flush(t *testing.T) {
	t.Parallel()

	rec := eventbus.NewRecorder()
	var b eventbus.Batch

	b.Add("a", eventbus.NewEnvelope("ONE", 1, nil, nil))
	b.Reset()
	assert.Equal(t, 0, b.Len())

	b.Add("a", eventbus.NewEnvelope("ONE", 1, nil, nil))
	b.Add("b", eventbus.NewEnvelope("TWO", 1, nil, nil))
	b.Flush(context.Background(), rec, quietLogger())

	assert.Equal(t, []string{"ONE", "TWO"}, rec.Types())
	assert.Equal(t, "b", rec.All()[1].Topic)
	assert.Equal(t, 0, b.Len())
}

func TestBatch_FlushSwallowsErrors(t *testing.T) {
	t.Parallel()

	calls := 0
	failing := eventbus.PublisherFunc(func(context.Context, string, eventbus.Envelope) error {
		calls++
		return errors.New("broker down")
	})

	var b eventbus.Batch
	b.Add("a", eventbus.NewEnvelope("ONE", 1, nil, nil))
	b.Add("a", eventbus.NewEnvelope("TWO", 1, nil, nil))

	assert.NotPanics(t, func() { b.Flush(context.Background(), failing, quietLogger()) })
	assert.Equal(t, 2, calls)
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	rec := eventbus.NewRecorder()
	_ = rec.Publish(context.Background(), "x", eventbus.NewEnvelope("A", 1, nil, nil))
	_ = rec.Publish(context.Background(), "x", eventbus.NewEnvelope("B", 2, nil, nil))
	_ = rec.Publish(context.Background(), "x", eventbus.NewEnvelope("A", 3, nil, nil))

	assert.Len(t, rec.OfType("A"), 2)
	assert.Empty(t, rec.OfType("C"))

	rec.Reset()
	assert.Empty(t, rec.All())
}
