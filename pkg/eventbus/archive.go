package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Archive stores every envelope in a collection and then forwards it to
// the next Publisher. Archive failures are logged and do not prevent
// delivery.
type Archive struct {
	next       Publisher
	collection *mongo.Collection
	logger     *slog.Logger
}

type archivedEvent struct {
	EventID    string         `bson:"_id"`
	Topic      string         `bson:"topic"`
	EventType  string         `bson:"event_type"`
	UserID     int64          `bson:"user_id"`
	TeamID     *int64         `bson:"team_id,omitempty"`
	Data       map[string]any `bson:"data,omitempty"`
	OccurredAt time.Time      `bson:"occurred_at"`
	ArchivedAt time.Time      `bson:"archived_at"`
}

// NewArchive wraps next with a MongoDB archive.
func NewArchive(next Publisher, collection *mongo.Collection, logger *slog.Logger) *Archive {
	if next == nil {
		panic("eventbus: next publisher is required")
	}
	if collection == nil {
		panic("eventbus: archive collection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{next: next, collection: collection, logger: logger}
}

func (a *Archive) Publish(ctx context.Context, topic string, e Envelope) error {
	if err := a.store(ctx, topic, e); err != nil {
		a.logger.ErrorContext(ctx, "failed to archive event",
			slog.String("topic", topic),
			slog.String("event_id", e.EventID),
			slog.Any("error", err))
	}
	return a.next.Publish(ctx, topic, e)
}

// History returns the archived envelopes of a user, newest first.
func (a *Archive) History(ctx context.Context, userID int64, limit int64) ([]Envelope, error) {
	cur, err := a.collection.Find(ctx, bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, errors.Join(ErrArchiveFailed, err)
	}
	defer cur.Close(ctx)

	var docs []archivedEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Join(ErrArchiveFailed, err)
	}

	out := make([]Envelope, 0, len(docs))
	for _, d := range docs {
		out = append(out, Envelope{
			EventID:   d.EventID,
			EventType: d.EventType,
			Timestamp: d.OccurredAt,
			UserID:    d.UserID,
			TeamID:    d.TeamID,
			Data:      d.Data,
		})
	}
	return out, nil
}

func (a *Archive) store(ctx context.Context, topic string, e Envelope) error {
	_, err := a.collection.InsertOne(ctx, archivedEvent{
		EventID:    e.EventID,
		Topic:      topic,
		EventType:  e.EventType,
		UserID:     e.UserID,
		TeamID:     e.TeamID,
		Data:       e.Data,
		OccurredAt: e.Timestamp,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errors.Join(ErrArchiveFailed, err)
	}
	return nil
}
