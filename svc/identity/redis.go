package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisMappings keeps the table in a Redis hash and draws ids from a
// counter key, so every replica resolves an identity to the same id.
type RedisMappings struct {
	client redis.UniversalClient
	hash   string
	seq    string
}

// NewRedisMappings creates a store using "<prefix>ids" and "<prefix>seq".
func NewRedisMappings(client redis.UniversalClient, prefix string) *RedisMappings {
	if client == nil {
		panic("identity: redis client is required")
	}
	return &RedisMappings{client: client, hash: prefix + "ids", seq: prefix + "seq"}
}

func (m *RedisMappings) Lookup(ctx context.Context, external string) (int64, error) {
	id, err := m.client.HGet(ctx, m.hash, external).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrMappingNotFound
	}
	if err != nil {
		return 0, errors.Join(ErrMappingStoreFailed, err)
	}
	return id, nil
}

// Assign burns a sequence value when it loses a race; the winner's id is
// returned.
func (m *RedisMappings) Assign(ctx context.Context, external string) (int64, error) {
	id, err := m.client.Incr(ctx, m.seq).Result()
	if err != nil {
		return 0, errors.Join(ErrMappingStoreFailed, err)
	}
	ok, err := m.client.HSetNX(ctx, m.hash, external, id).Result()
	if err != nil {
		return 0, errors.Join(ErrMappingStoreFailed, err)
	}
	if ok {
		return id, nil
	}

	id, err = m.Lookup(ctx, external)
	if err != nil {
		return 0, fmt.Errorf("re-read mapping after race: %w", err)
	}
	return id, nil
}
