package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missionlab/payment-service/pkg/pg"
	"github.com/missionlab/payment-service/svc/billing"
)

// querier is the statement surface shared by the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a billing.Store backed by a pgx pool.
type Store struct {
	reader
	pool *pgxpool.Pool
	now  func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a store over pool. Panics if pool is nil.
func New(pool *pgxpool.Pool, opts ...Option) *Store {
	if pool == nil {
		panic("postgres: pool is required")
	}
	s := &Store{
		reader: reader{q: pool},
		pool:   pool,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Atomic runs fn in a database transaction.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx billing.Tx) error) error {
	return pg.WithTx(ctx, s.pool, func(ctx context.Context, ptx pgx.Tx) error {
		return fn(ctx, &tx{reader: reader{q: ptx}, now: s.now})
	})
}
