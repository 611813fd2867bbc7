package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/missionlab/payment-service/pkg/pg"
	"github.com/missionlab/payment-service/svc/identity"
)

// IdentityMappings is an identity.MappingStore over the identity_mappings
// table. Ids come from identity_user_id_seq and survive restarts.
type IdentityMappings struct {
	pool *pgxpool.Pool
}

// NewIdentityMappings creates a mapping store over pool. Panics if pool is nil.
func NewIdentityMappings(pool *pgxpool.Pool) *IdentityMappings {
	if pool == nil {
		panic("postgres: pool is required")
	}
	return &IdentityMappings{pool: pool}
}

func (m *IdentityMappings) Lookup(ctx context.Context, external string) (int64, error) {
	var id int64
	err := m.pool.QueryRow(ctx,
		`SELECT user_id FROM identity_mappings WHERE external_id = $1`, external).Scan(&id)
	if pg.IsNotFoundError(err) {
		return 0, identity.ErrMappingNotFound
	}
	if err != nil {
		return 0, errors.Join(identity.ErrMappingStoreFailed, err)
	}
	return id, nil
}

// Assign inserts a mapping unless one exists. A concurrent insert for the
// same identity blocks the statement until it commits, so the follow-up
// read always finds the winning row.
func (m *IdentityMappings) Assign(ctx context.Context, external string) (int64, error) {
	_, err := m.pool.Exec(ctx, `INSERT INTO identity_mappings (external_id, user_id)
		VALUES ($1, nextval('identity_user_id_seq'))
		ON CONFLICT (external_id) DO NOTHING`, external)
	if err != nil {
		return 0, errors.Join(identity.ErrMappingStoreFailed, err)
	}
	return m.Lookup(ctx, external)
}
