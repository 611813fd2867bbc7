package identity_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/identity"
)

func TestLegacyHash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want int64
	}{
		{"a", 97},
		{"abc", 96354},
		{"", 0},
		// hashes to math.MinInt32; widening before negation keeps it positive
		{"polygenelubricants", 2147483648},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, identity.LegacyHash(tt.in))
		})
	}
}

func TestHashResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := identity.HashResolver{}

	id, err := r.Resolve(ctx, " abc ")
	require.NoError(t, err)
	assert.Equal(t, int64(96354), id)

	_, err = r.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, identity.ErrEmptyIdentity)
	assert.ErrorIs(t, err, billing.ErrValidation)
}

func TestTableResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := identity.NewTableResolver(identity.NewMemoryMappings(100), nil)

	alice, err := r.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(100), alice)

	bob, err := r.Resolve(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(101), bob)

	again, err := r.Resolve(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice, again)

	_, err = r.Resolve(ctx, "")
	assert.ErrorIs(t, err, identity.ErrEmptyIdentity)
}

func TestTableResolver_ConcurrentFirstSight(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := identity.NewTableResolver(nil, nil)

	const n = 16
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := r.Resolve(ctx, "carol")
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

type failingStore struct{ err error }

func (f failingStore) Lookup(context.Context, string) (int64, error) { return 0, f.err }
func (f failingStore) Assign(context.Context, string) (int64, error) { return 0, f.err }

func TestTableResolver_StoreFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	r := identity.NewTableResolver(failingStore{err: boom}, nil)

	_, err := r.Resolve(context.Background(), "dave")
	assert.ErrorIs(t, err, boom)
}

func TestResolverFunc(t *testing.T) {
	t.Parallel()

	var r identity.Resolver = identity.ResolverFunc(func(context.Context, string) (int64, error) { return 42, nil })
	id, err := r.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}
