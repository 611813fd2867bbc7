package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/catalog"
	"github.com/missionlab/payment-service/svc/payment"
	"github.com/missionlab/payment-service/svc/storage/memory"
)

type mockProvider struct {
	mock.Mock
	payment.Provider
}

func (m *mockProvider) CreateProduct(ctx context.Context, req payment.ProductRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockProvider) CreatePrice(ctx context.Context, req payment.PriceRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func TestDefault(t *testing.T) {
	t.Parallel()

	plans, err := catalog.Default()
	require.NoError(t, err)
	require.Len(t, plans, 3)

	byTier := make(map[billing.PlanTier]billing.Plan)
	for _, p := range plans {
		byTier[p.Tier] = p
		assert.True(t, p.Active, p.Name)
	}

	economy := byTier[billing.TierEconomy]
	assert.Equal(t, "Economy Class", economy.Name)
	assert.True(t, decimal.RequireFromString("29").Equal(economy.MonthlyPrice))
	assert.True(t, decimal.RequireFromString("290").Equal(economy.YearlyPrice))
	assert.Equal(t, 3, economy.TicketLimit)
	assert.Equal(t, 3, economy.RefillAmount)
	assert.Equal(t, 24, economy.RefillIntervalHours)
	assert.Equal(t, 2, economy.MaxTeamMembers)
	assert.Equal(t, true, economy.Features["basicSupport"])

	business := byTier[billing.TierBusiness]
	assert.True(t, decimal.RequireFromString("79").Equal(business.MonthlyPrice))
	assert.Equal(t, 8, business.TicketLimit)
	assert.Equal(t, 5, business.RefillAmount)
	assert.Equal(t, 12, business.RefillIntervalHours)

	first := byTier[billing.TierFirst]
	assert.True(t, decimal.RequireFromString("1990").Equal(first.YearlyPrice))
	assert.Equal(t, 15, first.TicketLimit)
	assert.Equal(t, 10, first.RefillAmount)
	assert.Equal(t, 8, first.RefillIntervalHours)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		yaml string
		want error
	}{
		"broken yaml":    {"plans: [", catalog.ErrFailedToParseCatalog},
		"no plans":       {"plans: []", catalog.ErrEmptyCatalog},
		"missing name":   {"plans:\n  - tier: ECONOMY\n    monthly_price: \"1\"\n    yearly_price: \"1\"", catalog.ErrInvalidPlan},
		"unknown tier":   {"plans:\n  - name: X\n    tier: GOLD\n    monthly_price: \"1\"\n    yearly_price: \"1\"", catalog.ErrInvalidPlan},
		"bad price":      {"plans:\n  - name: X\n    tier: ECONOMY\n    monthly_price: abc\n    yearly_price: \"1\"", catalog.ErrInvalidPlan},
		"negative price": {"plans:\n  - name: X\n    tier: ECONOMY\n    monthly_price: \"-1\"\n    yearly_price: \"1\"", catalog.ErrInvalidPlan},
		"no interval":    {"plans:\n  - name: X\n    tier: ECONOMY\n    monthly_price: \"1\"\n    yearly_price: \"1\"\n    refill_amount: 2", catalog.ErrInvalidPlan},
		"duplicate name": {"plans:\n  - name: X\n    tier: ECONOMY\n    monthly_price: \"1\"\n    yearly_price: \"1\"\n  - name: X\n    tier: FIRST\n    monthly_price: \"1\"\n    yearly_price: \"1\"", catalog.ErrInvalidPlan},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := catalog.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
plans:
  - name: Trial
    tier: ECONOMY
    monthly_price: "0"
    yearly_price: "0"
    active: false
`), 0o600))

	plans, err := catalog.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.False(t, plans[0].Active)

	plans, err = catalog.LoadFile("")
	require.NoError(t, err)
	assert.Len(t, plans, 3)

	_, err = catalog.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	plans, err := catalog.Default()
	require.NoError(t, err)

	n, err := catalog.Seed(ctx, store, plans)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = catalog.Seed(ctx, store, plans)
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Zero(t, plans[0].ID, "input is not modified")
}

func TestSetActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	plans, err := catalog.Default()
	require.NoError(t, err)
	_, err = catalog.Seed(ctx, store, plans)
	require.NoError(t, err)

	stored, err := store.ListPlans(ctx)
	require.NoError(t, err)
	id := stored[0].ID

	p, err := catalog.SetActive(ctx, store, id, false)
	require.NoError(t, err)
	assert.False(t, p.Active)

	got, err := store.GetPlan(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.True(t, stored[0].MonthlyPrice.Equal(got.MonthlyPrice))

	_, err = catalog.SetActive(ctx, store, 999, true)
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)
}

func TestSyncProvider(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	plans, err := catalog.Default()
	require.NoError(t, err)
	plans[2].Active = false
	_, err = catalog.Seed(ctx, store, plans)
	require.NoError(t, err)

	p := &mockProvider{}
	p.On("CreateProduct", mock.Anything, payment.ProductRequest{Name: "Economy Class", Description: plans[0].Description}).Return("pro_eco", nil).Once()
	p.On("CreateProduct", mock.Anything, payment.ProductRequest{Name: "Business Class", Description: plans[1].Description}).Return("pro_biz", nil).Once()
	p.On("CreatePrice", mock.Anything, mock.MatchedBy(func(r payment.PriceRequest) bool {
		return r.ProductID == "pro_eco" || r.ProductID == "pro_biz"
	})).Return("pri_x", nil).Times(4)

	n, err := catalog.SyncProvider(ctx, store, p, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	p.AssertExpectations(t)

	stored, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pro_eco", stored[0].ProviderProductID)
	assert.Equal(t, "pri_x", stored[0].ProviderMonthlyPriceID)
	assert.Equal(t, "pri_x", stored[0].ProviderYearlyPriceID)
	assert.Empty(t, stored[2].ProviderProductID, "inactive plans are not published")

	// second run has nothing to do
	n, err = catalog.SyncProvider(ctx, store, p, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncProvider_KeepsPartialProgress(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	plans, err := catalog.Default()
	require.NoError(t, err)
	_, err = catalog.Seed(ctx, store, plans[:1])
	require.NoError(t, err)

	p := &mockProvider{}
	p.On("CreateProduct", mock.Anything, mock.Anything).Return("pro_eco", nil).Once()
	p.On("CreatePrice", mock.Anything, mock.Anything).Return("", errors.New("rate limited")).Once()

	_, err = catalog.SyncProvider(ctx, store, p, nil)
	require.Error(t, err)

	stored, err := store.ListPlans(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pro_eco", stored[0].ProviderProductID)
	assert.Empty(t, stored[0].ProviderMonthlyPriceID)

	_, err = catalog.SyncProvider(ctx, store, nil, nil)
	assert.ErrorIs(t, err, catalog.ErrNilProvider)
}
