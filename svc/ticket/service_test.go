package ticket_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missionlab/payment-service/pkg/eventbus"
	"github.com/missionlab/payment-service/svc/billing"
	"github.com/missionlab/payment-service/svc/storage/memory"
	"github.com/missionlab/payment-service/svc/ticket"
)

var t0 = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *memory.Store
	rec   *eventbus.Recorder
	svc   ticket.Service
	plan  billing.Plan
	now   time.Time
	mu    sync.Mutex
}

func newFixture(t *testing.T, opts ...ticket.ServiceOption) *fixture {
	t.Helper()

	f := &fixture{store: memory.New(), rec: eventbus.NewRecorder(), now: t0}
	f.plan = billing.Plan{
		Name:                "Economy",
		Tier:                billing.TierEconomy,
		MonthlyPrice:        decimal.NewFromInt(29),
		YearlyPrice:         decimal.NewFromInt(290),
		TicketLimit:         3,
		RefillAmount:        3,
		RefillIntervalHours: 24,
		Active:              true,
	}
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx billing.Tx) error {
		return tx.SavePlan(ctx, &f.plan)
	}))

	opts = append([]ticket.ServiceOption{
		ticket.WithPublisher(f.rec),
		ticket.WithClock(f.clock),
	}, opts...)
	f.svc = ticket.NewService(f.store, opts...)
	return f
}

func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fixture) advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

func (f *fixture) subscribe(t *testing.T, userID int64, status billing.SubscriptionStatus) billing.Subscription {
	t.Helper()
	sub := billing.Subscription{
		UserID:       userID,
		PlanID:       f.plan.ID,
		Status:       status,
		BillingCycle: billing.CycleMonthly,
		Amount:       f.plan.MonthlyPrice,
		Currency:     "USD",
	}
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx billing.Tx) error {
		return tx.SaveSubscription(ctx, &sub)
	}))
	return sub
}

func (f *fixture) setStatus(t *testing.T, sub billing.Subscription, status billing.SubscriptionStatus) {
	t.Helper()
	sub.Status = status
	require.NoError(t, f.store.Atomic(context.Background(), func(ctx context.Context, tx billing.Tx) error {
		return tx.SaveSubscription(ctx, &sub)
	}))
}

func replay(t *testing.T, rows []billing.TicketTransaction) int {
	t.Helper()
	balance := 0
	for _, r := range rows {
		require.Equal(t, balance, r.BalanceBefore, "row %d breaks the chain", r.ID)
		require.Equal(t, r.BalanceBefore+r.Amount, r.BalanceAfter)
		balance = r.BalanceAfter
	}
	return balance
}

func TestNewService_NilStorePanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { ticket.NewService(nil) })
}

func TestService_SpendWithoutSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	ok, err := f.svc.Spend(ctx, 42, 5, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)

	acct, err := f.svc.GetBalance(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.CurrentTickets)
	assert.Nil(t, acct.NextRefillAt)
	require.NotNil(t, acct.LastTicketRefill)

	rows, err := f.svc.History(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, f.rec.All())
}

func TestService_SpendRefundSequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.CurrentTickets)
	require.NotNil(t, acct.NextRefillAt)
	assert.Equal(t, t0.Add(24*time.Hour), *acct.NextRefillAt)

	attempt := int64(77)
	ok, err := f.svc.Spend(ctx, 1, 2, &attempt, "")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.svc.Refund(ctx, 1, 1, &attempt, ""))

	acct, err = f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, acct.CurrentTickets)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, billing.TicketEarned, rows[0].Type)
	assert.Equal(t, ticket.ReasonInitialGrant, rows[0].Reason)

	assert.Equal(t, billing.TicketSpent, rows[1].Type)
	assert.Equal(t, -2, rows[1].Amount)
	assert.Equal(t, ticket.ReasonSpend, rows[1].Reason)
	require.NotNil(t, rows[1].RelatedAttemptID)
	assert.Equal(t, attempt, *rows[1].RelatedAttemptID)

	assert.Equal(t, billing.TicketRefund, rows[2].Type)
	assert.Equal(t, ticket.ReasonRefund, rows[2].Reason)

	assert.Equal(t, acct.CurrentTickets, replay(t, rows))

	assert.Equal(t, []string{billing.EventTicketsUsed, billing.EventTicketsRefunded}, f.rec.Types())
	used := f.rec.OfType(billing.EventTicketsUsed)[0]
	assert.Equal(t, int64(1), used.UserID)
	assert.Equal(t, 2, used.Data["ticketsUsed"])
	assert.Equal(t, 1, used.Data["remainingBalance"])
	refunded := f.rec.OfType(billing.EventTicketsRefunded)[0]
	assert.Equal(t, 1, refunded.Data["ticketsRefunded"])
	assert.Equal(t, 2, refunded.Data["newBalance"])
	for _, p := range f.rec.All() {
		assert.Equal(t, billing.TopicPaymentEvents, p.Topic)
	}
}

func TestService_SpendInsufficientWritesNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusTrial)

	ok, err := f.svc.Spend(ctx, 1, 4, nil, "")
	require.NoError(t, err)
	assert.False(t, ok)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.CurrentTickets)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the opening grant")
	assert.Empty(t, f.rec.All())
}

func TestService_InvalidAmounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Spend(ctx, 1, 0, nil, "")
	assert.ErrorIs(t, err, billing.ErrValidation)

	err = f.svc.Refund(ctx, 1, -1, nil, "")
	assert.ErrorIs(t, err, billing.ErrValidation)

	err = f.svc.AdminAdjust(ctx, 1, 0, "")
	assert.ErrorIs(t, err, billing.ErrInvalidDelta)
}

func TestService_RefundMayExceedLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	require.NoError(t, f.svc.Refund(ctx, 1, 5, nil, "mission cancelled"))

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, acct.CurrentTickets)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "mission cancelled", rows[len(rows)-1].Reason)
}

func TestService_AdminAdjust(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	require.NoError(t, f.svc.AdminAdjust(ctx, 1, 4, ""))
	require.NoError(t, f.svc.AdminAdjust(ctx, 1, -6, "chargeback"))

	err := f.svc.AdminAdjust(ctx, 1, -2, "")
	assert.ErrorIs(t, err, billing.ErrInsufficientBalance)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, acct.CurrentTickets)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, billing.TicketAdminAdjust, rows[1].Type)
	assert.Equal(t, ticket.ReasonAdjust, rows[1].Reason)
	assert.Equal(t, -6, rows[2].Amount)
	assert.Equal(t, 1, replay(t, rows))

	assert.Empty(t, f.rec.All(), "adjustments publish nothing")
}

func TestService_LowBalanceEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, ticket.WithLowBalanceThreshold(2))
	f.subscribe(t, 1, billing.StatusActive)

	ok, err := f.svc.Spend(ctx, 1, 1, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, f.rec.OfType(billing.EventTicketBalanceLow))

	ok, err = f.svc.Spend(ctx, 1, 1, nil, "")
	require.NoError(t, err)
	require.True(t, ok)

	low := f.rec.OfType(billing.EventTicketBalanceLow)
	require.Len(t, low, 1)
	assert.Equal(t, 1, low[0].Data["currentBalance"])
	assert.Equal(t, 2, low[0].Data["threshold"])
}

func TestService_RefillTopsUpToLimit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	ok, err := f.svc.Spend(ctx, 1, 2, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	f.rec.Reset()

	now := f.advance(25 * time.Hour)
	report, err := f.svc.ProcessScheduledRefills(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ticket.RefillReport{Due: 1, Refilled: 1}, report)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.CurrentTickets)
	require.NotNil(t, acct.NextRefillAt)
	assert.Equal(t, now.Add(24*time.Hour), *acct.NextRefillAt)
	require.NotNil(t, acct.LastTicketRefill)
	assert.Equal(t, now, *acct.LastTicketRefill)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	last := rows[len(rows)-1]
	assert.Equal(t, billing.TicketEarned, last.Type)
	assert.Equal(t, 2, last.Amount)
	assert.Equal(t, ticket.ReasonRefill, last.Reason)
	assert.Equal(t, 3, replay(t, rows))

	refilled := f.rec.OfType(billing.EventTicketsRefilled)
	require.Len(t, refilled, 1)
	assert.Equal(t, 2, refilled[0].Data["ticketsAdded"])
	assert.Equal(t, 3, refilled[0].Data["newBalance"])
}

func TestService_RefillAtLimitOnlyAdvancesSchedule(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	_, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)

	now := f.advance(24 * time.Hour)
	report, err := f.svc.ProcessScheduledRefills(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ticket.RefillReport{Due: 1, AtLimit: 1}, report)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, acct.CurrentTickets)
	require.NotNil(t, acct.NextRefillAt)
	assert.Equal(t, now.Add(24*time.Hour), *acct.NextRefillAt)
	require.NotNil(t, acct.LastTicketRefill)
	assert.Equal(t, t0, *acct.LastTicketRefill)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Empty(t, f.rec.All())
}

func TestService_RefillSkipsWithoutActiveSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	sub := f.subscribe(t, 1, billing.StatusActive)

	ok, err := f.svc.Spend(ctx, 1, 3, nil, "")
	require.NoError(t, err)
	require.True(t, ok)
	f.setStatus(t, sub, billing.StatusCanceled)

	now := f.advance(48 * time.Hour)
	report, err := f.svc.ProcessScheduledRefills(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ticket.RefillReport{Due: 1, Skipped: 1}, report)

	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.CurrentTickets)
	require.NotNil(t, acct.NextRefillAt)
	assert.Equal(t, t0.Add(24*time.Hour), *acct.NextRefillAt, "left untouched")
}

func TestService_RefillNotDueYet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)
	_, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)

	report, err := f.svc.ProcessScheduledRefills(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ticket.RefillReport{}, report)
}

func TestService_ConcurrentSpendNeverOverdraws(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.subscribe(t, 1, billing.StatusActive)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		spent int
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.svc.Spend(ctx, 1, 1, nil, "")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				spent++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, spent)
	acct, err := f.svc.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, acct.CurrentTickets)

	rows, err := f.svc.History(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 4)
	assert.Equal(t, 0, replay(t, rows))
}
