// Package memory implements billing.Store in process memory.
//
// Units of work are serialized by a single store-wide lock and rolled back
// through an undo log, so Tx.Lock has nothing left to do. The store enforces
// the same uniqueness rules as the relational schema: one ticket account per
// user, one active-like subscription per user, unique plan names and unique
// provider invoice ids.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/missionlab/payment-service/svc/billing"
)

// Store is an in-memory billing.Store. Atomic must not be called from
// inside another Atomic on the same store.
type Store struct {
	d  *data
	mu sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the timestamp source for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.d.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{d: &data{
		plans:    make(map[int64]billing.Plan),
		subs:     make(map[int64]billing.Subscription),
		tickets:  make(map[int64]billing.UserTicket),
		payments: make(map[int64]billing.PaymentTransaction),
		now:      func() time.Time { return time.Now().UTC() },
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Atomic runs fn while holding the store lock. Writes made through tx are
// undone in reverse order if fn returns an error or panics.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx billing.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{data: s.d}
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, id int64) (*billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetPlan(ctx, id)
}

func (s *Store) ListPlans(ctx context.Context) ([]billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListPlans(ctx)
}

func (s *Store) GetSubscription(ctx context.Context, id int64) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetSubscription(ctx, id)
}

func (s *Store) GetSubscriptionByProviderID(ctx context.Context, ref string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetSubscriptionByProviderID(ctx, ref)
}

func (s *Store) ListSubscriptionsByUser(ctx context.Context, userID int64, statuses ...billing.SubscriptionStatus) ([]billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListSubscriptionsByUser(ctx, userID, statuses...)
}

func (s *Store) ListActiveSubscriptionsEndingBy(ctx context.Context, t time.Time) ([]billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListActiveSubscriptionsEndingBy(ctx, t)
}

func (s *Store) GetUserTicket(ctx context.Context, userID int64) (*billing.UserTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetUserTicket(ctx, userID)
}

func (s *Store) ListTicketsDueForRefill(ctx context.Context, now time.Time) ([]billing.UserTicket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListTicketsDueForRefill(ctx, now)
}

func (s *Store) ListTicketTransactions(ctx context.Context, userID int64) ([]billing.TicketTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListTicketTransactions(ctx, userID)
}

func (s *Store) GetPaymentByProviderPaymentID(ctx context.Context, id string) (*billing.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetPaymentByProviderPaymentID(ctx, id)
}

func (s *Store) GetPaymentByInvoiceID(ctx context.Context, id string) (*billing.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.GetPaymentByInvoiceID(ctx, id)
}

func (s *Store) ListPaymentsBySubscription(ctx context.Context, subscriptionID int64) ([]billing.PaymentTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.ListPaymentsBySubscription(ctx, subscriptionID)
}

// data holds the tables. Callers synchronize access.
type data struct {
	seq      int64
	plans    map[int64]billing.Plan
	subs     map[int64]billing.Subscription
	tickets  map[int64]billing.UserTicket // keyed by user id
	ledger   []billing.TicketTransaction
	payments map[int64]billing.PaymentTransaction
	now      func() time.Time
}

func (d *data) nextID() int64 {
	d.seq++
	return d.seq
}

func (d *data) GetPlan(_ context.Context, id int64) (*billing.Plan, error) {
	p, ok := d.plans[id]
	if !ok {
		return nil, billing.ErrPlanNotFound
	}
	p = p.Clone()
	return &p, nil
}

func (d *data) ListPlans(context.Context) ([]billing.Plan, error) {
	out := make([]billing.Plan, 0, len(d.plans))
	for _, p := range d.plans {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b billing.Plan) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (d *data) GetSubscription(_ context.Context, id int64) (*billing.Subscription, error) {
	s, ok := d.subs[id]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &s, nil
}

func (d *data) GetSubscriptionByProviderID(_ context.Context, ref string) (*billing.Subscription, error) {
	if ref == "" {
		return nil, billing.ErrSubscriptionNotFound
	}
	for _, s := range d.subs {
		if s.ProviderSubscriptionID == ref {
			return &s, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (d *data) ListSubscriptionsByUser(_ context.Context, userID int64, statuses ...billing.SubscriptionStatus) ([]billing.Subscription, error) {
	var out []billing.Subscription
	for _, s := range d.subs {
		if s.UserID != userID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, s.Status) {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, newestFirst)
	return out, nil
}

func (d *data) ListActiveSubscriptionsEndingBy(_ context.Context, t time.Time) ([]billing.Subscription, error) {
	var out []billing.Subscription
	for _, s := range d.subs {
		if s.Status == billing.StatusActive && s.CurrentPeriodEnd != nil && !s.CurrentPeriodEnd.After(t) {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b billing.Subscription) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (d *data) GetUserTicket(_ context.Context, userID int64) (*billing.UserTicket, error) {
	t, ok := d.tickets[userID]
	if !ok {
		return nil, billing.ErrTicketAccountNotFound
	}
	return &t, nil
}

func (d *data) ListTicketsDueForRefill(_ context.Context, now time.Time) ([]billing.UserTicket, error) {
	var out []billing.UserTicket
	for _, t := range d.tickets {
		if t.NextRefillAt != nil && !t.NextRefillAt.After(now) {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b billing.UserTicket) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (d *data) ListTicketTransactions(_ context.Context, userID int64) ([]billing.TicketTransaction, error) {
	var out []billing.TicketTransaction
	for _, row := range d.ledger {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *data) GetPaymentByProviderPaymentID(_ context.Context, id string) (*billing.PaymentTransaction, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	pays := d.sortedPayments()
	for i := len(pays) - 1; i >= 0; i-- {
		if pays[i].ProviderPaymentIntentID == id {
			return &pays[i], nil
		}
	}
	return nil, billing.ErrPaymentNotFound
}

func (d *data) GetPaymentByInvoiceID(_ context.Context, id string) (*billing.PaymentTransaction, error) {
	if id == "" {
		return nil, billing.ErrPaymentNotFound
	}
	for _, p := range d.payments {
		if p.ProviderInvoiceID == id {
			return &p, nil
		}
	}
	return nil, billing.ErrPaymentNotFound
}

func (d *data) ListPaymentsBySubscription(_ context.Context, subscriptionID int64) ([]billing.PaymentTransaction, error) {
	var out []billing.PaymentTransaction
	for _, p := range d.sortedPayments() {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d *data) sortedPayments() []billing.PaymentTransaction {
	out := make([]billing.PaymentTransaction, 0, len(d.payments))
	for _, p := range d.payments {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b billing.PaymentTransaction) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func newestFirst(a, b billing.Subscription) int {
	if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ID, a.ID)
}
