package memory

import (
	"context"

	"github.com/missionlab/payment-service/svc/billing"
)

// tx reads through to the tables and records how to undo every write.
type tx struct {
	*data
	undo []func()
}

func (t *tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// Lock is a no-op: the whole unit already runs under the store lock.
func (t *tx) Lock(context.Context, string) error { return nil }

func (t *tx) SavePlan(_ context.Context, p *billing.Plan) error {
	for id, other := range t.data.plans {
		if other.Name == p.Name && id != p.ID {
			return billing.ErrDuplicatePlanName
		}
	}
	if p.ID != 0 {
		if _, ok := t.data.plans[p.ID]; !ok {
			return billing.ErrPlanNotFound
		}
	}

	now := t.data.now()
	seq := t.data.seq
	if p.ID == 0 {
		p.ID = t.data.nextID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	prev, existed := t.data.plans[p.ID]
	id := p.ID
	t.data.plans[id] = p.Clone()
	t.undo = append(t.undo, func() {
		t.data.seq = seq
		if existed {
			t.data.plans[id] = prev
		} else {
			delete(t.data.plans, id)
		}
	})
	return nil
}

func (t *tx) SaveSubscription(_ context.Context, s *billing.Subscription) error {
	if s.ID != 0 {
		if _, ok := t.data.subs[s.ID]; !ok {
			return billing.ErrSubscriptionNotFound
		}
	}
	if s.Status.IsActiveLike() {
		for id, other := range t.data.subs {
			if id != s.ID && other.UserID == s.UserID && other.Status.IsActiveLike() {
				return billing.ErrActiveSubscriptionExists
			}
		}
	}

	now := t.data.now()
	seq := t.data.seq
	if s.ID == 0 {
		s.ID = t.data.nextID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	prev, existed := t.data.subs[s.ID]
	id := s.ID
	t.data.subs[id] = *s
	t.undo = append(t.undo, func() {
		t.data.seq = seq
		if existed {
			t.data.subs[id] = prev
		} else {
			delete(t.data.subs, id)
		}
	})
	return nil
}

func (t *tx) SaveUserTicket(_ context.Context, u *billing.UserTicket) error {
	prev, existed := t.data.tickets[u.UserID]
	if u.ID == 0 && existed {
		return billing.ErrDuplicateTicketAccount
	}
	if u.ID != 0 && (!existed || prev.ID != u.ID) {
		return billing.ErrTicketAccountNotFound
	}

	now := t.data.now()
	seq := t.data.seq
	if u.ID == 0 {
		u.ID = t.data.nextID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	userID := u.UserID
	t.data.tickets[userID] = *u
	t.undo = append(t.undo, func() {
		t.data.seq = seq
		if existed {
			t.data.tickets[userID] = prev
		} else {
			delete(t.data.tickets, userID)
		}
	})
	return nil
}

func (t *tx) AppendTicketTransaction(_ context.Context, row *billing.TicketTransaction) error {
	seq := t.data.seq
	n := len(t.data.ledger)
	row.ID = t.data.nextID()
	if row.CreatedAt.IsZero() {
		row.CreatedAt = t.data.now()
	}
	t.data.ledger = append(t.data.ledger, *row)
	t.undo = append(t.undo, func() {
		t.data.seq = seq
		t.data.ledger = t.data.ledger[:n]
	})
	return nil
}

func (t *tx) SavePaymentTransaction(_ context.Context, p *billing.PaymentTransaction) error {
	if p.ID != 0 {
		if _, ok := t.data.payments[p.ID]; !ok {
			return billing.ErrPaymentNotFound
		}
	}
	if _, ok := t.data.subs[p.SubscriptionID]; !ok {
		return billing.ErrSubscriptionNotFound
	}
	if p.ProviderInvoiceID != "" {
		for id, other := range t.data.payments {
			if id != p.ID && other.ProviderInvoiceID == p.ProviderInvoiceID {
				return billing.ErrDuplicateInvoice
			}
		}
	}

	seq := t.data.seq
	if p.ID == 0 {
		p.ID = t.data.nextID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t.data.now()
	}

	prev, existed := t.data.payments[p.ID]
	id := p.ID
	t.data.payments[id] = *p
	t.undo = append(t.undo, func() {
		t.data.seq = seq
		if existed {
			t.data.payments[id] = prev
		} else {
			delete(t.data.payments, id)
		}
	})
	return nil
}
