package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/store"
)

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *users.User) error {
	return r.s.with(func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return store.ErrDuplicate
			}
		}
		if u.ID == 0 {
			st.nextUserID++
			u.ID = st.nextUserID
		} else if _, ok := st.users[u.ID]; ok {
			return store.ErrDuplicate
		}
		if u.ID > st.nextUserID {
			st.nextUserID = u.ID
		}
		now := r.s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		return nil
	})
}

func (r userRepo) Get(_ context.Context, id uint) (*users.User, error) {
	var out users.User
	err := r.s.with(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Lock is a plain read: units of work already run one at a time.
func (r userRepo) Lock(ctx context.Context, id uint) (*users.User, error) {
	return r.Get(ctx, id)
}

type cardRepo struct{ s *Store }

func (r cardRepo) Create(_ context.Context, c *cards.MessageCard) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.cards[c.ID]; ok {
			return store.ErrDuplicate
		}
		now := r.s.now()
		c.CreatedAt, c.UpdatedAt = now, now
		st.cards[c.ID] = *c
		return nil
	})
}

func (r cardRepo) Get(_ context.Context, id string) (*cards.MessageCard, error) {
	var out cards.MessageCard
	err := r.s.with(func(st *state) error {
		c, ok := st.cards[id]
		if !ok {
			return store.ErrNotFound
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r cardRepo) ListActive(_ context.Context) ([]cards.MessageCard, error) {
	var out []cards.MessageCard
	err := r.s.with(func(st *state) error {
		for _, c := range st.cards {
			if c.Active {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].PriceCents < out[j].PriceCents })
	return out, err
}

type draftRepo struct{ s *Store }

func (r draftRepo) Create(_ context.Context, d *drafts.Draft) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.drafts[d.ID]; ok {
			return store.ErrDuplicate
		}
		now := r.s.now()
		d.CreatedAt, d.UpdatedAt = now, now
		st.drafts[d.ID] = d.Clone()
		return nil
	})
}

func (r draftRepo) Get(_ context.Context, id string) (*drafts.Draft, error) {
	var out *drafts.Draft
	err := r.s.with(func(st *state) error {
		d, ok := st.drafts[id]
		if !ok {
			return store.ErrNotFound
		}
		out = d.Clone()
		return nil
	})
	return out, err
}

func (r draftRepo) Lock(ctx context.Context, id string) (*drafts.Draft, error) {
	return r.Get(ctx, id)
}

func (r draftRepo) list(keep func(d *drafts.Draft) bool) ([]drafts.Draft, error) {
	var out []drafts.Draft
	err := r.s.with(func(st *state) error {
		for _, d := range st.drafts {
			if keep(d) {
				out = append(out, *d.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r draftRepo) ListByUser(_ context.Context, userID uint) ([]drafts.Draft, error) {
	return r.list(func(d *drafts.Draft) bool { return d.UserID == userID })
}

func (r draftRepo) ListByDesigner(_ context.Context, designerID uint) ([]drafts.Draft, error) {
	return r.list(func(d *drafts.Draft) bool { return d.IsAssignedTo(designerID) })
}

func (r draftRepo) CountActiveByDesigner(_ context.Context, designerID uint) (int64, error) {
	var n int64
	err := r.s.with(func(st *state) error {
		for _, d := range st.drafts {
			if d.IsAssignedTo(designerID) && !d.IsCommitted() && !d.WorkflowStatus.IsTerminal() {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r draftRepo) Update(_ context.Context, d *drafts.Draft) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		cur, found := st.drafts[d.ID]
		if !found || cur.IsCommitted() {
			return nil
		}
		next := d.Clone()
		cur.Method = next.Method
		cur.Step = next.Step
		cur.Data = next.Data
		cur.MessageCardID = next.MessageCardID
		cur.Shipping = next.Shipping
		cur.UpdatedAt = r.s.now()
		d.UpdatedAt = cur.UpdatedAt
		ok = true
		return nil
	})
	return ok, err
}

func (r draftRepo) UpdateIfStatus(_ context.Context, d *drafts.Draft, expected drafts.WorkflowStatus) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		cur, found := st.drafts[d.ID]
		if !found || cur.IsCommitted() || cur.WorkflowStatus != expected {
			return nil
		}
		cur.WorkflowStatus = d.WorkflowStatus
		cur.RevisionCount = d.RevisionCount
		cur.Data = d.Data.Clone()
		cur.UpdatedAt = r.s.now()
		d.UpdatedAt = cur.UpdatedAt
		ok = true
		return nil
	})
	return ok, err
}

func sameAssignee(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r draftRepo) SetAssignee(_ context.Context, id string, expected, next *uint, status drafts.WorkflowStatus) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		cur, found := st.drafts[id]
		if !found || cur.IsCommitted() || !sameAssignee(cur.AssignedDesignerID, expected) {
			return nil
		}
		if next != nil {
			v := *next
			cur.AssignedDesignerID = &v
		} else {
			cur.AssignedDesignerID = nil
		}
		cur.WorkflowStatus = status
		cur.UpdatedAt = r.s.now()
		ok = true
		return nil
	})
	return ok, err
}

func (r draftRepo) MarkCommitted(_ context.Context, id string, at time.Time) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		cur, found := st.drafts[id]
		if !found || cur.IsCommitted() {
			return nil
		}
		cur.CommittedAt = &at
		cur.UpdatedAt = r.s.now()
		ok = true
		return nil
	})
	return ok, err
}

func (r draftRepo) Delete(_ context.Context, id string) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		cur, found := st.drafts[id]
		if !found || cur.IsCommitted() {
			return nil
		}
		delete(st.drafts, id)
		ok = true
		return nil
	})
	return ok, err
}

type eventRepo struct{ s *Store }

func (r eventRepo) Append(_ context.Context, e *drafts.WorkflowEvent) error {
	return r.s.with(func(st *state) error {
		st.events = append(st.events, *e)
		return nil
	})
}

func (r eventRepo) List(_ context.Context, draftID string, types ...drafts.EventType) ([]drafts.WorkflowEvent, error) {
	var out []drafts.WorkflowEvent
	err := r.s.with(func(st *state) error {
		for _, e := range st.events {
			if e.DraftID != draftID {
				continue
			}
			if len(types) > 0 && !slices.Contains(types, e.Type) {
				continue
			}
			out = append(out, e)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, err
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(_ context.Context, o *orders.Order) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return store.ErrDuplicate
		}
		for _, existing := range st.orders {
			for _, it := range existing.Items {
				for _, nit := range o.Items {
					if it.DraftID == nit.DraftID {
						return store.ErrDuplicate
					}
				}
			}
		}
		now := r.s.now()
		o.CreatedAt, o.UpdatedAt = now, now
		st.orders[o.ID] = o.Clone()
		return nil
	})
}

func (r orderRepo) Get(_ context.Context, id string) (*orders.Order, error) {
	var out *orders.Order
	err := r.s.with(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		out = o.Clone()
		return nil
	})
	return out, err
}

func (r orderRepo) FindByDraft(_ context.Context, draftID string) (*orders.Order, error) {
	var out *orders.Order
	err := r.s.with(func(st *state) error {
		for _, o := range st.orders {
			for _, it := range o.Items {
				if it.DraftID == draftID {
					out = o.Clone()
					return nil
				}
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r orderRepo) Transition(_ context.Context, id string, from, to orders.Status) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		o, found := st.orders[id]
		if !found || o.Status != from {
			return nil
		}
		o.Status = to
		o.UpdatedAt = r.s.now()
		ok = true
		return nil
	})
	return ok, err
}

func (r orderRepo) CreateInvoice(_ context.Context, inv *orders.Invoice) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.invoices[inv.OrderID]; ok {
			return store.ErrDuplicate
		}
		st.invoices[inv.OrderID] = *inv
		return nil
	})
}

func (r orderRepo) GetInvoice(_ context.Context, orderID string) (*orders.Invoice, error) {
	var out orders.Invoice
	err := r.s.with(func(st *state) error {
		inv, ok := st.invoices[orderID]
		if !ok {
			return store.ErrNotFound
		}
		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(_ context.Context, p *billing.Payment) error {
	return r.s.with(func(st *state) error {
		if _, ok := st.payments[p.ID]; ok {
			return store.ErrDuplicate
		}
		if p.Status.IsActive() {
			for _, existing := range st.payments {
				if existing.OrderID == p.OrderID && existing.Status.IsActive() {
					return store.ErrDuplicate
				}
			}
		}
		now := r.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		st.payments[p.ID] = p.Clone()
		return nil
	})
}

func (r paymentRepo) Get(_ context.Context, id string) (*billing.Payment, error) {
	var out *billing.Payment
	err := r.s.with(func(st *state) error {
		p, ok := st.payments[id]
		if !ok {
			return store.ErrNotFound
		}
		out = p.Clone()
		return nil
	})
	return out, err
}

func (r paymentRepo) FindActiveForOrder(_ context.Context, orderID string) (*billing.Payment, error) {
	var out *billing.Payment
	err := r.s.with(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID && p.Status.IsActive() {
				out = p.Clone()
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r paymentRepo) ListForOrder(_ context.Context, orderID string) ([]billing.Payment, error) {
	var out []billing.Payment
	err := r.s.with(func(st *state) error {
		for _, p := range st.payments {
			if p.OrderID == orderID {
				out = append(out, *p.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}

func (r paymentRepo) Transition(_ context.Context, id string, from []billing.Status, to billing.Status, u billing.Update) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		p, found := st.payments[id]
		if !found || !slices.Contains(from, p.Status) {
			return nil
		}
		if to.IsActive() {
			for _, other := range st.payments {
				if other.ID != id && other.OrderID == p.OrderID && other.Status.IsActive() {
					return store.ErrDuplicate
				}
			}
		}
		p.Status = to
		u.Apply(p)
		p.UpdatedAt = r.s.now()
		ok = true
		return nil
	})
	return ok, err
}

type creditRepo struct{ s *Store }

func (r creditRepo) GetWallet(_ context.Context, userID uint) (*credits.CreditWallet, error) {
	var out credits.CreditWallet
	err := r.s.with(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok {
			return store.ErrNotFound
		}
		out = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r creditRepo) CreateWallet(_ context.Context, w *credits.CreditWallet) (bool, error) {
	var created bool
	err := r.s.with(func(st *state) error {
		if _, ok := st.wallets[w.UserID]; ok {
			return nil
		}
		st.nextWalletID++
		now := r.s.now()
		w.ID = st.nextWalletID
		w.CreatedAt, w.UpdatedAt = now, now
		st.wallets[w.UserID] = *w
		created = true
		return nil
	})
	return created, err
}

func (r creditRepo) Increment(_ context.Context, userID uint, amount int64) error {
	return r.s.with(func(st *state) error {
		now := r.s.now()
		w, ok := st.wallets[userID]
		if !ok {
			st.nextWalletID++
			w = credits.CreditWallet{ID: st.nextWalletID, UserID: userID, CreatedAt: now}
		}
		w.Balance += amount
		w.UpdatedAt = now
		st.wallets[userID] = w
		return nil
	})
}

func (r creditRepo) DecrementIfSufficient(_ context.Context, userID uint, amount int64) (bool, error) {
	var ok bool
	err := r.s.with(func(st *state) error {
		w, found := st.wallets[userID]
		if !found || w.Balance < amount {
			return nil
		}
		w.Balance -= amount
		w.UpdatedAt = r.s.now()
		st.wallets[userID] = w
		ok = true
		return nil
	})
	return ok, err
}

func (r creditRepo) AppendTransaction(_ context.Context, t *credits.CreditTransaction) error {
	return r.s.with(func(st *state) error {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = r.s.now()
		}
		st.ledger = append(st.ledger, *t)
		return nil
	})
}

func (r creditRepo) ListTransactions(_ context.Context, userID uint, limit, offset int) ([]credits.CreditTransaction, error) {
	var all []credits.CreditTransaction
	err := r.s.with(func(st *state) error {
		for i := len(st.ledger) - 1; i >= 0; i-- {
			if st.ledger[i].UserID == userID {
				all = append(all, st.ledger[i])
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (r creditRepo) TotalsByType(_ context.Context, userID uint) ([]credits.TypeTotal, error) {
	byType := map[credits.TxType]*credits.TypeTotal{}
	var order []credits.TxType
	err := r.s.with(func(st *state) error {
		for _, t := range st.ledger {
			if t.UserID != userID {
				continue
			}
			tt, ok := byType[t.Type]
			if !ok {
				tt = &credits.TypeTotal{Type: t.Type}
				byType[t.Type] = tt
				order = append(order, t.Type)
			}
			tt.Sum += t.Delta
			tt.Count++
		}
		return nil
	})
	out := make([]credits.TypeTotal, 0, len(order))
	for _, typ := range order {
		out = append(out, *byType[typ])
	}
	return out, err
}

func (r creditRepo) SumDeltas(_ context.Context, userID uint) (int64, error) {
	var sum int64
	err := r.s.with(func(st *state) error {
		for _, t := range st.ledger {
			if t.UserID == userID {
				sum += t.Delta
			}
		}
		return nil
	})
	return sum, err
}
