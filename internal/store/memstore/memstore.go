// Package memstore is an in-memory store.Store for local development and
// tests. Units of work run one at a time and roll back from a snapshot.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"

	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

type state struct {
	users    map[uint]users.User
	cards    map[string]cards.MessageCard
	drafts   map[string]*drafts.Draft
	events   []drafts.WorkflowEvent
	orders   map[string]*orders.Order
	invoices map[string]orders.Invoice
	payments map[string]*billing.Payment
	wallets  map[uint]credits.CreditWallet
	ledger   []credits.CreditTransaction

	nextUserID   uint
	nextWalletID uint
}

func newState() *state {
	return &state{
		users:    map[uint]users.User{},
		cards:    map[string]cards.MessageCard{},
		drafts:   map[string]*drafts.Draft{},
		orders:   map[string]*orders.Order{},
		invoices: map[string]orders.Invoice{},
		payments: map[string]*billing.Payment{},
		wallets:  map[uint]credits.CreditWallet{},
	}
}

func (s *state) clone() *state {
	c := &state{
		users:        maps.Clone(s.users),
		cards:        maps.Clone(s.cards),
		drafts:       make(map[string]*drafts.Draft, len(s.drafts)),
		events:       append([]drafts.WorkflowEvent(nil), s.events...),
		orders:       make(map[string]*orders.Order, len(s.orders)),
		invoices:     maps.Clone(s.invoices),
		payments:     make(map[string]*billing.Payment, len(s.payments)),
		wallets:      maps.Clone(s.wallets),
		ledger:       append([]credits.CreditTransaction(nil), s.ledger...),
		nextUserID:   s.nextUserID,
		nextWalletID: s.nextWalletID,
	}
	for k, v := range s.drafts {
		c.drafts[k] = v.Clone()
	}
	for k, v := range s.orders {
		c.orders[k] = v.Clone()
	}
	for k, v := range s.payments {
		c.payments[k] = v.Clone()
	}
	return c
}

type shared struct {
	mu     sync.Mutex
	st     *state
	runner txn.Runner
	now    func() time.Time
}

// Store implements store.Store. A Store returned to a unit of work is bound
// to that unit and must not be used after it returns.
type Store struct {
	sh   *shared
	inTx bool
}

var _ store.Store = (*Store)(nil)

type Option func(*shared)

func WithRunner(r txn.Runner) Option { return func(s *shared) { s.runner = r } }

func WithClock(now func() time.Time) Option { return func(s *shared) { s.now = now } }

func New(opts ...Option) *Store {
	sh := &shared{st: newState(), now: time.Now}
	for _, o := range opts {
		o(sh)
	}
	return &Store{sh: sh}
}

func (s *Store) Users() store.UserRepository       { return userRepo{s} }
func (s *Store) Cards() store.CardRepository       { return cardRepo{s} }
func (s *Store) Drafts() store.DraftRepository     { return draftRepo{s} }
func (s *Store) Events() store.EventRepository     { return eventRepo{s} }
func (s *Store) Orders() store.OrderRepository     { return orderRepo{s} }
func (s *Store) Payments() store.PaymentRepository { return paymentRepo{s} }
func (s *Store) Credits() store.CreditRepository   { return creditRepo{s} }

func (s *Store) InTx(ctx context.Context, class txn.Class, fn store.UnitOfWork) error {
	if s.inTx {
		snap := s.sh.st.clone()
		if err := fn(ctx, s); err != nil {
			s.sh.st = snap
			return err
		}
		return nil
	}

	return s.sh.runner.Do(ctx, class, func(ctx context.Context, _ txn.Policy) error {
		s.sh.mu.Lock()
		defer s.sh.mu.Unlock()

		snap := s.sh.st.clone()
		err := fn(ctx, &Store{sh: s.sh, inTx: true})
		if err == nil {
			err = ctx.Err()
		}
		if err != nil {
			s.sh.st = snap
			return err
		}
		return nil
	})
}

// with runs fn against the current state, taking the lock unless the store
// is already inside a unit of work.
func (s *Store) with(fn func(st *state) error) error {
	if !s.inTx {
		s.sh.mu.Lock()
		defer s.sh.mu.Unlock()
	}
	return fn(s.sh.st)
}

func (s *Store) now() time.Time { return s.sh.now().UTC() }
