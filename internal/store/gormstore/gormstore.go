// Package gormstore is the Postgres implementation of store.Store.
package gormstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commission-app/internal/store"
	"commission-app/internal/txn"
)

type Store struct {
	db     *gorm.DB
	runner txn.Runner
	inTx   bool
}

var _ store.Store = (*Store)(nil)

func New(db *gorm.DB, runner txn.Runner) *Store {
	return &Store{db: db, runner: runner}
}

func (s *Store) Users() store.UserRepository       { return userRepo{s.db} }
func (s *Store) Cards() store.CardRepository       { return cardRepo{s.db} }
func (s *Store) Drafts() store.DraftRepository     { return draftRepo{s.db} }
func (s *Store) Events() store.EventRepository     { return eventRepo{s.db} }
func (s *Store) Orders() store.OrderRepository     { return orderRepo{s.db} }
func (s *Store) Payments() store.PaymentRepository { return paymentRepo{s.db} }
func (s *Store) Credits() store.CreditRepository   { return creditRepo{s.db} }

func (s *Store) InTx(ctx context.Context, class txn.Class, fn store.UnitOfWork) error {
	if s.inTx {
		// gorm turns a nested Transaction into SAVEPOINT / ROLLBACK TO.
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &Store{db: tx, runner: s.runner, inTx: true})
		})
	}

	return s.runner.Do(ctx, class, func(ctx context.Context, p txn.Policy) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(ctx, &Store{db: tx, runner: s.runner, inTx: true})
		}, &sql.TxOptions{Isolation: p.Isolation})
	})
}

var lockForUpdate = clause.Locking{Strength: "UPDATE"}

const uniqueViolation = "23505"

// translate maps driver errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return errors.Join(store.ErrDuplicate, err)
	}
	return err
}
