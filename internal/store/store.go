// Package store defines the persistence boundary of the service. Writes that
// guard an invariant are conditional and report whether a row was affected.
package store

import (
	"context"
	"errors"
	"time"

	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/txn"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// UnitOfWork receives the context of the current attempt and a store bound
// to the open transaction. Neither may escape the callback.
type UnitOfWork func(ctx context.Context, tx Store) error

type Store interface {
	Users() UserRepository
	Cards() CardRepository
	Drafts() DraftRepository
	Events() EventRepository
	Orders() OrderRepository
	Payments() PaymentRepository
	Credits() CreditRepository

	// InTx runs fn atomically under the policy of class. Calling InTx on a
	// store that is already bound to a transaction opens a savepoint.
	InTx(ctx context.Context, class txn.Class, fn UnitOfWork) error
}

type UserRepository interface {
	Create(ctx context.Context, u *users.User) error
	Get(ctx context.Context, id uint) (*users.User, error)
	// Lock reads the user after claiming its row for the rest of the
	// transaction. Concurrent units that lock the same user conflict, so at
	// most one of them commits without a retry.
	Lock(ctx context.Context, id uint) (*users.User, error)
}

type CardRepository interface {
	Create(ctx context.Context, c *cards.MessageCard) error
	Get(ctx context.Context, id string) (*cards.MessageCard, error)
	// ListActive returns the sellable cards, cheapest first.
	ListActive(ctx context.Context) ([]cards.MessageCard, error)
}

type DraftRepository interface {
	Create(ctx context.Context, d *drafts.Draft) error
	Get(ctx context.Context, id string) (*drafts.Draft, error)
	Lock(ctx context.Context, id string) (*drafts.Draft, error)
	ListByUser(ctx context.Context, userID uint) ([]drafts.Draft, error)
	ListByDesigner(ctx context.Context, designerID uint) ([]drafts.Draft, error)
	// CountActiveByDesigner counts uncommitted, non-terminal drafts assigned
	// to the designer.
	CountActiveByDesigner(ctx context.Context, designerID uint) (int64, error)

	// Update writes method, step, data, card and shipping of an uncommitted draft.
	Update(ctx context.Context, d *drafts.Draft) (bool, error)
	// UpdateIfStatus writes workflow status, revision count and data only if
	// the stored status still equals expected.
	UpdateIfStatus(ctx context.Context, d *drafts.Draft, expected drafts.WorkflowStatus) (bool, error)
	// SetAssignee swaps the assigned designer only if the stored assignee
	// equals expected (nil matches NULL).
	SetAssignee(ctx context.Context, id string, expected, next *uint, status drafts.WorkflowStatus) (bool, error)
	MarkCommitted(ctx context.Context, id string, at time.Time) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type EventRepository interface {
	Append(ctx context.Context, e *drafts.WorkflowEvent) error
	// List returns the draft's events oldest first, optionally filtered by type.
	List(ctx context.Context, draftID string, types ...drafts.EventType) ([]drafts.WorkflowEvent, error)
}

type OrderRepository interface {
	// Create inserts the order together with its items.
	Create(ctx context.Context, o *orders.Order) error
	Get(ctx context.Context, id string) (*orders.Order, error)
	FindByDraft(ctx context.Context, draftID string) (*orders.Order, error)
	Transition(ctx context.Context, id string, from, to orders.Status) (bool, error)
	CreateInvoice(ctx context.Context, inv *orders.Invoice) error
	GetInvoice(ctx context.Context, orderID string) (*orders.Invoice, error)
}

type PaymentRepository interface {
	// Create returns ErrDuplicate when the order already has an active payment.
	Create(ctx context.Context, p *billing.Payment) error
	Get(ctx context.Context, id string) (*billing.Payment, error)
	FindActiveForOrder(ctx context.Context, orderID string) (*billing.Payment, error)
	ListForOrder(ctx context.Context, orderID string) ([]billing.Payment, error)
	Transition(ctx context.Context, id string, from []billing.Status, to billing.Status, u billing.Update) (bool, error)
}

type CreditRepository interface {
	GetWallet(ctx context.Context, userID uint) (*credits.CreditWallet, error)
	// CreateWallet inserts the wallet unless one exists and reports whether it did.
	CreateWallet(ctx context.Context, w *credits.CreditWallet) (bool, error)
	// Increment upserts the wallet, adding amount to its balance.
	Increment(ctx context.Context, userID uint, amount int64) error
	DecrementIfSufficient(ctx context.Context, userID uint, amount int64) (bool, error)
	AppendTransaction(ctx context.Context, t *credits.CreditTransaction) error
	ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]credits.CreditTransaction, error)
	TotalsByType(ctx context.Context, userID uint) ([]credits.TypeTotal, error)
	SumDeltas(ctx context.Context, userID uint) (int64, error)
}
