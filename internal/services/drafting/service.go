// Package drafting holds the draft façade, the workflow state machine
// service and designer assignment.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

type deps struct {
	store    store.Store
	notifier *notify.Notifier
	newID    func() string
	now      func() time.Time
}

type Option func(*deps)

func WithNotifier(n *notify.Notifier) Option { return func(d *deps) { d.notifier = n } }

func WithClock(now func() time.Time) Option { return func(d *deps) { d.now = now } }

func newDeps(st store.Store, opts []Option) deps {
	d := deps{store: st, newID: uuid.NewString, now: time.Now}
	for _, o := range opts {
		o(&d)
	}
	return d
}

func (d deps) clock() time.Time { return d.now().UTC() }

func loadDraft(ctx context.Context, tx store.Store, id string, lock bool) (*drafts.Draft, error) {
	var (
		d   *drafts.Draft
		err error
	)
	if lock {
		d, err = tx.Drafts().Lock(ctx, id)
	} else {
		d, err = tx.Drafts().Get(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("draft not found")
	}
	return d, err
}

func canView(p users.Principal, d *drafts.Draft) bool {
	return p.IsAdmin() || d.IsOwnedBy(p.UserID) || d.IsAssignedTo(p.UserID)
}

func errCommitted() error {
	return apperr.Validation(apperr.CodeAlreadyCommitted, "draft is already committed and can no longer change")
}

// Service is the CRUD façade over drafts. Only the owner mutates a draft and
// only until it is committed.
type Service struct {
	deps
}

func NewService(st store.Store, opts ...Option) *Service {
	return &Service{deps: newDeps(st, opts)}
}

func (s *Service) Create(ctx context.Context, p users.Principal, method drafts.Method) (*drafts.Draft, error) {
	if method != "" && !method.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown creation method %q", method))
	}
	d := &drafts.Draft{
		ID:             s.newID(),
		UserID:         p.UserID,
		Method:         method,
		Step:           drafts.MinStep,
		WorkflowStatus: drafts.StatusPending,
		MaxRevisions:   drafts.DefaultMaxRevisions,
	}
	if err := s.store.Drafts().Create(ctx, d); err != nil {
		return nil, apperr.Internal("create draft", err)
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, p users.Principal, id string) (*drafts.Draft, error) {
	d, err := loadDraft(ctx, s.store, id, false)
	if err != nil {
		return nil, apperr.Wrap("load draft", err)
	}
	if !canView(p, d) {
		return nil, apperr.Forbidden("you do not have access to this draft")
	}
	return d, nil
}

func (s *Service) ListMine(ctx context.Context, p users.Principal) ([]drafts.Draft, error) {
	out, err := s.store.Drafts().ListByUser(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Internal("list drafts", err)
	}
	return out, nil
}

func (s *Service) ListAssigned(ctx context.Context, p users.Principal) ([]drafts.Draft, error) {
	if !p.IsDesigner() {
		return nil, apperr.Forbidden("only designers have assigned drafts")
	}
	out, err := s.store.Drafts().ListByDesigner(ctx, p.UserID)
	if err != nil {
		return nil, apperr.Internal("list assigned drafts", err)
	}
	return out, nil
}

// mutate re-reads the draft under lock and writes fn's changes back.
func (s *Service) mutate(ctx context.Context, p users.Principal, id string, fn func(ctx context.Context, tx store.Store, d *drafts.Draft) error) (*drafts.Draft, error) {
	var out *drafts.Draft
	err := s.store.InTx(ctx, txn.Default, func(ctx context.Context, tx store.Store) error {
		d, err := loadDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !d.IsOwnedBy(p.UserID) {
			return apperr.Forbidden("only the owner can change this draft")
		}
		if d.IsCommitted() {
			return errCommitted()
		}
		if err := fn(ctx, tx, d); err != nil {
			return err
		}
		ok, err := tx.Drafts().Update(ctx, d)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft changed concurrently")
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap("update draft", err)
	}
	return out, nil
}

func (s *Service) SetMethod(ctx context.Context, p users.Principal, id string, method drafts.Method) (*drafts.Draft, error) {
	if !method.Valid() {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown creation method %q", method))
	}
	return s.mutate(ctx, p, id, func(_ context.Context, _ store.Store, d *drafts.Draft) error {
		d.Method = method
		return nil
	})
}

func (s *Service) SetStep(ctx context.Context, p users.Principal, id string, step int) (*drafts.Draft, error) {
	if step < drafts.MinStep || step > drafts.MaxStep {
		return nil, apperr.BadRequest(fmt.Sprintf("step must be between %d and %d", drafts.MinStep, drafts.MaxStep))
	}
	return s.mutate(ctx, p, id, func(_ context.Context, _ store.Store, d *drafts.Draft) error {
		d.Step = step
		return nil
	})
}

// SetShipping stores a copy of the address; later address book edits do not
// reach the draft.
func (s *Service) SetShipping(ctx context.Context, p users.Principal, id string, addr drafts.ShippingSnapshot) (*drafts.Draft, error) {
	if err := addr.Validate(); err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	return s.mutate(ctx, p, id, func(_ context.Context, _ store.Store, d *drafts.Draft) error {
		snap := addr
		d.Shipping = &snap
		return nil
	})
}

func (s *Service) SetMessageCard(ctx context.Context, p users.Principal, id, cardID string) (*drafts.Draft, error) {
	return s.mutate(ctx, p, id, func(ctx context.Context, tx store.Store, d *drafts.Draft) error {
		card, err := tx.Cards().Get(ctx, cardID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("message card not found")
		}
		if err != nil {
			return err
		}
		if !card.Active {
			return apperr.BadRequest("message card is no longer available")
		}
		d.MessageCardID = &card.ID
		return nil
	})
}

// MergeData merges customer-owned parts of patch into the draft data.
// Workflow notes are written by the workflow only.
func (s *Service) MergeData(ctx context.Context, p users.Principal, id string, patch drafts.Data) (*drafts.Draft, error) {
	allowed := drafts.Data{Design: patch.Design, Billing: patch.Billing, Carrier: patch.Carrier}
	return s.mutate(ctx, p, id, func(_ context.Context, _ store.Store, d *drafts.Draft) error {
		d.Data = d.Data.Merge(allowed)
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, p users.Principal, id string) error {
	err := s.store.InTx(ctx, txn.Default, func(ctx context.Context, tx store.Store) error {
		d, err := loadDraft(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if !d.IsOwnedBy(p.UserID) && !p.IsAdmin() {
			return apperr.Forbidden("only the owner can delete this draft")
		}
		if d.IsCommitted() {
			return errCommitted()
		}
		ok, err := tx.Drafts().Delete(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft changed concurrently")
		}
		return nil
	})
	return apperr.Wrap("delete draft", err)
}
