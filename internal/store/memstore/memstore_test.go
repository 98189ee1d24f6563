package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

func newDraft(id string, owner uint) *drafts.Draft {
	return &drafts.Draft{
		ID:             id,
		UserID:         owner,
		Step:           drafts.MinStep,
		WorkflowStatus: drafts.StatusPending,
		MaxRevisions:   drafts.DefaultMaxRevisions,
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Drafts().Create(ctx, newDraft("d1", 1)))

	boom := errors.New("boom")
	err := s.InTx(ctx, txn.Default, func(ctx context.Context, tx store.Store) error {
		designer := uint(5)
		ok, err := tx.Drafts().SetAssignee(ctx, "d1", nil, &designer, drafts.StatusInProgress)
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, tx.Credits().Increment(ctx, 1, 100))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	d, err := s.Drafts().Get(ctx, "d1")
	require.NoError(t, err)
	assert.Nil(t, d.AssignedDesignerID)
	assert.Equal(t, drafts.StatusPending, d.WorkflowStatus)

	_, err = s.Credits().GetWallet(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestNestedInTxIsASavepoint(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.InTx(ctx, txn.Commit, func(ctx context.Context, tx store.Store) error {
		require.NoError(t, tx.Credits().Increment(ctx, 1, 10))

		inner := tx.InTx(ctx, txn.Commit, func(ctx context.Context, tx store.Store) error {
			require.NoError(t, tx.Credits().Increment(ctx, 1, 1000))
			return errors.New("invoice rejected")
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	w, err := s.Credits().GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), w.Balance)
}

func TestInTxRetriesTransient(t *testing.T) {
	ctx := context.Background()
	var slept []time.Duration
	s := New(WithRunner(txn.Runner{Sleep: func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}}))

	calls := 0
	err := s.InTx(ctx, txn.Ledger, func(ctx context.Context, tx store.Store) error {
		calls++
		require.NoError(t, tx.Credits().Increment(ctx, 1, 5))
		if calls == 1 {
			return txn.ErrTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, slept, 1)

	w, err := s.Credits().GetWallet(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), w.Balance, "the failed attempt must not leak")
}

func TestDraftConditionalWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Drafts().Create(ctx, newDraft("d1", 1)))

	a, b := uint(7), uint(8)
	ok, err := s.Drafts().SetAssignee(ctx, "d1", nil, &a, drafts.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Drafts().SetAssignee(ctx, "d1", nil, &b, drafts.StatusInProgress)
	require.NoError(t, err)
	assert.False(t, ok, "assignee no longer NULL")

	d, _ := s.Drafts().Get(ctx, "d1")
	d.WorkflowStatus = drafts.StatusPreviewSent
	ok, err = s.Drafts().UpdateIfStatus(ctx, d, drafts.StatusPending)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Drafts().UpdateIfStatus(ctx, d, drafts.StatusInProgress)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Drafts().CountActiveByDesigner(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	ok, err = s.Drafts().MarkCommitted(ctx, "d1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Drafts().MarkCommitted(ctx, "d1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	d.Step = 4
	ok, err = s.Drafts().Update(ctx, d)
	require.NoError(t, err)
	assert.False(t, ok, "committed drafts are frozen")

	n, err = s.Drafts().CountActiveByDesigner(ctx, a)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReturnedDraftsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Drafts().Create(ctx, newDraft("d1", 1)))

	d, _ := s.Drafts().Get(ctx, "d1")
	d.Step = 5
	d.Data.Design = map[string]any{"x": 1}

	again, _ := s.Drafts().Get(ctx, "d1")
	assert.Equal(t, drafts.MinStep, again.Step)
	assert.Nil(t, again.Data.Design)
}

func TestPaymentActiveGuard(t *testing.T) {
	ctx := context.Background()
	s := New()

	first := &billing.Payment{ID: "p1", OrderID: "o1", Status: billing.StatusPending, AmountCents: 100}
	require.NoError(t, s.Payments().Create(ctx, first))

	dup := &billing.Payment{ID: "p2", OrderID: "o1", Status: billing.StatusPending, AmountCents: 100}
	assert.ErrorIs(t, s.Payments().Create(ctx, dup), store.ErrDuplicate)

	ok, err := s.Payments().Transition(ctx, "p1", billing.ActiveStatuses, billing.StatusFailed, billing.Update{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Payments().Transition(ctx, "p1", billing.ActiveStatuses, billing.StatusSuccess, billing.Update{})
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Payments().Create(ctx, dup))
}

func TestCreditPrimitives(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.Credits().CreateWallet(ctx, &credits.CreditWallet{UserID: 1, Balance: 500})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Credits().CreateWallet(ctx, &credits.CreditWallet{UserID: 1, Balance: 500})
	require.NoError(t, err)
	assert.False(t, created)

	ok, err := s.Credits().DecrementIfSufficient(ctx, 1, 501)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Credits().DecrementIfSufficient(ctx, 1, 500)
	require.NoError(t, err)
	assert.True(t, ok)

	w, _ := s.Credits().GetWallet(ctx, 1)
	assert.Zero(t, w.Balance)
}
