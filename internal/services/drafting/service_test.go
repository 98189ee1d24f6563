package drafting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/users"
)

var address = drafts.ShippingSnapshot{
	FullName: "Ayşe Yılmaz",
	Phone:    "+905551112233",
	Line1:    "Bağdat Cd. 12",
	City:     "İstanbul",
	Country:  "TR",
}

func TestCreateDraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	d := f.newDraft(t, drafts.MethodUpload)
	assert.Equal(t, owner.UserID, d.UserID)
	assert.Equal(t, drafts.StatusPending, d.WorkflowStatus)
	assert.Equal(t, drafts.MinStep, d.Step)
	assert.Equal(t, drafts.DefaultMaxRevisions, d.MaxRevisions)

	_, err := f.drafts.Create(ctx, owner, "crayon")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	mine, err := f.drafts.ListMine(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestGetDraftAccess(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d := f.assigned(t)

	tests := []struct {
		name string
		p    users.Principal
		ok   bool
	}{
		{"owner", owner, true},
		{"assigned designer", designer, true},
		{"admin", admin, true},
		{"stranger", stranger, false},
		{"other designer", other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.drafts.Get(ctx, tt.p, d.ID)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, apperr.KindForbidden))
		})
	}

	_, err := f.drafts.Get(ctx, owner, "missing")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestListAssigned(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.assigned(t)
	f.newDraft(t, drafts.MethodArtist)

	list, err := f.drafts.ListAssigned(ctx, designer)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.drafts.ListAssigned(ctx, owner)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
}

func TestDraftMutations(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d := f.newDraft(t, drafts.MethodUpload)

	got, err := f.drafts.SetMethod(ctx, owner, d.ID, drafts.MethodAI)
	require.NoError(t, err)
	assert.Equal(t, drafts.MethodAI, got.Method)

	got, err = f.drafts.SetStep(ctx, owner, d.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Step)

	for _, step := range []int{0, 6} {
		_, err = f.drafts.SetStep(ctx, owner, d.ID, step)
		assert.True(t, apperr.Is(err, apperr.KindBadRequest), "step %d", step)
	}

	got, err = f.drafts.SetShipping(ctx, owner, d.ID, address)
	require.NoError(t, err)
	require.NotNil(t, got.Shipping)
	assert.Equal(t, address, *got.Shipping)

	_, err = f.drafts.SetShipping(ctx, owner, d.ID, drafts.ShippingSnapshot{FullName: "x"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	got, err = f.drafts.SetMessageCard(ctx, owner, d.ID, "card-1")
	require.NoError(t, err)
	require.NotNil(t, got.MessageCardID)
	assert.Equal(t, "card-1", *got.MessageCardID)

	_, err = f.drafts.SetMessageCard(ctx, owner, d.ID, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	_, err = f.drafts.SetMessageCard(ctx, owner, d.ID, "card-old")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = f.drafts.SetStep(ctx, stranger, d.ID, 2)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	stored := f.reload(t, d.ID)
	assert.Equal(t, 4, stored.Step)
	assert.Equal(t, drafts.MethodAI, stored.Method)
}

func TestMergeDataIgnoresWorkflowNotes(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d := f.newDraft(t, drafts.MethodUpload)

	_, err := f.drafts.MergeData(ctx, owner, d.ID, drafts.Data{Design: map[string]any{"font": "serif"}})
	require.NoError(t, err)
	got, err := f.drafts.MergeData(ctx, owner, d.ID, drafts.Data{
		Design:  map[string]any{"color": "red"},
		Preview: &drafts.PreviewNote{Notes: "forged"},
		Billing: &drafts.BillingInfo{FullName: "Ayşe Yılmaz"},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"font": "serif", "color": "red"}, got.Data.Design)
	assert.Nil(t, got.Data.Preview)
	require.NotNil(t, got.Data.Billing)
	assert.Equal(t, "Ayşe Yılmaz", got.Data.Billing.FullName)
}

func TestCommittedDraftIsFrozen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d := f.newDraft(t, drafts.MethodUpload)

	ok, err := f.store.Drafts().MarkCommitted(ctx, d.ID, time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.drafts.SetStep(ctx, owner, d.ID, 3)
	assert.Equal(t, apperr.CodeAlreadyCommitted, apperr.CodeOf(err))
	_, err = f.drafts.SetShipping(ctx, owner, d.ID, address)
	assert.Equal(t, apperr.CodeAlreadyCommitted, apperr.CodeOf(err))
	err = f.drafts.Delete(ctx, owner, d.ID)
	assert.Equal(t, apperr.CodeAlreadyCommitted, apperr.CodeOf(err))
}

func TestDeleteDraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	d := f.newDraft(t, drafts.MethodUpload)

	assert.True(t, apperr.Is(f.drafts.Delete(ctx, stranger, d.ID), apperr.KindForbidden))
	require.NoError(t, f.drafts.Delete(ctx, owner, d.ID))

	_, err := f.drafts.Get(ctx, owner, d.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
