package drafting

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store/memstore"
)

var (
	owner    = users.Principal{UserID: 1, Role: users.RoleCustomer}
	stranger = users.Principal{UserID: 2, Role: users.RoleCustomer}
	admin    = users.Principal{UserID: 3, Role: users.RoleAdmin}
	designer = users.Principal{UserID: 10, Role: users.RoleDesigner}
	other    = users.Principal{UserID: 11, Role: users.RoleDesigner}
)

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Publish(_ context.Context, _, _ string, event any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := event.(notify.Notification); ok {
		r.sent = append(r.sent, n)
	}
	return nil
}

func (r *recorder) to(userID uint, typ notify.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.UserID == userID && s.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	store    *memstore.Store
	drafts   *Service
	workflow *Workflow
	assigner *Assigner
	sent     *recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	rec := &recorder{}
	n := notify.NewNotifier(rec)

	for _, u := range []users.User{
		{ID: owner.UserID, Email: "owner@example.com", Role: users.RoleCustomer},
		{ID: stranger.UserID, Email: "stranger@example.com", Role: users.RoleCustomer},
		{ID: admin.UserID, Email: "admin@example.com", Role: users.RoleAdmin},
		{ID: designer.UserID, Email: "designer@example.com", Role: users.RoleDesigner},
		{ID: other.UserID, Email: "other@example.com", Role: users.RoleDesigner},
	} {
		require.NoError(t, st.Users().Create(ctx, &u))
	}
	require.NoError(t, st.Cards().Create(ctx, &cards.MessageCard{ID: "card-1", Name: "Birthday", PriceCents: 500, Currency: "TRY", Active: true}))
	require.NoError(t, st.Cards().Create(ctx, &cards.MessageCard{ID: "card-old", Name: "Retired", PriceCents: 300, Currency: "TRY"}))

	return fixture{
		store:    st,
		drafts:   NewService(st, WithNotifier(n)),
		workflow: NewWorkflow(st, WithNotifier(n)),
		assigner: NewAssigner(st, WithNotifier(n)),
		sent:     rec,
	}
}

func (f fixture) newDraft(t *testing.T, method drafts.Method) *drafts.Draft {
	t.Helper()
	d, err := f.drafts.Create(context.Background(), owner, method)
	require.NoError(t, err)
	return d
}

// assigned returns an artist draft bound to designer, in progress.
func (f fixture) assigned(t *testing.T) *drafts.Draft {
	t.Helper()
	d := f.newDraft(t, drafts.MethodArtist)
	d, err := f.assigner.Assign(context.Background(), admin, d.ID, designer.UserID)
	require.NoError(t, err)
	return d
}

func (f fixture) reload(t *testing.T, id string) *drafts.Draft {
	t.Helper()
	d, err := f.store.Drafts().Get(context.Background(), id)
	require.NoError(t, err)
	return d
}

func (f fixture) addDesigner(t *testing.T, id uint) {
	t.Helper()
	require.NoError(t, f.store.Users().Create(context.Background(), &users.User{
		ID: id, Email: fmt.Sprintf("designer%d@example.com", id), Role: users.RoleDesigner,
	}))
}
