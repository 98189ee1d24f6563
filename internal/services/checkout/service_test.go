package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/store/memstore"
	"commission-app/internal/txn"
)

var (
	owner    = users.Principal{UserID: 1, Role: users.RoleCustomer}
	stranger = users.Principal{UserID: 2, Role: users.RoleCustomer}
	designer = uint(10)
)

var address = drafts.ShippingSnapshot{
	FullName: "Ayşe Yılmaz",
	Phone:    "+905551112233",
	Line1:    "Bağdat Cd. 12",
	City:     "İstanbul",
	Country:  "TR",
}

type capture struct {
	mu     sync.Mutex
	topics []string
	events []any
	fail   bool
}

func (c *capture) Publish(_ context.Context, topic, _ string, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broker down")
	}
	c.topics = append(c.topics, topic)
	c.events = append(c.events, event)
	return nil
}

func (c *capture) on(topic string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for i, t := range c.topics {
		if t == topic {
			out = append(out, c.events[i])
		}
	}
	return out
}

func newService(st store.Store, pub *capture) *Service {
	return NewService(st,
		WithNotifier(notify.NewNotifier(pub)),
		WithShipments(notify.NewShipmentRegistrar(pub)),
		WithClock(func() time.Time { return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC) }),
	)
}

func seed(t *testing.T, st store.Store, d *drafts.Draft) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Cards().Create(ctx, &cards.MessageCard{ID: "card-1", Name: "Birthday", PriceCents: 500, Currency: "TRY", Active: true}))
	if d.MaxRevisions == 0 {
		d.MaxRevisions = drafts.DefaultMaxRevisions
	}
	if d.Step == 0 {
		d.Step = drafts.MinStep
	}
	require.NoError(t, st.Drafts().Create(ctx, d))
}

func ready(method drafts.Method) *drafts.Draft {
	card := "card-1"
	snap := address
	des := designer
	status := drafts.StatusPending
	if method == drafts.MethodArtist {
		status = drafts.StatusCompleted
	}
	return &drafts.Draft{
		ID:                 "draft-1",
		UserID:             owner.UserID,
		Method:             method,
		MessageCardID:      &card,
		Shipping:           &snap,
		AssignedDesignerID: &des,
		WorkflowStatus:     status,
	}
}

func TestCanCommit(t *testing.T) {
	card := "card-1"
	committed := time.Now()

	tests := []struct {
		name    string
		draft   drafts.Draft
		ready   bool
		missing []string
	}{
		{"nothing picked", drafts.Draft{Method: drafts.MethodUpload}, false, []string{MissingMessageCard, MissingShipping}},
		{"no shipping", drafts.Draft{Method: drafts.MethodUpload, MessageCardID: &card}, false, []string{MissingShipping}},
		{"no card", drafts.Draft{Method: drafts.MethodAI, Shipping: &address}, false, []string{MissingMessageCard}},
		{"no method", drafts.Draft{MessageCardID: &card, Shipping: &address}, false, []string{MissingMethod}},
		{"blank draft", drafts.Draft{}, false, []string{MissingMethod, MissingMessageCard, MissingShipping}},
		{"upload ready", drafts.Draft{Method: drafts.MethodUpload, MessageCardID: &card, Shipping: &address}, true, nil},
		{"artist in review", drafts.Draft{Method: drafts.MethodArtist, MessageCardID: &card, Shipping: &address, WorkflowStatus: drafts.StatusPreviewSent}, false, []string{MissingApproval}},
		{"artist approved", drafts.Draft{Method: drafts.MethodArtist, MessageCardID: &card, Shipping: &address, WorkflowStatus: drafts.StatusCompleted}, true, nil},
		{"canceled", drafts.Draft{Method: drafts.MethodUpload, MessageCardID: &card, Shipping: &address, WorkflowStatus: drafts.StatusCanceled}, false, nil},
		{"committed", drafts.Draft{Method: drafts.MethodUpload, MessageCardID: &card, Shipping: &address, CommittedAt: &committed}, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := CanCommit(&tt.draft)
			assert.Equal(t, tt.ready, r.Ready)
			assert.Equal(t, tt.missing, r.Missing)
			if !tt.ready {
				assert.NotEmpty(t, r.Reason)
			}
		})
	}
}

func TestCommit(t *testing.T) {
	st := memstore.New()
	pub := &capture{}
	svc := newService(st, pub)
	d := ready(drafts.MethodArtist)
	d.Data = drafts.Data{Billing: &drafts.BillingInfo{Type: "individual", FullName: "Ayşe Yılmaz"}}
	seed(t, st, d)
	ctx := context.Background()

	res, err := svc.Commit(ctx, owner, d.ID, CommitInput{Carrier: &drafts.CarrierInfo{Carrier: "yurtici"}})
	require.NoError(t, err)

	o := res.Order
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, int64(500), o.SubtotalCents)
	assert.Equal(t, DefaultShippingCents, o.ShippingCents)
	assert.Equal(t, int64(3500), o.TotalCents)
	assert.Equal(t, "TRY", o.Currency)
	require.Len(t, o.Items, 1)
	assert.Equal(t, d.ID, o.Items[0].DraftID)

	stored, err := st.Drafts().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCommitted())
	require.NotNil(t, stored.Data.Carrier)

	require.NotNil(t, res.Invoice)
	assert.Equal(t, "Ayşe Yılmaz", res.Invoice.Billing.Data().FullName)
	assert.Regexp(t, `^INV-20260314-[0-9A-F]{8}$`, res.Invoice.Number)
	inv, err := st.Orders().GetInvoice(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.TotalCents, inv.TotalCents)

	events, err := st.Events().List(ctx, d.ID, drafts.EventCommitted)
	require.NoError(t, err)
	require.Len(t, events, 1)
	body, err := drafts.DecodePayload[drafts.Committed](events[0])
	require.NoError(t, err)
	assert.Equal(t, o.ID, body.OrderID)

	shipments := pub.on(notify.TopicShipments)
	require.Len(t, shipments, 1)
	assert.Equal(t, "yurtici", shipments[0].(notify.ShipmentRequest).Carrier)
	notes := pub.on(notify.TopicNotifications)
	require.Len(t, notes, 1)
	assert.Equal(t, designer, notes[0].(notify.Notification).UserID)

	_, err = svc.Commit(ctx, owner, d.ID, CommitInput{})
	assert.Equal(t, apperr.CodeAlreadyCommitted, apperr.CodeOf(err))
}

func TestCommitBlockedUntilApproved(t *testing.T) {
	st := memstore.New()
	pub := &capture{}
	svc := newService(st, pub)
	d := ready(drafts.MethodArtist)
	d.WorkflowStatus = drafts.StatusPreviewSent
	d.Shipping = nil
	seed(t, st, d)
	ctx := context.Background()

	_, err := svc.Commit(ctx, owner, d.ID, CommitInput{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, apperr.CodeNotReady, apperr.CodeOf(err))
	assert.Contains(t, err.Error(), MissingShipping)
	assert.Contains(t, err.Error(), MissingApproval)

	stored, err := st.Drafts().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsCommitted())
	_, err = st.Orders().FindByDraft(ctx, d.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, pub.on(notify.TopicNotifications))
}

func TestCommitChecksOwner(t *testing.T) {
	st := memstore.New()
	svc := newService(st, &capture{})
	seed(t, st, ready(drafts.MethodUpload))

	_, err := svc.Commit(context.Background(), stranger, "draft-1", CommitInput{})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	_, err = svc.Commit(context.Background(), owner, "missing", CommitInput{})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestCommitSurvivesSideEffectFailures(t *testing.T) {
	st := memstore.New()
	pub := &capture{fail: true}
	svc := newService(st, pub)
	seed(t, st, ready(drafts.MethodUpload))

	res, err := svc.Commit(context.Background(), owner, "draft-1", CommitInput{Carrier: &drafts.CarrierInfo{Carrier: "aras"}})
	require.NoError(t, err)
	assert.NotNil(t, res.Order)
}

type faultyStore struct{ store.Store }

func (s faultyStore) Orders() store.OrderRepository { return faultyOrders{s.Store.Orders()} }

func (s faultyStore) InTx(ctx context.Context, class txn.Class, fn store.UnitOfWork) error {
	return s.Store.InTx(ctx, class, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, faultyStore{tx})
	})
}

type faultyOrders struct{ store.OrderRepository }

func (faultyOrders) CreateInvoice(context.Context, *orders.Invoice) error {
	return errors.New("invoices table unavailable")
}

func TestCommitToleratesInvoiceFailure(t *testing.T) {
	mem := memstore.New()
	d := ready(drafts.MethodUpload)
	d.Data = drafts.Data{Billing: &drafts.BillingInfo{FullName: "Ayşe Yılmaz"}}
	seed(t, mem, d)
	svc := newService(faultyStore{mem}, &capture{})
	ctx := context.Background()

	res, err := svc.Commit(ctx, owner, d.ID, CommitInput{})
	require.NoError(t, err)
	assert.Nil(t, res.Invoice)

	o, err := mem.Orders().FindByDraft(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, o.ID)
	stored, err := mem.Drafts().Get(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsCommitted())
}

func TestConcurrentCommitsCreateOneOrder(t *testing.T) {
	st := memstore.New()
	svc := newService(st, &capture{})
	seed(t, st, ready(drafts.MethodUpload))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Commit(context.Background(), owner, "draft-1", CommitInput{}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
}

func TestQuoteAndStatus(t *testing.T) {
	st := memstore.New()
	svc := NewService(st, WithShippingCost(1500))
	d := ready(drafts.MethodUpload)
	seed(t, st, d)
	ctx := context.Background()

	q, err := svc.Quote(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, Quote{CardCents: 500, ShippingCents: 1500, TotalCents: 2000, Currency: "TRY"}, q)

	status, err := svc.Status(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.True(t, status.Ready)
	require.NotNil(t, status.Quote)
	assert.Empty(t, status.OrderID)

	res, err := svc.Commit(ctx, owner, d.ID, CommitInput{})
	require.NoError(t, err)
	status, err = svc.Status(ctx, owner, d.ID)
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.Equal(t, res.Order.ID, status.OrderID)
}
