package payments

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/gateway"
	"commission-app/internal/infra/mockpay"
	"commission-app/internal/notify"
	"commission-app/internal/store/memstore"
)

var customer = users.Principal{UserID: 1, Role: users.RoleCustomer}

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

func (r *recorder) count(typ notify.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Type == typ {
			n++
		}
	}
	return n
}

type fixture struct {
	svc   *Service
	store *memstore.Store
	mock  *mockpay.Provider
	sent  *recorder
}

func setup(t *testing.T, opts mockpay.Options) fixture {
	t.Helper()
	st := memstore.New()
	mock := mockpay.New(opts)
	reg, err := gateway.NewRegistry(mockpay.Name, mock)
	require.NoError(t, err)
	rec := &recorder{}
	svc := NewService(st, reg, WithNotifier(notify.NewNotifier(rec)))

	require.NoError(t, st.Orders().Create(context.Background(), &orders.Order{
		ID:            "order-1",
		UserID:        customer.UserID,
		Status:        orders.StatusPending,
		SubtotalCents: 500,
		ShippingCents: 3000,
		TotalCents:    3500,
		Currency:      "TRY",
	}))
	return fixture{svc: svc, store: st, mock: mock, sent: rec}
}

func (f fixture) order(t *testing.T) *orders.Order {
	t.Helper()
	o, err := f.store.Orders().Get(context.Background(), "order-1")
	require.NoError(t, err)
	return o
}

func (f fixture) payment(t *testing.T, id string) *billing.Payment {
	t.Helper()
	p, err := f.store.Payments().Get(context.Background(), id)
	require.NoError(t, err)
	return p
}

func TestInitiate(t *testing.T) {
	f := setup(t, mockpay.Options{RedirectBase: "https://pay.example"})

	out, err := f.svc.Initiate(context.Background(), customer, InitiateInput{OrderID: "order-1", Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPending, out.Status)
	assert.Equal(t, "https://pay.example/"+out.PaymentID, out.RedirectURL)

	p := f.payment(t, out.PaymentID)
	assert.Equal(t, int64(3500), p.AmountCents)
	assert.Equal(t, "TRY", p.Currency)
	assert.Equal(t, mockpay.Name, p.Provider)
	assert.Equal(t, "mock_"+out.PaymentID, p.ProviderPaymentID)
}

func TestInitiateGuards(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "missing"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.Initiate(ctx, users.Principal{UserID: 2}, InitiateInput{OrderID: "order-1"})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1", Provider: "iyzico"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	_, err = f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Equal(t, apperr.CodeDuplicatePayment, apperr.CodeOf(err))
	assert.Equal(t, 1, f.mock.CallCount("initiate"))

	ok, err := f.store.Orders().Transition(ctx, "order-1", orders.StatusPending, orders.StatusCanceled)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	assert.Equal(t, apperr.CodeOrderNotPayable, apperr.CodeOf(err))
}

func TestInitiateProviderFailureLeavesPaymentFailed(t *testing.T) {
	f := setup(t, mockpay.Options{FailInitiate: true})
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindInternal))

	list, err := f.svc.ListForOrder(ctx, customer, "order-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, billing.StatusFailed, list[0].Status)
	require.NotNil(t, list[0].ErrorMessage)
	assert.Equal(t, orders.StatusPending, f.order(t).Status)

	f.mock.SetOptions(mockpay.Options{})
	_, err = f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	assert.NoError(t, err, "a failed attempt does not block a new one")
}

func TestInitiateImmediateSuccessPaysOrder(t *testing.T) {
	f := setup(t, mockpay.Options{ImmediateSuccess: true})

	out, err := f.svc.Initiate(context.Background(), customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusSuccess, out.Status)
	assert.Equal(t, orders.StatusPaid, f.order(t).Status)
	assert.Equal(t, 1, f.sent.count(notify.TypePaymentSucceeded))
}

func TestCallbackIsIdempotent(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()

	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	in := CallbackInput{OrderID: "order-1", PaymentID: out.PaymentID, Status: "success", TransactionID: "txn-1", Currency: "TRY"}

	first, err := f.svc.HandleCallback(ctx, in)
	require.NoError(t, err)
	assert.True(t, first.Processed)
	assert.Equal(t, billing.StatusSuccess, first.Status)
	assert.Equal(t, "txn-1", first.TransactionID)

	second, err := f.svc.HandleCallback(ctx, in)
	require.NoError(t, err)
	assert.False(t, second.Processed)
	assert.Equal(t, billing.StatusSuccess, second.Status)
	assert.Equal(t, "txn-1", second.TransactionID)

	assert.Equal(t, orders.StatusPaid, f.order(t).Status)
	assert.Equal(t, 1, f.sent.count(notify.TypePaymentSucceeded))
}

func TestConcurrentCallbacksProcessOnce(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()

	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success"})
			if err == nil && res.Processed {
				mu.Lock()
				processed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, processed)
	assert.Equal(t, orders.StatusPaid, f.order(t).Status)
}

func TestCallbackOutcomes(t *testing.T) {
	tests := []struct {
		status      string
		wantPayment billing.Status
		wantOrder   orders.Status
	}{
		{"success", billing.StatusSuccess, orders.StatusPaid},
		{"failed", billing.StatusFailed, orders.StatusFailed},
		{"cancelled", billing.StatusCanceled, orders.StatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			f := setup(t, mockpay.Options{})
			ctx := context.Background()
			out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
			require.NoError(t, err)

			res, err := f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: tt.status, ErrorMessage: "declined"})
			require.NoError(t, err)
			assert.True(t, res.Processed)
			assert.Equal(t, tt.wantPayment, f.payment(t, out.PaymentID).Status)
			assert.Equal(t, tt.wantOrder, f.order(t).Status)
		})
	}
}

func TestCallbackRejectsMismatches(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()
	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	wrong := int64(1)
	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success", AmountCents: &wrong})
	assert.Equal(t, apperr.CodeAmountMismatch, apperr.CodeOf(err))

	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success", Currency: "USD"})
	assert.Equal(t, apperr.CodeAmountMismatch, apperr.CodeOf(err))

	_, err = f.svc.HandleCallback(ctx, CallbackInput{OrderID: "order-2", PaymentID: out.PaymentID, Status: "success"})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: "nope", Status: "success"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Equal(t, billing.StatusPending, f.payment(t, out.PaymentID).Status)
	assert.Equal(t, orders.StatusPending, f.order(t).Status)
	assert.Zero(t, f.mock.CallCount("callback"))
}

func TestCallbackProviderErrorIsInternal(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()
	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	f.mock.SetOptions(mockpay.Options{FailCallback: true})
	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success"})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, billing.StatusPending, f.payment(t, out.PaymentID).Status)
}

func TestRefund(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()
	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, customer, RefundInput{PaymentID: out.PaymentID})
	assert.Equal(t, apperr.CodeNotRefundable, apperr.CodeOf(err))

	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success"})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, users.Principal{UserID: 2}, RefundInput{PaymentID: out.PaymentID})
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	tooMuch := int64(5000)
	_, err = f.svc.Refund(ctx, customer, RefundInput{PaymentID: out.PaymentID, AmountCents: &tooMuch})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	f.mock.SetOptions(mockpay.Options{FailRefund: true})
	_, err = f.svc.Refund(ctx, customer, RefundInput{PaymentID: out.PaymentID, Reason: "late"})
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Equal(t, billing.StatusSuccess, f.payment(t, out.PaymentID).Status)

	f.mock.SetOptions(mockpay.Options{})
	res, err := f.svc.Refund(ctx, customer, RefundInput{PaymentID: out.PaymentID, Reason: "late"})
	require.NoError(t, err)
	assert.Equal(t, "mock_refund_"+out.PaymentID, res.RefundID)
	assert.Equal(t, int64(3500), res.AmountCents)

	p := f.payment(t, out.PaymentID)
	assert.Equal(t, billing.StatusRefunded, p.Status)
	require.NotNil(t, p.RefundID)
	assert.Equal(t, orders.StatusRefunded, f.order(t).Status)
	assert.Equal(t, 1, f.sent.count(notify.TypePaymentRefunded))
}

func TestRetryAfterFailure(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()
	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	_, err = f.svc.Retry(ctx, customer, out.PaymentID)
	assert.Equal(t, apperr.CodeNotRetryable, apperr.CodeOf(err), "pending payments are not retried")

	_, err = f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "failed", ErrorMessage: "insufficient funds"})
	require.NoError(t, err)
	require.Equal(t, orders.StatusFailed, f.order(t).Status)

	_, err = f.svc.Retry(ctx, users.Principal{UserID: 2}, out.PaymentID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	retried, err := f.svc.Retry(ctx, customer, out.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, out.PaymentID, retried.PaymentID)
	assert.Equal(t, billing.StatusPending, retried.Status)
	assert.Equal(t, orders.StatusPending, f.order(t).Status)
	assert.Equal(t, 2, f.mock.CallCount("initiate"))

	res, err := f.svc.HandleCallback(ctx, CallbackInput{PaymentID: out.PaymentID, Status: "success"})
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, orders.StatusPaid, f.order(t).Status)
}

func TestGetChecksOwnership(t *testing.T) {
	f := setup(t, mockpay.Options{})
	ctx := context.Background()
	out, err := f.svc.Initiate(ctx, customer, InitiateInput{OrderID: "order-1"})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, users.Principal{UserID: 2}, out.PaymentID)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	p, err := f.svc.Get(ctx, users.Principal{UserID: 99, Role: users.RoleAdmin}, out.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, out.PaymentID, p.ID)
}
