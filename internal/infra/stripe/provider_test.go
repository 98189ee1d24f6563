package stripe

import (
	"context"
	"errors"
	"testing"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commission-app/internal/domain/billing"
	"commission-app/internal/gateway"
)

type fakeIntents struct {
	created *stripeapi.PaymentIntentParams
	intent  *stripeapi.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	f.created = params
	return f.intent, f.err
}

func (f *fakeIntents) Get(_ string, _ *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	return f.intent, f.err
}

type fakeRefunds struct {
	params *stripeapi.RefundParams
}

func (f *fakeRefunds) New(params *stripeapi.RefundParams) (*stripeapi.Refund, error) {
	f.params = params
	return &stripeapi.Refund{ID: "re_1", Status: stripeapi.RefundStatusSucceeded, Amount: 3500}, nil
}

func TestNormalizeIntentStatus(t *testing.T) {
	tests := map[stripeapi.PaymentIntentStatus]billing.Status{
		stripeapi.PaymentIntentStatusSucceeded:             billing.StatusSuccess,
		stripeapi.PaymentIntentStatusProcessing:            billing.StatusProcessing,
		stripeapi.PaymentIntentStatusRequiresCapture:       billing.StatusProcessing,
		stripeapi.PaymentIntentStatusCanceled:              billing.StatusCanceled,
		stripeapi.PaymentIntentStatusRequiresPaymentMethod: billing.StatusPending,
		stripeapi.PaymentIntentStatusRequiresAction:        billing.StatusPending,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeIntentStatus(in), string(in))
	}
}

func TestInitiateSetsMetadataAndIdempotency(t *testing.T) {
	intents := &fakeIntents{intent: &stripeapi.PaymentIntent{
		ID:           "pi_1",
		Status:       stripeapi.PaymentIntentStatusRequiresPaymentMethod,
		ClientSecret: "secret",
	}}
	p := &Provider{intents: intents, refunds: &fakeRefunds{}}

	res, err := p.InitiatePayment(context.Background(), gateway.InitiateRequest{
		PaymentID:   "pay-1",
		OrderID:     "ord-1",
		AmountCents: 3500,
		Currency:    "TRY",
		Customer:    gateway.Customer{UserID: 9, Email: "a@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", res.ProviderPaymentID)
	assert.Equal(t, billing.StatusPending, res.Status)

	require.NotNil(t, intents.created)
	assert.Equal(t, "try", *intents.created.Currency)
	assert.Equal(t, int64(3500), *intents.created.Amount)
	assert.Equal(t, "payment-pay-1", *intents.created.IdempotencyKey)
	assert.Equal(t, "ord-1", intents.created.Metadata["order_id"])
	assert.Equal(t, "9", intents.created.Metadata["user_id"])
}

func TestProcessCallback(t *testing.T) {
	intents := &fakeIntents{intent: &stripeapi.PaymentIntent{
		ID:             "pi_1",
		Status:         stripeapi.PaymentIntentStatusSucceeded,
		AmountReceived: 3500,
		Metadata:       map[string]string{"payment_id": "pay-1"},
		LatestCharge:   &stripeapi.Charge{ID: "ch_1", ReceiptURL: "https://r"},
	}}
	p := &Provider{intents: intents, refunds: &fakeRefunds{}}

	res, err := p.ProcessCallback(context.Background(), gateway.CallbackRequest{PaymentID: "pay-1", ProviderPaymentID: "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, gateway.CallbackSuccess, res.Status)
	assert.Equal(t, "ch_1", res.TransactionID)
	assert.Equal(t, int64(3500), res.AmountCents)

	_, err = p.ProcessCallback(context.Background(), gateway.CallbackRequest{PaymentID: "pay-2", ProviderPaymentID: "pi_1"})
	assert.Error(t, err, "intent of another payment")

	intents.intent = &stripeapi.PaymentIntent{
		ID:               "pi_1",
		Status:           stripeapi.PaymentIntentStatusRequiresPaymentMethod,
		LastPaymentError: &stripeapi.Error{Msg: "card declined"},
	}
	res, err = p.ProcessCallback(context.Background(), gateway.CallbackRequest{PaymentID: "pay-1", ProviderPaymentID: "pi_1"})
	require.NoError(t, err)
	assert.Equal(t, gateway.CallbackFailed, res.Status)
	assert.Equal(t, "card declined", res.ErrorMessage)

	intents.intent = &stripeapi.PaymentIntent{ID: "pi_1", Status: stripeapi.PaymentIntentStatusRequiresAction}
	_, err = p.ProcessCallback(context.Background(), gateway.CallbackRequest{PaymentID: "pay-1", ProviderPaymentID: "pi_1"})
	assert.Error(t, err, "open intents are not settled")

	intents.err = errors.New("network")
	_, err = p.ProcessCallback(context.Background(), gateway.CallbackRequest{PaymentID: "pay-1", ProviderPaymentID: "pi_1"})
	assert.Error(t, err)
}

func TestRefund(t *testing.T) {
	refunds := &fakeRefunds{}
	p := &Provider{intents: &fakeIntents{}, refunds: refunds}

	res, err := p.RefundPayment(context.Background(), gateway.RefundRequest{
		PaymentID: "pay-1", ProviderPaymentID: "pi_1", Reason: "customer changed mind",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.RefundID)
	assert.Equal(t, "succeeded", res.Status)
	assert.Nil(t, refunds.params.Amount, "full refund")
	assert.Equal(t, "customer changed mind", refunds.params.Metadata["reason"])
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(" ")
	assert.Error(t, err)
}
