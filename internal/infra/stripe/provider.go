// Package stripe implements the payment gateway on top of Stripe
// PaymentIntents.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/paymentintent"
	"github.com/stripe/stripe-go/v75/refund"

	"commission-app/internal/gateway"
)

const Name = "stripe"

type intentAPI interface {
	New(params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
	Get(id string, params *stripeapi.PaymentIntentParams) (*stripeapi.PaymentIntent, error)
}

type refundAPI interface {
	New(params *stripeapi.RefundParams) (*stripeapi.Refund, error)
}

type Provider struct {
	intents intentAPI
	refunds refundAPI
}

var _ gateway.Provider = (*Provider)(nil)

func New(secretKey string) (*Provider, error) {
	if strings.TrimSpace(secretKey) == "" {
		return nil, errors.New("STRIPE_SECRET_KEY not configured")
	}
	backend := stripeapi.GetBackend(stripeapi.APIBackend)
	return &Provider{
		intents: &paymentintent.Client{B: backend, Key: secretKey},
		refunds: &refund.Client{B: backend, Key: secretKey},
	}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) InitiatePayment(ctx context.Context, req gateway.InitiateRequest) (gateway.InitiateResult, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(req.AmountCents),
		Currency: stripeapi.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripeapi.String(req.Customer.Email)
	}
	if req.ReturnURL != "" {
		params.ReturnURL = stripeapi.String(req.ReturnURL)
	}
	params.Context = ctx
	params.SetIdempotencyKey("payment-" + req.PaymentID)
	params.AddMetadata("payment_id", req.PaymentID)
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("user_id", strconv.FormatUint(uint64(req.Customer.UserID), 10))

	pi, err := p.intents.New(params)
	if err != nil {
		return gateway.InitiateResult{}, fmt.Errorf("create payment intent: %w", err)
	}

	res := gateway.InitiateResult{
		ProviderPaymentID: pi.ID,
		Status:            NormalizeIntentStatus(pi.Status),
		ProviderData: map[string]any{
			"client_secret": pi.ClientSecret,
			"intent_status": string(pi.Status),
		},
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		res.RedirectURL = pi.NextAction.RedirectToURL.URL
	}
	return res, nil
}

// ProcessCallback re-reads the intent from Stripe instead of trusting the
// callback body.
func (p *Provider) ProcessCallback(ctx context.Context, req gateway.CallbackRequest) (gateway.CallbackResult, error) {
	if req.ProviderPaymentID == "" {
		return gateway.CallbackResult{}, errors.New("callback carries no payment intent id")
	}

	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	pi, err := p.intents.Get(req.ProviderPaymentID, params)
	if err != nil {
		return gateway.CallbackResult{}, fmt.Errorf("fetch payment intent %s: %w", req.ProviderPaymentID, err)
	}
	if id := pi.Metadata["payment_id"]; id != "" && id != req.PaymentID {
		return gateway.CallbackResult{}, fmt.Errorf("payment intent %s belongs to payment %s", pi.ID, id)
	}

	status, settled := callbackStatus(pi)
	if !settled {
		return gateway.CallbackResult{}, fmt.Errorf("payment intent %s is still %s", pi.ID, pi.Status)
	}

	res := gateway.CallbackResult{Status: status, AmountCents: pi.AmountReceived}
	if pi.LatestCharge != nil {
		res.TransactionID = pi.LatestCharge.ID
		res.ReceiptURL = pi.LatestCharge.ReceiptURL
	}
	if pi.LastPaymentError != nil {
		res.ErrorMessage = pi.LastPaymentError.Msg
	}
	if status != gateway.CallbackSuccess {
		res.AmountCents = 0
	}
	return res, nil
}

func (p *Provider) RefundPayment(ctx context.Context, req gateway.RefundRequest) (gateway.RefundResult, error) {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(req.ProviderPaymentID),
		Reason:        stripeapi.String(string(stripeapi.RefundReasonRequestedByCustomer)),
	}
	if req.AmountCents > 0 {
		params.Amount = stripeapi.Int64(req.AmountCents)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund-" + req.PaymentID)
	params.AddMetadata("payment_id", req.PaymentID)
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}

	r, err := p.refunds.New(params)
	if err != nil {
		return gateway.RefundResult{}, fmt.Errorf("create refund: %w", err)
	}
	return gateway.RefundResult{RefundID: r.ID, Status: string(r.Status), AmountCents: r.Amount}, nil
}
