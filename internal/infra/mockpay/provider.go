// Package mockpay is a deterministic payment provider for development and
// tests. Every outcome is chosen by Options or by the callback payload.
package mockpay

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"commission-app/internal/domain/billing"
	"commission-app/internal/gateway"
)

const Name = "mock"

type Options struct {
	// FailInitiate makes InitiatePayment return an error.
	FailInitiate bool
	// DeclineInitiate makes InitiatePayment report a failed payment.
	DeclineInitiate bool
	FailRefund      bool
	FailCallback    bool
	// ImmediateSuccess settles payments at initiation.
	ImmediateSuccess bool
	// RedirectBase, when set, yields RedirectBase + "/" + payment id.
	RedirectBase string
}

type Provider struct {
	mu    sync.Mutex
	opts  Options
	calls map[string]int
}

var _ gateway.Provider = (*Provider)(nil)

var ErrUnavailable = errors.New("mock provider unavailable")

func New(opts Options) *Provider {
	return &Provider{opts: opts, calls: map[string]int{}}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) SetOptions(opts Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
}

func (p *Provider) begin(method string) Options {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[method]++
	return p.opts
}

// CallCount reports how often initiate, callback or refund was invoked.
func (p *Provider) CallCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

func (p *Provider) InitiatePayment(_ context.Context, req gateway.InitiateRequest) (gateway.InitiateResult, error) {
	opts := p.begin("initiate")
	if opts.FailInitiate {
		return gateway.InitiateResult{}, ErrUnavailable
	}

	res := gateway.InitiateResult{
		ProviderPaymentID: "mock_" + req.PaymentID,
		Status:            billing.StatusPending,
		ProviderData:      map[string]any{"order_id": req.OrderID, "amount": req.AmountCents},
	}
	switch {
	case opts.DeclineInitiate:
		res.Status = billing.StatusFailed
		res.ProviderData["error"] = "card declined"
	case opts.ImmediateSuccess:
		res.Status = billing.StatusSuccess
	}
	if opts.RedirectBase != "" {
		res.RedirectURL = opts.RedirectBase + "/" + req.PaymentID
	}
	return res, nil
}

// ProcessCallback trusts the "status" field of the callback payload.
func (p *Provider) ProcessCallback(_ context.Context, req gateway.CallbackRequest) (gateway.CallbackResult, error) {
	opts := p.begin("callback")
	if opts.FailCallback {
		return gateway.CallbackResult{}, ErrUnavailable
	}

	status, _ := req.Data["status"].(string)
	res := gateway.CallbackResult{Status: gateway.CallbackStatus(status)}
	if _, ok := res.Status.PaymentStatus(); !ok {
		return gateway.CallbackResult{}, fmt.Errorf("mock callback: unknown status %q", status)
	}
	if v, ok := req.Data["transaction_id"].(string); ok {
		res.TransactionID = v
	}
	if v, ok := req.Data["error_message"].(string); ok {
		res.ErrorMessage = v
	}
	if res.Status == gateway.CallbackSuccess && res.TransactionID == "" {
		res.TransactionID = "mock_txn_" + req.PaymentID
	}
	return res, nil
}

func (p *Provider) RefundPayment(_ context.Context, req gateway.RefundRequest) (gateway.RefundResult, error) {
	opts := p.begin("refund")
	if opts.FailRefund {
		return gateway.RefundResult{}, ErrUnavailable
	}
	return gateway.RefundResult{
		RefundID:    "mock_refund_" + req.PaymentID,
		Status:      "succeeded",
		AmountCents: req.AmountCents,
	}, nil
}
