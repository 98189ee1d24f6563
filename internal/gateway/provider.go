// Package gateway is the contract every payment provider implements, plus
// the registry the payment service resolves providers from.
package gateway

import (
	"context"
	"fmt"
	"sort"

	"commission-app/internal/domain/billing"
)

type Provider interface {
	Name() string
	InitiatePayment(ctx context.Context, req InitiateRequest) (InitiateResult, error)
	ProcessCallback(ctx context.Context, req CallbackRequest) (CallbackResult, error)
	RefundPayment(ctx context.Context, req RefundRequest) (RefundResult, error)
}

type Customer struct {
	UserID uint
	Name   string
	Email  string
	Phone  string
}

// Card is only forwarded to the provider; it is never stored.
type Card struct {
	HolderName  string
	Number      string
	ExpireMonth string
	ExpireYear  string
	CVC         string
}

type InitiateRequest struct {
	// PaymentID is the local payment id; providers use it as idempotency key.
	PaymentID   string
	OrderID     string
	AmountCents int64
	Currency    string
	Customer    Customer
	Method      string
	Card        *Card
	Billing     map[string]any
	ReturnURL   string
}

type InitiateResult struct {
	ProviderPaymentID string
	RedirectURL       string
	// Status is pending, processing, success or failed.
	Status       billing.Status
	ProviderData map[string]any
}

type CallbackRequest struct {
	OrderID           string
	PaymentID         string
	ProviderPaymentID string
	Data              map[string]any
}

type CallbackStatus string

const (
	CallbackSuccess   CallbackStatus = "success"
	CallbackFailed    CallbackStatus = "failed"
	CallbackCancelled CallbackStatus = "cancelled"
)

// PaymentStatus maps a callback outcome onto the stored payment status.
func (s CallbackStatus) PaymentStatus() (billing.Status, bool) {
	switch s {
	case CallbackSuccess:
		return billing.StatusSuccess, true
	case CallbackFailed:
		return billing.StatusFailed, true
	case CallbackCancelled:
		return billing.StatusCanceled, true
	}
	return "", false
}

type CallbackResult struct {
	Status        CallbackStatus
	TransactionID string
	ErrorMessage  string
	ReceiptURL    string
	// AmountCents is what the provider reports as captured; zero when unknown.
	AmountCents int64
}

type RefundRequest struct {
	PaymentID         string
	ProviderPaymentID string
	// AmountCents zero refunds the full amount.
	AmountCents int64
	Reason      string
}

type RefundResult struct {
	RefundID    string
	Status      string
	AmountCents int64
}

// Registry maps provider names to implementations and knows the default.
type Registry struct {
	providers map[string]Provider
	def       string
}

func NewRegistry(def string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers)), def: def}
	for _, p := range providers {
		if _, dup := r.providers[p.Name()]; dup {
			return nil, fmt.Errorf("payment provider %q registered twice", p.Name())
		}
		r.providers[p.Name()] = p
	}
	if _, ok := r.providers[def]; !ok {
		return nil, fmt.Errorf("default payment provider %q is not registered", def)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Resolve returns the named provider, or the default one for an empty name.
func (r *Registry) Resolve(name string) (Provider, bool) {
	if name == "" {
		name = r.def
	}
	return r.Get(name)
}

func (r *Registry) Default() string { return r.def }

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
