// Package payments owns payment records: it drives the configured gateway
// and applies callback outcomes to the payment and its order atomically.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/gateway"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

type Service struct {
	store     store.Store
	providers *gateway.Registry
	notifier  *notify.Notifier
	returnURL string
	newID     func() string
}

type Option func(*Service)

func WithNotifier(n *notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

// WithReturnURL sets where providers send the customer after a redirect flow.
func WithReturnURL(u string) Option { return func(s *Service) { s.returnURL = u } }

func NewService(st store.Store, providers *gateway.Registry, opts ...Option) *Service {
	s := &Service{store: st, providers: providers, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

type InitiateInput struct {
	OrderID  string
	Provider string
	Method   string
	Card     *gateway.Card
	Billing  map[string]any
}

type InitiateOutput struct {
	PaymentID   string         `json:"payment_id"`
	RedirectURL string         `json:"redirect_url,omitempty"`
	Status      billing.Status `json:"status"`
}

func loadOrder(ctx context.Context, tx store.Store, id string) (*orders.Order, error) {
	o, err := tx.Orders().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("order not found")
	}
	return o, err
}

func loadPayment(ctx context.Context, tx store.Store, id string) (*billing.Payment, error) {
	p, err := tx.Payments().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("payment not found")
	}
	return p, err
}

func canAccess(p users.Principal, o *orders.Order) bool {
	return p.IsAdmin() || o.IsOwnedBy(p.UserID)
}

// Initiate records a pending payment for the order and hands it to the
// provider. At most one pending or processing payment exists per order.
func (s *Service) Initiate(ctx context.Context, p users.Principal, in InitiateInput) (InitiateOutput, error) {
	prov, ok := s.providers.Resolve(in.Provider)
	if !ok {
		return InitiateOutput{}, apperr.BadRequest(fmt.Sprintf("unknown payment provider %q", in.Provider))
	}

	var pay *billing.Payment
	var order *orders.Order
	err := s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
		var err error
		order, err = loadOrder(ctx, tx, in.OrderID)
		if err != nil {
			return err
		}
		if !order.IsOwnedBy(p.UserID) {
			return apperr.Forbidden("order belongs to another user")
		}
		if order.Status != orders.StatusPending {
			return apperr.Validation(apperr.CodeOrderNotPayable, fmt.Sprintf("order is %s, only pending orders can be paid", order.Status))
		}

		active, err := tx.Payments().FindActiveForOrder(ctx, order.ID)
		switch {
		case err == nil:
			return apperr.Conflict(apperr.CodeDuplicatePayment, fmt.Sprintf("payment %s is already %s for this order", active.ID, active.Status))
		case !errors.Is(err, store.ErrNotFound):
			return err
		}

		pay = &billing.Payment{
			ID:          s.newID(),
			OrderID:     order.ID,
			UserID:      order.UserID,
			Provider:    prov.Name(),
			Status:      billing.StatusPending,
			AmountCents: order.TotalCents,
			Currency:    order.Currency,
		}
		if err := tx.Payments().Create(ctx, pay); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Conflict(apperr.CodeDuplicatePayment, "a payment is already in progress for this order")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return InitiateOutput{}, apperr.Wrap("initiate payment", err)
	}

	slog.Info("payment created", "payment_id", pay.ID, "order_id", order.ID, "provider", prov.Name(), "amount", pay.AmountCents)
	return s.dispatch(ctx, prov, pay, s.initiateRequest(ctx, pay, in))
}

func (s *Service) initiateRequest(ctx context.Context, pay *billing.Payment, in InitiateInput) gateway.InitiateRequest {
	customer := gateway.Customer{UserID: pay.UserID}
	if u, err := s.store.Users().Get(ctx, pay.UserID); err == nil {
		customer.Name = u.FullName()
		customer.Email = u.Email
		customer.Phone = u.Tel
	}
	return gateway.InitiateRequest{
		PaymentID:   pay.ID,
		OrderID:     pay.OrderID,
		AmountCents: pay.AmountCents,
		Currency:    pay.Currency,
		Customer:    customer,
		Method:      in.Method,
		Card:        in.Card,
		Billing:     in.Billing,
		ReturnURL:   s.returnURL,
	}
}

// dispatch calls the provider for a pending payment and records the answer.
// A provider error leaves the payment failed, never pending.
func (s *Service) dispatch(ctx context.Context, prov gateway.Provider, pay *billing.Payment, req gateway.InitiateRequest) (InitiateOutput, error) {
	res, err := prov.InitiatePayment(ctx, req)
	if err != nil {
		slog.Error("payment provider initiation failed", "payment_id", pay.ID, "provider", prov.Name(), "err", err)
		msg := err.Error()
		failErr := s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
			_, err := tx.Payments().Transition(ctx, pay.ID, []billing.Status{billing.StatusPending}, billing.StatusFailed, billing.Update{ErrorMessage: &msg})
			return err
		})
		if failErr != nil {
			slog.Error("could not mark payment failed", "payment_id", pay.ID, "err", failErr)
		}
		return InitiateOutput{}, apperr.Internal("payment provider rejected the payment", err)
	}

	to := res.Status
	if to == "" {
		to = billing.StatusPending
	}
	if to != billing.StatusPending && !billing.CanTransition(billing.StatusPending, to) {
		return InitiateOutput{}, apperr.Internal("initiate payment", fmt.Errorf("provider %s answered with status %q", prov.Name(), to))
	}

	upd := billing.Update{ProviderPaymentID: &res.ProviderPaymentID, ProviderData: res.ProviderData}
	if res.RedirectURL != "" {
		upd.RedirectURL = &res.RedirectURL
	}

	out := InitiateOutput{PaymentID: pay.ID, RedirectURL: res.RedirectURL, Status: to}
	err = s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
		ok, err := tx.Payments().Transition(ctx, pay.ID, []billing.Status{billing.StatusPending}, to, upd)
		if err != nil {
			return err
		}
		if !ok {
			// A callback settled the payment first.
			cur, err := loadPayment(ctx, tx, pay.ID)
			if err != nil {
				return err
			}
			out.Status = cur.Status
			return nil
		}
		return settleOrder(ctx, tx, pay.OrderID, to)
	})
	if err != nil {
		return InitiateOutput{}, apperr.Wrap("record provider response", err)
	}
	s.notifyOutcome(ctx, pay, out.Status)
	return out, nil
}

// settleOrder moves a pending order along with a settled payment.
func settleOrder(ctx context.Context, tx store.Store, orderID string, payment billing.Status) error {
	var to orders.Status
	switch payment {
	case billing.StatusSuccess:
		to = orders.StatusPaid
	case billing.StatusFailed:
		to = orders.StatusFailed
	default:
		return nil
	}
	ok, err := tx.Orders().Transition(ctx, orderID, orders.StatusPending, to)
	if err != nil {
		return err
	}
	if !ok {
		slog.Warn("order was not pending when its payment settled", "order_id", orderID, "payment_status", payment)
	}
	return nil
}

func (s *Service) notifyOutcome(ctx context.Context, pay *billing.Payment, status billing.Status) {
	var typ notify.Type
	switch status {
	case billing.StatusSuccess:
		typ = notify.TypePaymentSucceeded
	case billing.StatusFailed:
		typ = notify.TypePaymentFailed
	case billing.StatusRefunded:
		typ = notify.TypePaymentRefunded
	default:
		return
	}
	notify.Deliver(ctx, s.notifier, notify.Notification{
		UserID:  pay.UserID,
		Type:    typ,
		Payload: map[string]any{"payment_id": pay.ID, "order_id": pay.OrderID, "amount_cents": pay.AmountCents},
	})
}

type CallbackInput struct {
	OrderID           string
	PaymentID         string
	ProviderPaymentID string
	Status            string
	TransactionID     string
	ErrorMessage      string
	AmountCents       *int64
	Currency          string
	Data              map[string]any
}

type CallbackOutput struct {
	Status        billing.Status `json:"status"`
	Processed     bool           `json:"processed"`
	TransactionID string         `json:"transaction_id,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// HandleCallback applies a provider notification. Replays are answered with
// Processed=false and change nothing.
func (s *Service) HandleCallback(ctx context.Context, in CallbackInput) (CallbackOutput, error) {
	pay, err := loadPayment(ctx, s.store, in.PaymentID)
	if err != nil {
		return CallbackOutput{}, apperr.Wrap("load payment", err)
	}
	if in.OrderID != "" && in.OrderID != pay.OrderID {
		return CallbackOutput{}, apperr.BadRequest("payment does not belong to this order")
	}
	if in.Currency != "" && !strings.EqualFold(in.Currency, pay.Currency) {
		return CallbackOutput{}, apperr.New(apperr.KindBadRequest, apperr.CodeAmountMismatch, "callback currency does not match the payment")
	}
	if in.AmountCents != nil && *in.AmountCents != pay.AmountCents {
		return CallbackOutput{}, apperr.New(apperr.KindBadRequest, apperr.CodeAmountMismatch, "callback amount does not match the payment")
	}
	if !pay.Status.IsActive() {
		return replayed(pay), nil
	}

	prov, ok := s.providers.Get(pay.Provider)
	if !ok {
		return CallbackOutput{}, apperr.Internal("handle callback", fmt.Errorf("provider %q is not registered", pay.Provider))
	}

	providerPaymentID := in.ProviderPaymentID
	if providerPaymentID == "" {
		providerPaymentID = pay.ProviderPaymentID
	}
	data := map[string]any{}
	for k, v := range in.Data {
		data[k] = v
	}
	data["status"] = in.Status
	if in.TransactionID != "" {
		data["transaction_id"] = in.TransactionID
	}
	if in.ErrorMessage != "" {
		data["error_message"] = in.ErrorMessage
	}

	res, err := prov.ProcessCallback(ctx, gateway.CallbackRequest{
		OrderID:           pay.OrderID,
		PaymentID:         pay.ID,
		ProviderPaymentID: providerPaymentID,
		Data:              data,
	})
	if err != nil {
		slog.Error("payment callback rejected by provider", "payment_id", pay.ID, "provider", pay.Provider, "err", err)
		return CallbackOutput{}, apperr.Internal("process payment callback", err)
	}
	if res.AmountCents > 0 && res.AmountCents != pay.AmountCents {
		return CallbackOutput{}, apperr.New(apperr.KindBadRequest, apperr.CodeAmountMismatch, "captured amount does not match the payment")
	}
	to, ok := res.Status.PaymentStatus()
	if !ok {
		return CallbackOutput{}, apperr.BadRequest(fmt.Sprintf("unknown callback status %q", res.Status))
	}

	upd := billing.Update{}
	if providerPaymentID != "" {
		upd.ProviderPaymentID = &providerPaymentID
	}
	if res.TransactionID != "" {
		upd.TransactionID = &res.TransactionID
	}
	if res.ErrorMessage != "" {
		upd.ErrorMessage = &res.ErrorMessage
	}
	if res.ReceiptURL != "" {
		upd.ReceiptURL = &res.ReceiptURL
	}

	out := CallbackOutput{Status: to, TransactionID: res.TransactionID, ErrorMessage: res.ErrorMessage}
	err = s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
		out.Processed = false
		ok, err := tx.Payments().Transition(ctx, pay.ID, billing.ActiveStatuses, to, upd)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := loadPayment(ctx, tx, pay.ID)
			if err != nil {
				return err
			}
			out = replayed(cur)
			return nil
		}
		out.Processed = true
		return settleOrder(ctx, tx, pay.OrderID, to)
	})
	if err != nil {
		return CallbackOutput{}, apperr.Wrap("apply payment callback", err)
	}

	if out.Processed {
		slog.Info("payment settled", "payment_id", pay.ID, "order_id", pay.OrderID, "status", to)
		s.notifyOutcome(ctx, pay, to)
	}
	return out, nil
}

func replayed(p *billing.Payment) CallbackOutput {
	out := CallbackOutput{Status: p.Status}
	if p.TransactionID != nil {
		out.TransactionID = *p.TransactionID
	}
	if p.ErrorMessage != nil {
		out.ErrorMessage = *p.ErrorMessage
	}
	return out
}

type RefundInput struct {
	PaymentID   string
	AmountCents *int64
	Reason      string
}

type RefundOutput struct {
	RefundID    string `json:"refund_id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

// Refund returns a successful payment through its provider, then marks the
// payment and its order refunded together.
func (s *Service) Refund(ctx context.Context, p users.Principal, in RefundInput) (RefundOutput, error) {
	pay, err := loadPayment(ctx, s.store, in.PaymentID)
	if err != nil {
		return RefundOutput{}, apperr.Wrap("load payment", err)
	}
	order, err := loadOrder(ctx, s.store, pay.OrderID)
	if err != nil {
		return RefundOutput{}, apperr.Wrap("load order", err)
	}
	if !canAccess(p, order) {
		return RefundOutput{}, apperr.Forbidden("payment belongs to another user")
	}
	if pay.Status != billing.StatusSuccess {
		return RefundOutput{}, apperr.Validation(apperr.CodeNotRefundable, fmt.Sprintf("payment is %s, only successful payments can be refunded", pay.Status))
	}

	amount := pay.AmountCents
	if in.AmountCents != nil {
		if *in.AmountCents <= 0 || *in.AmountCents > pay.AmountCents {
			return RefundOutput{}, apperr.BadRequest(fmt.Sprintf("refund amount must be between 1 and %d", pay.AmountCents))
		}
		amount = *in.AmountCents
	}

	prov, ok := s.providers.Get(pay.Provider)
	if !ok {
		return RefundOutput{}, apperr.Internal("refund payment", fmt.Errorf("provider %q is not registered", pay.Provider))
	}
	req := gateway.RefundRequest{PaymentID: pay.ID, ProviderPaymentID: pay.ProviderPaymentID, Reason: in.Reason}
	if amount != pay.AmountCents {
		req.AmountCents = amount
	}
	res, err := prov.RefundPayment(ctx, req)
	if err != nil {
		slog.Error("payment provider refund failed", "payment_id", pay.ID, "provider", pay.Provider, "err", err)
		return RefundOutput{}, apperr.Internal("refund payment", err)
	}
	if res.AmountCents == 0 {
		res.AmountCents = amount
	}

	err = s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
		ok, err := tx.Payments().Transition(ctx, pay.ID, []billing.Status{billing.StatusSuccess}, billing.StatusRefunded, billing.Update{RefundID: &res.RefundID})
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "payment changed during refund")
		}
		ok, err = tx.Orders().Transition(ctx, pay.OrderID, orders.StatusPaid, orders.StatusRefunded)
		if err != nil {
			return err
		}
		if !ok {
			slog.Warn("refunded payment's order was not paid", "order_id", pay.OrderID, "payment_id", pay.ID)
		}
		return nil
	})
	if err != nil {
		slog.Error("refund issued but not recorded", "payment_id", pay.ID, "refund_id", res.RefundID, "err", err)
		return RefundOutput{}, apperr.Wrap("record refund", err)
	}

	slog.Info("payment refunded", "payment_id", pay.ID, "refund_id", res.RefundID, "amount", res.AmountCents)
	s.notifyOutcome(ctx, pay, billing.StatusRefunded)
	return RefundOutput{RefundID: res.RefundID, Status: res.Status, AmountCents: res.AmountCents}, nil
}

// Retry reopens a failed or canceled payment and sends it to its provider again.
func (s *Service) Retry(ctx context.Context, p users.Principal, paymentID string) (InitiateOutput, error) {
	var pay *billing.Payment
	err := s.store.InTx(ctx, txn.Payment, func(ctx context.Context, tx store.Store) error {
		var err error
		pay, err = loadPayment(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		order, err := loadOrder(ctx, tx, pay.OrderID)
		if err != nil {
			return err
		}
		if !order.IsOwnedBy(p.UserID) {
			return apperr.Forbidden("payment belongs to another user")
		}
		if !billing.CanTransition(pay.Status, billing.StatusPending) {
			return apperr.Validation(apperr.CodeNotRetryable, fmt.Sprintf("payment is %s and cannot be retried", pay.Status))
		}
		if order.Status == orders.StatusFailed {
			if _, err := tx.Orders().Transition(ctx, order.ID, orders.StatusFailed, orders.StatusPending); err != nil {
				return err
			}
		} else if order.Status != orders.StatusPending {
			return apperr.Validation(apperr.CodeOrderNotPayable, fmt.Sprintf("order is %s, only pending orders can be paid", order.Status))
		}

		empty := ""
		ok, err := tx.Payments().Transition(ctx, pay.ID, []billing.Status{pay.Status}, billing.StatusPending, billing.Update{ErrorMessage: &empty})
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.Conflict(apperr.CodeDuplicatePayment, "another payment is already in progress for this order")
		}
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "payment changed while retrying")
		}
		pay.Status = billing.StatusPending
		return nil
	})
	if err != nil {
		return InitiateOutput{}, apperr.Wrap("retry payment", err)
	}

	prov, ok := s.providers.Get(pay.Provider)
	if !ok {
		return InitiateOutput{}, apperr.Internal("retry payment", fmt.Errorf("provider %q is not registered", pay.Provider))
	}
	slog.Info("payment retried", "payment_id", pay.ID, "order_id", pay.OrderID)
	return s.dispatch(ctx, prov, pay, s.initiateRequest(ctx, pay, InitiateInput{}))
}

func (s *Service) Get(ctx context.Context, p users.Principal, id string) (*billing.Payment, error) {
	pay, err := loadPayment(ctx, s.store, id)
	if err != nil {
		return nil, apperr.Wrap("load payment", err)
	}
	if !p.IsAdmin() && pay.UserID != p.UserID {
		return nil, apperr.Forbidden("payment belongs to another user")
	}
	return pay, nil
}

func (s *Service) ListForOrder(ctx context.Context, p users.Principal, orderID string) ([]billing.Payment, error) {
	order, err := loadOrder(ctx, s.store, orderID)
	if err != nil {
		return nil, apperr.Wrap("load order", err)
	}
	if !canAccess(p, order) {
		return nil, apperr.Forbidden("order belongs to another user")
	}
	out, err := s.store.Payments().ListForOrder(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal("list payments", err)
	}
	return out, nil
}
