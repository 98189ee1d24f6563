// Package checkout turns a finished draft into a payable order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

const (
	DefaultShippingCents int64 = 3000
	DefaultCurrency            = "TRY"
)

const (
	MissingMethod      = "creation method"
	MissingMessageCard = "message card"
	MissingShipping    = "shipping information"
	MissingApproval    = "approved design"
)

type Service struct {
	store     store.Store
	notifier  *notify.Notifier
	shipments *notify.ShipmentRegistrar

	shippingCents int64
	currency      string
	newID         func() string
	now           func() time.Time
}

type Option func(*Service)

func WithNotifier(n *notify.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithShipments(r *notify.ShipmentRegistrar) Option { return func(s *Service) { s.shipments = r } }

func WithShippingCost(cents int64) Option { return func(s *Service) { s.shippingCents = cents } }

func WithCurrency(code string) Option { return func(s *Service) { s.currency = code } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:         st,
		shippingCents: DefaultShippingCents,
		currency:      DefaultCurrency,
		newID:         uuid.NewString,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Readiness explains whether a draft can be committed and what it lacks.
type Readiness struct {
	Ready   bool     `json:"ready"`
	Missing []string `json:"missing,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// CanCommit reports whether d has everything an order needs: a creation
// method, a card and shipping. Artist drafts additionally need an approved
// design.
func CanCommit(d *drafts.Draft) Readiness {
	if d.IsCommitted() {
		return Readiness{Reason: "draft is already committed"}
	}
	if d.WorkflowStatus == drafts.StatusCanceled {
		return Readiness{Reason: "draft is canceled"}
	}

	var missing []string
	if d.Method == "" {
		missing = append(missing, MissingMethod)
	}
	if d.MessageCardID == nil {
		missing = append(missing, MissingMessageCard)
	}
	if d.Shipping == nil {
		missing = append(missing, MissingShipping)
	}
	if d.Method == drafts.MethodArtist && d.WorkflowStatus != drafts.StatusCompleted {
		missing = append(missing, MissingApproval)
	}
	if len(missing) > 0 {
		return Readiness{Missing: missing, Reason: "missing " + strings.Join(missing, ", ")}
	}
	return Readiness{Ready: true}
}

type Quote struct {
	CardCents     int64  `json:"card_cents"`
	ShippingCents int64  `json:"shipping_cents"`
	TotalCents    int64  `json:"total_cents"`
	Currency      string `json:"currency"`
}

func (s *Service) quote(card *cards.MessageCard) Quote {
	cur := card.Currency
	if cur == "" {
		cur = s.currency
	}
	return Quote{
		CardCents:     card.PriceCents,
		ShippingCents: s.shippingCents,
		TotalCents:    card.PriceCents + s.shippingCents,
		Currency:      cur,
	}
}

// Status is what the client shows before the commit button.
type Status struct {
	Readiness
	Quote   *Quote `json:"quote,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

func (s *Service) Status(ctx context.Context, p users.Principal, draftID string) (Status, error) {
	d, err := s.loadOwned(ctx, s.store, p, draftID, false)
	if err != nil {
		return Status{}, apperr.Wrap("load draft", err)
	}

	out := Status{Readiness: CanCommit(d)}
	if d.IsCommitted() {
		if o, err := s.store.Orders().FindByDraft(ctx, d.ID); err == nil {
			out.OrderID = o.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			return Status{}, apperr.Internal("load order", err)
		}
	}
	if d.MessageCardID != nil {
		card, err := s.store.Cards().Get(ctx, *d.MessageCardID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return Status{}, apperr.Internal("load message card", err)
		}
		if card != nil {
			q := s.quote(card)
			out.Quote = &q
		}
	}
	return out, nil
}

func (s *Service) Quote(ctx context.Context, p users.Principal, draftID string) (Quote, error) {
	d, err := s.loadOwned(ctx, s.store, p, draftID, false)
	if err != nil {
		return Quote{}, apperr.Wrap("load draft", err)
	}
	if d.MessageCardID == nil {
		return Quote{}, apperr.Validation(apperr.CodeNotReady, "pick a message card to get a price")
	}
	card, err := s.card(ctx, s.store, *d.MessageCardID)
	if err != nil {
		return Quote{}, apperr.Wrap("load message card", err)
	}
	return s.quote(card), nil
}

// CommitInput carries billing and carrier details the client may attach at
// commit time. They override what is already on the draft.
type CommitInput struct {
	Billing *drafts.BillingInfo `json:"billing,omitempty"`
	Carrier *drafts.CarrierInfo `json:"carrier,omitempty"`
}

type CommitResult struct {
	Order   *orders.Order   `json:"order"`
	Invoice *orders.Invoice `json:"invoice,omitempty"`
}

// Commit freezes the draft and creates its order in one unit. The invoice is
// written in a savepoint; losing it never undoes the order.
func (s *Service) Commit(ctx context.Context, p users.Principal, draftID string, in CommitInput) (CommitResult, error) {
	var (
		res   CommitResult
		draft *drafts.Draft
	)
	err := s.store.InTx(ctx, txn.Commit, func(ctx context.Context, tx store.Store) error {
		res, draft = CommitResult{}, nil
		d, err := s.loadOwned(ctx, tx, p, draftID, true)
		if err != nil {
			return err
		}
		if d.IsCommitted() {
			return apperr.Validation(apperr.CodeAlreadyCommitted, "draft is already committed")
		}
		d.Data = d.Data.Merge(drafts.Data{Billing: in.Billing, Carrier: in.Carrier})
		if r := CanCommit(d); !r.Ready {
			return apperr.Validation(apperr.CodeNotReady, "draft is not ready to commit: "+r.Reason)
		}

		card, err := s.card(ctx, tx, *d.MessageCardID)
		if err != nil {
			return err
		}
		q := s.quote(card)
		now := s.now().UTC()

		order := &orders.Order{
			ID:            s.newID(),
			UserID:        d.UserID,
			Status:        orders.StatusPending,
			SubtotalCents: q.CardCents,
			ShippingCents: q.ShippingCents,
			TotalCents:    q.TotalCents,
			Currency:      q.Currency,
		}
		order.Items = []orders.OrderItem{{
			ID:             s.newID(),
			OrderID:        order.ID,
			DraftID:        d.ID,
			Description:    fmt.Sprintf("Custom %s design with %s card", d.Method, card.Name),
			Quantity:       1,
			UnitPriceCents: q.CardCents,
		}}
		if err := tx.Orders().Create(ctx, order); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.Validation(apperr.CodeAlreadyCommitted, "draft already has an order")
			}
			return err
		}

		if in.Billing != nil || in.Carrier != nil {
			if ok, err := tx.Drafts().Update(ctx, d); err != nil {
				return err
			} else if !ok {
				return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft changed concurrently")
			}
		}
		ok, err := tx.Drafts().MarkCommitted(ctx, d.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation(apperr.CodeAlreadyCommitted, "draft is already committed")
		}
		d.CommittedAt = &now

		ev, err := drafts.NewEvent(s.newID(), d.ID, p.UserID, now, drafts.Committed{OrderID: order.ID, TotalCents: order.TotalCents})
		if err != nil {
			return err
		}
		if err := tx.Events().Append(ctx, ev); err != nil {
			return err
		}

		if d.Data.Billing != nil {
			inv := s.invoice(order, d.Data.Billing, now)
			err := tx.InTx(ctx, txn.Commit, func(ctx context.Context, sp store.Store) error {
				return sp.Orders().CreateInvoice(ctx, inv)
			})
			if err != nil {
				slog.Warn("invoice snapshot not created", "order_id", order.ID, "draft_id", d.ID, "err", err)
			} else {
				res.Invoice = inv
			}
		}

		res.Order, draft = order, d
		return nil
	})
	if err != nil {
		return CommitResult{}, apperr.Wrap("commit draft", err)
	}

	slog.Info("draft committed", "draft_id", draft.ID, "order_id", res.Order.ID, "total_cents", res.Order.TotalCents)
	s.afterCommit(ctx, draft, res.Order)
	return res, nil
}

func (s *Service) afterCommit(ctx context.Context, d *drafts.Draft, o *orders.Order) {
	if c := d.Data.Carrier; c != nil && s.shipments != nil && d.Shipping != nil {
		err := s.shipments.Register(ctx, notify.ShipmentRequest{
			OrderID:     o.ID,
			DraftID:     d.ID,
			Carrier:     c.Carrier,
			ServiceCode: c.ServiceCode,
			Address:     shippingAddress(d.Shipping),
		})
		if err != nil {
			slog.Warn("shipment registration failed", "order_id", o.ID, "carrier", c.Carrier, "err", err)
		}
	}
	if d.AssignedDesignerID != nil {
		notify.Deliver(ctx, s.notifier, notify.Notification{
			UserID:  *d.AssignedDesignerID,
			Type:    notify.TypeDraftCommitted,
			Payload: map[string]any{"draft_id": d.ID, "order_id": o.ID},
		})
	}
}

func (s *Service) invoice(o *orders.Order, b *drafts.BillingInfo, at time.Time) *orders.Invoice {
	id := s.newID()
	return &orders.Invoice{
		ID:      id,
		OrderID: o.ID,
		UserID:  o.UserID,
		Number:  invoiceNumber(at, id),
		Billing: datatypes.NewJSONType(orders.BillingSnapshot{
			Type:        b.Type,
			FullName:    b.FullName,
			CompanyName: b.CompanyName,
			TaxID:       b.TaxID,
			TaxOffice:   b.TaxOffice,
			Email:       b.Email,
			Address:     b.Address,
			City:        b.City,
			Country:     b.Country,
		}),
		SubtotalCents: o.SubtotalCents,
		ShippingCents: o.ShippingCents,
		TotalCents:    o.TotalCents,
		Currency:      o.Currency,
		IssuedAt:      at,
	}
}

// invoiceNumber is INV-YYYYMMDD-XXXXXXXX with the first eight id characters.
func invoiceNumber(at time.Time, id string) string {
	suffix := strings.ReplaceAll(id, "-", "")
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "INV-" + at.Format("20060102") + "-" + strings.ToUpper(suffix)
}

func shippingAddress(a *drafts.ShippingSnapshot) map[string]any {
	return map[string]any{
		"full_name":   a.FullName,
		"phone":       a.Phone,
		"line1":       a.Line1,
		"line2":       a.Line2,
		"district":    a.District,
		"city":        a.City,
		"postal_code": a.PostalCode,
		"country":     a.Country,
	}
}

func (s *Service) loadOwned(ctx context.Context, st store.Store, p users.Principal, id string, lock bool) (*drafts.Draft, error) {
	var (
		d   *drafts.Draft
		err error
	)
	if lock {
		d, err = st.Drafts().Lock(ctx, id)
	} else {
		d, err = st.Drafts().Get(ctx, id)
	}
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("draft not found")
	}
	if err != nil {
		return nil, err
	}
	if !d.IsOwnedBy(p.UserID) {
		return nil, apperr.Forbidden("only the owner can commit this draft")
	}
	return d, nil
}

func (s *Service) card(ctx context.Context, st store.Store, id string) (*cards.MessageCard, error) {
	c, err := st.Cards().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("message card not found")
	}
	return c, err
}
