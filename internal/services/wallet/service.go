// Package wallet keeps the per-user credit balance and its append-only
// ledger in step: every balance change writes exactly one ledger row in the
// same unit of work.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/users"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

// AI generation prices by attempt number; later attempts cost the last entry.
var aiCostSchedule = []int64{100, 200, 300, 400}

func CalculateAICost(attempt int) int64 {
	if attempt <= 0 || attempt > len(aiCostSchedule) {
		return aiCostSchedule[len(aiCostSchedule)-1]
	}
	return aiCostSchedule[attempt-1]
}

type Service struct {
	store store.Store
	newID func() string
}

func NewService(s store.Store) *Service {
	return &Service{store: s, newID: uuid.NewString}
}

// Entry describes the ledger row written with a balance change.
type Entry struct {
	Type  credits.TxType
	Note  string
	RefID string
}

func (e Entry) transaction(id string, userID uint, delta int64) *credits.CreditTransaction {
	t := &credits.CreditTransaction{ID: id, UserID: userID, Delta: delta, Type: e.Type}
	if e.Note != "" {
		note := e.Note
		t.Note = &note
	}
	if e.RefID != "" {
		ref := e.RefID
		t.RefID = &ref
	}
	return t
}

func insufficient(balance, need int64) error {
	return apperr.Validation(apperr.CodeInsufficientCredits,
		fmt.Sprintf("Yetersiz kredi. Mevcut: %d, Gerekli: %d", balance, need))
}

func validate(amount int64, e Entry) error {
	if amount <= 0 {
		return apperr.BadRequest("amount must be positive")
	}
	if !e.Type.Valid() {
		return apperr.BadRequest(fmt.Sprintf("unknown credit transaction type %q", e.Type))
	}
	return nil
}

// ensureWallet creates the wallet with the welcome bonus if it is missing.
func (s *Service) ensureWallet(ctx context.Context, tx store.Store, userID uint) (*credits.CreditWallet, error) {
	w, err := tx.Credits().GetWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	w = &credits.CreditWallet{UserID: userID, Balance: credits.WelcomeBonus}
	created, err := tx.Credits().CreateWallet(ctx, w)
	if err != nil {
		return nil, err
	}
	if !created {
		return tx.Credits().GetWallet(ctx, userID)
	}
	gift := Entry{Type: credits.TxGift, Note: credits.WelcomeBonusNote}
	if err := tx.Credits().AppendTransaction(ctx, gift.transaction(s.newID(), userID, credits.WelcomeBonus)); err != nil {
		return nil, err
	}
	slog.Info("wallet created", "user_id", userID, "bonus", credits.WelcomeBonus)
	return w, nil
}

func (s *Service) GetOrCreateWallet(ctx context.Context, userID uint) (*credits.CreditWallet, error) {
	w, err := s.store.Credits().GetWallet(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Internal("load wallet", err)
	}

	err = s.store.InTx(ctx, txn.Ledger, func(ctx context.Context, tx store.Store) error {
		w, err = s.ensureWallet(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap("create wallet", err)
	}
	return w, nil
}

// Increase adds amount to the wallet, creating it with exactly that balance
// if it does not exist yet.
func (s *Service) Increase(ctx context.Context, userID uint, amount int64, e Entry) (*credits.CreditWallet, error) {
	if err := validate(amount, e); err != nil {
		return nil, err
	}

	var w *credits.CreditWallet
	err := s.store.InTx(ctx, txn.Ledger, func(ctx context.Context, tx store.Store) error {
		if err := tx.Credits().Increment(ctx, userID, amount); err != nil {
			return err
		}
		if err := tx.Credits().AppendTransaction(ctx, e.transaction(s.newID(), userID, amount)); err != nil {
			return err
		}
		var err error
		w, err = tx.Credits().GetWallet(ctx, userID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap("increase credits", err)
	}
	return w, nil
}

// Decrease removes amount from the wallet or fails without touching it when
// the balance does not cover it.
func (s *Service) Decrease(ctx context.Context, userID uint, amount int64, e Entry) (*credits.CreditWallet, error) {
	if err := validate(amount, e); err != nil {
		return nil, err
	}
	if _, err := s.GetOrCreateWallet(ctx, userID); err != nil {
		return nil, err
	}

	var w *credits.CreditWallet
	err := s.store.InTx(ctx, txn.Ledger, func(ctx context.Context, tx store.Store) error {
		cur, err := s.ensureWallet(ctx, tx, userID)
		if err != nil {
			return err
		}
		if cur.Balance < amount {
			return insufficient(cur.Balance, amount)
		}

		ok, err := tx.Credits().DecrementIfSufficient(ctx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			latest, err := tx.Credits().GetWallet(ctx, userID)
			if err != nil {
				return err
			}
			return insufficient(latest.Balance, amount)
		}

		if err := tx.Credits().AppendTransaction(ctx, e.transaction(s.newID(), userID, -amount)); err != nil {
			return err
		}
		w, err = tx.Credits().GetWallet(ctx, userID)
		return err
	})
	if err != nil {
		return nil, apperr.Wrap("decrease credits", err)
	}
	return w, nil
}

type ChargeResult struct {
	Charged          int64 `json:"charged"`
	RemainingBalance int64 `json:"remaining_balance"`
}

// ChargeForAIGeneration spends the price of the given attempt on draftID.
func (s *Service) ChargeForAIGeneration(ctx context.Context, userID uint, draftID string, attempt int) (ChargeResult, error) {
	cost := CalculateAICost(attempt)
	w, err := s.Decrease(ctx, userID, cost, Entry{
		Type:  credits.TxSpend,
		Note:  fmt.Sprintf("AI generation attempt %d", attempt),
		RefID: draftID,
	})
	if err != nil {
		return ChargeResult{}, err
	}
	return ChargeResult{Charged: cost, RemainingBalance: w.Balance}, nil
}

// RefundAIGeneration returns amount to the wallet. The caller passes what it
// actually charged.
func (s *Service) RefundAIGeneration(ctx context.Context, userID uint, draftID string, amount int64) (*credits.CreditWallet, error) {
	return s.Increase(ctx, userID, amount, Entry{
		Type:  credits.TxRefund,
		Note:  "AI generation refund",
		RefID: draftID,
	})
}

// Grant gifts credits to a user on behalf of an admin.
func (s *Service) Grant(ctx context.Context, p users.Principal, userID uint, amount int64, note string) (*credits.CreditWallet, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only admins can grant credits")
	}
	if _, err := s.store.Users().Get(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal("load user", err)
	}
	if note == "" {
		note = fmt.Sprintf("Granted by admin %d", p.UserID)
	}
	return s.Increase(ctx, userID, amount, Entry{Type: credits.TxGift, Note: note})
}

type Stats struct {
	Balance          int64                    `json:"balance"`
	TotalEarned      int64                    `json:"total_earned"`
	TotalSpent       int64                    `json:"total_spent"`
	TotalRefunded    int64                    `json:"total_refunded"`
	TransactionCount int64                    `json:"transaction_count"`
	CountByType      map[credits.TxType]int64 `json:"count_by_type"`
}

func (s *Service) Stats(ctx context.Context, userID uint) (Stats, error) {
	w, err := s.GetOrCreateWallet(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	totals, err := s.store.Credits().TotalsByType(ctx, userID)
	if err != nil {
		return Stats{}, apperr.Internal("load wallet stats", err)
	}

	st := Stats{Balance: w.Balance, CountByType: map[credits.TxType]int64{}}
	for _, t := range totals {
		st.CountByType[t.Type] = t.Count
		st.TransactionCount += t.Count
		switch t.Type {
		case credits.TxPurchase, credits.TxGift:
			st.TotalEarned += t.Sum
		case credits.TxSpend:
			st.TotalSpent += -t.Sum
		case credits.TxRefund:
			st.TotalRefunded += t.Sum
		}
	}
	return st, nil
}

const maxHistoryPage = 100

func (s *Service) History(ctx context.Context, userID uint, limit, offset int) ([]credits.CreditTransaction, error) {
	if limit <= 0 || limit > maxHistoryPage {
		limit = maxHistoryPage
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.store.Credits().ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperr.Internal("load credit history", err)
	}
	return out, nil
}
