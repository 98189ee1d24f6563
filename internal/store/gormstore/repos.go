package gormstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"commission-app/internal/domain/billing"
	"commission-app/internal/domain/cards"
	"commission-app/internal/domain/credits"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/orders"
	"commission-app/internal/domain/users"
	"commission-app/internal/store"
)

type userRepo struct{ db *gorm.DB }

func (r userRepo) Create(ctx context.Context, u *users.User) error {
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r userRepo) Get(ctx context.Context, id uint) (*users.User, error) {
	var u users.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Lock writes the row instead of SELECT ... FOR UPDATE. Under REPEATABLE READ
// a plain row lock on an unchanged row lets a second transaction proceed on
// its old snapshot once the first commits; the write makes it fail with
// 40001 so the runner retries it against fresh data.
func (r userRepo) Lock(ctx context.Context, id uint) (*users.User, error) {
	res := r.db.WithContext(ctx).Model(&users.User{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", gorm.Expr("now()"))
	if res.Error != nil {
		return nil, fmt.Errorf("lock user %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return nil, store.ErrNotFound
	}

	var u users.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

type cardRepo struct{ db *gorm.DB }

func (r cardRepo) Create(ctx context.Context, c *cards.MessageCard) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r cardRepo) Get(ctx context.Context, id string) (*cards.MessageCard, error) {
	var c cards.MessageCard
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r cardRepo) ListActive(ctx context.Context) ([]cards.MessageCard, error) {
	var out []cards.MessageCard
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("price_cents ASC").Find(&out).Error
	return out, translate(err)
}

type draftRepo struct{ db *gorm.DB }

func (r draftRepo) Create(ctx context.Context, d *drafts.Draft) error {
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

func (r draftRepo) Get(ctx context.Context, id string) (*drafts.Draft, error) {
	var d drafts.Draft
	if err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r draftRepo) Lock(ctx context.Context, id string) (*drafts.Draft, error) {
	var d drafts.Draft
	if err := r.db.WithContext(ctx).Clauses(lockForUpdate).First(&d, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &d, nil
}

func (r draftRepo) ListByUser(ctx context.Context, userID uint) ([]drafts.Draft, error) {
	var out []drafts.Draft
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

func (r draftRepo) ListByDesigner(ctx context.Context, designerID uint) ([]drafts.Draft, error) {
	var out []drafts.Draft
	err := r.db.WithContext(ctx).
		Where("assigned_designer_id = ?", designerID).
		Order("created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

func (r draftRepo) CountActiveByDesigner(ctx context.Context, designerID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&drafts.Draft{}).
		Where("assigned_designer_id = ? AND committed_at IS NULL", designerID).
		Where("workflow_status NOT IN ?", []drafts.WorkflowStatus{drafts.StatusCompleted, drafts.StatusCanceled}).
		Count(&n).Error
	return n, translate(err)
}

func (r draftRepo) Update(ctx context.Context, d *drafts.Draft) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&drafts.Draft{}).
		Where("id = ? AND committed_at IS NULL", d.ID).
		Updates(map[string]any{
			"method":          d.Method,
			"step":            d.Step,
			"data":            d.Data,
			"message_card_id": d.MessageCardID,
			"shipping":        d.Shipping,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update draft %s: %w", d.ID, translate(res.Error))
	}
	if res.RowsAffected == 1 {
		d.UpdatedAt = now
	}
	return res.RowsAffected == 1, nil
}

func (r draftRepo) UpdateIfStatus(ctx context.Context, d *drafts.Draft, expected drafts.WorkflowStatus) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&drafts.Draft{}).
		Where("id = ? AND workflow_status = ? AND committed_at IS NULL", d.ID, expected).
		Updates(map[string]any{
			"workflow_status": d.WorkflowStatus,
			"revision_count":  d.RevisionCount,
			"data":            d.Data,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("update draft %s workflow: %w", d.ID, translate(res.Error))
	}
	if res.RowsAffected == 1 {
		d.UpdatedAt = now
	}
	return res.RowsAffected == 1, nil
}

func (r draftRepo) SetAssignee(ctx context.Context, id string, expected, next *uint, status drafts.WorkflowStatus) (bool, error) {
	q := r.db.WithContext(ctx).Model(&drafts.Draft{}).Where("id = ? AND committed_at IS NULL", id)
	if expected == nil {
		q = q.Where("assigned_designer_id IS NULL")
	} else {
		q = q.Where("assigned_designer_id = ?", *expected)
	}

	var assignee any = gorm.Expr("NULL")
	if next != nil {
		assignee = *next
	}
	res := q.Updates(map[string]any{
		"assigned_designer_id": assignee,
		"workflow_status":      status,
		"updated_at":           time.Now().UTC(),
	})
	if res.Error != nil {
		return false, fmt.Errorf("set assignee of draft %s: %w", id, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

func (r draftRepo) MarkCommitted(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&drafts.Draft{}).
		Where("id = ? AND committed_at IS NULL", id).
		Updates(map[string]any{"committed_at": at, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("commit draft %s: %w", id, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

func (r draftRepo) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ? AND committed_at IS NULL", id).Delete(&drafts.Draft{})
	if res.Error != nil {
		return false, fmt.Errorf("delete draft %s: %w", id, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

type eventRepo struct{ db *gorm.DB }

func (r eventRepo) Append(ctx context.Context, e *drafts.WorkflowEvent) error {
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r eventRepo) List(ctx context.Context, draftID string, types ...drafts.EventType) ([]drafts.WorkflowEvent, error) {
	q := r.db.WithContext(ctx).Where("draft_id = ?", draftID)
	if len(types) > 0 {
		q = q.Where("type IN ?", types)
	}
	var out []drafts.WorkflowEvent
	err := q.Order("occurred_at ASC").Find(&out).Error
	return out, translate(err)
}

type orderRepo struct{ db *gorm.DB }

func (r orderRepo) Create(ctx context.Context, o *orders.Order) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

func (r orderRepo) Get(ctx context.Context, id string) (*orders.Order, error) {
	var o orders.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&o, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r orderRepo) FindByDraft(ctx context.Context, draftID string) (*orders.Order, error) {
	var item orders.OrderItem
	if err := r.db.WithContext(ctx).First(&item, "draft_id = ?", draftID).Error; err != nil {
		return nil, translate(err)
	}
	return r.Get(ctx, item.OrderID)
}

func (r orderRepo) Transition(ctx context.Context, id string, from, to orders.Status) (bool, error) {
	res := r.db.WithContext(ctx).Model(&orders.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("order %s %s->%s: %w", id, from, to, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

func (r orderRepo) CreateInvoice(ctx context.Context, inv *orders.Invoice) error {
	return translate(r.db.WithContext(ctx).Create(inv).Error)
}

func (r orderRepo) GetInvoice(ctx context.Context, orderID string) (*orders.Invoice, error) {
	var inv orders.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "order_id = ?", orderID).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

type paymentRepo struct{ db *gorm.DB }

func (r paymentRepo) Create(ctx context.Context, p *billing.Payment) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r paymentRepo) Get(ctx context.Context, id string) (*billing.Payment, error) {
	var p billing.Payment
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r paymentRepo) FindActiveForOrder(ctx context.Context, orderID string) (*billing.Payment, error) {
	var p billing.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, billing.ActiveStatuses).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r paymentRepo) ListForOrder(ctx context.Context, orderID string) ([]billing.Payment, error) {
	var out []billing.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&out).Error
	return out, translate(err)
}

func (r paymentRepo) Transition(ctx context.Context, id string, from []billing.Status, to billing.Status, u billing.Update) (bool, error) {
	cols := u.Columns()
	cols["status"] = to
	cols["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&billing.Payment{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(cols)
	if res.Error != nil {
		return false, fmt.Errorf("payment %s -> %s: %w", id, to, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

type creditRepo struct{ db *gorm.DB }

func (r creditRepo) GetWallet(ctx context.Context, userID uint) (*credits.CreditWallet, error) {
	var w credits.CreditWallet
	if err := r.db.WithContext(ctx).First(&w, "user_id = ?", userID).Error; err != nil {
		return nil, translate(err)
	}
	return &w, nil
}

func (r creditRepo) CreateWallet(ctx context.Context, w *credits.CreditWallet) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(w)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r creditRepo) Increment(ctx context.Context, userID uint, amount int64) error {
	w := credits.CreditWallet{UserID: userID, Balance: amount}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"balance":    gorm.Expr("credit_wallets.balance + ?", amount),
				"updated_at": time.Now().UTC(),
			}),
		}).
		Create(&w).Error
	if err != nil {
		return fmt.Errorf("increment wallet of user %d: %w", userID, translate(err))
	}
	return nil
}

func (r creditRepo) DecrementIfSufficient(ctx context.Context, userID uint, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&credits.CreditWallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("decrement wallet of user %d: %w", userID, translate(res.Error))
	}
	return res.RowsAffected == 1, nil
}

func (r creditRepo) AppendTransaction(ctx context.Context, t *credits.CreditTransaction) error {
	return translate(r.db.WithContext(ctx).Create(t).Error)
}

func (r creditRepo) ListTransactions(ctx context.Context, userID uint, limit, offset int) ([]credits.CreditTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []credits.CreditTransaction
	return out, translate(q.Find(&out).Error)
}

func (r creditRepo) TotalsByType(ctx context.Context, userID uint) ([]credits.TypeTotal, error) {
	var out []credits.TypeTotal
	err := r.db.WithContext(ctx).Model(&credits.CreditTransaction{}).
		Select("type, COALESCE(SUM(delta), 0) AS sum, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&out).Error
	return out, translate(err)
}

func (r creditRepo) SumDeltas(ctx context.Context, userID uint) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&credits.CreditTransaction{}).
		Select("COALESCE(SUM(delta), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error
	return sum, translate(err)
}
