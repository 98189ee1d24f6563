package drafting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

// MaxActiveDrafts caps the uncommitted, non-terminal drafts one designer holds.
const MaxActiveDrafts = 5

// Assigner binds designers to drafts. Every operation locks the draft first
// and the designer second.
type Assigner struct {
	deps
	capacity int
}

func NewAssigner(st store.Store, opts ...Option) *Assigner {
	return &Assigner{deps: newDeps(st, opts), capacity: MaxActiveDrafts}
}

type Workload struct {
	DesignerID uint  `json:"designer_id"`
	Active     int64 `json:"active"`
	Capacity   int   `json:"capacity"`
	Available  int64 `json:"available"`
}

// Workload reports how many active drafts the designer holds.
func (a *Assigner) Workload(ctx context.Context, p users.Principal, designerID uint) (Workload, error) {
	if !p.IsAdmin() && p.UserID != designerID {
		return Workload{}, apperr.Forbidden("only admins can see another designer's workload")
	}
	n, err := a.store.Drafts().CountActiveByDesigner(ctx, designerID)
	if err != nil {
		return Workload{}, apperr.Internal("count designer drafts", err)
	}
	return Workload{
		DesignerID: designerID,
		Active:     n,
		Capacity:   a.capacity,
		Available:  max(int64(a.capacity)-n, 0),
	}, nil
}

// Assign binds designerID to an unassigned draft. Admins assign anyone;
// designers may only claim drafts for themselves. Assigning the current
// designer again is a no-op.
func (a *Assigner) Assign(ctx context.Context, p users.Principal, draftID string, designerID uint) (*drafts.Draft, error) {
	if !p.IsAdmin() && !(p.IsDesigner() && p.UserID == designerID) {
		return nil, apperr.Forbidden("only admins can assign drafts to other designers")
	}

	var (
		out     *drafts.Draft
		changed bool
	)
	err := a.store.InTx(ctx, txn.Assignment, func(ctx context.Context, tx store.Store) error {
		changed = false
		d, err := a.lockAssignable(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if d.AssignedDesignerID != nil {
			if *d.AssignedDesignerID == designerID {
				out = d
				return nil
			}
			return apperr.Conflict(apperr.CodeAlreadyAssigned, "draft is already assigned to another designer")
		}
		if err := a.checkCapacity(ctx, tx, designerID); err != nil {
			return err
		}

		from := d.WorkflowStatus
		next := from
		if from == drafts.StatusPending {
			next = drafts.StatusInProgress
		}
		ok, err := tx.Drafts().SetAssignee(ctx, d.ID, nil, &designerID, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeAlreadyAssigned, "draft was assigned concurrently")
		}
		d.AssignedDesignerID = &designerID
		d.WorkflowStatus = next

		if err := a.appendEvent(ctx, tx, d.ID, p.UserID, drafts.Assigned{DesignerID: designerID, FromStatus: from, ToStatus: next}); err != nil {
			return err
		}
		out, changed = d, true
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap("assign draft", err)
	}

	if changed {
		slog.Info("draft assigned", "draft_id", out.ID, "designer_id", designerID, "actor_id", p.UserID)
		payload := map[string]any{"draft_id": out.ID, "designer_id": designerID}
		notify.Deliver(ctx, a.notifier, notify.Notification{UserID: designerID, Type: notify.TypeDraftAssigned, Payload: payload})
		notify.Deliver(ctx, a.notifier, notify.Notification{UserID: out.UserID, Type: notify.TypeDraftAssigned, Payload: payload})
	}
	return out, nil
}

// Unassign releases the draft's designer. Admins and the assigned designer
// may do this; an in-progress draft goes back to pending.
func (a *Assigner) Unassign(ctx context.Context, p users.Principal, draftID, reason string) (*drafts.Draft, error) {
	var (
		out      *drafts.Draft
		released uint
	)
	err := a.store.InTx(ctx, txn.Assignment, func(ctx context.Context, tx store.Store) error {
		released = 0
		d, err := loadDraft(ctx, tx, draftID, true)
		if err != nil {
			return err
		}
		if d.AssignedDesignerID == nil {
			if !p.IsAdmin() {
				return apperr.Forbidden("draft has no designer to release")
			}
			out = d
			return nil
		}
		if !p.IsAdmin() && !d.IsAssignedTo(p.UserID) {
			return apperr.Forbidden("only admins or the assigned designer can unassign")
		}
		if d.IsCommitted() {
			return errCommitted()
		}

		cur := *d.AssignedDesignerID
		next := d.WorkflowStatus
		if next == drafts.StatusInProgress {
			next = drafts.StatusPending
		}
		ok, err := tx.Drafts().SetAssignee(ctx, d.ID, &cur, nil, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft assignment changed concurrently")
		}
		d.AssignedDesignerID = nil
		d.WorkflowStatus = next

		if err := a.appendEvent(ctx, tx, d.ID, p.UserID, drafts.Unassigned{DesignerID: cur, Reason: reason}); err != nil {
			return err
		}
		out, released = d, cur
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap("unassign draft", err)
	}

	if released != 0 {
		slog.Info("draft unassigned", "draft_id", out.ID, "designer_id", released, "actor_id", p.UserID)
		notify.Deliver(ctx, a.notifier, notify.Notification{
			UserID:  released,
			Type:    notify.TypeDraftUnassigned,
			Payload: map[string]any{"draft_id": out.ID, "reason": reason},
		})
	}
	return out, nil
}

// Reassign moves an assigned draft to another designer. Admin only.
func (a *Assigner) Reassign(ctx context.Context, p users.Principal, draftID string, toDesignerID uint) (*drafts.Draft, error) {
	if !p.IsAdmin() {
		return nil, apperr.Forbidden("only admins can reassign drafts")
	}

	var (
		out  *drafts.Draft
		prev uint
	)
	err := a.store.InTx(ctx, txn.Assignment, func(ctx context.Context, tx store.Store) error {
		prev = 0
		d, err := a.lockAssignable(ctx, tx, draftID)
		if err != nil {
			return err
		}
		if d.AssignedDesignerID == nil {
			return apperr.BadRequest("draft has no designer yet; assign it instead")
		}
		cur := *d.AssignedDesignerID
		if cur == toDesignerID {
			out = d
			return nil
		}
		if err := a.checkCapacity(ctx, tx, toDesignerID); err != nil {
			return err
		}

		next := d.WorkflowStatus
		if next == drafts.StatusPending {
			next = drafts.StatusInProgress
		}
		ok, err := tx.Drafts().SetAssignee(ctx, d.ID, &cur, &toDesignerID, next)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft assignment changed concurrently")
		}
		d.AssignedDesignerID = &toDesignerID
		d.WorkflowStatus = next

		if err := a.appendEvent(ctx, tx, d.ID, p.UserID, drafts.Reassigned{FromDesignerID: cur, ToDesignerID: toDesignerID}); err != nil {
			return err
		}
		out, prev = d, cur
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap("reassign draft", err)
	}

	if prev != 0 {
		slog.Info("draft reassigned", "draft_id", out.ID, "from_designer_id", prev, "to_designer_id", toDesignerID)
		notify.Deliver(ctx, a.notifier, notify.Notification{
			UserID: prev, Type: notify.TypeDraftUnassigned,
			Payload: map[string]any{"draft_id": out.ID, "reason": "reassigned"},
		})
		notify.Deliver(ctx, a.notifier, notify.Notification{
			UserID: toDesignerID, Type: notify.TypeDraftAssigned,
			Payload: map[string]any{"draft_id": out.ID, "designer_id": toDesignerID},
		})
	}
	return out, nil
}

func (a *Assigner) lockAssignable(ctx context.Context, tx store.Store, draftID string) (*drafts.Draft, error) {
	d, err := loadDraft(ctx, tx, draftID, true)
	if err != nil {
		return nil, err
	}
	if d.IsCommitted() {
		return nil, errCommitted()
	}
	if d.WorkflowStatus.IsTerminal() {
		return nil, apperr.Validation(apperr.CodeIllegalTransition,
			fmt.Sprintf("cannot assign a draft in status %s", d.WorkflowStatus))
	}
	return d, nil
}

// checkCapacity claims the designer row before counting. Two assignments to
// the same designer conflict on that row and the loser is retried with a fresh
// count, so the cap holds under REPEATABLE READ.
func (a *Assigner) checkCapacity(ctx context.Context, tx store.Store, designerID uint) error {
	u, err := tx.Users().Lock(ctx, designerID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("designer not found")
	}
	if err != nil {
		return err
	}
	if u.Role != users.RoleDesigner {
		return apperr.BadRequest(fmt.Sprintf("user %d is not a designer", designerID))
	}
	n, err := tx.Drafts().CountActiveByDesigner(ctx, designerID)
	if err != nil {
		return err
	}
	if n >= int64(a.capacity) {
		return apperr.Validation(apperr.CodeWorkloadLimit,
			fmt.Sprintf("designer already has %d active drafts (limit %d)", n, a.capacity))
	}
	return nil
}

func (a *Assigner) appendEvent(ctx context.Context, tx store.Store, draftID string, actorID uint, p drafts.Payload) error {
	ev, err := drafts.NewEvent(a.newID(), draftID, actorID, a.clock(), p)
	if err != nil {
		return err
	}
	return tx.Events().Append(ctx, ev)
}
