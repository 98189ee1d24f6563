package drafting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commission-app/internal/apperr"
	"commission-app/internal/domain/drafts"
	"commission-app/internal/domain/users"
	"commission-app/internal/notify"
	"commission-app/internal/store"
	"commission-app/internal/txn"
)

// Workflow moves drafts through the preview/revision cycle.
type Workflow struct {
	deps
}

func NewWorkflow(st store.Store, opts ...Option) *Workflow {
	return &Workflow{deps: newDeps(st, opts)}
}

type ActionInput struct {
	Action drafts.Action `json:"action"`
	Notes  string        `json:"notes,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

type RevisionSummary struct {
	RevisionCount      int `json:"revision_count"`
	MaxRevisions       int `json:"max_revisions"`
	RemainingRevisions int `json:"remaining_revisions"`
}

type ActionResult struct {
	Draft    *drafts.Draft    `json:"draft"`
	Revision *RevisionSummary `json:"revision,omitempty"`
}

func summarize(d *drafts.Draft) *RevisionSummary {
	return &RevisionSummary{
		RevisionCount:      d.RevisionCount,
		MaxRevisions:       d.MaxRevisions,
		RemainingRevisions: d.RemainingRevisions(),
	}
}

// Dispatch runs one action of the workflow action interface.
func (w *Workflow) Dispatch(ctx context.Context, p users.Principal, draftID string, in ActionInput) (ActionResult, error) {
	switch in.Action {
	case drafts.ActionSendPreview:
		d, err := w.SendPreview(ctx, p, draftID, in.Notes)
		return ActionResult{Draft: d}, err
	case drafts.ActionRequestRevision:
		return w.RequestRevision(ctx, p, draftID, in.Notes)
	case drafts.ActionApprove:
		d, err := w.Approve(ctx, p, draftID)
		return ActionResult{Draft: d}, err
	case drafts.ActionCancel:
		d, err := w.Cancel(ctx, p, draftID, in.Reason)
		return ActionResult{Draft: d}, err
	default:
		return ActionResult{}, apperr.BadRequest(fmt.Sprintf("unknown workflow action %q", in.Action))
	}
}

func (w *Workflow) SendPreview(ctx context.Context, p users.Principal, draftID, notes string) (*drafts.Draft, error) {
	return w.transition(ctx, p, draftID, drafts.ActionSendPreview, func(d *drafts.Draft, now time.Time) (drafts.Payload, error) {
		d.Data = d.Data.Merge(drafts.Data{Preview: &drafts.PreviewNote{Notes: notes, SentAt: now}})
		return drafts.PreviewSent{Notes: notes, RevisionCount: d.RevisionCount}, nil
	})
}

func (w *Workflow) RequestRevision(ctx context.Context, p users.Principal, draftID, notes string) (ActionResult, error) {
	d, err := w.transition(ctx, p, draftID, drafts.ActionRequestRevision, func(d *drafts.Draft, now time.Time) (drafts.Payload, error) {
		if d.RevisionCount >= d.MaxRevisions {
			return nil, apperr.Validation(apperr.CodeRevisionLimit,
				fmt.Sprintf("revision limit reached: %d of %d revisions used", d.RevisionCount, d.MaxRevisions))
		}
		d.RevisionCount++
		d.Data = d.Data.Merge(drafts.Data{Revision: &drafts.RevisionNote{Number: d.RevisionCount, Notes: notes, RequestedAt: now}})
		return drafts.RevisionRequested{RevisionNumber: d.RevisionCount, MaxRevisions: d.MaxRevisions, Notes: notes}, nil
	})
	if err != nil {
		return ActionResult{}, err
	}
	return ActionResult{Draft: d, Revision: summarize(d)}, nil
}

func (w *Workflow) Approve(ctx context.Context, p users.Principal, draftID string) (*drafts.Draft, error) {
	return w.transition(ctx, p, draftID, drafts.ActionApprove, func(d *drafts.Draft, _ time.Time) (drafts.Payload, error) {
		return drafts.Approved{RevisionCount: d.RevisionCount}, nil
	})
}

// Cancel is a no-op on drafts that are already completed or canceled.
func (w *Workflow) Cancel(ctx context.Context, p users.Principal, draftID, reason string) (*drafts.Draft, error) {
	return w.transition(ctx, p, draftID, drafts.ActionCancel, func(d *drafts.Draft, now time.Time) (drafts.Payload, error) {
		from := d.WorkflowStatus
		d.Data = d.Data.Merge(drafts.Data{Cancellation: &drafts.Cancellation{Reason: reason, FromStatus: from, CanceledAt: now}})
		return drafts.Canceled{Reason: reason, FromStatus: from}, nil
	})
}

type applyFunc func(d *drafts.Draft, now time.Time) (drafts.Payload, error)

func authorize(p users.Principal, d *drafts.Draft, actor drafts.Actor) error {
	switch actor {
	case drafts.ActorDesigner:
		if !d.IsAssignedTo(p.UserID) {
			return apperr.Forbidden("only the assigned designer can do this")
		}
	default:
		if !d.IsOwnedBy(p.UserID) {
			return apperr.Forbidden("only the draft owner can do this")
		}
	}
	return nil
}

func (w *Workflow) transition(ctx context.Context, p users.Principal, draftID string, action drafts.Action, apply applyFunc) (*drafts.Draft, error) {
	tr, ok := drafts.TransitionFor(action)
	if !ok {
		return nil, apperr.BadRequest(fmt.Sprintf("unknown workflow action %q", action))
	}

	var (
		out     *drafts.Draft
		changed bool
	)
	err := w.store.InTx(ctx, txn.Default, func(ctx context.Context, tx store.Store) error {
		changed = false
		d, err := loadDraft(ctx, tx, draftID, true)
		if err != nil {
			return err
		}
		if err := authorize(p, d, tr.Actor); err != nil {
			return err
		}
		// Cancelling a closed draft is a no-op even after it was ordered.
		if action == drafts.ActionCancel && d.WorkflowStatus.IsTerminal() {
			out = d
			return nil
		}
		if d.IsCommitted() {
			return errCommitted()
		}

		from := d.WorkflowStatus
		next, err := drafts.Next(from, action)
		if err != nil {
			var illegal *drafts.IllegalTransitionError
			if errors.As(err, &illegal) {
				return apperr.Validation(apperr.CodeIllegalTransition, illegal.Error())
			}
			return err
		}

		now := w.clock()
		payload, err := apply(d, now)
		if err != nil {
			return err
		}
		d.WorkflowStatus = next

		ok, err := tx.Drafts().UpdateIfStatus(ctx, d, from)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Conflict(apperr.CodeConcurrentUpdate, "draft status changed concurrently")
		}

		ev, err := drafts.NewEvent(w.newID(), d.ID, p.UserID, now, payload)
		if err != nil {
			return err
		}
		if err := tx.Events().Append(ctx, ev); err != nil {
			return err
		}
		out, changed = d, true
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(fmt.Sprintf("%s draft", action), err)
	}

	if changed {
		slog.Info("draft workflow transition", "draft_id", out.ID, "action", action, "status", out.WorkflowStatus, "actor_id", p.UserID)
		w.notifyCounterpart(ctx, out, tr.Actor, action)
	}
	return out, nil
}

var actionNotifications = map[drafts.Action]notify.Type{
	drafts.ActionSendPreview:     notify.TypePreviewSent,
	drafts.ActionRequestRevision: notify.TypeRevisionRequested,
	drafts.ActionApprove:         notify.TypeDraftApproved,
	drafts.ActionCancel:          notify.TypeDraftCanceled,
}

// notifyCounterpart tells the designer about owner actions and the owner
// about designer actions.
func (w *Workflow) notifyCounterpart(ctx context.Context, d *drafts.Draft, actor drafts.Actor, action drafts.Action) {
	var to uint
	if actor == drafts.ActorDesigner {
		to = d.UserID
	} else {
		if d.AssignedDesignerID == nil {
			return
		}
		to = *d.AssignedDesignerID
	}
	notify.Deliver(ctx, w.notifier, notify.Notification{
		UserID: to,
		Type:   actionNotifications[action],
		Payload: map[string]any{
			"draft_id":        d.ID,
			"workflow_status": d.WorkflowStatus,
			"revision_count":  d.RevisionCount,
		},
	})
}

type RevisionEntry struct {
	Number      int       `json:"number"`
	Notes       string    `json:"notes,omitempty"`
	RequestedBy uint      `json:"requested_by"`
	RequestedAt time.Time `json:"requested_at"`
}

type RevisionDetails struct {
	CurrentRevision    int             `json:"current_revision"`
	MaxRevisions       int             `json:"max_revisions"`
	RemainingRevisions int             `json:"remaining_revisions"`
	History            []RevisionEntry `json:"history"`
}

// RevisionDetails rebuilds the revision history from revision_requested events.
func (w *Workflow) RevisionDetails(ctx context.Context, p users.Principal, draftID string) (RevisionDetails, error) {
	d, err := loadDraft(ctx, w.store, draftID, false)
	if err != nil {
		return RevisionDetails{}, apperr.Wrap("load draft", err)
	}
	if !canView(p, d) {
		return RevisionDetails{}, apperr.Forbidden("you do not have access to this draft")
	}

	events, err := w.store.Events().List(ctx, draftID, drafts.EventRevisionRequested)
	if err != nil {
		return RevisionDetails{}, apperr.Internal("load revision history", err)
	}

	out := RevisionDetails{MaxRevisions: d.MaxRevisions, History: make([]RevisionEntry, 0, len(events))}
	for _, ev := range events {
		body, err := drafts.DecodePayload[drafts.RevisionRequested](ev)
		if err != nil {
			return RevisionDetails{}, apperr.Internal("decode revision event", err)
		}
		out.History = append(out.History, RevisionEntry{
			Number:      body.RevisionNumber,
			Notes:       body.Notes,
			RequestedBy: ev.ActorID,
			RequestedAt: ev.OccurredAt,
		})
	}
	out.CurrentRevision = len(out.History)
	out.RemainingRevisions = max(out.MaxRevisions-out.CurrentRevision, 0)
	return out, nil
}

// History returns every workflow event of the draft, oldest first.
func (w *Workflow) History(ctx context.Context, p users.Principal, draftID string) ([]drafts.WorkflowEvent, error) {
	d, err := loadDraft(ctx, w.store, draftID, false)
	if err != nil {
		return nil, apperr.Wrap("load draft", err)
	}
	if !canView(p, d) {
		return nil, apperr.Forbidden("you do not have access to this draft")
	}
	events, err := w.store.Events().List(ctx, draftID)
	if err != nil {
		return nil, apperr.Internal("load workflow history", err)
	}
	return events, nil
}
