package drafts

import (
	"fmt"
	"slices"
)

type WorkflowStatus string

const (
	StatusPending     WorkflowStatus = "PENDING"
	StatusInProgress  WorkflowStatus = "IN_PROGRESS"
	StatusPreviewSent WorkflowStatus = "PREVIEW_SENT"
	StatusRevision    WorkflowStatus = "REVISION"
	StatusCompleted   WorkflowStatus = "COMPLETED"
	StatusCanceled    WorkflowStatus = "CANCELED"
)

var AllStatuses = []WorkflowStatus{
	StatusPending, StatusInProgress, StatusPreviewSent, StatusRevision, StatusCompleted, StatusCanceled,
}

func (s WorkflowStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

type Action string

const (
	ActionSendPreview     Action = "sendPreview"
	ActionRequestRevision Action = "requestRevision"
	ActionApprove         Action = "approve"
	ActionCancel          Action = "cancel"
)

var AllActions = []Action{ActionSendPreview, ActionRequestRevision, ActionApprove, ActionCancel}

// Actor is the party a transition belongs to.
type Actor int

const (
	ActorOwner Actor = iota
	ActorDesigner
)

type Transition struct {
	From  []WorkflowStatus
	To    WorkflowStatus
	Actor Actor
	Event EventType
}

var transitions = map[Action]Transition{
	ActionSendPreview: {
		From:  []WorkflowStatus{StatusInProgress, StatusRevision},
		To:    StatusPreviewSent,
		Actor: ActorDesigner,
		Event: EventPreviewSent,
	},
	ActionRequestRevision: {
		From:  []WorkflowStatus{StatusPreviewSent},
		To:    StatusRevision,
		Actor: ActorOwner,
		Event: EventRevisionRequested,
	},
	ActionApprove: {
		From:  []WorkflowStatus{StatusPreviewSent},
		To:    StatusCompleted,
		Actor: ActorOwner,
		Event: EventApproved,
	},
	ActionCancel: {
		From:  []WorkflowStatus{StatusPending, StatusInProgress, StatusPreviewSent, StatusRevision},
		To:    StatusCanceled,
		Actor: ActorOwner,
		Event: EventCanceled,
	},
}

// IllegalTransitionError names the rejected (status, action) pair.
type IllegalTransitionError struct {
	From   WorkflowStatus
	Action Action
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal workflow transition: cannot %s a draft in status %s", e.Action, e.From)
}

func TransitionFor(a Action) (Transition, bool) {
	t, ok := transitions[a]
	return t, ok
}

// Next returns the status reached by applying action to from.
func Next(from WorkflowStatus, action Action) (WorkflowStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown workflow action %q", action)
	}
	if !slices.Contains(t.From, from) {
		return "", &IllegalTransitionError{From: from, Action: action}
	}
	return t.To, nil
}
