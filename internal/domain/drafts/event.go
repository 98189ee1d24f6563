package drafts

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type EventType string

const (
	EventAssigned          EventType = "draft_assigned"
	EventUnassigned        EventType = "draft_unassigned"
	EventReassigned        EventType = "draft_reassigned"
	EventPreviewSent       EventType = "preview_sent"
	EventRevisionRequested EventType = "revision_requested"
	EventApproved          EventType = "draft_approved"
	EventCanceled          EventType = "draft_canceled"
	EventCommitted         EventType = "draft_committed"
)

// WorkflowEvent is an append-only audit row keyed by (draft, type, time).
type WorkflowEvent struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	DraftID    string         `gorm:"type:uuid;not null;index:idx_workflow_events_draft_type_time,priority:1" json:"draft_id"`
	Type       EventType      `gorm:"type:varchar(40);not null;index:idx_workflow_events_draft_type_time,priority:2" json:"type"`
	ActorID    uint           `gorm:"not null" json:"actor_id"`
	OccurredAt time.Time      `gorm:"not null;index:idx_workflow_events_draft_type_time,priority:3" json:"occurred_at"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'" json:"payload"`
}

// Payload is implemented by every typed event body.
type Payload interface {
	EventType() EventType
}

type Assigned struct {
	DesignerID uint           `json:"designer_id"`
	FromStatus WorkflowStatus `json:"from_status"`
	ToStatus   WorkflowStatus `json:"to_status"`
}

func (Assigned) EventType() EventType { return EventAssigned }

type Unassigned struct {
	DesignerID uint   `json:"designer_id"`
	Reason     string `json:"reason,omitempty"`
}

func (Unassigned) EventType() EventType { return EventUnassigned }

type Reassigned struct {
	FromDesignerID uint `json:"from_designer_id"`
	ToDesignerID   uint `json:"to_designer_id"`
}

func (Reassigned) EventType() EventType { return EventReassigned }

type PreviewSent struct {
	Notes         string `json:"notes,omitempty"`
	RevisionCount int    `json:"revision_count"`
}

func (PreviewSent) EventType() EventType { return EventPreviewSent }

type RevisionRequested struct {
	RevisionNumber int    `json:"revision_number"`
	MaxRevisions   int    `json:"max_revisions"`
	Notes          string `json:"notes,omitempty"`
}

func (RevisionRequested) EventType() EventType { return EventRevisionRequested }

type Approved struct {
	RevisionCount int `json:"revision_count"`
}

func (Approved) EventType() EventType { return EventApproved }

type Canceled struct {
	Reason     string         `json:"reason,omitempty"`
	FromStatus WorkflowStatus `json:"from_status"`
}

func (Canceled) EventType() EventType { return EventCanceled }

type Committed struct {
	OrderID    string `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
}

func (Committed) EventType() EventType { return EventCommitted }

func NewEvent(id, draftID string, actorID uint, at time.Time, p Payload) (*WorkflowEvent, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.EventType(), err)
	}
	return &WorkflowEvent{
		ID:         id,
		DraftID:    draftID,
		Type:       p.EventType(),
		ActorID:    actorID,
		OccurredAt: at,
		Payload:    datatypes.JSON(raw),
	}, nil
}

// DecodePayload reads e's body as T, refusing events of another type.
func DecodePayload[T Payload](e WorkflowEvent) (T, error) {
	var out T
	if e.Type != out.EventType() {
		return out, fmt.Errorf("event %s is %s, not %s", e.ID, e.Type, out.EventType())
	}
	if len(e.Payload) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(e.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return out, nil
}
