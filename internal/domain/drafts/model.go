package drafts

import (
	"time"
)

type Method string

const (
	MethodUpload Method = "upload"
	MethodAI     Method = "ai"
	MethodArtist Method = "artist"
)

func (m Method) Valid() bool {
	switch m {
	case MethodUpload, MethodAI, MethodArtist:
		return true
	}
	return false
}

const (
	MinStep             = 1
	MaxStep             = 5
	DefaultMaxRevisions = 3
)

// Draft is one commission in progress. Once CommittedAt is set the draft is
// frozen: method, step, shipping, card and assignment can no longer change.
type Draft struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uint   `gorm:"not null;index" json:"user_id"`

	Method Method `gorm:"type:varchar(16)" json:"method,omitempty"`
	Step   int    `gorm:"not null;default:1" json:"step"`
	Data   Data   `gorm:"type:jsonb;not null;default:'{}'" json:"data"`

	MessageCardID *string           `gorm:"type:uuid" json:"message_card_id,omitempty"`
	Shipping      *ShippingSnapshot `gorm:"type:jsonb" json:"shipping,omitempty"`

	AssignedDesignerID *uint          `gorm:"index" json:"assigned_designer_id,omitempty"`
	WorkflowStatus     WorkflowStatus `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"workflow_status"`
	RevisionCount      int            `gorm:"not null;default:0" json:"revision_count"`
	MaxRevisions       int            `gorm:"not null;default:3" json:"max_revisions"`

	CommittedAt *time.Time `json:"committed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (d *Draft) IsCommitted() bool { return d.CommittedAt != nil }

func (d *Draft) IsOwnedBy(userID uint) bool { return d.UserID == userID }

func (d *Draft) IsAssignedTo(designerID uint) bool {
	return d.AssignedDesignerID != nil && *d.AssignedDesignerID == designerID
}

func (d *Draft) RemainingRevisions() int {
	if d.RevisionCount >= d.MaxRevisions {
		return 0
	}
	return d.MaxRevisions - d.RevisionCount
}

// Clone returns a deep copy that shares no pointers with d.
func (d *Draft) Clone() *Draft {
	c := *d
	if d.MessageCardID != nil {
		v := *d.MessageCardID
		c.MessageCardID = &v
	}
	if d.Shipping != nil {
		v := *d.Shipping
		c.Shipping = &v
	}
	if d.AssignedDesignerID != nil {
		v := *d.AssignedDesignerID
		c.AssignedDesignerID = &v
	}
	if d.CommittedAt != nil {
		v := *d.CommittedAt
		c.CommittedAt = &v
	}
	c.Data = d.Data.Clone()
	return &c
}
