package cards

import "time"

// MessageCard is a sellable printed card; its price is the base price of a
// committed draft.
type MessageCard struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string `gorm:"not null" json:"name"`
	PriceCents int64  `gorm:"not null" json:"price_cents"`
	Currency   string `gorm:"type:varchar(3);not null;default:'TRY'" json:"currency"`
	Active     bool   `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
