package orders

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusRefunded Status = "refunded"
	StatusCanceled Status = "canceled"
)

type Order struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID uint   `gorm:"not null;index" json:"user_id"`
	Status Status `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	SubtotalCents int64  `gorm:"not null" json:"subtotal_cents"`
	ShippingCents int64  `gorm:"not null" json:"shipping_cents"`
	TotalCents    int64  `gorm:"not null" json:"total_cents"`
	Currency      string `gorm:"type:varchar(3);not null;default:'TRY'" json:"currency"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Order) IsOwnedBy(userID uint) bool { return o.UserID == userID }

func (o *Order) Clone() *Order {
	c := *o
	if o.Items != nil {
		c.Items = append([]OrderItem(nil), o.Items...)
	}
	return &c
}

// OrderItem is the single line of a committed draft.
type OrderItem struct {
	ID             string `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID        string `gorm:"type:uuid;not null;index" json:"order_id"`
	DraftID        string `gorm:"type:uuid;not null;uniqueIndex" json:"draft_id"`
	Description    string `gorm:"not null" json:"description"`
	Quantity       int    `gorm:"not null;default:1" json:"quantity"`
	UnitPriceCents int64  `gorm:"not null" json:"unit_price_cents"`
}

// BillingSnapshot is the billing party as it stood when the invoice was cut.
type BillingSnapshot struct {
	Type        string `json:"type,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
	TaxOffice   string `json:"tax_office,omitempty"`
	Email       string `json:"email,omitempty"`
	Address     string `json:"address,omitempty"`
	City        string `json:"city,omitempty"`
	Country     string `json:"country,omitempty"`
}

// Invoice is written once per order and never updated.
type Invoice struct {
	ID      string `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID string `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	UserID  uint   `gorm:"not null;index" json:"user_id"`
	Number  string `gorm:"type:varchar(40);not null;uniqueIndex" json:"number"`

	Billing datatypes.JSONType[BillingSnapshot] `gorm:"type:jsonb;not null" json:"billing"`

	SubtotalCents int64     `gorm:"not null" json:"subtotal_cents"`
	ShippingCents int64     `gorm:"not null" json:"shipping_cents"`
	TotalCents    int64     `gorm:"not null" json:"total_cents"`
	Currency      string    `gorm:"type:varchar(3);not null" json:"currency"`
	IssuedAt      time.Time `gorm:"not null" json:"issued_at"`
}
