package billing

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusRefunded   Status = "refunded"
)

// ActiveStatuses are the statuses covered by the one-active-payment-per-order guard.
var ActiveStatuses = []Status{StatusPending, StatusProcessing}

// Payment is one attempt to pay an order.
type Payment struct {
	ID                string `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID           string `gorm:"type:uuid;not null;index" json:"order_id"`
	UserID            uint   `gorm:"not null;index" json:"user_id"`
	Provider          string `gorm:"type:varchar(32);not null" json:"provider"`
	ProviderPaymentID string `gorm:"type:varchar(255);index" json:"provider_payment_id,omitempty"`
	Status            Status `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	AmountCents       int64  `gorm:"not null" json:"amount_cents"`
	Currency          string `gorm:"type:varchar(3);not null" json:"currency"`

	RedirectURL   *string           `json:"redirect_url,omitempty"`
	ReceiptURL    *string           `json:"receipt_url,omitempty"`
	TransactionID *string           `json:"transaction_id,omitempty"`
	RefundID      *string           `json:"refund_id,omitempty"`
	ErrorMessage  *string           `json:"error_message,omitempty"`
	ProviderData  datatypes.JSONMap `gorm:"type:jsonb" json:"provider_data,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *Payment) Clone() *Payment {
	c := *p
	if p.ProviderData != nil {
		c.ProviderData = make(datatypes.JSONMap, len(p.ProviderData))
		for k, v := range p.ProviderData {
			c.ProviderData[k] = v
		}
	}
	return &c
}

// Update carries the optional fields written alongside a status change.
type Update struct {
	ProviderPaymentID *string
	RedirectURL       *string
	ReceiptURL        *string
	TransactionID     *string
	RefundID          *string
	ErrorMessage      *string
	ProviderData      datatypes.JSONMap
}

// Apply copies the set fields of u onto p.
func (u Update) Apply(p *Payment) {
	if u.ProviderPaymentID != nil {
		p.ProviderPaymentID = *u.ProviderPaymentID
	}
	if u.RedirectURL != nil {
		p.RedirectURL = u.RedirectURL
	}
	if u.ReceiptURL != nil {
		p.ReceiptURL = u.ReceiptURL
	}
	if u.TransactionID != nil {
		p.TransactionID = u.TransactionID
	}
	if u.RefundID != nil {
		p.RefundID = u.RefundID
	}
	if u.ErrorMessage != nil {
		p.ErrorMessage = u.ErrorMessage
	}
	if u.ProviderData != nil {
		p.ProviderData = u.ProviderData
	}
}

// Columns returns the column map for a gorm Updates call.
func (u Update) Columns() map[string]any {
	cols := map[string]any{}
	if u.ProviderPaymentID != nil {
		cols["provider_payment_id"] = *u.ProviderPaymentID
	}
	if u.RedirectURL != nil {
		cols["redirect_url"] = *u.RedirectURL
	}
	if u.ReceiptURL != nil {
		cols["receipt_url"] = *u.ReceiptURL
	}
	if u.TransactionID != nil {
		cols["transaction_id"] = *u.TransactionID
	}
	if u.RefundID != nil {
		cols["refund_id"] = *u.RefundID
	}
	if u.ErrorMessage != nil {
		cols["error_message"] = *u.ErrorMessage
	}
	if u.ProviderData != nil {
		cols["provider_data"] = u.ProviderData
	}
	return cols
}
