package credits

import "time"

type TxType string

const (
	TxSpend    TxType = "spend"
	TxRefund   TxType = "refund"
	TxPurchase TxType = "purchase"
	TxGift     TxType = "gift"
)

func (t TxType) Valid() bool {
	switch t {
	case TxSpend, TxRefund, TxPurchase, TxGift:
		return true
	}
	return false
}

const (
	WelcomeBonus     = 500
	WelcomeBonusNote = "Welcome bonus"
)

// CreditWallet caches the running sum of a user's ledger.
type CreditWallet struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreditTransaction struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Delta     int64     `gorm:"not null" json:"delta"`
	Type      TxType    `gorm:"type:varchar(16);not null" json:"type"`
	Note      *string   `json:"note,omitempty"`
	RefID     *string   `gorm:"index" json:"ref_id,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TypeTotal is one row of the ledger grouped by type.
type TypeTotal struct {
	Type  TxType
	Sum   int64
	Count int64
}
