// Package store persists user profiles and the append-only transaction log.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TxType is the kind of a recorded transaction.
type TxType string

// Transaction types.
const (
	TxSwap  TxType = "swap"
	TxStake TxType = "stake"
	TxLoan  TxType = "loan"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxSwap, TxStake, TxLoan:
		return true
	}
	return false
}

// User is a front-end user profile.
type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email         string    `gorm:"uniqueIndex;size:320" json:"email"`
	Country       string    `gorm:"size:64" json:"country,omitempty"`
	WalletAddress string    `gorm:"size:56;index" json:"wallet_address,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Transaction is one recorded swap, stake or loan. Rows are never updated.
type Transaction struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Type       TxType    `gorm:"size:16;index" json:"type"`
	AssetFrom  string    `gorm:"size:64" json:"asset_from"`
	AssetTo    string    `gorm:"size:64" json:"asset_to"`
	AmountFrom float64   `json:"amount_from"`
	AmountTo   float64   `json:"amount_to"`
	Currency   string    `gorm:"size:16" json:"currency"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

// AutoMigrate creates or updates the tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&User{}, &Transaction{})
}
