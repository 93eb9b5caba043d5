package models

import (
	"time"
)

// User represents a borrower identity keyed by wallet address
type User struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	WalletAddress string    `gorm:"uniqueIndex;not null" json:"wallet_address"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// CollateralAccount tracks a user's free (unlocked) collateral balance.
// Deposits credit it, loan requests move collateral out of it into the
// position, repayment releases it back.
type CollateralAccount struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	FreeBalance uint64    `gorm:"not null;default:0" json:"free_balance"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for CollateralAccount
func (CollateralAccount) TableName() string {
	return "collateral_accounts"
}
