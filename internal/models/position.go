package models

import (
	"time"
)

type PositionStatus string

const (
	PositionStatusActive     PositionStatus = "ACTIVE"
	PositionStatusRepaid     PositionStatus = "REPAID"
	PositionStatusLiquidated PositionStatus = "LIQUIDATED"
)

// Terminal reports whether the status admits no further transitions.
func (s PositionStatus) Terminal() bool {
	return s == PositionStatusRepaid || s == PositionStatusLiquidated
}

// Position is a single collateral/debt pair owned by one borrower. Rows are
// never deleted; settled positions are retained for audit. DebtAmount is the
// original principal — only full settlement is supported.
type Position struct {
	ID               uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	BorrowerID       uint           `gorm:"not null;index" json:"borrower_id"`
	BorrowerWallet   string         `gorm:"size:64;not null;index" json:"borrower_wallet"`
	CollateralAmount uint64         `gorm:"not null" json:"collateral_amount"`
	DebtAmount       uint64         `gorm:"not null" json:"debt_amount"`
	InterestRate     uint64         `gorm:"not null" json:"interest_rate"`
	OpenedAt         uint64         `gorm:"not null" json:"opened_at"`
	LastAccrualAt    uint64         `gorm:"not null" json:"last_accrual_at"`
	Status           PositionStatus `gorm:"size:20;not null;default:ACTIVE;index" json:"status"`
	CreatedAt        time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for Position
func (Position) TableName() string {
	return "positions"
}

// UserPositionIndex is one entry of a borrower's active-position index: a row
// per open position, bounded at the protocol capacity. Entries are removed
// exactly once, on repayment or liquidation of the referenced position.
type UserPositionIndex struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	PositionID uint      `gorm:"uniqueIndex;not null" json:"position_id"`
	CreatedAt  time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName specifies the table name for UserPositionIndex
func (UserPositionIndex) TableName() string {
	return "user_position_index"
}

// RequestLoanRequest represents a request to open a new position
type RequestLoanRequest struct {
	CollateralAmount uint64 `json:"collateral_amount" binding:"required,gt=0"`
	DebtAmount       uint64 `json:"debt_amount" binding:"required,gt=0"`
}

// RepayRequest represents a full settlement payment against a position
type RepayRequest struct {
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

// DepositRequest represents a collateral deposit backed by an on-chain transfer
type DepositRequest struct {
	Amount      uint64 `json:"amount" binding:"required,gt=0"`
	TxSignature string `json:"tx_signature"`
}

// WithdrawRequest represents a withdrawal of free (unlocked) collateral
type WithdrawRequest struct {
	Amount uint64 `json:"amount" binding:"required,gt=0"`
}

// PositionResponse represents a position in API responses, including the
// lazily computed amount currently owed.
type PositionResponse struct {
	ID               uint      `json:"id"`
	BorrowerWallet   string    `json:"borrower_wallet"`
	CollateralAmount uint64    `json:"collateral_amount"`
	DebtAmount       uint64    `json:"debt_amount"`
	InterestRate     uint64    `json:"interest_rate"`
	OpenedAt         uint64    `json:"opened_at"`
	LastAccrualAt    uint64    `json:"last_accrual_at"`
	Status           string    `json:"status"`
	InterestAccrued  uint64    `json:"interest_accrued"`
	TotalOwed        uint64    `json:"total_owed"`
	HealthRatio      *uint64   `json:"health_ratio,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
