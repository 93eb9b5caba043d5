package models

import (
	"time"

	"github.com/google/uuid"
)

type LedgerEntryType string

const (
	LedgerEntryTypeDeposit  LedgerEntryType = "DEPOSIT"
	LedgerEntryTypeWithdraw LedgerEntryType = "WITHDRAW"
	LedgerEntryTypeLock     LedgerEntryType = "LOCK"
	LedgerEntryTypeRelease  LedgerEntryType = "RELEASE"
	LedgerEntryTypeForfeit  LedgerEntryType = "FORFEIT"
	LedgerEntryTypeRepay    LedgerEntryType = "REPAY"
)

// LedgerEntry is the audit record of one balance movement. Entries are
// append-only and never deleted.
type LedgerEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	PositionID  *uint           `gorm:"index" json:"position_id,omitempty"`
	EntryType   LedgerEntryType `gorm:"size:20;not null;index" json:"entry_type"`
	Amount      uint64          `gorm:"not null" json:"amount"`
	TxSignature *string         `gorm:"size:255" json:"tx_signature,omitempty"`
	CreatedAt   time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName specifies the table name for LedgerEntry
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry builds an audit row for a balance movement
func NewLedgerEntry(userID uint, positionID *uint, entryType LedgerEntryType, amount uint64, txSignature *string) *LedgerEntry {
	return &LedgerEntry{
		ID:          uuid.New(),
		UserID:      userID,
		PositionID:  positionID,
		EntryType:   entryType,
		Amount:      amount,
		TxSignature: txSignature,
	}
}
