package models

import (
	"time"
)

// Recognized asset symbols. BTC is the collateral asset, MUSD the borrowed
// asset. Quotes for anything else are rejected.
const (
	AssetBTC  = "BTC"
	AssetMUSD = "MUSD"
)

// RecognizedAsset reports whether the symbol belongs to the asset pair the
// ledger tracks.
func RecognizedAsset(symbol string) bool {
	return symbol == AssetBTC || symbol == AssetMUSD
}

// AssetPrice holds the latest authoritative quote for an asset. No history is
// retained — each update overwrites the previous one.
type AssetPrice struct {
	Symbol          string    `gorm:"primaryKey;size:16" json:"symbol"`
	Price           uint64    `gorm:"not null" json:"price"`
	UpdatedAtHeight uint64    `gorm:"not null" json:"updated_at_height"`
	UpdatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName specifies the table name for AssetPrice
func (AssetPrice) TableName() string {
	return "asset_prices"
}

// SetPriceRequest represents an administrator price update
type SetPriceRequest struct {
	Asset string `json:"asset" binding:"required"`
	Price uint64 `json:"price" binding:"required,gt=0"`
}
