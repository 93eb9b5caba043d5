package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskParameters is the global, administrator-mutable risk configuration.
// Exactly one row exists once the platform is initialized; it is never
// deleted. Ratios are percentages, the fee rate is a percentage of accrued
// interest routed to the protocol reserve on repayment.
type RiskParameters struct {
	ID                     uint      `gorm:"primaryKey" json:"id"`
	MinimumCollateralRatio uint64    `gorm:"not null" json:"minimum_collateral_ratio"`
	LiquidationThreshold   uint64    `gorm:"not null" json:"liquidation_threshold"`
	FeeRate                uint64    `gorm:"not null" json:"fee_rate"`
	UpdatedAt              time.Time `json:"updated_at"`
}

// TableName specifies the table name for RiskParameters
func (RiskParameters) TableName() string {
	return "risk_parameters"
}

// PlatformState is the singleton owning the initialization flag, the logical
// clock, and the protocol-wide aggregates. TotalCollateralLocked always
// equals the sum of CollateralAmount over Active positions.
type PlatformState struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	Initialized              bool      `gorm:"not null;default:false" json:"initialized"`
	ChainHeight              uint64    `gorm:"not null;default:0" json:"chain_height"`
	TotalCollateralDeposited uint64    `gorm:"not null;default:0" json:"total_collateral_deposited"`
	TotalCollateralLocked    uint64    `gorm:"not null;default:0" json:"total_collateral_locked"`
	TotalPositionsIssued     uint64    `gorm:"not null;default:0" json:"total_positions_issued"`
	TotalLiquidations        uint64    `gorm:"not null;default:0" json:"total_liquidations"`
	ProtocolReserve          uint64    `gorm:"not null;default:0" json:"protocol_reserve"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName specifies the table name for PlatformState
func (PlatformState) TableName() string {
	return "platform_state"
}

// SetRatioRequest carries a percentage value for a risk parameter update
type SetRatioRequest struct {
	Value uint64 `json:"value" binding:"required"`
}

// AdvanceClockRequest advances the logical clock by a number of height units
type AdvanceClockRequest struct {
	Blocks uint64 `json:"blocks" binding:"required,gt=0"`
}

// StatsResponse is the read-only projection of the platform aggregates
type StatsResponse struct {
	Initialized              bool            `json:"initialized"`
	ChainHeight              uint64          `json:"chain_height"`
	TotalCollateralDeposited uint64          `json:"total_collateral_deposited"`
	TotalCollateralLocked    uint64          `json:"total_collateral_locked"`
	TotalPositionsIssued     uint64          `json:"total_positions_issued"`
	TotalLiquidations        uint64          `json:"total_liquidations"`
	ProtocolReserve          uint64          `json:"protocol_reserve"`
	LockedValue              decimal.Decimal `json:"locked_value"`
	MinimumCollateralRatio   uint64          `json:"minimum_collateral_ratio"`
	LiquidationThreshold     uint64          `json:"liquidation_threshold"`
	FeeRate                  uint64          `json:"fee_rate"`
}
