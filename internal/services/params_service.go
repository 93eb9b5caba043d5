package services

import (
	"context"
	"fmt"
	"log"

	"lending-ledger/internal/config"
	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"

	"gorm.io/gorm"
)

// ParamsService owns the platform state singleton: initialization, the risk
// parameters, and the logical clock. Every mutation is administrator-gated
// against the configured admin wallet.
type ParamsService struct {
	db          *gorm.DB
	adminWallet string
	defaults    config.ProtocolConfig
}

// NewParamsService creates a new ParamsService
func NewParamsService(db *gorm.DB, adminWallet string, defaults config.ProtocolConfig) *ParamsService {
	return &ParamsService{
		db:          db,
		adminWallet: adminWallet,
		defaults:    defaults,
	}
}

func (s *ParamsService) requireAdmin(callerWallet string) error {
	if callerWallet == "" || callerWallet != s.adminWallet {
		return lending.ErrUnauthorized
	}
	return nil
}

// Initialize performs the one-time transition from uninitialized to
// initialized and seeds the risk parameters with the configured defaults.
func (s *ParamsService) Initialize(ctx context.Context, callerWallet string) error {
	if err := s.requireAdmin(callerWallet); err != nil {
		return err
	}

	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := loadState(tx)
		if err != nil {
			return err
		}
		if state.Initialized {
			return lending.ErrAlreadyInitialized
		}

		state.Initialized = true
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to save platform state: %w", err)
		}

		params := models.RiskParameters{
			ID:                     1,
			MinimumCollateralRatio: s.defaults.MinimumCollateralRatio,
			LiquidationThreshold:   s.defaults.LiquidationThreshold,
			FeeRate:                s.defaults.FeeRate,
		}
		if err := tx.Create(&params).Error; err != nil {
			return fmt.Errorf("failed to seed risk parameters: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Platform initialized (min ratio %d, liquidation threshold %d, fee rate %d)",
		s.defaults.MinimumCollateralRatio, s.defaults.LiquidationThreshold, s.defaults.FeeRate)
	return nil
}

// SetMinimumRatio updates the minimum collateral ratio for new loans. Values
// below the protocol floor are rejected.
func (s *ParamsService) SetMinimumRatio(ctx context.Context, callerWallet string, value uint64) error {
	if err := s.requireAdmin(callerWallet); err != nil {
		return err
	}
	if value < lending.MinRatioFloor {
		return lending.ErrInvalidAmount
	}

	return inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := requireInitialized(tx); err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}
		params.MinimumCollateralRatio = value
		return tx.Save(params).Error
	})
}

// SetLiquidationThreshold updates the ratio at or below which positions are
// liquidated. Values below the protocol floor are rejected.
func (s *ParamsService) SetLiquidationThreshold(ctx context.Context, callerWallet string, value uint64) error {
	if err := s.requireAdmin(callerWallet); err != nil {
		return err
	}
	if value < lending.MinRatioFloor {
		return lending.ErrInvalidAmount
	}

	return inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := requireInitialized(tx); err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}
		params.LiquidationThreshold = value
		return tx.Save(params).Error
	})
}

// SetFeeRate updates the share of accrued interest routed to the protocol
// reserve on repayment, as a percentage.
func (s *ParamsService) SetFeeRate(ctx context.Context, callerWallet string, value uint64) error {
	if err := s.requireAdmin(callerWallet); err != nil {
		return err
	}
	if value > 100 {
		return lending.ErrInvalidAmount
	}

	return inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := requireInitialized(tx); err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}
		params.FeeRate = value
		return tx.Save(params).Error
	})
}

// AdvanceChainHeight moves the logical clock forward. The ledger itself never
// mutates the clock; this is invoked by the clock follower job or the admin
// endpoint.
func (s *ParamsService) AdvanceChainHeight(ctx context.Context, callerWallet string, blocks uint64) (uint64, error) {
	if err := s.requireAdmin(callerWallet); err != nil {
		return 0, err
	}
	if blocks == 0 {
		return 0, lending.ErrInvalidAmount
	}

	var height uint64
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := loadState(tx)
		if err != nil {
			return err
		}
		next, err := lending.SafeAdd(state.ChainHeight, blocks)
		if err != nil {
			return err
		}
		state.ChainHeight = next
		height = next
		return tx.Save(state).Error
	})
	if err != nil {
		return 0, err
	}
	return height, nil
}
