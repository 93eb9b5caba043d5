package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OracleService holds the latest authoritative quote per recognized asset.
// Single writer (the administrator), last write wins, no history.
type OracleService struct {
	db          *gorm.DB
	adminWallet string
}

// NewOracleService creates a new OracleService
func NewOracleService(db *gorm.DB, adminWallet string) *OracleService {
	return &OracleService{db: db, adminWallet: adminWallet}
}

// SetPrice records a new quote for an asset, overwriting the previous one
func (s *OracleService) SetPrice(ctx context.Context, callerWallet, asset string, price uint64) error {
	if callerWallet == "" || callerWallet != s.adminWallet {
		return lending.ErrUnauthorized
	}
	if !models.RecognizedAsset(asset) {
		return lending.ErrInvalidAsset
	}
	if price == 0 || price > lending.MaxOraclePrice {
		return lending.ErrInvalidPrice
	}

	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := loadState(tx)
		if err != nil {
			return err
		}

		quote := models.AssetPrice{
			Symbol:          asset,
			Price:           price,
			UpdatedAtHeight: state.ChainHeight,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}},
			UpdateAll: true,
		}).Create(&quote).Error
	})
	if err != nil {
		return fmt.Errorf("failed to set price: %w", err)
	}

	log.Printf("Oracle price updated: %s = %d", asset, price)
	return nil
}

// GetPrice returns the last quote set for an asset
func (s *OracleService) GetPrice(ctx context.Context, asset string) (*models.AssetPrice, error) {
	if !models.RecognizedAsset(asset) {
		return nil, lending.ErrInvalidAsset
	}

	var quote models.AssetPrice
	err := s.db.WithContext(ctx).Where("symbol = ?", asset).First(&quote).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lending.ErrNotInitialized
		}
		return nil, err
	}
	return &quote, nil
}
