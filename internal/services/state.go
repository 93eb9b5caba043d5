package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"

	"gorm.io/gorm"
)

// Every public mutation runs as one serializable transaction so concurrent
// callers never observe a half-updated position or index.
var serializableTx = &sql.TxOptions{Isolation: sql.LevelSerializable}

func inTransaction(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn, serializableTx)
}

// loadState fetches the platform state singleton, creating the uninitialized
// row on first touch.
func loadState(tx *gorm.DB) (*models.PlatformState, error) {
	var state models.PlatformState
	err := tx.Where(models.PlatformState{ID: 1}).FirstOrCreate(&state).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load platform state: %w", err)
	}
	return &state, nil
}

// requireInitialized fetches the platform state and rejects the operation if
// initialize has not run.
func requireInitialized(tx *gorm.DB) (*models.PlatformState, error) {
	state, err := loadState(tx)
	if err != nil {
		return nil, err
	}
	if !state.Initialized {
		return nil, lending.ErrNotInitialized
	}
	return state, nil
}

// loadParams fetches the risk parameter singleton.
func loadParams(tx *gorm.DB) (*models.RiskParameters, error) {
	var params models.RiskParameters
	if err := tx.Where("id = ?", 1).First(&params).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lending.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load risk parameters: %w", err)
	}
	return &params, nil
}

// loadPrice fetches the latest oracle quote for an asset.
func loadPrice(tx *gorm.DB, symbol string) (*models.AssetPrice, error) {
	var price models.AssetPrice
	if err := tx.Where("symbol = ?", symbol).First(&price).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lending.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to load price: %w", err)
	}
	return &price, nil
}

// loadAccount fetches a user's collateral account, creating an empty one on
// first touch.
func loadAccount(tx *gorm.DB, userID uint) (*models.CollateralAccount, error) {
	var account models.CollateralAccount
	err := tx.Where(models.CollateralAccount{UserID: userID}).FirstOrCreate(&account).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load collateral account: %w", err)
	}
	return &account, nil
}
