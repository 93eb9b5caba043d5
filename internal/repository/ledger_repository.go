package repository

import (
	"context"

	"lending-ledger/internal/models"

	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetPosition retrieves a position by its loan id
func (r *Repository) GetPosition(ctx context.Context, id uint) (*models.Position, error) {
	var position models.Position
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&position).Error
	if err != nil {
		return nil, err
	}
	return &position, nil
}

// GetUserPositions retrieves all positions ever opened by a user, newest first
func (r *Repository) GetUserPositions(ctx context.Context, userID uint) ([]*models.Position, error) {
	var positions []*models.Position
	err := r.db.WithContext(ctx).
		Where("borrower_id = ?", userID).
		Order("id DESC").
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// GetUserIndex retrieves the active-position index for a user in insertion order
func (r *Repository) GetUserIndex(ctx context.Context, userID uint) ([]*models.UserPositionIndex, error) {
	var entries []*models.UserPositionIndex
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListActivePositionIDs returns ids of positions still in the Active state
func (r *Repository) ListActivePositionIDs(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Position{}).
		Where("status = ?", models.PositionStatusActive).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetPlatformState retrieves the platform state singleton
func (r *Repository) GetPlatformState(ctx context.Context) (*models.PlatformState, error) {
	var state models.PlatformState
	err := r.db.WithContext(ctx).Where("id = ?", 1).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetRiskParameters retrieves the risk parameter singleton
func (r *Repository) GetRiskParameters(ctx context.Context) (*models.RiskParameters, error) {
	var params models.RiskParameters
	err := r.db.WithContext(ctx).Where("id = ?", 1).First(&params).Error
	if err != nil {
		return nil, err
	}
	return &params, nil
}

// GetAssetPrice retrieves the latest quote for an asset
func (r *Repository) GetAssetPrice(ctx context.Context, symbol string) (*models.AssetPrice, error) {
	var price models.AssetPrice
	err := r.db.WithContext(ctx).Where("symbol = ?", symbol).First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

// GetCollateralAccount retrieves a user's free-balance account
func (r *Repository) GetCollateralAccount(ctx context.Context, userID uint) (*models.CollateralAccount, error) {
	var account models.CollateralAccount
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetLedgerEntries retrieves a user's audit trail, newest first
func (r *Repository) GetLedgerEntries(ctx context.Context, userID uint, limit int) ([]*models.LedgerEntry, error) {
	var entries []*models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
