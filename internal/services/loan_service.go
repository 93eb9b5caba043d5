package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"
	"lending-ledger/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DepositVerifier confirms that the on-chain transfer a deposit claims has
// actually settled. Verification happens before the accounting transaction
// opens; the ledger itself only records balances.
type DepositVerifier interface {
	VerifyDeposit(ctx context.Context, txSignature, wallet string, amount uint64) error
}

// LoanService is the position ledger: it creates, settles, and liquidates
// positions and keeps the aggregates consistent with the position lifecycle.
type LoanService struct {
	db           *gorm.DB
	repo         *repository.Repository
	custody      DepositVerifier
	interestRate uint64
}

// NewLoanService creates a new LoanService. A nil verifier skips on-chain
// deposit verification (local development and tests).
func NewLoanService(db *gorm.DB, repo *repository.Repository, custody DepositVerifier, interestRate uint64) *LoanService {
	if custody == nil {
		log.Println("Warning: deposit verification disabled, crediting deposits without on-chain checks")
	}
	return &LoanService{
		db:           db,
		repo:         repo,
		custody:      custody,
		interestRate: interestRate,
	}
}

// DepositCollateral credits a verified transfer to the user's free balance
func (s *LoanService) DepositCollateral(ctx context.Context, userID uint, wallet string, req *models.DepositRequest) (*models.CollateralAccount, error) {
	if req.Amount == 0 {
		return nil, lending.ErrInvalidAmount
	}

	if s.custody != nil {
		if err := s.custody.VerifyDeposit(ctx, req.TxSignature, wallet, req.Amount); err != nil {
			return nil, fmt.Errorf("deposit rejected: %w", err)
		}
	}

	var account *models.CollateralAccount
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := requireInitialized(tx)
		if err != nil {
			return err
		}

		account, err = loadAccount(tx, userID)
		if err != nil {
			return err
		}

		account.FreeBalance, err = lending.SafeAdd(account.FreeBalance, req.Amount)
		if err != nil {
			return err
		}
		state.TotalCollateralDeposited, err = lending.SafeAdd(state.TotalCollateralDeposited, req.Amount)
		if err != nil {
			return err
		}

		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to credit deposit: %w", err)
		}
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}

		var sig *string
		if req.TxSignature != "" {
			sig = &req.TxSignature
		}
		entry := models.NewLedgerEntry(userID, nil, models.LedgerEntryTypeDeposit, req.Amount, sig)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// WithdrawCollateral releases free (unlocked) collateral back to the user.
// Collateral backing an active position can never be withdrawn.
func (s *LoanService) WithdrawCollateral(ctx context.Context, userID uint, amount uint64) (*models.CollateralAccount, error) {
	if amount == 0 {
		return nil, lending.ErrInvalidAmount
	}

	var account *models.CollateralAccount
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := requireInitialized(tx)
		if err != nil {
			return err
		}

		account, err = loadAccount(tx, userID)
		if err != nil {
			return err
		}
		if amount > account.FreeBalance {
			return lending.ErrInsufficientCollateral
		}

		account.FreeBalance -= amount
		state.TotalCollateralDeposited, err = lending.SafeSub(state.TotalCollateralDeposited, amount)
		if err != nil {
			return err
		}

		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to debit withdrawal: %w", err)
		}
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}

		entry := models.NewLedgerEntry(userID, nil, models.LedgerEntryTypeWithdraw, amount, nil)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	return account, nil
}

// RequestLoan opens a new position if the collateral covers the requested
// debt at the minimum ratio. The collateral moves from the user's free
// balance into the position.
func (s *LoanService) RequestLoan(ctx context.Context, userID uint, wallet string, req *models.RequestLoanRequest) (*models.Position, error) {
	if req.CollateralAmount == 0 || req.DebtAmount == 0 {
		return nil, lending.ErrInvalidAmount
	}

	var position *models.Position
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := requireInitialized(tx)
		if err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}
		quote, err := loadPrice(tx, models.AssetBTC)
		if err != nil {
			return err
		}

		account, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		if req.CollateralAmount > account.FreeBalance {
			return lending.ErrInsufficientCollateral
		}

		var openCount int64
		err = tx.Model(&models.UserPositionIndex{}).Where("user_id = ?", userID).Count(&openCount).Error
		if err != nil {
			return fmt.Errorf("failed to count open positions: %w", err)
		}
		if openCount >= lending.MaxUserPositions {
			return lending.ErrInvalidAmount
		}

		if !lending.MeetsMinimumRatio(req.CollateralAmount, quote.Price, req.DebtAmount, params.MinimumCollateralRatio) {
			return lending.ErrInsufficientCollateral
		}

		position = &models.Position{
			BorrowerID:       userID,
			BorrowerWallet:   wallet,
			CollateralAmount: req.CollateralAmount,
			DebtAmount:       req.DebtAmount,
			InterestRate:     s.interestRate,
			OpenedAt:         state.ChainHeight,
			LastAccrualAt:    state.ChainHeight,
			Status:           models.PositionStatusActive,
		}
		if err := tx.Create(position).Error; err != nil {
			return fmt.Errorf("failed to create position: %w", err)
		}

		index := models.UserPositionIndex{UserID: userID, PositionID: position.ID}
		if err := tx.Create(&index).Error; err != nil {
			return fmt.Errorf("failed to index position: %w", err)
		}

		account.FreeBalance -= req.CollateralAmount
		state.TotalCollateralLocked, err = lending.SafeAdd(state.TotalCollateralLocked, req.CollateralAmount)
		if err != nil {
			return err
		}
		state.TotalPositionsIssued++

		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to lock collateral: %w", err)
		}
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}

		entry := models.NewLedgerEntry(userID, &position.ID, models.LedgerEntryTypeLock, req.CollateralAmount, nil)
		return tx.Create(entry).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Loan %d opened: user %d collateral %d debt %d", position.ID, userID, req.CollateralAmount, req.DebtAmount)
	return position, nil
}

// Repay settles a position in full. The payment must cover the principal
// plus all interest accrued since the last accrual height; the locked
// collateral is released back to the borrower's free balance.
func (s *LoanService) Repay(ctx context.Context, userID uint, positionID uint, amount uint64) (*models.Position, uint64, error) {
	if positionID == 0 {
		return nil, 0, lending.ErrInvalidLoanId
	}

	var (
		position *models.Position
		owed     uint64
	)
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := requireInitialized(tx)
		if err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}

		position = &models.Position{}
		if err := tx.Where("id = ?", positionID).First(position).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lending.ErrLoanNotFound
			}
			return err
		}
		if position.Status != models.PositionStatusActive {
			return lending.ErrLoanNotActive
		}
		if position.BorrowerID != userID {
			return lending.ErrUnauthorized
		}

		interest := lending.InterestOwed(position.DebtAmount, position.InterestRate, elapsedSince(state.ChainHeight, position.LastAccrualAt))
		owed, err = lending.SafeAdd(position.DebtAmount, interest)
		if err != nil {
			return err
		}
		if amount < owed {
			return lending.ErrInvalidAmount
		}

		position.Status = models.PositionStatusRepaid
		position.LastAccrualAt = state.ChainHeight
		if err := tx.Save(position).Error; err != nil {
			return fmt.Errorf("failed to settle position: %w", err)
		}

		if err := removeFromIndex(tx, position.ID); err != nil {
			return err
		}

		account, err := loadAccount(tx, userID)
		if err != nil {
			return err
		}
		account.FreeBalance, err = lending.SafeAdd(account.FreeBalance, position.CollateralAmount)
		if err != nil {
			return err
		}
		state.TotalCollateralLocked, err = lending.SafeSub(state.TotalCollateralLocked, position.CollateralAmount)
		if err != nil {
			return err
		}

		// The fee is the protocol's cut of the accrued interest.
		fee := interest * params.FeeRate / 100
		state.ProtocolReserve, err = lending.SafeAdd(state.ProtocolReserve, fee)
		if err != nil {
			return err
		}

		if err := tx.Save(account).Error; err != nil {
			return fmt.Errorf("failed to release collateral: %w", err)
		}
		if err := tx.Save(state).Error; err != nil {
			return fmt.Errorf("failed to update aggregates: %w", err)
		}

		repayEntry := models.NewLedgerEntry(userID, &position.ID, models.LedgerEntryTypeRepay, amount, nil)
		if err := tx.Create(repayEntry).Error; err != nil {
			return err
		}
		releaseEntry := models.NewLedgerEntry(userID, &position.ID, models.LedgerEntryTypeRelease, position.CollateralAmount, nil)
		return tx.Create(releaseEntry).Error
	})
	if err != nil {
		return nil, 0, err
	}

	log.Printf("Loan %d repaid: user %d paid %d (owed %d)", positionID, userID, amount, owed)
	return position, owed, nil
}

// CheckLiquidation evaluates a position's health against the current oracle
// price and liquidates it when the ratio is at or below the threshold.
// Calling it on an already settled position is a no-op, so sweeps can retry
// freely.
func (s *LoanService) CheckLiquidation(ctx context.Context, positionID uint) (bool, *models.Position, error) {
	if positionID == 0 {
		return false, nil, lending.ErrInvalidLoanId
	}

	var (
		position   *models.Position
		liquidated bool
	)
	err := inTransaction(ctx, s.db, func(tx *gorm.DB) error {
		state, err := requireInitialized(tx)
		if err != nil {
			return err
		}

		position = &models.Position{}
		if err := tx.Where("id = ?", positionID).First(position).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return lending.ErrLoanNotFound
			}
			return err
		}
		if position.Status.Terminal() {
			return nil
		}

		quote, err := loadPrice(tx, models.AssetBTC)
		if err != nil {
			return err
		}
		params, err := loadParams(tx)
		if err != nil {
			return err
		}

		if lending.IsHealthy(position.CollateralAmount, position.DebtAmount, quote.Price, params.LiquidationThreshold) {
			return nil
		}

		if err := s.liquidate(tx, state, position, quote.Price, params.LiquidationThreshold); err != nil {
			return err
		}
		liquidated = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}

	if liquidated {
		log.Printf("Loan %d liquidated: user %d collateral %d forfeited", positionID, position.BorrowerID, position.CollateralAmount)
	}
	return liquidated, position, nil
}

// liquidate transitions an unhealthy position to Liquidated, removes it from
// the borrower's index, and forfeits the collateral to the protocol reserve.
func (s *LoanService) liquidate(tx *gorm.DB, state *models.PlatformState, position *models.Position, price, threshold uint64) error {
	if lending.IsHealthy(position.CollateralAmount, position.DebtAmount, price, threshold) {
		return lending.ErrInvalidLiquidation
	}

	position.Status = models.PositionStatusLiquidated
	position.LastAccrualAt = state.ChainHeight
	if err := tx.Save(position).Error; err != nil {
		return fmt.Errorf("failed to liquidate position: %w", err)
	}

	// Only the liquidated entry leaves the index; the borrower's other
	// active positions keep their bookkeeping.
	if err := removeFromIndex(tx, position.ID); err != nil {
		return err
	}

	var err error
	state.TotalCollateralLocked, err = lending.SafeSub(state.TotalCollateralLocked, position.CollateralAmount)
	if err != nil {
		return err
	}
	state.ProtocolReserve, err = lending.SafeAdd(state.ProtocolReserve, position.CollateralAmount)
	if err != nil {
		return err
	}
	state.TotalLiquidations++
	if err := tx.Save(state).Error; err != nil {
		return fmt.Errorf("failed to update aggregates: %w", err)
	}

	entry := models.NewLedgerEntry(position.BorrowerID, &position.ID, models.LedgerEntryTypeForfeit, position.CollateralAmount, nil)
	return tx.Create(entry).Error
}

// GetPosition returns a position projection with lazily computed interest
func (s *LoanService) GetPosition(ctx context.Context, positionID uint) (*models.PositionResponse, error) {
	if positionID == 0 {
		return nil, lending.ErrInvalidLoanId
	}

	position, err := s.repo.GetPosition(ctx, positionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, lending.ErrLoanNotFound
		}
		return nil, err
	}

	state, err := s.repo.GetPlatformState(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.project(ctx, position, state), nil
}

// GetUserPositions returns all of a user's positions, including settled ones
func (s *LoanService) GetUserPositions(ctx context.Context, userID uint) ([]*models.PositionResponse, error) {
	positions, err := s.repo.GetUserPositions(ctx, userID)
	if err != nil {
		return nil, err
	}

	state, err := s.repo.GetPlatformState(ctx)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	responses := make([]*models.PositionResponse, 0, len(positions))
	for _, position := range positions {
		responses = append(responses, s.project(ctx, position, state))
	}
	return responses, nil
}

// GetStats returns the protocol-wide aggregates
func (s *LoanService) GetStats(ctx context.Context) (*models.StatsResponse, error) {
	stats := &models.StatsResponse{LockedValue: decimal.Zero}

	state, err := s.repo.GetPlatformState(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return stats, nil
		}
		return nil, err
	}

	stats.Initialized = state.Initialized
	stats.ChainHeight = state.ChainHeight
	stats.TotalCollateralDeposited = state.TotalCollateralDeposited
	stats.TotalCollateralLocked = state.TotalCollateralLocked
	stats.TotalPositionsIssued = state.TotalPositionsIssued
	stats.TotalLiquidations = state.TotalLiquidations
	stats.ProtocolReserve = state.ProtocolReserve

	if params, err := s.repo.GetRiskParameters(ctx); err == nil {
		stats.MinimumCollateralRatio = params.MinimumCollateralRatio
		stats.LiquidationThreshold = params.LiquidationThreshold
		stats.FeeRate = params.FeeRate
	}

	if quote, err := s.repo.GetAssetPrice(ctx, models.AssetBTC); err == nil {
		stats.LockedValue = decimal.NewFromUint64(state.TotalCollateralLocked).
			Mul(decimal.NewFromUint64(quote.Price))
	}

	return stats, nil
}

// project builds the response shape for a position, computing accrued
// interest at the current height and the health ratio when a quote exists.
func (s *LoanService) project(ctx context.Context, position *models.Position, state *models.PlatformState) *models.PositionResponse {
	response := &models.PositionResponse{
		ID:               position.ID,
		BorrowerWallet:   position.BorrowerWallet,
		CollateralAmount: position.CollateralAmount,
		DebtAmount:       position.DebtAmount,
		InterestRate:     position.InterestRate,
		OpenedAt:         position.OpenedAt,
		LastAccrualAt:    position.LastAccrualAt,
		Status:           string(position.Status),
		CreatedAt:        position.CreatedAt,
	}

	if position.Status == models.PositionStatusActive && state != nil {
		interest := lending.InterestOwed(position.DebtAmount, position.InterestRate, elapsedSince(state.ChainHeight, position.LastAccrualAt))
		response.InterestAccrued = interest
		if owed, err := lending.SafeAdd(position.DebtAmount, interest); err == nil {
			response.TotalOwed = owed
		}

		if quote, err := s.repo.GetAssetPrice(ctx, models.AssetBTC); err == nil {
			ratio := lending.CollateralRatio(position.CollateralAmount, position.DebtAmount, quote.Price)
			response.HealthRatio = &ratio
		}
	}

	return response
}

func elapsedSince(height, lastAccrual uint64) uint64 {
	if height < lastAccrual {
		return 0
	}
	return height - lastAccrual
}

func removeFromIndex(tx *gorm.DB, positionID uint) error {
	err := tx.Where("position_id = ?", positionID).Delete(&models.UserPositionIndex{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove index entry: %w", err)
	}
	return nil
}
