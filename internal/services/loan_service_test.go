package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"
)

const testBorrowerWallet = "Borrower111111111111111111111111111111111"

// setupLendingTest returns an initialized platform with a BTC quote of
// 50000 and one borrower holding the given free collateral balance.
func setupLendingTest(t *testing.T, db *gorm.DB, freeCollateral uint64) (*ParamsService, *OracleService, *LoanService, *models.User) {
	t.Helper()
	ctx := context.Background()

	paramsService, oracleService, loanService := newTestServices(t, db)
	if err := paramsService.Initialize(ctx, testAdminWallet); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 50_000); err != nil {
		t.Fatalf("set price: %v", err)
	}

	user := createTestUser(t, db, testBorrowerWallet)
	if freeCollateral > 0 {
		_, err := loanService.DepositCollateral(ctx, user.ID, user.WalletAddress, &models.DepositRequest{Amount: freeCollateral})
		if err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	return paramsService, oracleService, loanService, user
}

// assertLockedMatchesActive verifies the aggregate invariant: the locked
// total equals the sum of collateral over Active positions.
func assertLockedMatchesActive(t *testing.T, db *gorm.DB) {
	t.Helper()

	var state models.PlatformState
	if err := db.Where("id = ?", 1).First(&state).Error; err != nil {
		t.Fatalf("load state: %v", err)
	}

	var sum *uint64
	err := db.Model(&models.Position{}).
		Where("status = ?", models.PositionStatusActive).
		Select("SUM(collateral_amount)").
		Scan(&sum).Error
	if err != nil {
		t.Fatalf("sum collateral: %v", err)
	}

	var activeTotal uint64
	if sum != nil {
		activeTotal = *sum
	}
	if state.TotalCollateralLocked != activeTotal {
		t.Errorf("locked total %d does not match active collateral sum %d",
			state.TotalCollateralLocked, activeTotal)
	}
}

func TestRequestLoanAndLiquidationScenario(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, loanService, user := setupLendingTest(t, db, 10)
	ctx := context.Background()

	// 10 BTC at 50000 against 300000: value 500000 covers 300000 at 150%.
	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       300_000,
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	if position.ID != 1 {
		t.Errorf("expected first loan id 1, got %d", position.ID)
	}
	if position.Status != models.PositionStatusActive {
		t.Errorf("expected Active status, got %s", position.Status)
	}
	assertLockedMatchesActive(t, db)

	// Healthy at the opening price: no liquidation.
	liquidated, _, err := loanService.CheckLiquidation(ctx, position.ID)
	if err != nil {
		t.Fatalf("check liquidation: %v", err)
	}
	if liquidated {
		t.Error("healthy position must not liquidate")
	}

	// Price collapses: ratio floor(10*30000/300000)*100 = 100 <= 120.
	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 30_000); err != nil {
		t.Fatalf("set price: %v", err)
	}

	liquidated, updated, err := loanService.CheckLiquidation(ctx, position.ID)
	if err != nil {
		t.Fatalf("check liquidation: %v", err)
	}
	if !liquidated {
		t.Fatal("expected position to liquidate at ratio 100")
	}
	if updated.Status != models.PositionStatusLiquidated {
		t.Errorf("expected Liquidated status, got %s", updated.Status)
	}
	assertLockedMatchesActive(t, db)

	// The index entry is gone.
	var indexCount int64
	db.Model(&models.UserPositionIndex{}).Where("user_id = ?", user.ID).Count(&indexCount)
	if indexCount != 0 {
		t.Errorf("expected empty index after liquidation, got %d entries", indexCount)
	}

	// Idempotent: a second check is a no-op, not an error.
	liquidated, _, err = loanService.CheckLiquidation(ctx, position.ID)
	if err != nil {
		t.Fatalf("second check errored: %v", err)
	}
	if liquidated {
		t.Error("second check must not liquidate again")
	}

	// Forfeited collateral landed in the reserve.
	var state models.PlatformState
	db.Where("id = ?", 1).First(&state)
	if state.ProtocolReserve != 10 {
		t.Errorf("expected reserve 10 after forfeit, got %d", state.ProtocolReserve)
	}
	if state.TotalLiquidations != 1 {
		t.Errorf("expected 1 liquidation, got %d", state.TotalLiquidations)
	}
}

func TestRequestLoanAdmissionBoundary(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 3)
	ctx := context.Background()

	// Exact boundary: 3 * 50000 * 100 == 100000 * 150 — must be admitted.
	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 3,
		DebtAmount:       100_000,
	})
	if err != nil {
		t.Fatalf("expected admission at the exact boundary, got %v", err)
	}

	// Settle so the collateral is free again.
	if _, _, err := loanService.Repay(ctx, user.ID, position.ID, 100_000); err != nil {
		t.Fatalf("repay: %v", err)
	}

	// One more unit of debt tips below the minimum.
	_, err = loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 3,
		DebtAmount:       100_001,
	})
	if !errors.Is(err, lending.ErrInsufficientCollateral) {
		t.Errorf("expected ErrInsufficientCollateral below the minimum, got %v", err)
	}
}

func TestRequestLoanGuards(t *testing.T) {
	db := setupTestDB(t)
	paramsService, oracleService, loanService := newTestServices(t, db)
	ctx := context.Background()
	user := createTestUser(t, db, testBorrowerWallet)

	// Every position-affecting operation fails before initialize.
	_, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 1, DebtAmount: 1,
	})
	if !errors.Is(err, lending.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := paramsService.Initialize(ctx, testAdminWallet); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Initialized but no oracle quote yet.
	_, err = loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 1, DebtAmount: 1,
	})
	if !errors.Is(err, lending.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized without a quote, got %v", err)
	}

	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 50_000); err != nil {
		t.Fatalf("set price: %v", err)
	}

	// No free collateral deposited.
	_, err = loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 1, DebtAmount: 1,
	})
	if !errors.Is(err, lending.ErrInsufficientCollateral) {
		t.Errorf("expected ErrInsufficientCollateral without deposit, got %v", err)
	}
}

func TestRepaySettlement(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, loanService, user := setupLendingTest(t, db, 10)
	ctx := context.Background()

	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       300_000,
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	// One full accrual period passes: interest is
	// floor(300000*5/14400) * 144 = 104 * 144 = 14976.
	if _, err := paramsService.AdvanceChainHeight(ctx, testAdminWallet, lending.UnitsPerPeriod); err != nil {
		t.Fatalf("advance clock: %v", err)
	}
	owed := uint64(300_000 + 14_976)

	// One unit short is rejected.
	_, _, err = loanService.Repay(ctx, user.ID, position.ID, owed-1)
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount one unit short, got %v", err)
	}

	// Someone else cannot repay the loan.
	other := createTestUser(t, db, "Other11111111111111111111111111111111111111")
	_, _, err = loanService.Repay(ctx, other.ID, position.ID, owed)
	if !errors.Is(err, lending.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for non-borrower, got %v", err)
	}

	settled, reportedOwed, err := loanService.Repay(ctx, user.ID, position.ID, owed)
	if err != nil {
		t.Fatalf("repay: %v", err)
	}
	if reportedOwed != owed {
		t.Errorf("expected owed %d, got %d", owed, reportedOwed)
	}
	if settled.Status != models.PositionStatusRepaid {
		t.Errorf("expected Repaid status, got %s", settled.Status)
	}
	assertLockedMatchesActive(t, db)

	// Collateral released back to the free balance.
	var account models.CollateralAccount
	db.Where("user_id = ?", user.ID).First(&account)
	if account.FreeBalance != 10 {
		t.Errorf("expected free balance 10 after release, got %d", account.FreeBalance)
	}

	// Fee: 10 percent of the 14976 interest.
	var state models.PlatformState
	db.Where("id = ?", 1).First(&state)
	if state.ProtocolReserve != 1_497 {
		t.Errorf("expected reserve 1497, got %d", state.ProtocolReserve)
	}

	// Terminal states are absorbing.
	_, _, err = loanService.Repay(ctx, user.ID, position.ID, owed)
	if !errors.Is(err, lending.ErrLoanNotActive) {
		t.Errorf("expected ErrLoanNotActive on second repay, got %v", err)
	}
	liquidated, _, err := loanService.CheckLiquidation(ctx, position.ID)
	if err != nil || liquidated {
		t.Errorf("liquidation on repaid position must be a no-op, got %v %v", liquidated, err)
	}
}

func TestRepayLookupGuards(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 10)
	ctx := context.Background()

	_, _, err := loanService.Repay(ctx, user.ID, 0, 100)
	if !errors.Is(err, lending.ErrInvalidLoanId) {
		t.Errorf("expected ErrInvalidLoanId, got %v", err)
	}

	_, _, err = loanService.Repay(ctx, user.ID, 99, 100)
	if !errors.Is(err, lending.ErrLoanNotFound) {
		t.Errorf("expected ErrLoanNotFound, got %v", err)
	}

	_, _, err = loanService.CheckLiquidation(ctx, 99)
	if !errors.Is(err, lending.ErrLoanNotFound) {
		t.Errorf("expected ErrLoanNotFound, got %v", err)
	}
}

func TestUserIndexCapacity(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 100)
	ctx := context.Background()

	var firstID uint
	for i := 0; i < lending.MaxUserPositions; i++ {
		position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
			CollateralAmount: 1,
			DebtAmount:       20_000,
		})
		if err != nil {
			t.Fatalf("request loan %d: %v", i+1, err)
		}
		if i == 0 {
			firstID = position.ID
		}
	}

	// The eleventh concurrent position is a hard rejection.
	_, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 1,
		DebtAmount:       20_000,
	})
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount at capacity, got %v", err)
	}

	// Closing one frees a slot, and ids are never reused.
	if _, _, err := loanService.Repay(ctx, user.ID, firstID, 20_000); err != nil {
		t.Fatalf("repay: %v", err)
	}
	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 1,
		DebtAmount:       20_000,
	})
	if err != nil {
		t.Fatalf("request loan after freeing a slot: %v", err)
	}
	if position.ID <= firstID+lending.MaxUserPositions-1 {
		t.Errorf("expected a fresh monotone id, got %d", position.ID)
	}
	assertLockedMatchesActive(t, db)
}

func TestLiquidationPreservesOtherPositions(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, loanService, user := setupLendingTest(t, db, 20)
	ctx := context.Background()

	heavy, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       300_000,
	})
	if err != nil {
		t.Fatalf("request heavy loan: %v", err)
	}
	light, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       100_000,
	})
	if err != nil {
		t.Fatalf("request light loan: %v", err)
	}

	// At 30000 the heavy position sits at ratio 100, the light one at 300.
	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 30_000); err != nil {
		t.Fatalf("set price: %v", err)
	}

	liquidated, _, err := loanService.CheckLiquidation(ctx, heavy.ID)
	if err != nil || !liquidated {
		t.Fatalf("expected heavy position to liquidate, got %v %v", liquidated, err)
	}

	// Only the liquidated id leaves the index.
	var entries []models.UserPositionIndex
	if err := db.Where("user_id = ?", user.ID).Find(&entries).Error; err != nil {
		t.Fatalf("load index: %v", err)
	}
	if len(entries) != 1 || entries[0].PositionID != light.ID {
		t.Errorf("expected only position %d to remain indexed, got %+v", light.ID, entries)
	}
	assertLockedMatchesActive(t, db)
}

func TestLiquidateRejectsHealthyPosition(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 10)
	ctx := context.Background()

	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       100_000,
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}

	// The transition guard refuses a healthy position outright.
	err = db.Transaction(func(tx *gorm.DB) error {
		state, err := loadState(tx)
		if err != nil {
			return err
		}
		return loanService.liquidate(tx, state, position, 50_000, 120)
	})
	if !errors.Is(err, lending.ErrInvalidLiquidation) {
		t.Errorf("expected ErrInvalidLiquidation for a healthy position, got %v", err)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 0)
	ctx := context.Background()

	_, err := loanService.DepositCollateral(ctx, user.ID, user.WalletAddress, &models.DepositRequest{Amount: 0})
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero deposit, got %v", err)
	}

	account, err := loanService.DepositCollateral(ctx, user.ID, user.WalletAddress, &models.DepositRequest{Amount: 25})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if account.FreeBalance != 25 {
		t.Errorf("expected free balance 25, got %d", account.FreeBalance)
	}

	_, err = loanService.WithdrawCollateral(ctx, user.ID, 26)
	if !errors.Is(err, lending.ErrInsufficientCollateral) {
		t.Errorf("expected ErrInsufficientCollateral, got %v", err)
	}

	account, err = loanService.WithdrawCollateral(ctx, user.ID, 10)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if account.FreeBalance != 15 {
		t.Errorf("expected free balance 15, got %d", account.FreeBalance)
	}

	// The audit trail recorded both movements.
	var entryCount int64
	db.Model(&models.LedgerEntry{}).Where("user_id = ?", user.ID).Count(&entryCount)
	if entryCount != 2 {
		t.Errorf("expected 2 ledger entries, got %d", entryCount)
	}
}

func TestGetStatsAndProjections(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, loanService, user := setupLendingTest(t, db, 10)
	ctx := context.Background()

	position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
		CollateralAmount: 10,
		DebtAmount:       300_000,
	})
	if err != nil {
		t.Fatalf("request loan: %v", err)
	}
	if _, err := paramsService.AdvanceChainHeight(ctx, testAdminWallet, 1); err != nil {
		t.Fatalf("advance clock: %v", err)
	}

	projected, err := loanService.GetPosition(ctx, position.ID)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if projected.InterestAccrued != 104 {
		t.Errorf("expected 104 interest after one unit, got %d", projected.InterestAccrued)
	}
	if projected.TotalOwed != 300_104 {
		t.Errorf("expected total owed 300104, got %d", projected.TotalOwed)
	}
	if projected.HealthRatio == nil || *projected.HealthRatio != 100 {
		t.Errorf("expected health ratio 100, got %v", projected.HealthRatio)
	}

	stats, err := loanService.GetStats(ctx)
	if err != nil {
		t.Fatalf("get stats: %v", err)
	}
	if stats.TotalCollateralLocked != 10 || stats.TotalPositionsIssued != 1 {
		t.Errorf("unexpected aggregates: %+v", stats)
	}
	if stats.LockedValue.String() != "500000" {
		t.Errorf("expected locked value 500000, got %s", stats.LockedValue)
	}

	positions, err := loanService.GetUserPositions(ctx, user.ID)
	if err != nil {
		t.Fatalf("get user positions: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(positions))
	}
}

func TestPositionIDsMonotone(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 50)
	ctx := context.Background()

	var lastID uint
	for i := 0; i < 5; i++ {
		position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
			CollateralAmount: 1,
			DebtAmount:       20_000,
		})
		if err != nil {
			t.Fatalf("request loan: %v", err)
		}
		if position.ID <= lastID {
			t.Fatalf("ids must be strictly increasing: %d after %d", position.ID, lastID)
		}
		lastID = position.ID

		// Settling does not free the id for reuse.
		if _, _, err := loanService.Repay(ctx, user.ID, position.ID, 20_000); err != nil {
			t.Fatalf("repay: %v", err)
		}
	}

	var count int64
	db.Model(&models.Position{}).Count(&count)
	if count != 5 {
		t.Errorf("settled positions must be retained, got %d rows", count)
	}
}

func TestAggregateConsistencyAcrossOperations(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, loanService, user := setupLendingTest(t, db, 40)
	ctx := context.Background()

	ids := make([]uint, 0, 3)
	for _, debt := range []uint64{300_000, 100_000, 50_000} {
		position, err := loanService.RequestLoan(ctx, user.ID, user.WalletAddress, &models.RequestLoanRequest{
			CollateralAmount: 10,
			DebtAmount:       debt,
		})
		if err != nil {
			t.Fatalf("request loan: %v", err)
		}
		ids = append(ids, position.ID)
		assertLockedMatchesActive(t, db)
	}

	// Repay one, liquidate one, leave one active.
	if _, _, err := loanService.Repay(ctx, user.ID, ids[2], 50_000); err != nil {
		t.Fatalf("repay: %v", err)
	}
	assertLockedMatchesActive(t, db)

	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 30_000); err != nil {
		t.Fatalf("set price: %v", err)
	}
	liquidated, _, err := loanService.CheckLiquidation(ctx, ids[0])
	if err != nil || !liquidated {
		t.Fatalf("expected liquidation, got %v %v", liquidated, err)
	}
	assertLockedMatchesActive(t, db)

	var state models.PlatformState
	db.Where("id = ?", 1).First(&state)
	if state.TotalCollateralLocked != 10 {
		t.Errorf("expected 10 locked for the remaining active position, got %d", state.TotalCollateralLocked)
	}
}

func TestDistinctUsersGetDistinctAccounts(t *testing.T) {
	db := setupTestDB(t)
	_, _, loanService, user := setupLendingTest(t, db, 5)
	ctx := context.Background()

	other := createTestUser(t, db, "Second1111111111111111111111111111111111111")
	if _, err := loanService.DepositCollateral(ctx, other.ID, other.WalletAddress, &models.DepositRequest{Amount: 7}); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	for _, tc := range []struct {
		userID uint
		want   uint64
	}{{user.ID, 5}, {other.ID, 7}} {
		var account models.CollateralAccount
		if err := db.Where("user_id = ?", tc.userID).First(&account).Error; err != nil {
			t.Fatalf("load account: %v", err)
		}
		if account.FreeBalance != tc.want {
			t.Errorf("user %d: expected balance %d, got %d", tc.userID, tc.want, account.FreeBalance)
		}
	}

	var state models.PlatformState
	db.Where("id = ?", 1).First(&state)
	if state.TotalCollateralDeposited != 12 {
		t.Errorf("expected total deposited 12, got %d", state.TotalCollateralDeposited)
	}
}
