package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lending-ledger/internal/config"
	"lending-ledger/internal/database"
	"lending-ledger/internal/models"
	"lending-ledger/internal/repository"
)

const testAdminWallet = "AdminWallet1111111111111111111111111111111"

// setupTestDB opens a fresh named in-memory database per test. The shared
// cache keeps every pooled connection on the same database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}

	return db
}

func testProtocolDefaults() config.ProtocolConfig {
	return config.ProtocolConfig{
		InterestRate:           5,
		MinimumCollateralRatio: 150,
		LiquidationThreshold:   120,
		FeeRate:                10,
	}
}

// newTestServices builds the service set over one test database
func newTestServices(t *testing.T, db *gorm.DB) (*ParamsService, *OracleService, *LoanService) {
	t.Helper()

	repo := repository.NewRepository(db)
	paramsService := NewParamsService(db, testAdminWallet, testProtocolDefaults())
	oracleService := NewOracleService(db, testAdminWallet)
	loanService := NewLoanService(db, repo, nil, testProtocolDefaults().InterestRate)
	return paramsService, oracleService, loanService
}

// createTestUser inserts a user with a funded collateral account
func createTestUser(t *testing.T, db *gorm.DB, wallet string) *models.User {
	t.Helper()

	user := models.User{WalletAddress: wallet}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	account := models.CollateralAccount{UserID: user.ID}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("failed to create collateral account: %v", err)
	}
	return &user
}
