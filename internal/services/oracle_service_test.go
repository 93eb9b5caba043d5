package services

import (
	"context"
	"errors"
	"testing"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/models"
)

func TestSetPriceValidation(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, _ := newTestServices(t, db)
	ctx := context.Background()

	err := oracleService.SetPrice(ctx, "NotTheAdmin1111111111111111111111111111111", models.AssetBTC, 50_000)
	if !errors.Is(err, lending.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	err = oracleService.SetPrice(ctx, testAdminWallet, "DOGE", 50_000)
	if !errors.Is(err, lending.ErrInvalidAsset) {
		t.Errorf("expected ErrInvalidAsset, got %v", err)
	}

	err = oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 0)
	if !errors.Is(err, lending.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for zero, got %v", err)
	}

	err = oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, lending.MaxOraclePrice+1)
	if !errors.Is(err, lending.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice above the ceiling, got %v", err)
	}

	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, lending.MaxOraclePrice); err != nil {
		t.Errorf("expected the ceiling itself to be accepted, got %v", err)
	}
}

func TestGetPriceBeforeSet(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, _ := newTestServices(t, db)

	_, err := oracleService.GetPrice(context.Background(), models.AssetBTC)
	if !errors.Is(err, lending.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before any quote, got %v", err)
	}
}

func TestSetPriceOverwrites(t *testing.T) {
	db := setupTestDB(t)
	_, oracleService, _ := newTestServices(t, db)
	ctx := context.Background()

	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 50_000); err != nil {
		t.Fatalf("set price: %v", err)
	}
	if err := oracleService.SetPrice(ctx, testAdminWallet, models.AssetBTC, 30_000); err != nil {
		t.Fatalf("set price: %v", err)
	}

	quote, err := oracleService.GetPrice(ctx, models.AssetBTC)
	if err != nil {
		t.Fatalf("get price: %v", err)
	}
	if quote.Price != 30_000 {
		t.Errorf("expected last write to win, got %d", quote.Price)
	}
}
