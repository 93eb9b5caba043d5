package services

import (
	"context"
	"errors"
	"testing"

	"lending-ledger/internal/lending"
)

func TestInitializeOnce(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)
	ctx := context.Background()

	if err := paramsService.Initialize(ctx, testAdminWallet); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := paramsService.Initialize(ctx, testAdminWallet)
	if !errors.Is(err, lending.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized on reentry, got %v", err)
	}
}

func TestInitializeUnauthorized(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)

	err := paramsService.Initialize(context.Background(), "SomeOtherWallet111111111111111111111111111")
	if !errors.Is(err, lending.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSettersRequireInitialization(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)
	ctx := context.Background()

	err := paramsService.SetMinimumRatio(ctx, testAdminWallet, 150)
	if !errors.Is(err, lending.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized before initialize, got %v", err)
	}
}

func TestRatioFloor(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)
	ctx := context.Background()

	if err := paramsService.Initialize(ctx, testAdminWallet); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := paramsService.SetMinimumRatio(ctx, testAdminWallet, 109)
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount below the floor, got %v", err)
	}

	if err := paramsService.SetMinimumRatio(ctx, testAdminWallet, 110); err != nil {
		t.Errorf("expected the floor itself to be accepted, got %v", err)
	}

	err = paramsService.SetLiquidationThreshold(ctx, testAdminWallet, 109)
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount below the floor, got %v", err)
	}

	if err := paramsService.SetLiquidationThreshold(ctx, testAdminWallet, 130); err != nil {
		t.Errorf("expected threshold update to succeed, got %v", err)
	}
}

func TestFeeRateBounds(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)
	ctx := context.Background()

	if err := paramsService.Initialize(ctx, testAdminWallet); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	err := paramsService.SetFeeRate(ctx, testAdminWallet, 101)
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount above 100, got %v", err)
	}

	if err := paramsService.SetFeeRate(ctx, testAdminWallet, 25); err != nil {
		t.Errorf("expected fee rate update to succeed, got %v", err)
	}
}

func TestAdvanceChainHeight(t *testing.T) {
	db := setupTestDB(t)
	paramsService, _, _ := newTestServices(t, db)
	ctx := context.Background()

	height, err := paramsService.AdvanceChainHeight(ctx, testAdminWallet, 10)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if height != 10 {
		t.Errorf("expected height 10, got %d", height)
	}

	height, err = paramsService.AdvanceChainHeight(ctx, testAdminWallet, 5)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if height != 15 {
		t.Errorf("expected height 15, got %d", height)
	}

	_, err = paramsService.AdvanceChainHeight(ctx, "NotTheAdmin1111111111111111111111111111111", 1)
	if !errors.Is(err, lending.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}

	_, err = paramsService.AdvanceChainHeight(ctx, testAdminWallet, 0)
	if !errors.Is(err, lending.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount for zero blocks, got %v", err)
	}
}
