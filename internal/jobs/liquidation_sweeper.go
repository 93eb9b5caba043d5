package jobs

import (
	"context"
	"errors"
	"log"
	"time"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/repository"
	"lending-ledger/internal/services"
)

// LiquidationSweeper periodically evaluates every active position against
// the current oracle price. The ledger itself never liquidates on its own;
// the sweeper is the external scheduler invoking the idempotent check.
type LiquidationSweeper struct {
	loanService *services.LoanService
	repo        *repository.Repository
	interval    time.Duration
	stopChan    chan struct{}
}

// NewLiquidationSweeper creates a new liquidation sweep job
func NewLiquidationSweeper(loanService *services.LoanService, repo *repository.Repository, interval time.Duration) *LiquidationSweeper {
	return &LiquidationSweeper{
		loanService: loanService,
		repo:        repo,
		interval:    interval,
		stopChan:    make(chan struct{}),
	}
}

// Start begins the sweep loop
func (ls *LiquidationSweeper) Start() {
	log.Printf("[LiquidationSweeper] Starting liquidation sweep job (interval: %v)", ls.interval)

	ticker := time.NewTicker(ls.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ls.sweep()
		case <-ls.stopChan:
			log.Println("[LiquidationSweeper] Stopping liquidation sweep job")
			return
		}
	}
}

// Stop stops the sweep loop
func (ls *LiquidationSweeper) Stop() {
	close(ls.stopChan)
}

// sweep checks every active position once
func (ls *LiquidationSweeper) sweep() {
	ctx := context.Background()

	ids, err := ls.repo.ListActivePositionIDs(ctx, 500)
	if err != nil {
		log.Printf("[LiquidationSweeper] Error listing active positions: %v", err)
		return
	}

	if len(ids) == 0 {
		return
	}

	liquidatedCount := 0
	for _, id := range ids {
		liquidated, _, err := ls.loanService.CheckLiquidation(ctx, id)
		if err != nil {
			// No price or platform not ready yet; the next sweep retries.
			if errors.Is(err, lending.ErrNotInitialized) {
				return
			}
			log.Printf("[LiquidationSweeper] Error checking position %d: %v", id, err)
			continue
		}
		if liquidated {
			liquidatedCount++
		}
	}

	if liquidatedCount > 0 {
		log.Printf("[LiquidationSweeper] Liquidated %d of %d active positions", liquidatedCount, len(ids))
	}
}
