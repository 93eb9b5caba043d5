package jobs

import (
	"context"
	"log"
	"time"

	"lending-ledger/internal/lending"
	"lending-ledger/internal/services"
)

// ClockFollower advances the stored chain height once per block interval.
// The height is the logical clock every accrual computation reads; nothing
// inside the ledger ever moves it.
type ClockFollower struct {
	paramsService *services.ParamsService
	adminWallet   string
	blockInterval time.Duration
	stopChan      chan struct{}
}

// NewClockFollower creates a new clock follower job
func NewClockFollower(paramsService *services.ParamsService, adminWallet string, blockInterval time.Duration) *ClockFollower {
	return &ClockFollower{
		paramsService: paramsService,
		adminWallet:   adminWallet,
		blockInterval: blockInterval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the clock loop
func (cf *ClockFollower) Start() {
	log.Printf("[ClockFollower] Starting clock follower (block interval: %v)", cf.blockInterval)

	ticker := time.NewTicker(cf.blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cf.tick()
		case <-cf.stopChan:
			log.Println("[ClockFollower] Stopping clock follower")
			return
		}
	}
}

// Stop stops the clock loop
func (cf *ClockFollower) Stop() {
	close(cf.stopChan)
}

func (cf *ClockFollower) tick() {
	ctx := context.Background()

	height, err := cf.paramsService.AdvanceChainHeight(ctx, cf.adminWallet, 1)
	if err != nil {
		log.Printf("[ClockFollower] Error advancing chain height: %v", err)
		return
	}

	// One log line per accrual period keeps the output readable
	if height%lending.UnitsPerPeriod == 0 {
		log.Printf("[ClockFollower] Chain height reached %d", height)
	}
}
