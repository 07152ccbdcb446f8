/*
scheduler.go - Automated monthly run scheduler

PURPOSE:
  Keeps a draft payout run open for the current month and periodically
  recalculates it so reviewers always see fresh numbers. Finalized and
  approved runs are never touched.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Creates the current month's run if none exists yet
  - Recalculates only runs still in a calculable state (draft/review)
  - A lost create race against a concurrent API call is benign

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRunScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CalculateRun endpoint (manual recalculation)
  - payout/calculator.go: Batch calculation
*/
package api

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/store/sqlite"
)

// RunScheduler keeps the current month's draft run present and current.
type RunScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a new scheduler.
func NewRunScheduler(store *sqlite.Store, handler *Handler) *RunScheduler {
	return &RunScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.checkAndProcess()

	for {
		select {
		case <-rs.ticker.C:
			rs.checkAndProcess()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RunScheduler) checkAndProcess() {
	ctx := context.Background()
	now := time.Now().UTC()
	month := engine.NewMonthYear(now.Year(), now.Month())

	run, err := rs.Store.GetRunByMonth(ctx, month)
	switch {
	case errors.Is(err, engine.ErrRunNotFound):
		created, err := rs.Handler.Runs.CreateRun(ctx, month)
		if err != nil {
			// Lost the race against a concurrent create; next tick picks it up.
			if errors.Is(err, engine.ErrDuplicateRun) {
				return
			}
			log.Printf("[Scheduler] Error creating run for %s: %v", month, err)
			return
		}
		run = created
		log.Printf("[Scheduler] Created draft run %s for %s", run.ID, month)
	case err != nil:
		log.Printf("[Scheduler] Error loading run for %s: %v", month, err)
		return
	}

	if !run.Calculable() {
		return
	}

	summary, err := rs.Handler.Calculator.CalculateRun(ctx, run.ID)
	if err != nil {
		// Missing reference data is expected on fresh databases; a locked or
		// concurrently modified run resolves itself next tick.
		log.Printf("[Scheduler] Skipping run %s: %v", run.ID, err)
		return
	}

	log.Printf("[Scheduler] Recalculated %s: %d/%d employees, total $%s",
		month, summary.Succeeded, summary.TotalEmployees, summary.TotalPayoutUSD.StringFixed(2))
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *RunScheduler) RunNow() {
	rs.checkAndProcess()
}

// GetNextRunTime returns when the next scheduled check will occur.
func (rs *RunScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(rs.CheckInterval)
}
