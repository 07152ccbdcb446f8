/*
store.go - Persistence contracts for the payout engine

PURPOSE:
  Defines the interface between the run orchestration and the backing
  relational store. The engine has no wire protocol of its own; its
  whole boundary is these data contracts.

WRITE CONTRACTS THE STORE MUST HONOR:
  - ReplacePayouts(run, employee, rows) is atomic per (run, employee)
    pair: clear-then-insert, so recalculation is idempotent.
  - TransitionRun is a compare-and-set against the expected current
    status; a mismatch returns engine.ErrConcurrentModification.
  - Uniqueness (one run per month, one payout row per run+employee+type)
    is the store's job, not the engine's.

IMPLEMENTATIONS:
  - payout/store: in-memory, for tests and development
  - store/sqlite: production SQLite (same SQL shape as PostgreSQL)
*/
package payout

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// ErrNotFound is returned for missing employees, adjustments or
// settlements. Missing runs use engine.ErrRunNotFound.
var ErrNotFound = errors.New("record not found")

// =============================================================================
// RUN STORE
// =============================================================================

type RunStore interface {
	// CreateRun inserts a draft run. Returns engine.ErrDuplicateRun when
	// a run already exists for the month.
	CreateRun(ctx context.Context, run *Run) error

	GetRun(ctx context.Context, id engine.RunID) (*Run, error)
	GetRunByMonth(ctx context.Context, month engine.MonthYear) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)

	// TransitionRun is a single atomic compare-and-set: it succeeds only
	// when the stored status still equals from. lock=true also sets
	// is_locked (finalize).
	TransitionRun(ctx context.Context, id engine.RunID, from, to RunStatus, actorID string, lock bool) error

	// UpdateRunTotals records the batch summary on the run.
	UpdateRunTotals(ctx context.Context, id engine.RunID, employees int, totalUSD decimal.Decimal) error

	// DeleteRun removes a run and its payout rows. Callers enforce the
	// draft-only rule.
	DeleteRun(ctx context.Context, id engine.RunID) error
}

// =============================================================================
// REFERENCE STORE - Master data the calculator reads
// =============================================================================

type ReferenceStore interface {
	ListActiveEmployees(ctx context.Context) ([]Employee, error)
	GetEmployee(ctx context.Context, id engine.EmployeeID) (*Employee, error)

	// SegmentsForYear returns an employee's assignment segments touching
	// the fiscal year.
	SegmentsForYear(ctx context.Context, emp engine.EmployeeID, fy engine.FiscalYear) ([]engine.AssignmentSegment, error)

	TargetsForYear(ctx context.Context, emp engine.EmployeeID, year int) ([]PerformanceTarget, error)

	GetPlan(ctx context.Context, id engine.PlanID) (*engine.CompPlan, error)

	// DealsInRange returns every deal closed in [from, to]; the
	// calculator shares one load across the whole batch.
	DealsInRange(ctx context.Context, from, to engine.MonthYear) ([]engine.Deal, error)

	ARRSnapshots(ctx context.Context, fy engine.FiscalYear) ([]engine.ARRSnapshot, error)

	// MarketRates returns local-per-USD rates for one month, by currency.
	MarketRates(ctx context.Context, month engine.MonthYear) (map[string]decimal.Decimal, error)
}

// =============================================================================
// PAYOUT LEDGER STORE
// =============================================================================

type PayoutStore interface {
	// ReplacePayouts atomically clears and rewrites all rows for one
	// (run, employee) pair. This is the idempotence contract.
	ReplacePayouts(ctx context.Context, runID engine.RunID, emp engine.EmployeeID, rows []MonthlyPayout) error

	// AppendPayout adds a single row without clearing (adjustments, F&F).
	AppendPayout(ctx context.Context, row MonthlyPayout) error

	ListPayouts(ctx context.Context, runID engine.RunID) ([]MonthlyPayout, error)
	ListPayoutsForEmployee(ctx context.Context, emp engine.EmployeeID) ([]MonthlyPayout, error)

	// MarkCollectionReleased stamps a row's collection tranche as paid.
	MarkCollectionReleased(ctx context.Context, rowID string, at time.Time) error
}

// =============================================================================
// CLAWBACK / ADJUSTMENT / SETTLEMENT STORES
// =============================================================================

type ClawbackStore interface {
	SaveClawbacks(ctx context.Context, entries []engine.ClawbackEntry) error
	ListClawbacks(ctx context.Context, emp engine.EmployeeID) ([]engine.ClawbackEntry, error)
	UpdateClawback(ctx context.Context, entry engine.ClawbackEntry) error
}

type AdjustmentStore interface {
	SaveAdjustment(ctx context.Context, adj *Adjustment) error
	GetAdjustment(ctx context.Context, id string) (*Adjustment, error)
	UpdateAdjustment(ctx context.Context, adj *Adjustment) error
	ListAdjustments(ctx context.Context, status AdjustmentStatus) ([]*Adjustment, error)
}

type SettlementStore interface {
	SaveSettlement(ctx context.Context, s *Settlement) error
	GetSettlement(ctx context.Context, id string) (*Settlement, error)
	UpdateSettlement(ctx context.Context, s *Settlement) error
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is the full persistence surface a deployment wires in.
type Store interface {
	RunStore
	ReferenceStore
	PayoutStore
	ClawbackStore
	AdjustmentStore
	SettlementStore
}
