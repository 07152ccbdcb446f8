/*
run.go - Payout run lifecycle state machine

PURPOSE:
  One PayoutRun exists per calendar month and owns every MonthlyPayout
  row of that month. Its lifecycle is strictly monotonic:

    draft -> review -> approved -> finalized

  There is no backward transition in the engine; reverting is an
  external/manual operation. Finalizing sets is_locked and freezes
  history: corrections afterwards go through the adjustment workflow,
  never through mutation of the locked rows.

CONCURRENCY:
  Status transitions are compare-and-set against the current status so
  two concurrent finalize calls (or a finalize racing a calculate)
  cannot double-lock or interleave.
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// =============================================================================
// RUN STATUS
// =============================================================================

type RunStatus string

const (
	RunDraft     RunStatus = "draft"
	RunReview    RunStatus = "review"
	RunApproved  RunStatus = "approved"
	RunFinalized RunStatus = "finalized"
)

// next maps each status to its only legal successor.
var next = map[RunStatus]RunStatus{
	RunDraft:    RunReview,
	RunReview:   RunApproved,
	RunApproved: RunFinalized,
}

// CanTransition reports whether from -> to is a legal single step.
func CanTransition(from, to RunStatus) bool {
	return next[from] == to
}

// =============================================================================
// RUN
// =============================================================================

// Run is one month's payout batch.
type Run struct {
	ID        engine.RunID
	MonthYear engine.MonthYear
	Status    RunStatus
	IsLocked  bool

	TotalEmployees int
	TotalPayoutUSD decimal.Decimal

	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinalizedAt *time.Time
	FinalizedBy string
}

// Calculable reports whether the run may be (re)calculated: draft or
// review, never once locked.
func (r Run) Calculable() bool {
	return !r.IsLocked && (r.Status == RunDraft || r.Status == RunReview)
}

// =============================================================================
// RUN SERVICE - Lifecycle operations
// =============================================================================

// RunService owns run creation, deletion and status transitions.
type RunService struct {
	Store Store
}

// CreateRun starts a draft run for a month. Only one run per month may
// exist; duplicates are rejected by the store.
func (rs *RunService) CreateRun(ctx context.Context, month engine.MonthYear) (*Run, error) {
	run := &Run{
		ID:             engine.RunID(uuid.NewString()),
		MonthYear:      month,
		Status:         RunDraft,
		TotalPayoutUSD: decimal.Zero,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := rs.Store.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// DeleteRun removes a run. Permitted only while draft.
func (rs *RunService) DeleteRun(ctx context.Context, runID engine.RunID) error {
	run, err := rs.Store.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != RunDraft {
		return fmt.Errorf("%w: run %s is %s", engine.ErrRunNotDraft, runID, run.Status)
	}
	return rs.Store.DeleteRun(ctx, runID)
}

// Transition advances the run one step. The store performs the
// compare-and-set against the expected current status; a lost race
// surfaces as ErrConcurrentModification.
func (rs *RunService) Transition(ctx context.Context, runID engine.RunID, to RunStatus, actorID string) (*Run, error) {
	run, err := rs.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.IsLocked {
		return nil, fmt.Errorf("%w: run %s", engine.ErrRunLocked, runID)
	}
	if !CanTransition(run.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", engine.ErrInvalidTransition, run.Status, to)
	}

	lock := to == RunFinalized
	if err := rs.Store.TransitionRun(ctx, runID, run.Status, to, actorID, lock); err != nil {
		return nil, err
	}
	return rs.Store.GetRun(ctx, runID)
}
