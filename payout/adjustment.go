/*
adjustment.go - Corrections for locked months

PURPOSE:
  Once a run is finalized its rows never change. A correction becomes a
  PayoutAdjustment that walks pending -> approved/rejected -> applied.
  Applying materializes a brand-new MonthlyPayout row in a caller-chosen
  target month, leaving locked history byte-identical.
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
// ADJUSTMENT
// =============================================================================

type AdjustmentStatus string

const (
	AdjustmentPending  AdjustmentStatus = "pending"
	AdjustmentApproved AdjustmentStatus = "approved"
	AdjustmentRejected AdjustmentStatus = "rejected"
	AdjustmentApplied  AdjustmentStatus = "applied"
)

// Adjustment is one correction record.
type Adjustment struct {
	ID         string
	EmployeeID engine.EmployeeID

	// AmountUSD may be negative (a recovery).
	AmountUSD decimal.Decimal
	Reason    string

	// TargetMonth is the caller-chosen month whose run receives the
	// materialized row.
	TargetMonth engine.MonthYear

	Status     AdjustmentStatus
	CreatedBy  string
	ReviewedBy string
	AppliedRun engine.RunID

	CreatedAt  time.Time
	ReviewedAt *time.Time
	AppliedAt  *time.Time
}

// =============================================================================
// ADJUSTMENT SERVICE
// =============================================================================

type AdjustmentService struct {
	Store Store
}

// Create records a pending adjustment.
func (as *AdjustmentService) Create(ctx context.Context, emp engine.EmployeeID, amountUSD decimal.Decimal, reason string, target engine.MonthYear, actorID string) (*Adjustment, error) {
	adj := &Adjustment{
		ID:          uuid.NewString(),
		EmployeeID:  emp,
		AmountUSD:   amountUSD,
		Reason:      reason,
		TargetMonth: target,
		Status:      AdjustmentPending,
		CreatedBy:   actorID,
		CreatedAt:   time.Now().UTC(),
	}
	if err := as.Store.SaveAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// Approve moves a pending adjustment to approved.
func (as *AdjustmentService) Approve(ctx context.Context, id, reviewerID string) (*Adjustment, error) {
	return as.review(ctx, id, reviewerID, AdjustmentApproved)
}

// Reject moves a pending adjustment to rejected.
func (as *AdjustmentService) Reject(ctx context.Context, id, reviewerID string) (*Adjustment, error) {
	return as.review(ctx, id, reviewerID, AdjustmentRejected)
}

func (as *AdjustmentService) review(ctx context.Context, id, reviewerID string, to AdjustmentStatus) (*Adjustment, error) {
	adj, err := as.Store.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj.Status != AdjustmentPending {
		return nil, fmt.Errorf("adjustment %s is %s, expected pending", id, adj.Status)
	}
	now := time.Now().UTC()
	adj.Status = to
	adj.ReviewedBy = reviewerID
	adj.ReviewedAt = &now
	if err := as.Store.UpdateAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}

// Apply materializes an approved adjustment as a new MonthlyPayout row
// in the target month's run. The target run must exist and be unlocked;
// locked history is never touched.
func (as *AdjustmentService) Apply(ctx context.Context, id string) (*Adjustment, error) {
	adj, err := as.Store.GetAdjustment(ctx, id)
	if err != nil {
		return nil, err
	}
	if adj.Status != AdjustmentApproved {
		return nil, fmt.Errorf("%w: adjustment %s is %s", engine.ErrAdjustmentNotApproved, id, adj.Status)
	}

	run, err := as.Store.GetRunByMonth(ctx, adj.TargetMonth)
	if err != nil {
		return nil, err
	}
	if run.IsLocked {
		return nil, fmt.Errorf("%w: target run %s", engine.ErrRunLocked, run.ID)
	}

	emp, err := as.Store.GetEmployee(ctx, adj.EmployeeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rates, err := as.Store.MarketRates(ctx, adj.TargetMonth)
	if err != nil {
		return nil, err
	}

	fx := engine.USDContext()
	if emp.Currency != "" && emp.Currency != "USD" {
		fx = engine.FXContext{Currency: emp.Currency, CompRate: rates[emp.Currency], MarketRate: rates[emp.Currency]}
	}

	// An adjustment pays (or recovers) in full at booking.
	gross := fx.Commission(adj.AmountUSD)
	row := MonthlyPayout{
		ID:         uuid.NewString(),
		RunID:      run.ID,
		EmployeeID: adj.EmployeeID,
		Type:       PayoutAdjustment,
		GrossUSD:   gross.USD,
		GrossLocal: gross.Local,
		Currency:   gross.Currency,
		FXRate:     gross.Rate,
		RateSource: gross.Source,
		CompRate:   fx.CompRate,
		MarketRate: fx.MarketRate,
		BookingUSD: gross.USD,
		CreatedAt:  now,
	}
	if err := as.Store.AppendPayout(ctx, row); err != nil {
		return nil, err
	}

	adj.Status = AdjustmentApplied
	adj.AppliedRun = run.ID
	adj.AppliedAt = &now
	if err := as.Store.UpdateAdjustment(ctx, adj); err != nil {
		return nil, err
	}
	return adj, nil
}
