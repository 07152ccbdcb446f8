/*
calculator.go - The monthly batch pass

PURPOSE:
  "Calculate" is one pass over all active employees for a run's month.
  Per-employee computation is embarrassingly parallel, so a bounded
  worker pool processes employees concurrently; the store serializes
  writes per (run, employee) pair, which is all the ordering the
  idempotence contract needs.

FAILURE SEMANTICS:
  One employee's failure never invalidates siblings. Failures are
  collected into the run summary and the batch continues. Context
  cancellation stops scheduling new employees; already-persisted
  results stay committed.

IDEMPOTENCE:
  Calculation replaces all MonthlyPayout rows for (run, employee):
  clear-then-recompute, a pure function of the inputs. Recalculating a
  draft run twice with unchanged inputs produces identical totals.

SEE ALSO:
  - validation.go: The zero-blocking-issues gate
  - engine: The pure per-employee math
*/
package payout

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// Well-known target metric names the NRR evaluator reads.
const (
	TargetCRER           = "cr_er"
	TargetImplementation = "implementation"
)

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// EmployeeFailure is one isolated per-employee error in a batch.
type EmployeeFailure struct {
	EmployeeID engine.EmployeeID
	Err        string
}

// RunSummary is what a calculate call reports for observability.
type RunSummary struct {
	RunID          engine.RunID
	Month          engine.MonthYear
	TotalEmployees int
	Succeeded      int
	TotalPayoutUSD decimal.Decimal
	Failures       []EmployeeFailure
}

// =============================================================================
// EMPLOYEE STATEMENT - Full per-employee computation detail
// =============================================================================

// EmployeeStatement carries every intermediate result for one employee.
// The ledger rows are derived from it; F&F settlements reuse it.
type EmployeeStatement struct {
	EmployeeID engine.EmployeeID
	PlanID     engine.PlanID

	TargetBonusUSD decimal.Decimal
	FX             engine.FXContext

	Metrics     []engine.MetricResult
	Commissions []engine.CommissionResult
	NRR         engine.NRRResult
	Spiffs      []engine.SpiffResult
	Shares      []engine.DealShare

	VariablePay engine.TrancheSet
	Commission  engine.TrancheSet
	NRRTranches engine.TrancheSet
	SpiffUSD    decimal.Decimal

	Rows      []MonthlyPayout
	Clawbacks []engine.ClawbackEntry
}

// TotalUSD is the statement's gross across payout types.
func (s *EmployeeStatement) TotalUSD() decimal.Decimal {
	total := decimal.Zero
	for _, row := range s.Rows {
		total = total.Add(row.GrossUSD)
	}
	return total
}

// =============================================================================
// CALCULATOR
// =============================================================================

type Calculator struct {
	Store    Store
	Settings Settings
}

// batchInputs is the data loaded once and shared read-only by workers.
type batchInputs struct {
	fy        engine.FiscalYear
	month     engine.MonthYear
	deals     []engine.Deal
	snapshots []engine.ARRSnapshot
	rates     map[string]decimal.Decimal
}

// CalculateRun validates prerequisites then recomputes every active
// employee's payouts for the run's month.
func (c *Calculator) CalculateRun(ctx context.Context, runID engine.RunID) (*RunSummary, error) {
	settings := c.Settings.withDefaults()

	run, err := c.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.IsLocked {
		return nil, fmt.Errorf("%w: run %s", engine.ErrRunLocked, runID)
	}
	if !run.Calculable() {
		return nil, fmt.Errorf("%w: cannot calculate from %s", engine.ErrInvalidTransition, run.Status)
	}

	validator := &Validator{Store: c.Store, Settings: settings}
	report, err := validator.Validate(ctx, run.MonthYear)
	if err != nil {
		return nil, err
	}
	if !report.IsValid {
		return nil, &engine.ValidationIssues{Issues: report.Issues}
	}

	inputs, err := c.loadInputs(ctx, run.MonthYear, settings)
	if err != nil {
		return nil, err
	}

	employees, err := c.Store.ListActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{
		RunID:          runID,
		Month:          run.MonthYear,
		TotalEmployees: len(employees),
		TotalPayoutUSD: decimal.Zero,
	}

	type result struct {
		emp      engine.EmployeeID
		totalUSD decimal.Decimal
		err      error
	}

	jobs := make(chan Employee)
	results := make(chan result, len(employees))

	var wg sync.WaitGroup
	for i := 0; i < settings.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for emp := range jobs {
				total, err := c.calculateEmployee(ctx, run, emp, inputs, settings)
				results <- result{emp: emp.ID, totalUSD: total, err: err}
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, emp := range employees {
		select {
		case jobs <- emp:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			summary.Failures = append(summary.Failures, EmployeeFailure{EmployeeID: r.emp, Err: r.err.Error()})
			continue
		}
		summary.Succeeded++
		summary.TotalPayoutUSD = summary.TotalPayoutUSD.Add(r.totalUSD)
	}

	if err := c.Store.UpdateRunTotals(ctx, runID, summary.Succeeded, summary.TotalPayoutUSD); err != nil {
		return summary, err
	}

	log.Printf("[Calculator] run %s (%s): %d/%d employees, total %s USD, %d failure(s)",
		runID, run.MonthYear, summary.Succeeded, summary.TotalEmployees,
		summary.TotalPayoutUSD.StringFixed(2), len(summary.Failures))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Calculator) loadInputs(ctx context.Context, month engine.MonthYear, settings Settings) (*batchInputs, error) {
	fy := engine.FiscalYearFor(month.Start(), settings.FiscalYearStartMonth)

	fyStartMonth := engine.NewMonthYear(fy.Start.Year(), fy.Start.Month())
	deals, err := c.Store.DealsInRange(ctx, fyStartMonth, month)
	if err != nil {
		return nil, err
	}

	snapshots, err := c.Store.ARRSnapshots(ctx, fy)
	if err != nil {
		return nil, err
	}

	rates, err := c.Store.MarketRates(ctx, month)
	if err != nil {
		return nil, err
	}

	return &batchInputs{fy: fy, month: month, deals: deals, snapshots: snapshots, rates: rates}, nil
}

// calculateEmployee computes and persists one employee's statement.
// Writes are scoped to this employee so a failure here cannot touch
// siblings.
func (c *Calculator) calculateEmployee(ctx context.Context, run *Run, emp Employee, in *batchInputs, settings Settings) (decimal.Decimal, error) {
	stmt, err := c.ComputeStatement(ctx, run.ID, emp, in)
	if err != nil {
		return decimal.Zero, err
	}

	if err := c.Store.ReplacePayouts(ctx, run.ID, emp.ID, stmt.Rows); err != nil {
		return decimal.Zero, fmt.Errorf("persisting payouts: %w", err)
	}
	if len(stmt.Clawbacks) > 0 {
		if err := c.Store.SaveClawbacks(ctx, stmt.Clawbacks); err != nil {
			return decimal.Zero, fmt.Errorf("persisting clawbacks: %w", err)
		}
	}
	return stmt.TotalUSD(), nil
}

// =============================================================================
// PER-EMPLOYEE COMPUTATION
// =============================================================================

// ComputeStatement runs the full engine pipeline for one employee.
// Configuration gaps (no plan, no matching metric, empty grid bucket)
// degrade to zero-amount results; only data errors (overlapping
// segments, store failures) return an error.
func (c *Calculator) ComputeStatement(ctx context.Context, runID engine.RunID, emp Employee, in *batchInputs) (*EmployeeStatement, error) {
	segments, err := c.Store.SegmentsForYear(ctx, emp.ID, in.fy)
	if err != nil {
		return nil, err
	}

	blended, err := engine.BlendTargetBonus(segments, emp.Tenure(), in.fy)
	if err != nil {
		return nil, err
	}

	stmt := &EmployeeStatement{
		EmployeeID:     emp.ID,
		TargetBonusUSD: blended.TotalUSD,
		FX:             engine.USDContext(),
	}

	seg := activeSegment(segments, in.month)
	if seg == nil {
		// No assignment this month: replace with nothing (clears stale rows).
		return stmt, nil
	}
	stmt.PlanID = seg.PlanID

	if emp.Currency != "" && emp.Currency != "USD" {
		stmt.FX = engine.FXContext{
			Currency:   emp.Currency,
			CompRate:   seg.CompRate,
			MarketRate: in.rates[emp.Currency],
		}
	}

	plan, err := c.Store.GetPlan(ctx, seg.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return stmt, nil
	}

	targets, err := c.Store.TargetsForYear(ctx, emp.ID, in.fy.Start.Year())
	if err != nil {
		return nil, err
	}
	targetByMetric := make(map[string]decimal.Decimal, len(targets))
	for _, t := range targets {
		targetByMetric[t.MetricName] = t.TargetThrough(in.month, in.fy)
	}

	now := time.Now().UTC()
	asOf := in.month.End()

	// --- Variable pay: weighted metrics --------------------------------
	variableEligible := decimal.Zero
	vp := engine.TrancheSet{Gross: stmt.FX.VariablePay(decimal.Zero)}
	for _, metric := range plan.Metrics {
		actual := c.metricActual(metric, emp.ID, plan, in)
		result := engine.EvaluateMetric(engine.MetricInput{
			Metric:         metric,
			ActualUSD:      actual,
			TargetUSD:      targetByMetric[metric.Name],
			TargetBonusUSD: blended.TotalUSD,
		})
		stmt.Metrics = append(stmt.Metrics, result)
		variableEligible = variableEligible.Add(result.EligibleUSD)

		ts := engine.SplitTranches(stmt.FX.VariablePay(result.EligibleUSD), metric.Split)
		vp = addTranches(vp, ts)
	}
	stmt.VariablePay = vp

	// --- Commissions ---------------------------------------------------
	comm := engine.TrancheSet{Gross: stmt.FX.Commission(decimal.Zero)}
	for _, pc := range plan.Commissions {
		result := engine.EvaluateCommission(pc, in.deals, emp.ID)
		stmt.Commissions = append(stmt.Commissions, result)
		ts := engine.SplitTranches(stmt.FX.Commission(result.GrossUSD), pc.Split)
		comm = addTranches(comm, ts)
	}
	stmt.Commission = comm

	// --- NRR -----------------------------------------------------------
	stmt.NRR = engine.EvaluateNRR(engine.NRRInput{
		Params:         plan.NRR,
		Deals:          in.deals,
		Employee:       emp.ID,
		CRERTargetUSD:  targetByMetric[TargetCRER],
		ImplTargetUSD:  targetByMetric[TargetImplementation],
		TargetBonusUSD: blended.TotalUSD,
	})
	if stmt.NRR.Applicable {
		stmt.NRRTranches = engine.SplitTranches(stmt.FX.VariablePay(stmt.NRR.EligibleUSD), stmt.NRR.Split)
	}

	// --- SPIFFs --------------------------------------------------------
	spiffTotal := decimal.Zero
	for _, sp := range plan.Spiffs {
		result := engine.EvaluateSpiff(sp, in.deals, emp.ID)
		stmt.Spiffs = append(stmt.Spiffs, result)
		spiffTotal = spiffTotal.Add(result.PayoutUSD)
	}
	stmt.SpiffUSD = spiffTotal

	// --- Ledger rows ---------------------------------------------------
	if len(plan.Metrics) > 0 {
		row := fromTranches(runID, emp.ID, PayoutVariablePay, stmt.VariablePay, stmt.FX, now)
		row.ID = uuid.NewString()
		stmt.Rows = append(stmt.Rows, row)
	}
	if len(plan.Commissions) > 0 {
		row := fromTranches(runID, emp.ID, PayoutCommission, stmt.Commission, stmt.FX, now)
		row.ID = uuid.NewString()
		stmt.Rows = append(stmt.Rows, row)
	}
	if stmt.NRR.Applicable {
		row := fromTranches(runID, emp.ID, PayoutNRR, stmt.NRRTranches, stmt.FX, now)
		row.ID = uuid.NewString()
		stmt.Rows = append(stmt.Rows, row)
	}
	if spiffTotal.IsPositive() {
		// SPIFFs pay out in full at booking.
		ts := engine.SplitTranches(stmt.FX.Commission(spiffTotal), engine.TrancheSplit{BookingPct: hundredPct})
		row := fromTranches(runID, emp.ID, PayoutSpiff, ts, stmt.FX, now)
		row.ID = uuid.NewString()
		stmt.Rows = append(stmt.Rows, row)
	}

	// --- Attribution and clawback --------------------------------------
	stmt.Shares = engine.SplitVariablePay(variableEligible, in.deals, emp.ID, plan, asOf)
	stmt.Clawbacks = c.computeClawbacks(ctx, emp.ID, plan, stmt, in, asOf)

	return stmt, nil
}

// metricActual resolves a metric's actual from its declared source.
func (c *Calculator) metricActual(metric engine.PlanMetric, emp engine.EmployeeID, plan *engine.CompPlan, in *batchInputs) decimal.Decimal {
	switch metric.Source {
	case engine.MetricSourceClosingARR:
		var owned []engine.ARRSnapshot
		for _, s := range in.snapshots {
			if s.OwnerID == emp {
				owned = append(owned, s)
			}
		}
		return engine.LatestARR(owned, in.month, in.fy)
	default:
		return engine.AchievementCredit(in.deals, emp, plan)
	}
}

// computeClawbacks turns the booking portions of past-due deal shares
// into ledger entries, skipping deals already ledgered.
func (c *Calculator) computeClawbacks(ctx context.Context, emp engine.EmployeeID, plan *engine.CompPlan, stmt *EmployeeStatement, in *batchInputs, asOf time.Time) []engine.ClawbackEntry {
	if plan.ClawbackExempt || len(stmt.Shares) == 0 {
		return nil
	}

	existing := make(map[engine.DealID]bool)
	if entries, err := c.Store.ListClawbacks(ctx, emp); err == nil {
		for _, e := range entries {
			existing[e.DealID] = true
		}
	}

	dealsByID := make(map[engine.DealID]*engine.Deal, len(in.deals))
	for i := range in.deals {
		dealsByID[in.deals[i].ID] = &in.deals[i]
	}

	var paid []engine.PaidBooking
	bookingUSD := stmt.VariablePay.Booking.USD
	for _, share := range stmt.Shares {
		if !share.ClawbackEligible {
			continue
		}
		paid = append(paid, engine.PaidBooking{
			EmployeeID: emp,
			DealID:     share.DealID,
			AmountUSD:  bookingUSD.Mul(share.Fraction),
			PaidAt:     asOf,
		})
	}

	entries := engine.ComputeClawbacks(paid, dealsByID, plan, existing, asOf)
	for i := range entries {
		entries[i].ID = uuid.NewString()
	}
	return entries
}

// =============================================================================
// HELPERS
// =============================================================================

var hundredPct = decimal.NewFromInt(100)

// activeSegment picks the segment covering the month (the latest one
// touching it when a plan changed mid-month).
func activeSegment(segments []engine.AssignmentSegment, month engine.MonthYear) *engine.AssignmentSegment {
	var pick *engine.AssignmentSegment
	for i := range segments {
		seg := &segments[i]
		if !seg.ActiveIn(month) {
			continue
		}
		if pick == nil || seg.From.After(pick.From) {
			pick = seg
		}
	}
	return pick
}

func addTranches(a, b engine.TrancheSet) engine.TrancheSet {
	a.Gross = a.Gross.Add(b.Gross)
	a.Booking = a.Booking.Add(b.Booking)
	a.Collection = a.Collection.Add(b.Collection)
	a.YearEnd = a.YearEnd.Add(b.YearEnd)
	return a
}
