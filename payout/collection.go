/*
collection.go - Releasing held collection tranches

PURPOSE:
  Booking tranches pay out at calculation; the collection portion of
  every ledger row is held until the employee's underlying deals
  collect, or until the configured grace period since the run's month
  has elapsed (unconditional release). This service walks a finalized
  run's rows, applies the release rule per row, and stamps released
  rows so a later pass never pays them twice.

  Release is deliberately gated on finalized runs: a draft run's rows
  can still be replaced by recalculation, so stamping them would be
  meaningless.
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// ReleaseSummary reports what one release pass did.
type ReleaseSummary struct {
	RunID        engine.RunID
	ReleasedRows int
	ReleasedUSD  decimal.Decimal
	HeldRows     int
	HeldUSD      decimal.Decimal
}

// CollectionService releases held collection tranches for finalized runs.
type CollectionService struct {
	Store    Store
	Settings Settings
}

// ReleaseRun applies the collection release rule to every held row of a
// finalized run as of the given time. Already-released rows are skipped,
// so the pass is idempotent.
func (cs *CollectionService) ReleaseRun(ctx context.Context, runID engine.RunID, asOf time.Time) (*ReleaseSummary, error) {
	run, err := cs.Store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !run.IsLocked {
		return nil, fmt.Errorf("%w: run %s is %s", engine.ErrRunNotFinalized, runID, run.Status)
	}

	settings := cs.Settings.withDefaults()
	dealsByEmployee, err := cs.loadDeals(ctx, run.MonthYear, settings)
	if err != nil {
		return nil, err
	}

	rows, err := cs.Store.ListPayouts(ctx, runID)
	if err != nil {
		return nil, err
	}

	// The collection clock starts when the run's month closed.
	bookedAt := run.MonthYear.End()

	summary := &ReleaseSummary{
		RunID:       runID,
		ReleasedUSD: decimal.Zero,
		HeldUSD:     decimal.Zero,
	}
	for _, row := range rows {
		if !row.CollectionHeld() {
			continue
		}
		if !cs.releasable(dealsByEmployee[row.EmployeeID], bookedAt, settings.CollectionGraceDays, asOf) {
			summary.HeldRows++
			summary.HeldUSD = summary.HeldUSD.Add(row.CollectionUSD)
			continue
		}
		if err := cs.Store.MarkCollectionReleased(ctx, row.ID, asOf); err != nil {
			return nil, fmt.Errorf("releasing row %s: %w", row.ID, err)
		}
		summary.ReleasedRows++
		summary.ReleasedUSD = summary.ReleasedUSD.Add(row.CollectionUSD)
	}
	return summary, nil
}

// releasable requires every deal the employee is credited on to pass
// the release rule; one uncollected deal inside the grace window holds
// the whole tranche. An employee with no deals falls back to the grace
// rule alone.
func (cs *CollectionService) releasable(deals []*engine.Deal, bookedAt time.Time, graceDays int, asOf time.Time) bool {
	if len(deals) == 0 {
		return engine.CollectionReleased(nil, bookedAt, graceDays, asOf)
	}
	for _, deal := range deals {
		if !engine.CollectionReleased(deal, bookedAt, graceDays, asOf) {
			return false
		}
	}
	return true
}

// loadDeals groups the fiscal year's deals through the run month by
// credited participant.
func (cs *CollectionService) loadDeals(ctx context.Context, month engine.MonthYear, settings Settings) (map[engine.EmployeeID][]*engine.Deal, error) {
	fy := engine.FiscalYearFor(month.Start(), settings.FiscalYearStartMonth)
	fyStartMonth := engine.NewMonthYear(fy.Start.Year(), fy.Start.Month())

	deals, err := cs.Store.DealsInRange(ctx, fyStartMonth, month)
	if err != nil {
		return nil, err
	}

	byEmployee := make(map[engine.EmployeeID][]*engine.Deal)
	for i := range deals {
		deal := &deals[i]
		seen := make(map[engine.EmployeeID]bool, len(deal.Participants))
		for _, emp := range deal.Participants {
			if emp == "" || seen[emp] {
				continue
			}
			seen[emp] = true
			byEmployee[emp] = append(byEmployee[emp], deal)
		}
	}
	return byEmployee, nil
}
