/*
Package payout orchestrates the payout-run lifecycle around the pure
calculation engine.

PURPOSE:
  Where the engine package computes, this package loads, sequences and
  persists: the run state machine (draft -> review -> approved ->
  finalized), prerequisite validation, the batch calculator with its
  worker pool, the adjustment workflow for locked months, and Full &
  Final settlements.

KEY CONCEPTS IN THIS FILE (types.go):
  - Employee: identity, tenure, target variable pay, local currency
  - PerformanceTarget: the denominator for achievement percent
  - MonthlyPayout: the ledger of record, one row per
    (employee, payout type, run), with dual-currency amounts and both
    FX rates carried for audit

SEE ALSO:
  - run.go: The run state machine
  - calculator.go: The batch pass over all employees
*/
package payout

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// =============================================================================
// EMPLOYEE
// =============================================================================

// Employee is the engine's read model of a paid person. Created by HR
// import, never hard-deleted; inactive employees drop out of batches.
type Employee struct {
	ID        engine.EmployeeID
	Name      string
	ManagerID engine.EmployeeID

	HireDate      time.Time
	DepartureDate *time.Time

	// TargetVariablePayUSD is the annual TVP before pro-ration.
	TargetVariablePayUSD decimal.Decimal
	Currency             string

	Active bool
}

// Tenure returns the employment window for pro-ration.
func (e Employee) Tenure() engine.Tenure {
	return engine.Tenure{HireDate: e.HireDate, DepartureDate: e.DepartureDate}
}

// =============================================================================
// PERFORMANCE TARGET
// =============================================================================

// PerformanceTarget is an annual numeric target per employee per metric
// name per year, optionally split by quarter. It is the denominator of
// achievement percent.
type PerformanceTarget struct {
	EmployeeID engine.EmployeeID
	MetricName string
	Year       int

	AnnualUSD  decimal.Decimal
	QuarterUSD map[int]decimal.Decimal // optional, keys 1-4
}

// TargetThrough is the achievement denominator as of a month: the sum of
// quarterly targets up to and including the month's fiscal quarter, or
// the annual target when no quarterly split is configured. Mid-year
// achievement is measured against what was expected so far, not the
// whole year.
func (t PerformanceTarget) TargetThrough(month engine.MonthYear, fy engine.FiscalYear) decimal.Decimal {
	if len(t.QuarterUSD) == 0 {
		return t.AnnualUSD
	}
	months := (month.Year-fy.Start.Year())*12 + int(month.Month) - int(fy.Start.Month())
	quarter := months/3 + 1
	if quarter < 1 {
		quarter = 1
	}
	if quarter > 4 {
		quarter = 4
	}
	total := decimal.Zero
	for q := 1; q <= quarter; q++ {
		total = total.Add(t.QuarterUSD[q])
	}
	return total
}

// =============================================================================
// MONTHLY PAYOUT - The ledger of record
// =============================================================================

type PayoutType string

const (
	PayoutVariablePay PayoutType = "variable_pay"
	PayoutCommission  PayoutType = "commission"
	PayoutNRR         PayoutType = "nrr"
	PayoutSpiff       PayoutType = "spiff"
	PayoutAdjustment  PayoutType = "adjustment"
	PayoutFnF         PayoutType = "fnf"
)

// MonthlyPayout is one ledger row: gross in both currencies, the
// three-way tranche split, and the FX rates actually used. Calculation
// replaces all rows for one (run, employee) pair atomically.
type MonthlyPayout struct {
	ID         string
	RunID      engine.RunID
	EmployeeID engine.EmployeeID
	Type       PayoutType

	GrossUSD   decimal.Decimal
	GrossLocal decimal.Decimal
	Currency   string

	// Both rates ride on every row so audits can detect mismatches.
	FXRate     decimal.Decimal
	RateSource engine.RateSource
	CompRate   decimal.Decimal
	MarketRate decimal.Decimal

	BookingUSD    decimal.Decimal
	CollectionUSD decimal.Decimal
	YearEndUSD    decimal.Decimal

	// CollectionReleasedAt is set when the held collection tranche pays
	// out; nil means still held.
	CollectionReleasedAt *time.Time

	CreatedAt time.Time
}

// CollectionHeld reports whether the row still has a collection tranche
// waiting for release.
func (p MonthlyPayout) CollectionHeld() bool {
	return p.CollectionUSD.IsPositive() && p.CollectionReleasedAt == nil
}

// fromTranches builds a ledger row out of a computed tranche set.
func fromTranches(runID engine.RunID, emp engine.EmployeeID, pt PayoutType, ts engine.TrancheSet, fx engine.FXContext, now time.Time) MonthlyPayout {
	return MonthlyPayout{
		RunID:         runID,
		EmployeeID:    emp,
		Type:          pt,
		GrossUSD:      ts.Gross.USD,
		GrossLocal:    ts.Gross.Local,
		Currency:      ts.Gross.Currency,
		FXRate:        ts.Gross.Rate,
		RateSource:    ts.Gross.Source,
		CompRate:      fx.CompRate,
		MarketRate:    fx.MarketRate,
		BookingUSD:    ts.Booking.USD,
		CollectionUSD: ts.Collection.USD,
		YearEndUSD:    ts.YearEnd.USD,
		CreatedAt:     now,
	}
}
