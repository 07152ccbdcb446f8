/*
validation.go - Run prerequisite validation

PURPOSE:
  Before a batch may calculate, every precondition is checked and EVERY
  problem is collected into one structured list, so the caller can fix
  them all at once instead of replaying the batch per failure:

    - a market exchange rate exists for each local currency in use
    - every active employee has at least one assignment segment active
      in the run month
    - assignment segments do not overlap within the fiscal year
    - every active employee has a performance target for the year

  Zero blocking issues is the gate for CalculateRun.
*/
package payout

import (
	"context"
	"fmt"

	"github.com/warp/payout-engine/engine"
)

// ValidationReport is the caller-facing result of a prerequisite pass.
type ValidationReport struct {
	Month   engine.MonthYear
	IsValid bool
	Issues  []engine.ValidationIssue
}

// Validator runs the prerequisite checks for a month.
type Validator struct {
	Store    Store
	Settings Settings
}

// Validate collects every blocking issue for the month.
func (v *Validator) Validate(ctx context.Context, month engine.MonthYear) (*ValidationReport, error) {
	issues := &engine.ValidationIssues{}
	fy := engine.FiscalYearFor(month.Start(), v.Settings.FiscalYearStartMonth)

	employees, err := v.Store.ListActiveEmployees(ctx)
	if err != nil {
		return nil, err
	}

	rates, err := v.Store.MarketRates(ctx, month)
	if err != nil {
		return nil, err
	}

	// Every non-USD currency in use needs a market rate this month.
	missingRate := make(map[string]bool)
	for _, emp := range employees {
		if emp.Currency == "" || emp.Currency == "USD" {
			continue
		}
		if _, ok := rates[emp.Currency]; !ok && !missingRate[emp.Currency] {
			missingRate[emp.Currency] = true
			issues.Add(engine.IssueMissingExchangeRate,
				fmt.Sprintf("no market rate for %s in %s", emp.Currency, month))
		}
	}

	for _, emp := range employees {
		segments, err := v.Store.SegmentsForYear(ctx, emp.ID, fy)
		if err != nil {
			return nil, err
		}

		active := false
		for _, seg := range segments {
			if seg.ActiveIn(month) {
				active = true
				break
			}
		}
		if !active {
			issues.AddFor(emp.ID, engine.IssueMissingAssignment,
				fmt.Sprintf("no assignment active in %s", month))
		}

		if err := engine.CheckSegmentOverlap(segments, fy); err != nil {
			issues.AddFor(emp.ID, engine.IssueOverlappingSegments, err.Error())
		}

		targets, err := v.Store.TargetsForYear(ctx, emp.ID, fy.Start.Year())
		if err != nil {
			return nil, err
		}
		if len(targets) == 0 {
			issues.AddFor(emp.ID, engine.IssueMissingTarget,
				fmt.Sprintf("no performance target for %d", fy.Start.Year()))
		}
	}

	return &ValidationReport{
		Month:   month,
		IsValid: !issues.Blocking(),
		Issues:  issues.Issues,
	}, nil
}
