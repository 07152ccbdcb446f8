/*
commission.go - Per-deal-type commission aggregation and rate application

SEMANTICS:
  1. Deals are bucketed by commission type (CR and ER share one bucket).
  2. A configured margin gate filters PER DEAL before aggregation: a deal
     below the minimum GP margin contributes nothing to the aggregate.
     (Gated aggregation, not a gated payout threshold.)
  3. The minimum threshold is all-or-nothing: aggregate below it pays
     zero gross, never a partial amount.
  4. gross = aggregate * rate%.
*/
package engine

import "github.com/shopspring/decimal"

// CommissionResult is one commission evaluation for one employee.
type CommissionResult struct {
	Type         CommissionType
	AggregateUSD decimal.Decimal
	Qualifies    bool
	GrossUSD     decimal.Decimal
	DealCount    int
	Split        TrancheSplit
}

// AggregateCommissionRevenue sums an employee's deal revenue falling in
// one commission bucket, applying the optional per-deal margin gate.
func AggregateCommissionRevenue(deals []Deal, emp EmployeeID, bucket CommissionType, minMargin *decimal.Decimal) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for i := range deals {
		deal := &deals[i]
		if !deal.Involves(emp) {
			continue
		}
		if !deal.MeetsMargin(minMargin) {
			continue
		}
		dealTotal := decimal.Zero
		for rt, v := range deal.Revenue {
			if CommissionBucket(rt) == bucket {
				dealTotal = dealTotal.Add(v)
			}
		}
		if !dealTotal.IsZero() {
			total = total.Add(dealTotal)
			count++
		}
	}
	return total, count
}

// EvaluateCommission runs one plan commission against an employee's deals.
func EvaluateCommission(pc PlanCommission, deals []Deal, emp EmployeeID) CommissionResult {
	aggregate, count := AggregateCommissionRevenue(deals, emp, pc.Type, pc.MinGPMarginPct)

	result := CommissionResult{
		Type:         pc.Type,
		AggregateUSD: aggregate,
		DealCount:    count,
		GrossUSD:     decimal.Zero,
		Split:        pc.Split,
	}

	// All-or-nothing threshold, boundary inclusive.
	if aggregate.LessThan(pc.MinThresholdUSD) {
		return result
	}
	result.Qualifies = true
	result.GrossUSD = aggregate.Mul(Pct(pc.RatePct))
	return result
}
