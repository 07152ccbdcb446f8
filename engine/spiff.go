/*
spiff.go - Flat-rate SPIFF bonuses

SEMANTICS:
  payout = sum(qualifying deal value) * rate%, where a deal qualifies
  when its primary value meets the configured minimum. No stepped or
  gated structure. The linked metric name is for aggregation/reporting
  only; it does not change the math.
*/
package engine

import "github.com/shopspring/decimal"

// SpiffResult is one SPIFF evaluation for one employee.
type SpiffResult struct {
	Name           string
	MetricName     string
	QualifyingUSD  decimal.Decimal
	DealCount      int
	PayoutUSD      decimal.Decimal
}

// EvaluateSpiff totals qualifying deal value and applies the flat rate.
// Qualification boundary is inclusive (value == minimum qualifies).
func EvaluateSpiff(sp PlanSpiff, deals []Deal, emp EmployeeID) SpiffResult {
	result := SpiffResult{Name: sp.Name, MetricName: sp.MetricName, PayoutUSD: decimal.Zero}

	for i := range deals {
		deal := &deals[i]
		if !deal.Involves(emp) {
			continue
		}
		value := deal.PrimaryValue()
		if value.LessThan(sp.MinDealValueUSD) {
			continue
		}
		result.QualifyingUSD = result.QualifyingUSD.Add(value)
		result.DealCount++
	}

	result.PayoutUSD = result.QualifyingUSD.Mul(Pct(sp.RatePct))
	return result
}
