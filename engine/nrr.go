/*
nrr.go - Net-revenue-retention bonus evaluation

SEMANTICS:
  Combines CR/ER actuals and implementation actuals against their
  respective targets into one blended achievement percent. The margin
  gate applies per deal, before aggregation, matching the commission
  evaluator. Payout is weighted by the plan's NRR OTE percentage:

    payout = achievement%/100 * (targetBonus * nrrOtePct/100)

  A plan with OTEPct <= 0 simply has no NRR component; the evaluator
  returns an inapplicable zero result, not an error.
*/
package engine

import "github.com/shopspring/decimal"

// NRRInput carries the targets the NRR bonus measures against.
type NRRInput struct {
	Params         NRRParams
	Deals          []Deal
	Employee       EmployeeID
	CRERTargetUSD  decimal.Decimal
	ImplTargetUSD  decimal.Decimal
	TargetBonusUSD decimal.Decimal
}

// NRRResult is one NRR evaluation.
type NRRResult struct {
	Applicable     bool
	CRERActualUSD  decimal.Decimal
	ImplActualUSD  decimal.Decimal
	AchievementPct decimal.Decimal
	EligibleUSD    decimal.Decimal
	Split          TrancheSplit
}

// EvaluateNRR blends CR/ER and implementation attainment into the
// OTE-weighted NRR payout.
func EvaluateNRR(in NRRInput) NRRResult {
	if !in.Params.OTEPct.IsPositive() {
		return NRRResult{Applicable: false}
	}

	crer, _ := AggregateCommissionRevenue(in.Deals, in.Employee, CommissionCRER, in.Params.MinGPMarginPct)
	impl, _ := AggregateCommissionRevenue(in.Deals, in.Employee, CommissionImplementation, in.Params.MinGPMarginPct)

	// Blend the two streams: combined actual over combined target. When
	// only one target is configured the other stream drops out of both
	// numerator and denominator.
	actual := decimal.Zero
	target := decimal.Zero
	if in.CRERTargetUSD.IsPositive() {
		actual = actual.Add(crer)
		target = target.Add(in.CRERTargetUSD)
	}
	if in.ImplTargetUSD.IsPositive() {
		actual = actual.Add(impl)
		target = target.Add(in.ImplTargetUSD)
	}

	achievement := AchievementPct(actual, target)
	nrrAllocation := in.TargetBonusUSD.Mul(Pct(in.Params.OTEPct))

	return NRRResult{
		Applicable:     true,
		CRERActualUSD:  crer,
		ImplActualUSD:  impl,
		AchievementPct: achievement,
		EligibleUSD:    Pct(achievement).Mul(nrrAllocation),
		Split:          in.Params.Split,
	}
}
