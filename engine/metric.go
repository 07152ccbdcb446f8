/*
metric.go - Achievement and multiplier resolution (pure functions)

PURPOSE:
  The central per-metric calculation:

    achievementPct = actual / target * 100        (target 0 => 0)
    allocation     = targetBonus * weightage% / 100
    eligible       = achievementPct/100 * allocation * multiplier

  Multiplier resolution depends on the metric's logic type; the gated
  threshold check short-circuits everything to zero.

MULTIPLIER POLICY:
  When stepped-accelerator achievement falls outside every grid band the
  multiplier is ZERO. The alternative (fallback 1.0) quietly pays full
  rate on an unconfigured bucket; zero makes the configuration gap
  visible as a missing payout instead of a surprise payment.
*/
package engine

import "github.com/shopspring/decimal"

// =============================================================================
// ACHIEVEMENT
// =============================================================================

// AchievementPct returns actual/target as a percentage. A zero or
// negative target yields zero, never a divide-by-zero.
func AchievementPct(actual, target decimal.Decimal) decimal.Decimal {
	if target.IsZero() || target.IsNegative() {
		return decimal.Zero
	}
	return actual.Div(target).Mul(hundred)
}

// =============================================================================
// MULTIPLIER RESOLUTION
// =============================================================================

// ResolveMultiplier returns the payout multiplier for a metric's logic
// type at a given achievement percent. Gating is handled separately in
// EvaluateMetric; here gated metrics resolve like stepped ones when a
// grid exists, else multiplier 1.
func ResolveMultiplier(logic LogicType, grid MultiplierGrid, achievementPct decimal.Decimal) decimal.Decimal {
	switch logic {
	case LogicLinear:
		return decimal.NewFromInt(1)

	case LogicSteppedAccelerator:
		for _, band := range grid.Sorted() {
			if band.Contains(achievementPct) {
				return band.Multiplier
			}
		}
		return decimal.Zero

	case LogicGatedThreshold:
		if len(grid) == 0 {
			return decimal.NewFromInt(1)
		}
		for _, band := range grid.Sorted() {
			if band.Contains(achievementPct) {
				return band.Multiplier
			}
		}
		return decimal.Zero

	default:
		// Unknown logic type is a configuration gap: pay nothing.
		return decimal.Zero
	}
}

// =============================================================================
// METRIC EVALUATION
// =============================================================================

// MetricInput is everything one metric evaluation needs.
type MetricInput struct {
	Metric         PlanMetric
	ActualUSD      decimal.Decimal
	TargetUSD      decimal.Decimal // the performance target (denominator)
	TargetBonusUSD decimal.Decimal // blended, pro-rated target bonus
}

// MetricResult is the outcome of one metric evaluation. A gated or
// unconfigured metric produces a zero EligibleUSD with the achievement
// still reported, so dashboards can show attainment on unpaid metrics.
type MetricResult struct {
	MetricName     string
	AchievementPct decimal.Decimal
	Multiplier     decimal.Decimal
	AllocationUSD  decimal.Decimal
	EligibleUSD    decimal.Decimal
	Gated          bool
	Split          TrancheSplit
}

// EvaluateMetric runs the full per-metric calculation. Pure function.
func EvaluateMetric(in MetricInput) MetricResult {
	achievement := AchievementPct(in.ActualUSD, in.TargetUSD)
	allocation := in.TargetBonusUSD.Mul(Pct(in.Metric.WeightagePct))

	result := MetricResult{
		MetricName:     in.Metric.Name,
		AchievementPct: achievement,
		AllocationUSD:  allocation,
		EligibleUSD:    decimal.Zero,
		Split:          in.Metric.Split,
	}

	// Gate boundary is inclusive: exactly-at-gate pays zero.
	if in.Metric.Logic == LogicGatedThreshold && !achievement.GreaterThan(in.Metric.GatePct) {
		result.Gated = true
		return result
	}

	result.Multiplier = ResolveMultiplier(in.Metric.Logic, in.Metric.Grid, achievement)
	result.EligibleUSD = Pct(achievement).Mul(allocation).Mul(result.Multiplier)
	return result
}
