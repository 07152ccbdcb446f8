/*
plan.go - Compensation plan configuration types

PURPOSE:
  Defines the rules that govern how an employee is paid: weighted metrics
  with multiplier curves, deal-type commissions, SPIFFs, and NRR bonus
  parameters. A CompPlan is the contract between the organization and an
  employee about variable compensation.

KEY CONCEPTS:
  - PlanMetric: weighted metric with a logic type and multiplier grid
  - MultiplierGrid: achievement-percent bands mapping to multipliers
  - PlanCommission: rate + threshold + optional margin gate per deal type
  - PlanSpiff: flat-rate bonus on qualifying deals
  - NRRParams: OTE-percentage-weighted renewal/implementation bonus
  - RoleMapping: which participant roles a plan credits

IMMUTABILITY:
  A plan referenced by a finalized run must not change. That is a caller
  convention; the engine treats every plan it is handed as read-only.

SEE ALSO:
  - metric.go: How LogicType and MultiplierGrid resolve a multiplier
  - factory/plan.go: JSON plan definitions
*/
package engine

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOGIC TYPES
// =============================================================================

type LogicType string

const (
	// LogicLinear pays achievement% of allocation with multiplier 1.
	LogicLinear LogicType = "linear"

	// LogicSteppedAccelerator resolves the multiplier from the grid band
	// containing the achievement percent. Outside every band the
	// multiplier is zero; there is no extrapolation.
	LogicSteppedAccelerator LogicType = "stepped_accelerator"

	// LogicGatedThreshold pays zero at or below the gate threshold.
	// The boundary is inclusive: exactly-at-gate pays nothing.
	LogicGatedThreshold LogicType = "gated_threshold"
)

// =============================================================================
// MULTIPLIER GRID
// =============================================================================

// GridBand is one row of a stepped-accelerator curve: achievement in
// [Min, Max) earns Multiplier. A nil Max means the band is unbounded.
type GridBand struct {
	Min        decimal.Decimal
	Max        *decimal.Decimal
	Multiplier decimal.Decimal
}

// Contains reports whether the achievement percent falls in this band.
// Lower bound inclusive, upper bound exclusive.
func (b GridBand) Contains(achievementPct decimal.Decimal) bool {
	if achievementPct.LessThan(b.Min) {
		return false
	}
	if b.Max != nil && !achievementPct.LessThan(*b.Max) {
		return false
	}
	return true
}

// MultiplierGrid is an ordered, non-overlapping set of bands.
type MultiplierGrid []GridBand

// Sorted returns the grid ordered by Min ascending. Evaluation relies on
// first-match, so ordering matters for malformed (overlapping) input.
func (g MultiplierGrid) Sorted() MultiplierGrid {
	out := make(MultiplierGrid, len(g))
	copy(out, g)
	sort.Slice(out, func(i, j int) bool { return out[i].Min.LessThan(out[j].Min) })
	return out
}

// =============================================================================
// TRANCHE SPLIT - Booking / collection / year-end percentages
// =============================================================================

// TrancheSplit holds the three-way percentage split applied to a gross
// payout. Percentages are applied independently; the engine does not
// require them to sum to 100 (caller owns configuration coherence).
type TrancheSplit struct {
	BookingPct    decimal.Decimal
	CollectionPct decimal.Decimal
	YearEndPct    decimal.Decimal
}

// Validate rejects negative percentages. Sums are deliberately unchecked.
func (s TrancheSplit) Validate() error {
	if s.BookingPct.IsNegative() || s.CollectionPct.IsNegative() || s.YearEndPct.IsNegative() {
		return &ValidationIssue{Code: IssueNegativeSplit, Message: "tranche split percentages must be >= 0"}
	}
	return nil
}

// DefaultMetricSplit is the standard variable-pay split.
func DefaultMetricSplit() TrancheSplit {
	return TrancheSplit{
		BookingPct:    decimal.NewFromInt(70),
		CollectionPct: decimal.NewFromInt(25),
		YearEndPct:    decimal.NewFromInt(5),
	}
}

// DefaultCommissionSplit differs from the metric default: commissions
// hold more back until collection.
func DefaultCommissionSplit() TrancheSplit {
	return TrancheSplit{
		BookingPct:    decimal.NewFromInt(50),
		CollectionPct: decimal.NewFromInt(50),
		YearEndPct:    decimal.Zero,
	}
}

// =============================================================================
// PLAN COMPONENTS
// =============================================================================

// MetricSource declares where a metric's actual comes from. Bookings
// accumulate deal credit over the year; closing ARR is a point-in-time
// snapshot where only the latest month counts. Keeping the distinction
// in the type prevents accidental summation of snapshots.
type MetricSource string

const (
	MetricSourceBookings   MetricSource = "bookings"
	MetricSourceClosingARR MetricSource = "closing_arr"
)

// PlanMetric is one weighted metric inside a plan.
type PlanMetric struct {
	Name         string
	Source       MetricSource
	WeightagePct decimal.Decimal
	Logic        LogicType
	GatePct      decimal.Decimal // only meaningful for LogicGatedThreshold
	Grid         MultiplierGrid
	Split        TrancheSplit
}

// PlanCommission configures per-deal-type commission payout.
type PlanCommission struct {
	Type            CommissionType
	RatePct         decimal.Decimal
	MinThresholdUSD decimal.Decimal
	MinGPMarginPct  *decimal.Decimal // nil = no margin gate
	Split           TrancheSplit
}

// PlanSpiff is a flat-rate bonus on qualifying deals.
type PlanSpiff struct {
	Name            string
	MetricName      string // which metric's value the SPIFF reads
	RatePct         decimal.Decimal
	MinDealValueUSD decimal.Decimal
}

// NRRParams configures the net-revenue-retention bonus. OTEPct <= 0 means
// NRR does not apply to the plan (a no-op, not an error).
type NRRParams struct {
	OTEPct         decimal.Decimal
	MinGPMarginPct *decimal.Decimal
	Split          TrancheSplit
}

// =============================================================================
// COMP PLAN
// =============================================================================

// CompPlan is a named, year-scoped container of payout rules.
type CompPlan struct {
	ID   PlanID
	Name string
	Year int

	Metrics     []PlanMetric
	Commissions []PlanCommission
	Spiffs      []PlanSpiff
	NRR         NRRParams

	// ClawbackExempt plans never generate clawback ledger entries.
	ClawbackExempt bool

	// Roles this plan credits on a deal. Empty means all roles.
	CreditedRoles []ParticipantRole
}

// MetricByName finds a plan metric. Absence is a configuration gap that
// callers turn into a zero-amount result, never an error.
func (p *CompPlan) MetricByName(name string) (PlanMetric, bool) {
	for _, m := range p.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return PlanMetric{}, false
}

// CreditsRole reports whether a participant role earns achievement credit
// under this plan. This is the single place plan-to-role mapping lives;
// evaluators never hard-code role lists.
func (p *CompPlan) CreditsRole(role ParticipantRole) bool {
	if len(p.CreditedRoles) == 0 {
		return true
	}
	for _, r := range p.CreditedRoles {
		if r == role {
			return true
		}
	}
	return false
}
