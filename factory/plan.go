/*
Package factory provides JSON to Go plan conversion.

PURPOSE:
  Converts JSON plan definitions into engine.CompPlan objects. This
  enables plan configuration without code changes - compensation teams
  can define plans in JSON, and the factory creates the proper Go
  structs.

WHY JSON?
  - Non-developers can modify plans
  - Easy integration with admin UI
  - Version control for plan definitions
  - Database storage of plan configs

JSON SCHEMA:
  {
    "id": "sales-rep-2026",
    "name": "Sales Rep FY26",
    "year": 2026,
    "metrics": [
      {
        "name": "new_bookings",
        "source": "bookings",
        "weightage_pct": 70,
        "logic": "stepped_accelerator",
        "grid": [
          {"min": 0, "max": 80, "multiplier": 0.5},
          {"min": 80, "max": 100, "multiplier": 1.0},
          {"min": 100, "multiplier": 1.5}
        ]
      }
    ],
    "commissions": [
      {"type": "new_arr", "rate_pct": 5, "min_threshold_usd": 50000, "min_gp_margin_pct": 30}
    ],
    "spiffs": [
      {"name": "big-deal", "metric_name": "new_bookings", "rate_pct": 1, "min_deal_value_usd": 250000}
    ],
    "nrr": {"ote_pct": 10, "min_gp_margin_pct": 25},
    "credited_roles": ["sales_rep", "sales_head"]
  }

KEY FEATURES:
  - Validates JSON structure
  - Sets sensible defaults (tranche splits, linear logic)
  - Omitted splits fall back to the standard 70/25/5 metric split and
    the 50/50 commission split

USAGE:
  factory := NewPlanFactory()

  // From JSON string
  plan, err := factory.ParsePlan(jsonString)

  // From a preset (recommended starting point)
  jsonStr := factory.StandardSalesPlanJSON("sales-rep-2026", "Sales Rep FY26", 2026)
  plan, err := factory.ParsePlan(jsonStr)

SEE ALSO:
  - engine/plan.go: CompPlan type definition
  - store/sqlite: plans persist as this JSON in comp_plans.config_json
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a compensation plan.
type PlanJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Year int    `json:"year"`

	Metrics     []MetricJSON     `json:"metrics,omitempty"`
	Commissions []CommissionJSON `json:"commissions,omitempty"`
	Spiffs      []SpiffJSON      `json:"spiffs,omitempty"`
	NRR         *NRRJSON         `json:"nrr,omitempty"`

	ClawbackExempt bool     `json:"clawback_exempt,omitempty"`
	CreditedRoles  []string `json:"credited_roles,omitempty"`
}

// MetricJSON represents one weighted metric.
type MetricJSON struct {
	Name         string         `json:"name"`
	Source       string         `json:"source,omitempty"` // bookings (default), closing_arr
	WeightagePct float64        `json:"weightage_pct"`
	Logic        string         `json:"logic,omitempty"` // linear (default), stepped_accelerator, gated_threshold
	GatePct      float64        `json:"gate_pct,omitempty"`
	Grid         []GridBandJSON `json:"grid,omitempty"`
	Split        *SplitJSON     `json:"split,omitempty"`
}

// GridBandJSON is one multiplier band. A missing max leaves the band
// unbounded above.
type GridBandJSON struct {
	Min        float64  `json:"min"`
	Max        *float64 `json:"max,omitempty"`
	Multiplier float64  `json:"multiplier"`
}

// CommissionJSON represents one per-deal-type commission rule.
type CommissionJSON struct {
	Type            string     `json:"type"`
	RatePct         float64    `json:"rate_pct"`
	MinThresholdUSD float64    `json:"min_threshold_usd,omitempty"`
	MinGPMarginPct  *float64   `json:"min_gp_margin_pct,omitempty"`
	Split           *SplitJSON `json:"split,omitempty"`
}

// SpiffJSON represents a flat-rate bonus on qualifying deals.
type SpiffJSON struct {
	Name            string  `json:"name"`
	MetricName      string  `json:"metric_name"`
	RatePct         float64 `json:"rate_pct"`
	MinDealValueUSD float64 `json:"min_deal_value_usd,omitempty"`
}

// NRRJSON represents the net-revenue-retention bonus parameters.
type NRRJSON struct {
	OTEPct         float64    `json:"ote_pct"`
	MinGPMarginPct *float64   `json:"min_gp_margin_pct,omitempty"`
	Split          *SplitJSON `json:"split,omitempty"`
}

// SplitJSON is the booking/collection/year-end percentage split.
type SplitJSON struct {
	BookingPct    float64 `json:"booking_pct"`
	CollectionPct float64 `json:"collection_pct"`
	YearEndPct    float64 `json:"year_end_pct,omitempty"`
}

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a CompPlan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*engine.CompPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to engine.CompPlan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*engine.CompPlan, error) {
	if pj.ID == "" {
		return nil, fmt.Errorf("plan id is required")
	}

	plan := &engine.CompPlan{
		ID:             engine.PlanID(pj.ID),
		Name:           pj.Name,
		Year:           pj.Year,
		ClawbackExempt: pj.ClawbackExempt,
	}

	for _, mj := range pj.Metrics {
		metric, err := parseMetric(mj)
		if err != nil {
			return nil, err
		}
		plan.Metrics = append(plan.Metrics, metric)
	}

	for _, cj := range pj.Commissions {
		plan.Commissions = append(plan.Commissions, engine.PlanCommission{
			Type:            engine.CommissionType(cj.Type),
			RatePct:         decimal.NewFromFloat(cj.RatePct),
			MinThresholdUSD: decimal.NewFromFloat(cj.MinThresholdUSD),
			MinGPMarginPct:  optionalDecimal(cj.MinGPMarginPct),
			Split:           parseSplit(cj.Split, engine.DefaultCommissionSplit()),
		})
	}

	for _, sj := range pj.Spiffs {
		plan.Spiffs = append(plan.Spiffs, engine.PlanSpiff{
			Name:            sj.Name,
			MetricName:      sj.MetricName,
			RatePct:         decimal.NewFromFloat(sj.RatePct),
			MinDealValueUSD: decimal.NewFromFloat(sj.MinDealValueUSD),
		})
	}

	if pj.NRR != nil {
		plan.NRR = engine.NRRParams{
			OTEPct:         decimal.NewFromFloat(pj.NRR.OTEPct),
			MinGPMarginPct: optionalDecimal(pj.NRR.MinGPMarginPct),
			Split:          parseSplit(pj.NRR.Split, engine.DefaultCommissionSplit()),
		}
	}

	for _, role := range pj.CreditedRoles {
		plan.CreditedRoles = append(plan.CreditedRoles, engine.ParticipantRole(role))
	}

	return plan, nil
}

// ToJSON converts a CompPlan back to its JSON representation.
func (f *PlanFactory) ToJSON(plan *engine.CompPlan) PlanJSON {
	pj := PlanJSON{
		ID:             string(plan.ID),
		Name:           plan.Name,
		Year:           plan.Year,
		ClawbackExempt: plan.ClawbackExempt,
	}

	for _, m := range plan.Metrics {
		mj := MetricJSON{
			Name:         m.Name,
			Source:       string(m.Source),
			WeightagePct: floatOf(m.WeightagePct),
			Logic:        string(m.Logic),
			GatePct:      floatOf(m.GatePct),
			Split:        splitJSON(m.Split),
		}
		for _, b := range m.Grid {
			bj := GridBandJSON{Min: floatOf(b.Min), Multiplier: floatOf(b.Multiplier)}
			if b.Max != nil {
				v := floatOf(*b.Max)
				bj.Max = &v
			}
			mj.Grid = append(mj.Grid, bj)
		}
		pj.Metrics = append(pj.Metrics, mj)
	}

	for _, c := range plan.Commissions {
		cj := CommissionJSON{
			Type:            string(c.Type),
			RatePct:         floatOf(c.RatePct),
			MinThresholdUSD: floatOf(c.MinThresholdUSD),
			Split:           splitJSON(c.Split),
		}
		if c.MinGPMarginPct != nil {
			v := floatOf(*c.MinGPMarginPct)
			cj.MinGPMarginPct = &v
		}
		pj.Commissions = append(pj.Commissions, cj)
	}

	for _, sp := range plan.Spiffs {
		pj.Spiffs = append(pj.Spiffs, SpiffJSON{
			Name:            sp.Name,
			MetricName:      sp.MetricName,
			RatePct:         floatOf(sp.RatePct),
			MinDealValueUSD: floatOf(sp.MinDealValueUSD),
		})
	}

	if plan.NRR.OTEPct.IsPositive() {
		nj := &NRRJSON{OTEPct: floatOf(plan.NRR.OTEPct), Split: splitJSON(plan.NRR.Split)}
		if plan.NRR.MinGPMarginPct != nil {
			v := floatOf(*plan.NRR.MinGPMarginPct)
			nj.MinGPMarginPct = &v
		}
		pj.NRR = nj
	}

	for _, role := range plan.CreditedRoles {
		pj.CreditedRoles = append(pj.CreditedRoles, string(role))
	}

	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseMetric(mj MetricJSON) (engine.PlanMetric, error) {
	logic, err := parseLogic(mj.Logic)
	if err != nil {
		return engine.PlanMetric{}, fmt.Errorf("metric %q: %w", mj.Name, err)
	}

	metric := engine.PlanMetric{
		Name:         mj.Name,
		Source:       parseSource(mj.Source),
		WeightagePct: decimal.NewFromFloat(mj.WeightagePct),
		Logic:        logic,
		GatePct:      decimal.NewFromFloat(mj.GatePct),
		Split:        parseSplit(mj.Split, engine.DefaultMetricSplit()),
	}

	for _, bj := range mj.Grid {
		band := engine.GridBand{
			Min:        decimal.NewFromFloat(bj.Min),
			Multiplier: decimal.NewFromFloat(bj.Multiplier),
		}
		if bj.Max != nil {
			max := decimal.NewFromFloat(*bj.Max)
			band.Max = &max
		}
		metric.Grid = append(metric.Grid, band)
	}

	return metric, nil
}

func parseLogic(s string) (engine.LogicType, error) {
	switch s {
	case "", "linear":
		return engine.LogicLinear, nil
	case "stepped_accelerator":
		return engine.LogicSteppedAccelerator, nil
	case "gated_threshold":
		return engine.LogicGatedThreshold, nil
	default:
		return "", fmt.Errorf("unknown logic type: %s", s)
	}
}

func parseSource(s string) engine.MetricSource {
	switch s {
	case "closing_arr":
		return engine.MetricSourceClosingARR
	default:
		return engine.MetricSourceBookings
	}
}

func parseSplit(sj *SplitJSON, fallback engine.TrancheSplit) engine.TrancheSplit {
	if sj == nil {
		return fallback
	}
	return engine.TrancheSplit{
		BookingPct:    decimal.NewFromFloat(sj.BookingPct),
		CollectionPct: decimal.NewFromFloat(sj.CollectionPct),
		YearEndPct:    decimal.NewFromFloat(sj.YearEndPct),
	}
}

func optionalDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func splitJSON(s engine.TrancheSplit) *SplitJSON {
	return &SplitJSON{
		BookingPct:    floatOf(s.BookingPct),
		CollectionPct: floatOf(s.CollectionPct),
		YearEndPct:    floatOf(s.YearEndPct),
	}
}

func floatOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// =============================================================================
// PRESET PLANS
// =============================================================================

// StandardSalesPlanJSON builds the common sales-rep plan: stepped new
// bookings, closing ARR, New ARR commission with a margin gate, and a
// big-deal SPIFF.
func (f *PlanFactory) StandardSalesPlanJSON(id, name string, year int) string {
	pj := PlanJSON{
		ID:   id,
		Name: name,
		Year: year,
		Metrics: []MetricJSON{
			{
				Name:         "new_bookings",
				Source:       "bookings",
				WeightagePct: 70,
				Logic:        "stepped_accelerator",
				Grid: []GridBandJSON{
					{Min: 0, Max: ptr(80.0), Multiplier: 0.5},
					{Min: 80, Max: ptr(100.0), Multiplier: 1.0},
					{Min: 100, Multiplier: 1.5},
				},
			},
			{
				Name:         "closing_arr",
				Source:       "closing_arr",
				WeightagePct: 30,
				Logic:        "linear",
			},
		},
		Commissions: []CommissionJSON{
			{Type: "new_arr", RatePct: 5, MinThresholdUSD: 50000, MinGPMarginPct: ptr(30.0)},
		},
		Spiffs: []SpiffJSON{
			{Name: "big-deal", MetricName: "new_bookings", RatePct: 1, MinDealValueUSD: 250000},
		},
		CreditedRoles: []string{"sales_rep", "sales_head"},
	}

	b, _ := json.Marshal(pj)
	return string(b)
}

// RenewalsPlanJSON builds a customer-success plan: gated renewals metric
// plus the NRR bonus, no commissions.
func (f *PlanFactory) RenewalsPlanJSON(id, name string, year int) string {
	pj := PlanJSON{
		ID:   id,
		Name: name,
		Year: year,
		Metrics: []MetricJSON{
			{
				Name:         "renewals",
				Source:       "bookings",
				WeightagePct: 100,
				Logic:        "gated_threshold",
				GatePct:      60,
			},
		},
		NRR:           &NRRJSON{OTEPct: 10, MinGPMarginPct: ptr(25.0)},
		CreditedRoles: []string{"sales_rep"},
	}

	b, _ := json.Marshal(pj)
	return string(b)
}

func ptr(f float64) *float64 { return &f }
