/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates plans, employees,
	segments, targets, deals and rates that demonstrate specific features.

AVAILABLE SCENARIOS:

	standard-quota:     One rep on the standard plan, full-year segment
	multi-currency:     INR rep, split-credit deal, mid-year hire
	renewals-nrr:       Renewals plan with gate, closing ARR and NRR
	clawback-overdue:   Overdue uncollected deal triggering a clawback

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create plans via factory
 3. Create employees
 4. Create assignment segments and performance targets
 5. Record deals, ARR snapshots and exchange rates

	After loading, create a run for the scenario's month and calculate it
	via the run endpoints.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "standard-quota"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx, h)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: LoadScenario, ListScenarios handlers
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-quota",
		Name:        "Standard Quota",
		Description: "One rep on the standard plan with bookings, ARR and a collected deal",
	},
	{
		ID:          "multi-currency",
		Name:        "Multi-Currency Team",
		Description: "INR rep with a market rate, a split-credit deal and a mid-year hire",
	},
	{
		ID:          "renewals-nrr",
		Name:        "Renewals & NRR",
		Description: "Renewals plan with achievement gate, NRR above the margin threshold",
	},
	{
		ID:          "clawback-overdue",
		Name:        "Overdue Clawback",
		Description: "Uncollected deal past the grace window feeding the clawback ledger",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "standard-quota":
		err = h.loadStandardQuotaScenario(ctx)
	case "multi-currency":
		err = h.loadMultiCurrencyScenario(ctx)
	case "renewals-nrr":
		err = h.loadRenewalsNRRScenario(ctx)
	case "clawback-overdue":
		err = h.loadClawbackOverdueScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// scenarioFiscalYear anchors every scenario to the fiscal year containing
// today, so a freshly created run for the current month picks the data up.
func (h *Handler) scenarioFiscalYear() engine.FiscalYear {
	return engine.FiscalYearFor(time.Now().UTC(), h.Settings.FiscalYearStartMonth)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardQuotaScenario(ctx context.Context) error {
	fy := h.scenarioFiscalYear()
	fyYear := fy.Start.Year()

	// Standard plan: weighted bookings + closing ARR, new-ARR commission,
	// big-deal SPIFF.
	planJSON := h.PlanFactory.StandardSalesPlanJSON("plan-sales-std", "Standard Sales Plan", fyYear)
	if err := h.createPlanFromJSON(ctx, planJSON); err != nil {
		return err
	}

	// Rep employed for the whole fiscal year
	emp := payout.Employee{
		ID:                   "emp-101",
		Name:                 "Priya Sharma",
		HireDate:             fy.Start.AddDate(-2, 0, 0),
		TargetVariablePayUSD: decimal.NewFromInt(60000),
		Currency:             "USD",
		Active:               true,
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}

	seg := engine.AssignmentSegment{
		ID:             "seg-101-fy",
		EmployeeID:     "emp-101",
		PlanID:         "plan-sales-std",
		From:           fy.Start,
		TargetBonusUSD: decimal.NewFromInt(60000),
		CompRate:       decimal.NewFromInt(1),
	}
	if err := h.Store.SaveSegment(ctx, seg); err != nil {
		return err
	}

	targets := []payout.PerformanceTarget{
		{EmployeeID: "emp-101", MetricName: "new_bookings", Year: fyYear, AnnualUSD: decimal.NewFromInt(1200000)},
		{EmployeeID: "emp-101", MetricName: "closing_arr", Year: fyYear, AnnualUSD: decimal.NewFromInt(2000000)},
	}
	for _, t := range targets {
		if err := h.Store.SaveTarget(ctx, t); err != nil {
			return err
		}
	}

	// Two deals in month 2 of the fiscal year: one already collected, one
	// pending within grace.
	m2 := fy.Start.AddDate(0, 1, 14)
	collected := m2.AddDate(0, 0, 20)
	deals := []engine.Deal{
		{
			ID:         "deal-101-a",
			CustomerID: "cust-acme",
			ClosedAt:   m2,
			Revenue: map[engine.RevenueType]decimal.Decimal{
				engine.RevenueNewARR: decimal.NewFromInt(180000),
			},
			GPMarginPct:     decimal.NewFromInt(42),
			Participants:    map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "emp-101"},
			Collection:      engine.CollectionCollected,
			CollectionDueAt: m2.AddDate(0, 2, 0),
			CollectedAt:     &collected,
		},
		{
			ID:         "deal-101-b",
			CustomerID: "cust-globex",
			ClosedAt:   m2.AddDate(0, 0, 6),
			Revenue: map[engine.RevenueType]decimal.Decimal{
				engine.RevenueNewARR:         decimal.NewFromInt(90000),
				engine.RevenueImplementation: decimal.NewFromInt(25000),
			},
			GPMarginPct:     decimal.NewFromInt(35),
			Participants:    map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "emp-101"},
			Collection:      engine.CollectionPending,
			CollectionDueAt: m2.AddDate(0, 3, 0),
		},
	}
	for _, d := range deals {
		if err := h.Store.SaveDeal(ctx, d); err != nil {
			return err
		}
	}

	// Closing ARR snapshot with an end date past fiscal year end, so it
	// counts toward the closing_arr metric.
	snap := engine.ARRSnapshot{
		OwnerID:    "emp-101",
		CustomerID: "cust-acme",
		ProjectID:  "proj-acme-1",
		Month:      engine.NewMonthYear(m2.Year(), m2.Month()),
		ValueUSD:   decimal.NewFromInt(450000),
		EndDate:    fy.End.AddDate(1, 0, 0),
	}
	return h.Store.SaveSnapshot(ctx, snap)
}

func (h *Handler) loadMultiCurrencyScenario(ctx context.Context) error {
	fy := h.scenarioFiscalYear()
	fyYear := fy.Start.Year()

	planJSON := h.PlanFactory.StandardSalesPlanJSON("plan-sales-std", "Standard Sales Plan", fyYear)
	if err := h.createPlanFromJSON(ctx, planJSON); err != nil {
		return err
	}

	// Arjun: INR rep, paid at a fixed comp rate with the market rate
	// recorded alongside for audit. Rohan: sales head sharing deal credit.
	// Meera: hired mid-year, TVP pro-rated.
	midYearHire := fy.Start.AddDate(0, 5, 14)
	employees := []payout.Employee{
		{ID: "emp-201", Name: "Arjun Mehta", ManagerID: "emp-202",
			HireDate: fy.Start.AddDate(-1, 0, 0), TargetVariablePayUSD: decimal.NewFromInt(48000),
			Currency: "INR", Active: true},
		{ID: "emp-202", Name: "Rohan Iyer",
			HireDate: fy.Start.AddDate(-4, 0, 0), TargetVariablePayUSD: decimal.NewFromInt(90000),
			Currency: "USD", Active: true},
		{ID: "emp-203", Name: "Meera Nair", ManagerID: "emp-202",
			HireDate: midYearHire, TargetVariablePayUSD: decimal.NewFromInt(36000),
			Currency: "INR", Active: true},
	}
	for _, e := range employees {
		if err := h.Store.SaveEmployee(ctx, e); err != nil {
			return err
		}
	}

	segments := []engine.AssignmentSegment{
		{ID: "seg-201-fy", EmployeeID: "emp-201", PlanID: "plan-sales-std", From: fy.Start,
			TargetBonusUSD: decimal.NewFromInt(48000), CompRate: decimal.NewFromFloat(82.5)},
		{ID: "seg-202-fy", EmployeeID: "emp-202", PlanID: "plan-sales-std", From: fy.Start,
			TargetBonusUSD: decimal.NewFromInt(90000), CompRate: decimal.NewFromInt(1)},
		{ID: "seg-203-hire", EmployeeID: "emp-203", PlanID: "plan-sales-std", From: midYearHire,
			TargetBonusUSD: decimal.NewFromInt(36000), CompRate: decimal.NewFromFloat(82.5)},
	}
	for _, s := range segments {
		if err := h.Store.SaveSegment(ctx, s); err != nil {
			return err
		}
	}

	for _, t := range []payout.PerformanceTarget{
		{EmployeeID: "emp-201", MetricName: "new_bookings", Year: fyYear, AnnualUSD: decimal.NewFromInt(900000)},
		{EmployeeID: "emp-201", MetricName: "closing_arr", Year: fyYear, AnnualUSD: decimal.NewFromInt(1500000)},
		{EmployeeID: "emp-202", MetricName: "new_bookings", Year: fyYear, AnnualUSD: decimal.NewFromInt(4000000)},
		{EmployeeID: "emp-202", MetricName: "closing_arr", Year: fyYear, AnnualUSD: decimal.NewFromInt(6000000)},
		{EmployeeID: "emp-203", MetricName: "new_bookings", Year: fyYear, AnnualUSD: decimal.NewFromInt(600000)},
		{EmployeeID: "emp-203", MetricName: "closing_arr", Year: fyYear, AnnualUSD: decimal.NewFromInt(900000)},
	} {
		if err := h.Store.SaveTarget(ctx, t); err != nil {
			return err
		}
	}

	// Split-credit deal: rep and head each receive full deal credit on
	// their own achievement.
	m3 := fy.Start.AddDate(0, 2, 9)
	deal := engine.Deal{
		ID:         "deal-201-shared",
		CustomerID: "cust-initech",
		ClosedAt:   m3,
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueNewARR: decimal.NewFromInt(320000),
		},
		GPMarginPct: decimal.NewFromInt(38),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep:  "emp-201",
			engine.RoleSalesHead: "emp-202",
		},
		Collection:      engine.CollectionPending,
		CollectionDueAt: m3.AddDate(0, 2, 0),
	}
	if err := h.Store.SaveDeal(ctx, deal); err != nil {
		return err
	}

	// Market INR rates for the first four fiscal months
	month := engine.NewMonthYear(fy.Start.Year(), fy.Start.Month())
	rates := []float64{83.10, 83.25, 82.95, 83.40}
	for _, rate := range rates {
		if err := h.Store.SaveRate(ctx, month, "INR", decimal.NewFromFloat(rate)); err != nil {
			return err
		}
		month = month.Next()
	}
	return nil
}

func (h *Handler) loadRenewalsNRRScenario(ctx context.Context) error {
	fy := h.scenarioFiscalYear()
	fyYear := fy.Start.Year()

	planJSON := h.PlanFactory.RenewalsPlanJSON("plan-renewals", "Renewals Plan", fyYear)
	if err := h.createPlanFromJSON(ctx, planJSON); err != nil {
		return err
	}

	emp := payout.Employee{
		ID:                   "emp-301",
		Name:                 "Kavita Rao",
		HireDate:             fy.Start.AddDate(-3, 0, 0),
		TargetVariablePayUSD: decimal.NewFromInt(50000),
		Currency:             "USD",
		Active:               true,
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}

	seg := engine.AssignmentSegment{
		ID:             "seg-301-fy",
		EmployeeID:     "emp-301",
		PlanID:         "plan-renewals",
		From:           fy.Start,
		TargetBonusUSD: decimal.NewFromInt(50000),
		CompRate:       decimal.NewFromInt(1),
	}
	if err := h.Store.SaveSegment(ctx, seg); err != nil {
		return err
	}

	if err := h.Store.SaveTarget(ctx, payout.PerformanceTarget{
		EmployeeID: "emp-301", MetricName: "renewals", Year: fyYear,
		AnnualUSD: decimal.NewFromInt(800000),
	}); err != nil {
		return err
	}

	// Renewal deals: one above the NRR margin threshold, one below (still
	// counts for the renewals metric, excluded from NRR).
	m1 := fy.Start.AddDate(0, 0, 9)
	collected := m1.AddDate(0, 1, 0)
	deals := []engine.Deal{
		{
			ID:         "deal-301-good-margin",
			CustomerID: "cust-umbrella",
			ClosedAt:   m1,
			Revenue: map[engine.RevenueType]decimal.Decimal{
				engine.RevenueCR: decimal.NewFromInt(300000),
			},
			GPMarginPct:     decimal.NewFromInt(40),
			Participants:    map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "emp-301"},
			Collection:      engine.CollectionCollected,
			CollectionDueAt: m1.AddDate(0, 1, 15),
			CollectedAt:     &collected,
		},
		{
			ID:         "deal-301-thin-margin",
			CustomerID: "cust-wayne",
			ClosedAt:   m1.AddDate(0, 0, 11),
			Revenue: map[engine.RevenueType]decimal.Decimal{
				engine.RevenueCR: decimal.NewFromInt(150000),
				engine.RevenueER: decimal.NewFromInt(40000),
			},
			GPMarginPct:     decimal.NewFromInt(18),
			Participants:    map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "emp-301"},
			Collection:      engine.CollectionPending,
			CollectionDueAt: m1.AddDate(0, 3, 0),
		},
	}
	for _, d := range deals {
		if err := h.Store.SaveDeal(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadClawbackOverdueScenario(ctx context.Context) error {
	fy := h.scenarioFiscalYear()
	fyYear := fy.Start.Year()

	planJSON := h.PlanFactory.StandardSalesPlanJSON("plan-sales-std", "Standard Sales Plan", fyYear)
	if err := h.createPlanFromJSON(ctx, planJSON); err != nil {
		return err
	}

	emp := payout.Employee{
		ID:                   "emp-401",
		Name:                 "Dev Kapoor",
		HireDate:             fy.Start.AddDate(-2, 0, 0),
		TargetVariablePayUSD: decimal.NewFromInt(55000),
		Currency:             "USD",
		Active:               true,
	}
	if err := h.Store.SaveEmployee(ctx, emp); err != nil {
		return err
	}

	seg := engine.AssignmentSegment{
		ID:             "seg-401-fy",
		EmployeeID:     "emp-401",
		PlanID:         "plan-sales-std",
		From:           fy.Start,
		TargetBonusUSD: decimal.NewFromInt(55000),
		CompRate:       decimal.NewFromInt(1),
	}
	if err := h.Store.SaveSegment(ctx, seg); err != nil {
		return err
	}

	for _, t := range []payout.PerformanceTarget{
		{EmployeeID: "emp-401", MetricName: "new_bookings", Year: fyYear, AnnualUSD: decimal.NewFromInt(1000000)},
		{EmployeeID: "emp-401", MetricName: "closing_arr", Year: fyYear, AnnualUSD: decimal.NewFromInt(1600000)},
	} {
		if err := h.Store.SaveTarget(ctx, t); err != nil {
			return err
		}
	}

	// Closed on day one of the fiscal year, due 30 days later, never
	// collected. Once the grace window lapses, calculating a run raises a
	// clawback for the booking tranche already paid.
	closedAt := fy.Start
	deal := engine.Deal{
		ID:         "deal-401-overdue",
		CustomerID: "cust-stark",
		ClosedAt:   closedAt,
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueNewARR: decimal.NewFromInt(250000),
		},
		GPMarginPct:     decimal.NewFromInt(36),
		Participants:    map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "emp-401"},
		Collection:      engine.CollectionPending,
		CollectionDueAt: closedAt.AddDate(0, 1, 0),
	}
	return h.Store.SaveDeal(ctx, deal)
}

func (h *Handler) createPlanFromJSON(ctx context.Context, jsonStr string) error {
	plan, err := h.PlanFactory.ParsePlan(jsonStr)
	if err != nil {
		return err
	}
	return h.Store.SavePlan(ctx, plan)
}
