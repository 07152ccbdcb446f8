package payout_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/payout/store"
)

// newARRRevenue is the single-type revenue map most fixtures need.
func newARRRevenue(amount float64) map[engine.RevenueType]decimal.Decimal {
	return map[engine.RevenueType]decimal.Decimal{engine.RevenueNewARR: dec(amount)}
}

// =============================================================================
// FIXTURES
// =============================================================================

const repID = engine.EmployeeID("emp-1")

func testSettings() payout.Settings {
	return payout.Settings{
		FiscalYearStartMonth: time.April,
		CollectionGraceDays:  90,
		Workers:              2,
	}
}

func standardPlan() *engine.CompPlan {
	return &engine.CompPlan{
		ID:   "plan-std",
		Name: "Standard Sales",
		Year: 2025,
		Metrics: []engine.PlanMetric{{
			Name:         "new_bookings",
			Source:       engine.MetricSourceBookings,
			WeightagePct: dec(100),
			Logic:        engine.LogicLinear,
			Split:        engine.DefaultMetricSplit(),
		}},
		Commissions: []engine.PlanCommission{{
			Type:            engine.CommissionNewARR,
			RatePct:         dec(5),
			MinThresholdUSD: dec(50000),
			Split:           engine.DefaultCommissionSplit(),
		}},
		Spiffs: []engine.PlanSpiff{{
			Name:            "big_deal",
			RatePct:         dec(1),
			MinDealValueUSD: dec(250000),
		}},
	}
}

// seedStandardRep wires one full-year USD rep against the standard plan:
// a $1.2M bookings target, a single collected $600k deal closed in May.
//
// Expected June statement:
//   variable pay: 50% achievement x $60k target bonus = 30000 (70/25/5)
//   commission:   5% of 600k = 30000 (50/50)
//   SPIFF:        1% of 600k = 6000 (all booking)
func seedStandardRep(m *store.Memory) {
	m.AddPlan(standardPlan())
	m.AddEmployee(payout.Employee{
		ID:                   repID,
		Name:                 "Priya Sharma",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(60000),
		Currency:             "USD",
		Active:               true,
	})
	m.AddSegment(engine.AssignmentSegment{
		ID:             "seg-1",
		EmployeeID:     repID,
		PlanID:         "plan-std",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(60000),
		CompRate:       dec(1),
	})
	m.AddTarget(payout.PerformanceTarget{
		EmployeeID: repID,
		MetricName: "new_bookings",
		Year:       2025,
		AnnualUSD:  dec(1200000),
	})
	collected := time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC)
	m.AddDeal(engine.Deal{
		ID:          "deal-1",
		CustomerID:  "acme",
		ClosedAt:    time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		Revenue:     newARRRevenue(600000),
		GPMarginPct: dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep: repID,
		},
		Collection:      engine.CollectionCollected,
		CollectionDueAt: time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC),
		CollectedAt:     &collected,
	})
}

func newCalculator(m *store.Memory) *payout.Calculator {
	return &payout.Calculator{Store: m, Settings: testSettings()}
}

func draftRun(t *testing.T, m *store.Memory, month engine.MonthYear) *payout.Run {
	t.Helper()
	rs := &payout.RunService{Store: m}
	run, err := rs.CreateRun(context.Background(), month)
	require.NoError(t, err)
	return run
}

// =============================================================================
// CALCULATE RUN
// =============================================================================

func TestCalculateRun_StandardStatement(t *testing.T) {
	// GIVEN: The standard one-rep scenario
	// WHEN: June is calculated
	// THEN: Three ledger rows land with the expected tranche amounts
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := draftRun(t, mem, june2025())

	summary, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalEmployees)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, summary.Failures)
	assertUSD(t, dec(66000), summary.TotalPayoutUSD, "summary total")

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byType := make(map[payout.PayoutType]payout.MonthlyPayout, len(rows))
	for _, row := range rows {
		byType[row.Type] = row
	}

	vp := byType[payout.PayoutVariablePay]
	assertUSD(t, dec(30000), vp.GrossUSD, "variable pay gross")
	assertUSD(t, dec(21000), vp.BookingUSD, "variable pay booking")
	assertUSD(t, dec(7500), vp.CollectionUSD, "variable pay collection")
	assertUSD(t, dec(1500), vp.YearEndUSD, "variable pay year-end")

	comm := byType[payout.PayoutCommission]
	assertUSD(t, dec(30000), comm.GrossUSD, "commission gross")
	assertUSD(t, dec(15000), comm.BookingUSD, "commission booking")
	assertUSD(t, dec(15000), comm.CollectionUSD, "commission collection")

	spiff := byType[payout.PayoutSpiff]
	assertUSD(t, dec(6000), spiff.GrossUSD, "spiff gross")
	assertUSD(t, dec(6000), spiff.BookingUSD, "spiff pays in full at booking")

	// Run totals are persisted for the listing view.
	stored, err := mem.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalEmployees)
	assertUSD(t, dec(66000), stored.TotalPayoutUSD, "stored run total")
}

func TestCalculateRun_QuarterlyTargetDenominator(t *testing.T) {
	// GIVEN: The standard rep, but the bookings target split 300k per
	//        quarter instead of a flat annual number
	// WHEN: June (still Q1 of the April fiscal year) is calculated
	// THEN: Achievement is measured against the 300k expected so far, so
	//       the 600k actual is 200% and variable pay doubles
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddPlan(standardPlan())
	mem.AddEmployee(payout.Employee{
		ID:                   repID,
		Name:                 "Priya Sharma",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(60000),
		Currency:             "USD",
		Active:               true,
	})
	mem.AddSegment(engine.AssignmentSegment{
		ID:             "seg-1",
		EmployeeID:     repID,
		PlanID:         "plan-std",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(60000),
		CompRate:       dec(1),
	})
	mem.AddTarget(payout.PerformanceTarget{
		EmployeeID: repID,
		MetricName: "new_bookings",
		Year:       2025,
		AnnualUSD:  dec(1200000),
		QuarterUSD: map[int]decimal.Decimal{
			1: dec(300000), 2: dec(300000), 3: dec(300000), 4: dec(300000),
		},
	})
	collected := time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC)
	mem.AddDeal(engine.Deal{
		ID:          "deal-1",
		CustomerID:  "acme",
		ClosedAt:    time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		Revenue:     newARRRevenue(600000),
		GPMarginPct: dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep: repID,
		},
		Collection:      engine.CollectionCollected,
		CollectionDueAt: time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC),
		CollectedAt:     &collected,
	})
	run := draftRun(t, mem, june2025())

	summary, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	byType := make(map[payout.PayoutType]payout.MonthlyPayout, len(rows))
	for _, row := range rows {
		byType[row.Type] = row
	}

	vp := byType[payout.PayoutVariablePay]
	assertUSD(t, dec(120000), vp.GrossUSD, "variable pay at 200% of Q1 target")
	// Commission and SPIFF are rate-based and unaffected by the target.
	assertUSD(t, dec(30000), byType[payout.PayoutCommission].GrossUSD, "commission gross")
	assertUSD(t, dec(6000), byType[payout.PayoutSpiff].GrossUSD, "spiff gross")
	assertUSD(t, dec(156000), summary.TotalPayoutUSD, "summary total")
}

func TestCalculateRun_RecalculationIsIdempotent(t *testing.T) {
	// Clear-then-recompute: a second pass with unchanged inputs produces
	// identical rows, never duplicates.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := draftRun(t, mem, june2025())
	calc := newCalculator(mem)

	first, err := calc.CalculateRun(ctx, run.ID)
	require.NoError(t, err)
	second, err := calc.CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	assertUSD(t, first.TotalPayoutUSD, second.TotalPayoutUSD, "recalculated total")

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestCalculateRun_ValidationGate(t *testing.T) {
	// GIVEN: An INR employee with no market rate for the month
	// WHEN: Calculation is attempted
	// THEN: The structured issue list comes back and nothing is written
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	mem.AddEmployee(payout.Employee{
		ID:                   "emp-2",
		Name:                 "Arjun Mehta",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(50000),
		Currency:             "INR",
		Active:               true,
	})
	mem.AddSegment(engine.AssignmentSegment{
		ID:             "seg-2",
		EmployeeID:     "emp-2",
		PlanID:         "plan-std",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(50000),
		CompRate:       dec(82.5),
	})
	mem.AddTarget(payout.PerformanceTarget{
		EmployeeID: "emp-2", MetricName: "new_bookings", Year: 2025, AnnualUSD: dec(1000000),
	})
	run := draftRun(t, mem, june2025())

	_, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.Error(t, err)

	var issues *engine.ValidationIssues
	require.True(t, errors.As(err, &issues))
	require.Len(t, issues.Issues, 1)
	assert.Equal(t, engine.IssueMissingExchangeRate, issues.Issues[0].Code)

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Supplying the rate clears the gate.
	mem.SetRate(june2025(), "INR", dec(83.1))
	_, err = newCalculator(mem).CalculateRun(ctx, run.ID)
	assert.NoError(t, err)
}

func TestCalculateRun_LockedRunRefuses(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := draftRun(t, mem, june2025())

	rs := &payout.RunService{Store: mem}
	for _, to := range []payout.RunStatus{payout.RunReview, payout.RunApproved, payout.RunFinalized} {
		_, err := rs.Transition(ctx, run.ID, to, "manager")
		require.NoError(t, err)
	}

	_, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	assert.ErrorIs(t, err, engine.ErrRunLocked)
}

func TestCalculateRun_ApprovedRunNotCalculable(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := draftRun(t, mem, june2025())

	rs := &payout.RunService{Store: mem}
	_, err := rs.Transition(ctx, run.ID, payout.RunReview, "analyst")
	require.NoError(t, err)
	_, err = rs.Transition(ctx, run.ID, payout.RunApproved, "manager")
	require.NoError(t, err)

	_, err = newCalculator(mem).CalculateRun(ctx, run.ID)
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestCalculateRun_MultiCurrencyRowsCarryBothRates(t *testing.T) {
	// GIVEN: An INR rep with a frozen comp rate of 82.5 and a June market
	//        rate of 83.1
	// THEN: Variable pay converts at the comp rate, commission at the
	//       market rate, and every row records both for audit
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddPlan(standardPlan())
	mem.AddEmployee(payout.Employee{
		ID:                   repID,
		Name:                 "Arjun Mehta",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(60000),
		Currency:             "INR",
		Active:               true,
	})
	mem.AddSegment(engine.AssignmentSegment{
		ID:             "seg-1",
		EmployeeID:     repID,
		PlanID:         "plan-std",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(60000),
		CompRate:       dec(82.5),
	})
	mem.AddTarget(payout.PerformanceTarget{
		EmployeeID: repID, MetricName: "new_bookings", Year: 2025, AnnualUSD: dec(1200000),
	})
	mem.AddDeal(engine.Deal{
		ID:          "deal-1",
		ClosedAt:    time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		Revenue:     newARRRevenue(600000),
		GPMarginPct: dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep: repID,
		},
		Collection:      engine.CollectionCollected,
		CollectionDueAt: time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC),
	})
	mem.SetRate(june2025(), "INR", dec(83.1))
	run := draftRun(t, mem, june2025())

	_, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)

	for _, row := range rows {
		assertUSD(t, dec(82.5), row.CompRate, "comp rate on "+string(row.Type))
		assertUSD(t, dec(83.1), row.MarketRate, "market rate on "+string(row.Type))

		switch row.Type {
		case payout.PayoutVariablePay:
			assert.Equal(t, engine.RateCompensation, row.RateSource)
			assertUSD(t, dec(82.5), row.FXRate, "variable pay FX rate")
			assertUSD(t, row.GrossUSD.Mul(dec(82.5)), row.GrossLocal, "variable pay local")
		case payout.PayoutCommission, payout.PayoutSpiff:
			assert.Equal(t, engine.RateMarket, row.RateSource)
			assertUSD(t, dec(83.1), row.FXRate, "commission FX rate")
			assertUSD(t, row.GrossUSD.Mul(dec(83.1)), row.GrossLocal, "commission local")
		}
	}
}

func TestCalculateRun_PastDueDealOpensClawbacks(t *testing.T) {
	// GIVEN: The rep's only deal is pending past its due date
	// THEN: The paid booking portion lands in the clawback ledger, and a
	//       recalculation does not double-ledger it
	ctx := context.Background()
	mem := store.NewMemory()
	mem.AddPlan(standardPlan())
	mem.AddEmployee(payout.Employee{
		ID:                   repID,
		Name:                 "Dev Kapoor",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(60000),
		Currency:             "USD",
		Active:               true,
	})
	mem.AddSegment(engine.AssignmentSegment{
		ID:             "seg-1",
		EmployeeID:     repID,
		PlanID:         "plan-std",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(60000),
		CompRate:       dec(1),
	})
	mem.AddTarget(payout.PerformanceTarget{
		EmployeeID: repID, MetricName: "new_bookings", Year: 2025, AnnualUSD: dec(1200000),
	})
	mem.AddDeal(engine.Deal{
		ID:          "deal-overdue",
		ClosedAt:    time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		Revenue:     newARRRevenue(600000),
		GPMarginPct: dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep: repID,
		},
		Collection:      engine.CollectionPending,
		CollectionDueAt: time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
	})
	run := draftRun(t, mem, june2025())
	calc := newCalculator(mem)

	_, err := calc.CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	entries, err := mem.ListClawbacks(ctx, repID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, engine.DealID("deal-overdue"), entries[0].DealID)
	assert.Equal(t, engine.ClawbackPending, entries[0].Status)
	// The single deal carries the whole variable-pay booking tranche.
	assertUSD(t, dec(21000), entries[0].OriginalUSD, "clawback original")

	_, err = calc.CalculateRun(ctx, run.ID)
	require.NoError(t, err)
	entries, err = mem.ListClawbacks(ctx, repID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "recalculation must not double-ledger")
}

// failingPlanStore simulates a per-employee data error mid-batch by
// refusing to load one plan.
type failingPlanStore struct {
	*store.Memory
	failPlan engine.PlanID
}

func (f *failingPlanStore) GetPlan(ctx context.Context, id engine.PlanID) (*engine.CompPlan, error) {
	if id == f.failPlan {
		return nil, fmt.Errorf("plan %s: storage unavailable", id)
	}
	return f.Memory.GetPlan(ctx, id)
}

func TestCalculateRun_FailureIsolation(t *testing.T) {
	// GIVEN: Two employees, one of whose plan cannot be loaded
	// WHEN: The batch runs
	// THEN: The sibling's payouts land; the failure is reported, not fatal
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	mem.AddEmployee(payout.Employee{
		ID:                   "emp-2",
		Name:                 "Rohan Iyer",
		HireDate:             time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetVariablePayUSD: dec(50000),
		Currency:             "USD",
		Active:               true,
	})
	mem.AddSegment(engine.AssignmentSegment{
		ID:             "seg-2",
		EmployeeID:     "emp-2",
		PlanID:         "plan-bad",
		From:           time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC),
		TargetBonusUSD: dec(50000),
		CompRate:       dec(1),
	})
	mem.AddTarget(payout.PerformanceTarget{
		EmployeeID: "emp-2", MetricName: "new_bookings", Year: 2025, AnnualUSD: dec(1000000),
	})
	run := draftRun(t, mem, june2025())

	flaky := &failingPlanStore{Memory: mem, failPlan: "plan-bad"}
	calc := &payout.Calculator{Store: flaky, Settings: testSettings()}

	summary, err := calc.CalculateRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalEmployees)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, engine.EmployeeID("emp-2"), summary.Failures[0].EmployeeID)
	assertUSD(t, dec(66000), summary.TotalPayoutUSD, "sibling total unaffected")

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3, "only the healthy employee's rows")
}
