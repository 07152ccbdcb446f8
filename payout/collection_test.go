package payout_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/payout/store"
)

// seedPendingRep is the standard scenario with the deal still awaiting
// collection.
func seedPendingRep(m *store.Memory) {
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
		EmployeeID: repID, MetricName: "new_bookings", Year: 2025, AnnualUSD: dec(1200000),
	})
	m.AddDeal(engine.Deal{
		ID:          "deal-1",
		CustomerID:  "acme",
		ClosedAt:    time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC),
		Revenue:     newARRRevenue(600000),
		GPMarginPct: dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{
			engine.RoleSalesRep: repID,
		},
		Collection:      engine.CollectionPending,
		CollectionDueAt: time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC),
	})
}

// finalizedJuneRun calculates June and walks it to finalized.
func finalizedJuneRun(t *testing.T, mem *store.Memory) *payout.Run {
	t.Helper()
	ctx := context.Background()
	run := draftRun(t, mem, june2025())

	_, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	rs := &payout.RunService{Store: mem}
	for _, to := range []payout.RunStatus{payout.RunReview, payout.RunApproved, payout.RunFinalized} {
		run, err = rs.Transition(ctx, run.ID, to, "finance-head")
		require.NoError(t, err)
	}
	return run
}

func newCollectionService(m *store.Memory) *payout.CollectionService {
	return &payout.CollectionService{Store: m, Settings: testSettings()}
}

func TestReleaseCollections_CollectedDealReleasesImmediately(t *testing.T) {
	// GIVEN: The standard rep whose only deal already collected
	// WHEN: Collections release right after finalization, well inside grace
	// THEN: The variable-pay and commission holds (7500 + 15000) pay out
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := finalizedJuneRun(t, mem)

	summary, err := newCollectionService(mem).ReleaseRun(ctx, run.ID, time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ReleasedRows)
	assertUSD(t, dec(22500), summary.ReleasedUSD, "released collection total")
	assert.Equal(t, 0, summary.HeldRows)

	rows, err := mem.ListPayouts(ctx, run.ID)
	require.NoError(t, err)
	for _, row := range rows {
		if row.CollectionUSD.IsPositive() {
			assert.NotNil(t, row.CollectionReleasedAt, string(row.Type))
		} else {
			assert.Nil(t, row.CollectionReleasedAt, string(row.Type))
		}
	}
}

func TestReleaseCollections_PendingDealWaitsForGrace(t *testing.T) {
	// GIVEN: The deal is still pending
	// THEN: The hold survives day 89 and releases on the grace boundary
	ctx := context.Background()
	mem := store.NewMemory()
	seedPendingRep(mem)
	run := finalizedJuneRun(t, mem)
	svc := newCollectionService(mem)

	// Booking clock starts at June 30; day 89 is still inside grace.
	bookedAt := june2025().End()

	summary, err := svc.ReleaseRun(ctx, run.ID, bookedAt.AddDate(0, 0, 89))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ReleasedRows)
	assert.Equal(t, 2, summary.HeldRows)
	assertUSD(t, dec(22500), summary.HeldUSD, "held collection total")

	summary, err = svc.ReleaseRun(ctx, run.ID, bookedAt.AddDate(0, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ReleasedRows)
	assertUSD(t, dec(22500), summary.ReleasedUSD, "grace-elapsed release")
}

func TestReleaseCollections_DisabledGraceHoldsForever(t *testing.T) {
	// With the grace release switched off, an uncollected deal holds the
	// tranche no matter how much time passes.
	ctx := context.Background()
	mem := store.NewMemory()
	seedPendingRep(mem)
	run := finalizedJuneRun(t, mem)

	svc := &payout.CollectionService{Store: mem, Settings: payout.Settings{
		FiscalYearStartMonth:   time.April,
		DisableCollectionGrace: true,
		Workers:                2,
	}}

	summary, err := svc.ReleaseRun(ctx, run.ID, june2025().End().AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ReleasedRows)
	assert.Equal(t, 2, summary.HeldRows)
}

func TestReleaseCollections_RequiresFinalizedRun(t *testing.T) {
	// A draft run's rows can still be recalculated away; releasing them
	// is refused.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := draftRun(t, mem, june2025())

	_, err := newCalculator(mem).CalculateRun(ctx, run.ID)
	require.NoError(t, err)

	_, err = newCollectionService(mem).ReleaseRun(ctx, run.ID, time.Now().UTC())
	assert.ErrorIs(t, err, engine.ErrRunNotFinalized)
}

func TestReleaseCollections_SecondPassIsIdempotent(t *testing.T) {
	// Released rows are stamped, so a later pass finds nothing to pay.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	run := finalizedJuneRun(t, mem)
	svc := newCollectionService(mem)

	asOf := time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)
	first, err := svc.ReleaseRun(ctx, run.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, first.ReleasedRows)

	second, err := svc.ReleaseRun(ctx, run.ID, asOf)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ReleasedRows)
	assert.Equal(t, 0, second.HeldRows)
	assertUSD(t, dec(0), second.ReleasedUSD, "nothing left to release")
}
