package payout_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
	"github.com/warp/payout-engine/payout/store"
)

// dec builds a decimal from a float for test fixtures.
func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

// assertUSD compares decimals by value, not representation.
func assertUSD(t *testing.T, want, got decimal.Decimal, msg string) {
	t.Helper()
	if !want.Equal(got) {
		t.Errorf("%s: expected %s, got %s", msg, want, got)
	}
}

func june2025() engine.MonthYear { return engine.NewMonthYear(2025, time.June) }

// =============================================================================
// RUN LIFECYCLE
// =============================================================================

func TestCreateRun_OnePerMonth(t *testing.T) {
	// GIVEN: A run already exists for June
	// WHEN: Another June run is created
	// THEN: The duplicate is rejected
	ctx := context.Background()
	rs := &payout.RunService{Store: store.NewMemory()}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)
	assert.Equal(t, payout.RunDraft, run.Status)
	assert.False(t, run.IsLocked)

	_, err = rs.CreateRun(ctx, june2025())
	assert.ErrorIs(t, err, engine.ErrDuplicateRun)

	// A different month is fine.
	_, err = rs.CreateRun(ctx, engine.NewMonthYear(2025, time.July))
	assert.NoError(t, err)
}

func TestTransition_FullChain(t *testing.T) {
	// GIVEN: A draft run
	// WHEN: It walks draft -> review -> approved -> finalized
	// THEN: Each step lands, and finalize locks the run
	ctx := context.Background()
	rs := &payout.RunService{Store: store.NewMemory()}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)

	run, err = rs.Transition(ctx, run.ID, payout.RunReview, "analyst")
	require.NoError(t, err)
	assert.Equal(t, payout.RunReview, run.Status)
	assert.False(t, run.IsLocked)

	run, err = rs.Transition(ctx, run.ID, payout.RunApproved, "manager")
	require.NoError(t, err)
	assert.Equal(t, payout.RunApproved, run.Status)

	run, err = rs.Transition(ctx, run.ID, payout.RunFinalized, "finance-head")
	require.NoError(t, err)
	assert.Equal(t, payout.RunFinalized, run.Status)
	assert.True(t, run.IsLocked)
	require.NotNil(t, run.FinalizedAt)
	assert.Equal(t, "finance-head", run.FinalizedBy)
}

func TestTransition_NoSkippingSteps(t *testing.T) {
	ctx := context.Background()
	rs := &payout.RunService{Store: store.NewMemory()}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)

	_, err = rs.Transition(ctx, run.ID, payout.RunApproved, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	_, err = rs.Transition(ctx, run.ID, payout.RunFinalized, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	// Backward is just as illegal.
	_, err = rs.Transition(ctx, run.ID, payout.RunDraft, "manager")
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)
}

func TestTransition_LockedRunIsFrozen(t *testing.T) {
	ctx := context.Background()
	rs := &payout.RunService{Store: store.NewMemory()}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)
	for _, to := range []payout.RunStatus{payout.RunReview, payout.RunApproved, payout.RunFinalized} {
		run, err = rs.Transition(ctx, run.ID, to, "manager")
		require.NoError(t, err)
	}

	_, err = rs.Transition(ctx, run.ID, payout.RunFinalized, "manager")
	assert.ErrorIs(t, err, engine.ErrRunLocked)
}

func TestTransition_CompareAndSet(t *testing.T) {
	// A stale expected-status loses the race deterministically.
	ctx := context.Background()
	mem := store.NewMemory()
	rs := &payout.RunService{Store: mem}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)

	require.NoError(t, mem.TransitionRun(ctx, run.ID, payout.RunDraft, payout.RunReview, "a", false))
	err = mem.TransitionRun(ctx, run.ID, payout.RunDraft, payout.RunReview, "b", false)
	assert.ErrorIs(t, err, engine.ErrConcurrentModification)
}

func TestDeleteRun_DraftOnly(t *testing.T) {
	ctx := context.Background()
	rs := &payout.RunService{Store: store.NewMemory()}

	run, err := rs.CreateRun(ctx, june2025())
	require.NoError(t, err)

	_, err = rs.Transition(ctx, run.ID, payout.RunReview, "analyst")
	require.NoError(t, err)
	err = rs.DeleteRun(ctx, run.ID)
	assert.ErrorIs(t, err, engine.ErrRunNotDraft)

	// A fresh draft deletes cleanly and frees the month.
	draft, err := rs.CreateRun(ctx, engine.NewMonthYear(2025, time.July))
	require.NoError(t, err)
	require.NoError(t, rs.DeleteRun(ctx, draft.ID))

	_, err = rs.Store.GetRun(ctx, draft.ID)
	assert.ErrorIs(t, err, engine.ErrRunNotFound)

	_, err = rs.CreateRun(ctx, engine.NewMonthYear(2025, time.July))
	assert.NoError(t, err)
}

func TestCalculable(t *testing.T) {
	cases := []struct {
		status payout.RunStatus
		locked bool
		want   bool
	}{
		{payout.RunDraft, false, true},
		{payout.RunReview, false, true},
		{payout.RunApproved, false, false},
		{payout.RunFinalized, true, false},
	}
	for _, tc := range cases {
		run := payout.Run{Status: tc.status, IsLocked: tc.locked}
		if run.Calculable() != tc.want {
			t.Errorf("Calculable() for %s (locked=%v): expected %v", tc.status, tc.locked, tc.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	if !payout.CanTransition(payout.RunDraft, payout.RunReview) {
		t.Error("draft -> review must be legal")
	}
	if payout.CanTransition(payout.RunReview, payout.RunDraft) {
		t.Error("backward transitions must be illegal")
	}
	if payout.CanTransition(payout.RunFinalized, payout.RunFinalized) {
		t.Error("finalized is terminal")
	}
}
