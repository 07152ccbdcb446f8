package engine_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

func TestComputeClawbacks_PastDuePendingDeal(t *testing.T) {
	// GIVEN: A paid booking whose deal is pending past its due date
	// THEN: One pending ledger entry for the paid amount
	asOf := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	deal := newARRDeal("d1", 250000, 40)
	deal.CollectionDueAt = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	paid := []engine.PaidBooking{{EmployeeID: rep, DealID: "d1", AmountUSD: dec(4200)}}
	deals := map[engine.DealID]*engine.Deal{"d1": &deal}

	entries := engine.ComputeClawbacks(paid, deals, nil, nil, asOf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	assertDecimal(t, dec(4200), e.OriginalUSD, "original")
	assertDecimal(t, dec(4200), e.OutstandingUSD(), "outstanding")
	if e.Status != engine.ClawbackPending {
		t.Errorf("expected pending, got %s", e.Status)
	}
}

func TestComputeClawbacks_WrittenOffDeal(t *testing.T) {
	// Written-off triggers regardless of the due date.
	asOf := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	deal := newARRDeal("d1", 100000, 40)
	deal.Collection = engine.CollectionWrittenOff
	deal.CollectionDueAt = asOf.AddDate(0, 6, 0)

	entries := engine.ComputeClawbacks(
		[]engine.PaidBooking{{EmployeeID: rep, DealID: "d1", AmountUSD: dec(1000)}},
		map[engine.DealID]*engine.Deal{"d1": &deal}, nil, nil, asOf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry for written-off deal, got %d", len(entries))
	}
}

func TestComputeClawbacks_CollectedAndCurrentDealsSkipped(t *testing.T) {
	asOf := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)

	collected := newARRDeal("ok", 100000, 40)
	collected.Collection = engine.CollectionCollected

	current := newARRDeal("current", 100000, 40)
	current.CollectionDueAt = asOf.AddDate(0, 1, 0)

	paid := []engine.PaidBooking{
		{EmployeeID: rep, DealID: "ok", AmountUSD: dec(1000)},
		{EmployeeID: rep, DealID: "current", AmountUSD: dec(1000)},
	}
	deals := map[engine.DealID]*engine.Deal{"ok": &collected, "current": &current}

	if entries := engine.ComputeClawbacks(paid, deals, nil, nil, asOf); len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestComputeClawbacks_ExemptPlan(t *testing.T) {
	asOf := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	deal := newARRDeal("d1", 250000, 40)
	deal.CollectionDueAt = asOf.AddDate(0, -2, 0)

	plan := &engine.CompPlan{ClawbackExempt: true}
	entries := engine.ComputeClawbacks(
		[]engine.PaidBooking{{EmployeeID: rep, DealID: "d1", AmountUSD: dec(4200)}},
		map[engine.DealID]*engine.Deal{"d1": &deal}, plan, nil, asOf)
	if entries != nil {
		t.Fatal("exempt plan must never generate entries")
	}
}

func TestComputeClawbacks_IdempotentAgainstExisting(t *testing.T) {
	// A deal already in the ledger is skipped on recalculation.
	asOf := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
	deal := newARRDeal("d1", 250000, 40)
	deal.CollectionDueAt = asOf.AddDate(0, -2, 0)

	existing := map[engine.DealID]bool{"d1": true}
	entries := engine.ComputeClawbacks(
		[]engine.PaidBooking{{EmployeeID: rep, DealID: "d1", AmountUSD: dec(4200)}},
		map[engine.DealID]*engine.Deal{"d1": &deal}, nil, existing, asOf)
	if len(entries) != 0 {
		t.Fatalf("expected existing entry to be skipped, got %d", len(entries))
	}
}

func TestClawbackEntry_RecoverLifecycle(t *testing.T) {
	e := engine.ClawbackEntry{
		EmployeeID:  rep,
		DealID:      "d1",
		OriginalUSD: dec(4200),
		Status:      engine.ClawbackPending,
	}

	e.Recover(dec(1000))
	if e.Status != engine.ClawbackRecovering {
		t.Errorf("partial recovery should be recovering, got %s", e.Status)
	}
	assertDecimal(t, dec(3200), e.OutstandingUSD(), "outstanding after partial")

	// Over-recovery clips to the outstanding balance.
	e.Recover(dec(99999))
	if e.Status != engine.ClawbackClosed {
		t.Errorf("full recovery should close, got %s", e.Status)
	}
	assertDecimal(t, dec(4200), e.RecoveredUSD, "recovered clipped to original")
	assertDecimal(t, decimal.Zero, e.OutstandingUSD(), "nothing outstanding")
}

func TestOutstandingTotal(t *testing.T) {
	entries := []engine.ClawbackEntry{
		{EmployeeID: rep, OriginalUSD: dec(4000), RecoveredUSD: dec(1000), Status: engine.ClawbackRecovering},
		{EmployeeID: rep, OriginalUSD: dec(2000), RecoveredUSD: dec(2000), Status: engine.ClawbackClosed},
		{EmployeeID: "someone-else", OriginalUSD: dec(500), Status: engine.ClawbackPending},
	}
	assertDecimal(t, dec(3000), engine.OutstandingTotal(entries, rep), "open entries only, own entries only")
}
