package engine_test

import (
	"testing"
	"time"

	"github.com/warp/payout-engine/engine"
)

func TestSplitTranches_StandardMetricSplit(t *testing.T) {
	// $60k gross under 70/25/5 lands as 42000 / 15000 / 3000
	gross := engine.NewMoney(dec(60000), "USD", dec(1), engine.RateCompensation)
	set := engine.SplitTranches(gross, engine.DefaultMetricSplit())

	assertDecimal(t, dec(42000), set.Booking.USD, "booking")
	assertDecimal(t, dec(15000), set.Collection.USD, "collection")
	assertDecimal(t, dec(3000), set.YearEnd.USD, "year-end")
	if !set.Reconciles() {
		t.Error("70/25/5 must reconcile to gross")
	}
	assertDecimal(t, dec(60000), set.TotalUSD(), "total")
}

func TestSplitTranches_DualCurrencyReconciles(t *testing.T) {
	// The split applies to both sides of the dual-currency amount.
	gross := engine.NewMoney(dec(10000), "INR", dec(82.5), engine.RateCompensation)
	set := engine.SplitTranches(gross, engine.DefaultCommissionSplit())

	assertDecimal(t, dec(5000), set.Booking.USD, "booking USD")
	assertDecimal(t, dec(5000).Mul(dec(82.5)), set.Booking.Local, "booking local")
	localSum := set.Booking.Local.Add(set.Collection.Local).Add(set.YearEnd.Local)
	assertDecimal(t, gross.Local, localSum, "local tranches reconcile")
}

func TestSplitTranches_UnderHundredIsLegal(t *testing.T) {
	// Percentages are applied independently; the engine never forces the
	// sum to 100. Reconciles surfaces the gap.
	split := engine.TrancheSplit{BookingPct: dec(50), CollectionPct: dec(30), YearEndPct: dec(0)}
	gross := engine.NewMoney(dec(1000), "USD", dec(1), engine.RateMarket)
	set := engine.SplitTranches(gross, split)

	assertDecimal(t, dec(800), set.TotalUSD(), "80% paid")
	if set.Reconciles() {
		t.Error("an 80% split must not claim to reconcile")
	}
}

func TestTrancheSplit_Validate(t *testing.T) {
	bad := engine.TrancheSplit{BookingPct: dec(-10), CollectionPct: dec(50), YearEndPct: dec(0)}
	if err := bad.Validate(); err == nil {
		t.Error("negative percentage must be rejected")
	}
	if err := engine.DefaultMetricSplit().Validate(); err != nil {
		t.Errorf("default split must validate: %v", err)
	}
}

func TestCollectionReleased(t *testing.T) {
	bookedAt := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	collected := engine.Deal{Collection: engine.CollectionCollected}
	pending := engine.Deal{Collection: engine.CollectionPending}

	// Collected deal releases immediately.
	if !engine.CollectionReleased(&collected, bookedAt, 90, bookedAt.AddDate(0, 0, 1)) {
		t.Error("collected deal must release")
	}

	// Pending inside grace: held.
	if engine.CollectionReleased(&pending, bookedAt, 90, bookedAt.AddDate(0, 0, 89)) {
		t.Error("pending within grace must hold")
	}

	// Grace elapsed: unconditional release, boundary inclusive.
	if !engine.CollectionReleased(&pending, bookedAt, 90, bookedAt.AddDate(0, 0, 90)) {
		t.Error("grace elapsed must release")
	}

	// Zero grace disables unconditional release entirely.
	if engine.CollectionReleased(&pending, bookedAt, 0, bookedAt.AddDate(10, 0, 0)) {
		t.Error("zero grace must never auto-release")
	}
}
