/*
tranche.go - Booking / collection / year-end splitting

PURPOSE:
  Every eligible payout (variable pay, commission, NRR, SPIFF) splits by
  configured percentages into three timed tranches:

    booking    - paid immediately on calculation
    collection - held until the deal's collection event, or released
                 unconditionally after the configured grace period
    year-end   - held until an explicit year-end release action

  Each percentage applies independently to the gross amount. The engine
  never validates that the three sum to 100; callers own configuration
  coherence. Negative percentages are rejected up front.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANCHE SET
// =============================================================================

type TrancheKind string

const (
	TrancheBooking    TrancheKind = "booking"
	TrancheCollection TrancheKind = "collection"
	TrancheYearEnd    TrancheKind = "year_end"
)

// TrancheSet is one gross amount split three ways, in both currencies.
type TrancheSet struct {
	Gross      Money
	Booking    Money
	Collection Money
	YearEnd    Money
}

// SplitTranches applies a split to a gross amount. The dual-currency
// Money type guarantees booking+collection+year-end reconcile in both
// currencies when the split sums to 100.
func SplitTranches(gross Money, split TrancheSplit) TrancheSet {
	return TrancheSet{
		Gross:      gross,
		Booking:    gross.MulPct(split.BookingPct),
		Collection: gross.MulPct(split.CollectionPct),
		YearEnd:    gross.MulPct(split.YearEndPct),
	}
}

// =============================================================================
// COLLECTION RELEASE
// =============================================================================

// CollectionReleased decides whether a held collection tranche may pay
// out: either the underlying deal collected, or the grace period since
// booking has elapsed (unconditional release).
func CollectionReleased(deal *Deal, bookedAt time.Time, graceDays int, asOf time.Time) bool {
	if deal != nil && deal.Collection == CollectionCollected {
		return true
	}
	if graceDays <= 0 {
		return false
	}
	return !asOf.Before(bookedAt.AddDate(0, 0, graceDays))
}

// =============================================================================
// RECONCILIATION HELPER
// =============================================================================

// Reconciles reports whether the three tranches sum back to gross (USD).
// Useful as a post-calculation assertion; a false return indicates a
// split not summing to 100, which is legal but worth surfacing.
func (ts TrancheSet) Reconciles() bool {
	sum := ts.Booking.USD.Add(ts.Collection.USD).Add(ts.YearEnd.USD)
	return sum.Equal(ts.Gross.USD)
}

// TotalUSD is the paid-or-held total across tranches.
func (ts TrancheSet) TotalUSD() decimal.Decimal {
	return ts.Booking.USD.Add(ts.Collection.USD).Add(ts.YearEnd.USD)
}
