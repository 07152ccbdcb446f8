/*
clawback.go - Clawback computation over paid booking tranches

PURPOSE:
  When a deal tied to an already-paid booking tranche is confirmed
  uncollectable, or passes its milestone due date unpaid, the previously
  paid booking amount becomes owed back. The ledger entry tracks the
  original amount against what has been recovered so far. Plans flagged
  clawback-exempt never generate entries.

  This file computes WHAT is owed; the payout package persists entries
  and advances their status.
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CLAWBACK STATUS
// =============================================================================

type ClawbackStatus string

const (
	ClawbackPending    ClawbackStatus = "pending"
	ClawbackRecovering ClawbackStatus = "recovering"
	ClawbackActive     ClawbackStatus = "active"
	ClawbackClosed     ClawbackStatus = "closed"
)

// =============================================================================
// CLAWBACK ENTRY
// =============================================================================

// ClawbackEntry is one owed recovery in the ledger.
type ClawbackEntry struct {
	ID         string
	EmployeeID EmployeeID
	DealID     DealID

	OriginalUSD  decimal.Decimal
	RecoveredUSD decimal.Decimal
	Status       ClawbackStatus

	CreatedAt time.Time
}

// OutstandingUSD is what remains to recover.
func (e ClawbackEntry) OutstandingUSD() decimal.Decimal {
	return e.OriginalUSD.Sub(e.RecoveredUSD)
}

// Recover applies a recovered amount and advances status. Recovery past
// the original amount clips to the outstanding balance.
func (e *ClawbackEntry) Recover(amountUSD decimal.Decimal) {
	outstanding := e.OutstandingUSD()
	if amountUSD.GreaterThan(outstanding) {
		amountUSD = outstanding
	}
	e.RecoveredUSD = e.RecoveredUSD.Add(amountUSD)
	if e.OutstandingUSD().IsZero() {
		e.Status = ClawbackClosed
	} else {
		e.Status = ClawbackRecovering
	}
}

// =============================================================================
// CLAWBACK COMPUTATION
// =============================================================================

// PaidBooking records one booking tranche that already paid out.
type PaidBooking struct {
	EmployeeID EmployeeID
	DealID     DealID
	AmountUSD  decimal.Decimal
	PaidAt     time.Time
}

// ComputeClawbacks emits one entry per paid booking whose deal is still
// uncollected past due (or written off) as of the evaluation time.
// Exempt plans yield nothing. Already-ledgered deals (present in the
// existing set) are skipped so recomputation stays idempotent.
func ComputeClawbacks(paid []PaidBooking, deals map[DealID]*Deal, plan *CompPlan, existing map[DealID]bool, asOf time.Time) []ClawbackEntry {
	if plan != nil && plan.ClawbackExempt {
		return nil
	}

	var entries []ClawbackEntry
	for _, booking := range paid {
		if existing[booking.DealID] {
			continue
		}
		deal, ok := deals[booking.DealID]
		if !ok {
			continue
		}
		if deal.Collection != CollectionWrittenOff && !deal.PastDue(asOf) {
			continue
		}
		entries = append(entries, ClawbackEntry{
			EmployeeID:   booking.EmployeeID,
			DealID:       booking.DealID,
			OriginalUSD:  booking.AmountUSD,
			RecoveredUSD: decimal.Zero,
			Status:       ClawbackPending,
			CreatedAt:    asOf,
		})
	}
	return entries
}

// OutstandingTotal sums what an employee still owes across open entries.
func OutstandingTotal(entries []ClawbackEntry, emp EmployeeID) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.EmployeeID != emp || e.Status == ClawbackClosed {
			continue
		}
		total = total.Add(e.OutstandingUSD())
	}
	return total
}
