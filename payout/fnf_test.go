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

func newSettlementService(m *store.Memory) *payout.SettlementService {
	return &payout.SettlementService{
		Store:      m,
		Calculator: newCalculator(m),
		Settings:   testSettings(),
	}
}

func departureJune30() time.Time {
	return time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
}

func TestSettlement_Tranche1BookingAtDeparture(t *testing.T) {
	// GIVEN: The standard rep departing June 30
	// WHEN: Tranche 1 is calculated
	// THEN: One line carries the booking-eligible total
	//       (21000 variable pay + 15000 commission + 6000 SPIFF)
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)
	assert.Equal(t, payout.SettlementOpen, s.Status)

	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, payout.SettlementTranche1, s.Status)
	assertUSD(t, dec(0), s.ClawbackCarryUSD, "no open clawbacks")

	require.Len(t, s.Lines, 1)
	assert.Equal(t, 1, s.Lines[0].Tranche)
	assertUSD(t, dec(42000), s.Lines[0].AmountUSD, "booking-eligible total")
	assertUSD(t, dec(42000), s.TrancheTotal(1), "tranche 1 total")
}

func TestSettlement_Tranche1CarriesOpenClawbacks(t *testing.T) {
	// An open clawback balance is recorded at tranche 1 but not netted
	// until tranche 2.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	require.NoError(t, mem.SaveClawbacks(ctx, []engine.ClawbackEntry{{
		ID:          "cb-1",
		EmployeeID:  repID,
		DealID:      "old-deal",
		OriginalUSD: dec(4200),
		Status:      engine.ClawbackPending,
	}}))
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)
	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)

	assertUSD(t, dec(4200), s.ClawbackCarryUSD, "carried balance")
	require.Len(t, s.Lines, 2)
	assertUSD(t, dec(42000), s.TrancheTotal(1), "carry line records, never nets")
}

func TestSettlement_Tranche2GraceGate(t *testing.T) {
	// Tranche 2 is refused until departure + collection grace days.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)
	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)

	_, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 89))
	assert.Error(t, err)

	// The boundary itself is eligible.
	s, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 90))
	require.NoError(t, err)
	assert.Equal(t, payout.SettlementClosed, s.Status)
}

func TestSettlement_Tranche2PaysHeldAndNetsClawback(t *testing.T) {
	// GIVEN: Tranche 1 paid with a 4200 clawback carry
	// WHEN: Tranche 2 runs after the grace window
	// THEN: Held collection + year-end (7500+1500+15000) pays out and the
	//       carry nets as a negative recovery line
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	require.NoError(t, mem.SaveClawbacks(ctx, []engine.ClawbackEntry{{
		ID:          "cb-1",
		EmployeeID:  repID,
		DealID:      "old-deal",
		OriginalUSD: dec(4200),
		Status:      engine.ClawbackPending,
	}}))
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)
	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)

	s, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 120))
	require.NoError(t, err)
	assert.Equal(t, payout.SettlementClosed, s.Status)

	var held, recovery *payout.SettlementLine
	for i := range s.Lines {
		line := &s.Lines[i]
		if line.Tranche != 2 {
			continue
		}
		if line.AmountUSD.IsNegative() {
			recovery = line
		} else {
			held = line
		}
	}
	require.NotNil(t, held)
	require.NotNil(t, recovery)
	assertUSD(t, dec(24000), held.AmountUSD, "held collection and year-end")
	assertUSD(t, dec(-4200), recovery.AmountUSD, "clawback recovery")
	assertUSD(t, dec(19800), s.TrancheTotal(2), "net tranche 2")

	// The netted amount settles the ledger entry itself: it closes with
	// the full recovery recorded, so nothing is left to recover twice.
	entries, err := mem.ListClawbacks(ctx, repID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, engine.ClawbackClosed, entries[0].Status)
	assertUSD(t, dec(4200), entries[0].RecoveredUSD, "recorded recovery")
	assertUSD(t, dec(0), entries[0].OutstandingUSD(), "nothing outstanding")
	assertUSD(t, dec(0), engine.OutstandingTotal(entries, repID), "employee owes nothing")
}

func TestSettlement_Tranche2SettlesLedgerOldestFirst(t *testing.T) {
	// Two open entries: the carried total nets both, and each is
	// individually closed in the ledger.
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	require.NoError(t, mem.SaveClawbacks(ctx, []engine.ClawbackEntry{
		{ID: "cb-1", EmployeeID: repID, DealID: "old-deal", OriginalUSD: dec(3000), Status: engine.ClawbackPending},
		{ID: "cb-2", EmployeeID: repID, DealID: "older-deal", OriginalUSD: dec(1200), Status: engine.ClawbackPending},
	}))
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)
	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)
	assertUSD(t, dec(4200), s.ClawbackCarryUSD, "carried balance spans both entries")

	s, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 120))
	require.NoError(t, err)
	assertUSD(t, dec(19800), s.TrancheTotal(2), "net tranche 2")

	entries, err := mem.ListClawbacks(ctx, repID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, engine.ClawbackClosed, e.Status, e.ID)
		assertUSD(t, e.OriginalUSD, e.RecoveredUSD, "entry fully recovered")
	}
}

func TestSettlement_StatusOrderEnforced(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedStandardRep(mem)
	svc := newSettlementService(mem)

	s, err := svc.Open(ctx, repID, departureJune30())
	require.NoError(t, err)

	// Tranche 2 before tranche 1 is refused.
	_, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 120))
	assert.Error(t, err)

	s, err = svc.CalculateTranche1(ctx, s.ID)
	require.NoError(t, err)

	// Tranche 1 never runs twice.
	_, err = svc.CalculateTranche1(ctx, s.ID)
	assert.Error(t, err)

	s, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 120))
	require.NoError(t, err)

	// A closed settlement is terminal.
	_, err = svc.CalculateTranche2(ctx, s.ID, departureJune30().AddDate(0, 0, 150))
	assert.Error(t, err)
}
