/*
fnf.go - Full & Final settlement

PURPOSE:
  A departing employee is settled in two tranches keyed to the departure
  date, not a calendar month:

  Tranche 1 (immediate): the booking-eligible amounts as of departure,
  with any open clawback balance carried forward (recorded, not netted
  yet).

  Tranche 2 (deferred): eligible once departure + collection grace days
  has passed; pays the held collection and year-end amounts, netting
  the carried-forward clawback. The net may be negative, in which case
  the line records what the employee owes.
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

// =============================================================================
// SETTLEMENT
// =============================================================================

type SettlementStatus string

const (
	SettlementOpen     SettlementStatus = "open"
	SettlementTranche1 SettlementStatus = "tranche1_paid"
	SettlementClosed   SettlementStatus = "closed"
)

// SettlementLine is one computed component of a settlement tranche.
type SettlementLine struct {
	ID          string
	Tranche     int
	Description string
	AmountUSD   decimal.Decimal
}

// Settlement is the departure payout record.
type Settlement struct {
	ID            string
	EmployeeID    engine.EmployeeID
	DepartureDate time.Time
	Status        SettlementStatus

	// ClawbackCarryUSD is the open clawback balance at tranche 1,
	// netted at tranche 2.
	ClawbackCarryUSD decimal.Decimal

	Lines []SettlementLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrancheTotal sums one tranche's lines.
func (s *Settlement) TrancheTotal(tranche int) decimal.Decimal {
	total := decimal.Zero
	for _, line := range s.Lines {
		if line.Tranche == tranche {
			total = total.Add(line.AmountUSD)
		}
	}
	return total
}

// =============================================================================
// SETTLEMENT SERVICE
// =============================================================================

type SettlementService struct {
	Store      Store
	Calculator *Calculator
	Settings   Settings
}

// Open creates a settlement for a departing employee.
func (ss *SettlementService) Open(ctx context.Context, emp engine.EmployeeID, departure time.Time) (*Settlement, error) {
	s := &Settlement{
		ID:            uuid.NewString(),
		EmployeeID:    emp,
		DepartureDate: departure,
		Status:        SettlementOpen,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if err := ss.Store.SaveSettlement(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CalculateTranche1 computes the immediate tranche: booking-eligible
// amounts as of the departure date, plus the clawback carry-forward.
func (ss *SettlementService) CalculateTranche1(ctx context.Context, settlementID string) (*Settlement, error) {
	s, err := ss.Store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if s.Status != SettlementOpen {
		return nil, fmt.Errorf("settlement %s is %s, expected open", settlementID, s.Status)
	}

	stmt, err := ss.statementAtDeparture(ctx, s)
	if err != nil {
		return nil, err
	}

	clawbacks, err := ss.Store.ListClawbacks(ctx, s.EmployeeID)
	if err != nil {
		return nil, err
	}
	s.ClawbackCarryUSD = engine.OutstandingTotal(clawbacks, s.EmployeeID)

	booking := stmt.VariablePay.Booking.USD.
		Add(stmt.Commission.Booking.USD).
		Add(stmt.NRRTranches.Booking.USD).
		Add(stmt.SpiffUSD)

	s.Lines = append(s.Lines,
		SettlementLine{ID: uuid.NewString(), Tranche: 1, Description: "booking-eligible payout at departure", AmountUSD: booking},
	)
	if s.ClawbackCarryUSD.IsPositive() {
		s.Lines = append(s.Lines,
			SettlementLine{ID: uuid.NewString(), Tranche: 1, Description: "clawback balance carried forward", AmountUSD: decimal.Zero},
		)
	}

	s.Status = SettlementTranche1
	s.UpdatedAt = time.Now().UTC()
	if err := ss.Store.UpdateSettlement(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// CalculateTranche2 computes the deferred tranche once the collection
// grace period after departure has elapsed: held collection + year-end
// amounts net of the carried clawback.
func (ss *SettlementService) CalculateTranche2(ctx context.Context, settlementID string, asOf time.Time) (*Settlement, error) {
	s, err := ss.Store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if s.Status != SettlementTranche1 {
		return nil, fmt.Errorf("settlement %s is %s, expected tranche1_paid", settlementID, s.Status)
	}

	settings := ss.Settings.withDefaults()
	eligibleAt := s.DepartureDate.AddDate(0, 0, settings.CollectionGraceDays)
	if asOf.Before(eligibleAt) {
		return nil, fmt.Errorf("tranche 2 not eligible before %s", eligibleAt.Format("2006-01-02"))
	}

	stmt, err := ss.statementAtDeparture(ctx, s)
	if err != nil {
		return nil, err
	}

	held := stmt.VariablePay.Collection.USD.Add(stmt.VariablePay.YearEnd.USD).
		Add(stmt.Commission.Collection.USD).Add(stmt.Commission.YearEnd.USD).
		Add(stmt.NRRTranches.Collection.USD).Add(stmt.NRRTranches.YearEnd.USD)

	s.Lines = append(s.Lines,
		SettlementLine{ID: uuid.NewString(), Tranche: 2, Description: "held collection and year-end payout", AmountUSD: held},
	)
	if s.ClawbackCarryUSD.IsPositive() {
		s.Lines = append(s.Lines,
			SettlementLine{ID: uuid.NewString(), Tranche: 2, Description: "clawback recovery", AmountUSD: s.ClawbackCarryUSD.Neg()},
		)
		if err := ss.recoverClawbacks(ctx, s.EmployeeID, s.ClawbackCarryUSD); err != nil {
			return nil, err
		}
	}
	s.Status = SettlementClosed
	s.UpdatedAt = time.Now().UTC()
	if err := ss.Store.UpdateSettlement(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// recoverClawbacks settles the netted amount against the employee's open
// ledger entries, oldest first, so the same balance cannot be recovered
// again by a later pass.
func (ss *SettlementService) recoverClawbacks(ctx context.Context, emp engine.EmployeeID, amount decimal.Decimal) error {
	entries, err := ss.Store.ListClawbacks(ctx, emp)
	if err != nil {
		return err
	}
	remaining := amount
	for i := range entries {
		if !remaining.IsPositive() {
			break
		}
		e := entries[i]
		if e.Status == engine.ClawbackClosed {
			continue
		}
		recovered := decimal.Min(remaining, e.OutstandingUSD())
		e.Recover(recovered)
		if err := ss.Store.UpdateClawback(ctx, e); err != nil {
			return err
		}
		remaining = remaining.Sub(recovered)
	}
	return nil
}

// statementAtDeparture reruns the engine pipeline for the employee's
// departure month, scoped to the fiscal year of departure.
func (ss *SettlementService) statementAtDeparture(ctx context.Context, s *Settlement) (*EmployeeStatement, error) {
	emp, err := ss.Store.GetEmployee(ctx, s.EmployeeID)
	if err != nil {
		return nil, err
	}

	settings := ss.Settings.withDefaults()
	month := engine.NewMonthYear(s.DepartureDate.Year(), s.DepartureDate.Month())
	inputs, err := ss.Calculator.loadInputs(ctx, month, settings)
	if err != nil {
		return nil, err
	}

	// Settlement rows are keyed to the settlement, not a calendar run.
	return ss.Calculator.ComputeStatement(ctx, engine.RunID("fnf-"+s.ID), *emp, inputs)
}
