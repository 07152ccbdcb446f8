package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

func TestEvaluateSpiff_QualificationBoundaryInclusive(t *testing.T) {
	// GIVEN: Big-deal SPIFF at 1% over $250k minimum
	// THEN: A deal exactly at the minimum qualifies; a smaller one doesn't
	sp := engine.PlanSpiff{
		Name:            "big_deal",
		MetricName:      "new_bookings",
		RatePct:         dec(1),
		MinDealValueUSD: dec(250000),
	}
	deals := []engine.Deal{
		newARRDeal("exactly-at", 250000, 40),
		newARRDeal("too-small", 249999, 40),
	}

	result := engine.EvaluateSpiff(sp, deals, rep)

	assertDecimal(t, dec(250000), result.QualifyingUSD, "only the at-minimum deal qualifies")
	if result.DealCount != 1 {
		t.Errorf("expected 1 qualifying deal, got %d", result.DealCount)
	}
	assertDecimal(t, dec(2500), result.PayoutUSD, "payout")
}

func TestEvaluateSpiff_FlatRateOverMultipleDeals(t *testing.T) {
	sp := engine.PlanSpiff{
		Name:            "big_deal",
		RatePct:         dec(1),
		MinDealValueUSD: dec(100000),
	}
	deals := []engine.Deal{
		newARRDeal("a", 300000, 40),
		newARRDeal("b", 150000, 35),
	}

	result := engine.EvaluateSpiff(sp, deals, rep)
	assertDecimal(t, dec(4500), result.PayoutUSD, "1% of 450k")
	if result.DealCount != 2 {
		t.Errorf("expected 2 qualifying deals, got %d", result.DealCount)
	}
}

func TestEvaluateSpiff_QualifiesOnPrimaryValueAcrossTypes(t *testing.T) {
	// Primary value sums across revenue types: 200k ARR + 60k impl clears
	// a 250k minimum even though no single type does.
	deal := engine.Deal{
		ID: "mixed",
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueNewARR:         dec(200000),
			engine.RevenueImplementation: dec(60000),
		},
		Participants: map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: rep},
	}
	sp := engine.PlanSpiff{Name: "big_deal", RatePct: dec(1), MinDealValueUSD: dec(250000)}

	result := engine.EvaluateSpiff(sp, []engine.Deal{deal}, rep)
	assertDecimal(t, dec(260000), result.QualifyingUSD, "summed primary value")
}

func TestEvaluateSpiff_IgnoresUninvolvedDeals(t *testing.T) {
	deal := newARRDeal("not-mine", 500000, 40)
	deal.Participants = map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: "someone-else"}

	result := engine.EvaluateSpiff(engine.PlanSpiff{RatePct: dec(1)}, []engine.Deal{deal}, rep)
	assertDecimal(t, decimal.Zero, result.PayoutUSD, "no credit for uninvolved deals")
}
