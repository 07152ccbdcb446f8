package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/payout-engine/engine"
)

func crerDeal(id string, cr, er, marginPct float64) engine.Deal {
	return engine.Deal{
		ID: engine.DealID(id),
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueCR: dec(cr),
			engine.RevenueER: dec(er),
		},
		GPMarginPct:  dec(marginPct),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: rep},
	}
}

func TestEvaluateNRR_NotApplicableWithoutOTE(t *testing.T) {
	result := engine.EvaluateNRR(engine.NRRInput{
		Params:   engine.NRRParams{OTEPct: decimal.Zero},
		Employee: rep,
	})
	if result.Applicable {
		t.Error("zero OTE must be inapplicable, not an error")
	}
	assertDecimal(t, decimal.Zero, result.EligibleUSD, "inapplicable eligible")
}

func TestEvaluateNRR_BlendsBothStreams(t *testing.T) {
	// GIVEN: CR/ER actual 300k vs target 400k, impl actual 50k vs 100k
	// THEN: blended achievement = 350/500 = 70%
	//       eligible = 70% x (50000 x 10%) = 3500
	implDeal := engine.Deal{
		ID: "impl-1",
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueImplementation: dec(50000),
		},
		GPMarginPct:  dec(40),
		Participants: map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: rep},
	}

	result := engine.EvaluateNRR(engine.NRRInput{
		Params:         engine.NRRParams{OTEPct: dec(10)},
		Deals:          []engine.Deal{crerDeal("r1", 250000, 50000, 40), implDeal},
		Employee:       rep,
		CRERTargetUSD:  dec(400000),
		ImplTargetUSD:  dec(100000),
		TargetBonusUSD: dec(50000),
	})

	if !result.Applicable {
		t.Fatal("expected applicable")
	}
	assertDecimal(t, dec(300000), result.CRERActualUSD, "CR/ER actual")
	assertDecimal(t, dec(50000), result.ImplActualUSD, "impl actual")
	assertDecimal(t, dec(70), result.AchievementPct, "blended achievement")
	assertDecimal(t, dec(3500), result.EligibleUSD, "eligible")
}

func TestEvaluateNRR_SingleTargetDropsOtherStream(t *testing.T) {
	// Only the CR/ER target is configured: implementation revenue leaves
	// both numerator and denominator.
	implDeal := engine.Deal{
		ID: "impl-1",
		Revenue: map[engine.RevenueType]decimal.Decimal{
			engine.RevenueImplementation: dec(999999),
		},
		Participants: map[engine.ParticipantRole]engine.EmployeeID{engine.RoleSalesRep: rep},
	}

	result := engine.EvaluateNRR(engine.NRRInput{
		Params:         engine.NRRParams{OTEPct: dec(10)},
		Deals:          []engine.Deal{crerDeal("r1", 200000, 0, 40), implDeal},
		Employee:       rep,
		CRERTargetUSD:  dec(400000),
		ImplTargetUSD:  decimal.Zero,
		TargetBonusUSD: dec(50000),
	})

	assertDecimal(t, dec(50), result.AchievementPct, "CR/ER-only achievement")
}

func TestEvaluateNRR_MarginGateExcludesThinDeals(t *testing.T) {
	// The 25% gate drops the thin renewal before aggregation.
	result := engine.EvaluateNRR(engine.NRRInput{
		Params: engine.NRRParams{
			OTEPct:         dec(10),
			MinGPMarginPct: decPtr(25),
		},
		Deals: []engine.Deal{
			crerDeal("good", 300000, 0, 40),
			crerDeal("thin", 150000, 40000, 18),
		},
		Employee:       rep,
		CRERTargetUSD:  dec(400000),
		TargetBonusUSD: dec(50000),
	})

	assertDecimal(t, dec(300000), result.CRERActualUSD, "only the good-margin deal counts")
	assertDecimal(t, dec(75), result.AchievementPct, "achievement")
}
