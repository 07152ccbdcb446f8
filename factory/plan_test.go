package factory_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/factory"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestParsePlan_StandardSalesPreset(t *testing.T) {
	// GIVEN: The standard sales preset JSON
	// WHEN: It is parsed
	// THEN: Every component lands with its declared values and defaults
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(f.StandardSalesPlanJSON("sales-rep-2025", "Sales Rep FY25", 2025))
	require.NoError(t, err)

	assert.Equal(t, engine.PlanID("sales-rep-2025"), plan.ID)
	assert.Equal(t, "Sales Rep FY25", plan.Name)
	assert.Equal(t, 2025, plan.Year)

	require.Len(t, plan.Metrics, 2)
	bookings := plan.Metrics[0]
	assert.Equal(t, "new_bookings", bookings.Name)
	assert.Equal(t, engine.MetricSourceBookings, bookings.Source)
	assert.Equal(t, engine.LogicSteppedAccelerator, bookings.Logic)
	require.Len(t, bookings.Grid, 3)
	assert.Nil(t, bookings.Grid[2].Max, "top band is unbounded")
	assert.True(t, dec(1.5).Equal(bookings.Grid[2].Multiplier))

	arr := plan.Metrics[1]
	assert.Equal(t, engine.MetricSourceClosingARR, arr.Source)
	assert.Equal(t, engine.LogicLinear, arr.Logic)

	require.Len(t, plan.Commissions, 1)
	comm := plan.Commissions[0]
	assert.Equal(t, engine.CommissionNewARR, comm.Type)
	assert.True(t, dec(5).Equal(comm.RatePct))
	require.NotNil(t, comm.MinGPMarginPct)
	assert.True(t, dec(30).Equal(*comm.MinGPMarginPct))

	require.Len(t, plan.Spiffs, 1)
	assert.True(t, dec(250000).Equal(plan.Spiffs[0].MinDealValueUSD))

	assert.Equal(t, []engine.ParticipantRole{engine.RoleSalesRep, engine.RoleSalesHead}, plan.CreditedRoles)
	assert.False(t, plan.NRR.OTEPct.IsPositive(), "standard plan has no NRR bonus")
}

func TestParsePlan_RenewalsPreset(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.ParsePlan(f.RenewalsPlanJSON("cs-2025", "Customer Success FY25", 2025))
	require.NoError(t, err)

	require.Len(t, plan.Metrics, 1)
	assert.Equal(t, engine.LogicGatedThreshold, plan.Metrics[0].Logic)
	assert.True(t, dec(60).Equal(plan.Metrics[0].GatePct))

	assert.Empty(t, plan.Commissions)
	assert.True(t, dec(10).Equal(plan.NRR.OTEPct))
	require.NotNil(t, plan.NRR.MinGPMarginPct)
	assert.True(t, dec(25).Equal(*plan.NRR.MinGPMarginPct))
}

func TestFromJSON_DefaultSplits(t *testing.T) {
	// An omitted split falls back to 70/25/5 for metrics and 50/50 for
	// commissions and NRR.
	f := factory.NewPlanFactory()

	plan, err := f.FromJSON(factory.PlanJSON{
		ID:          "p1",
		Metrics:     []factory.MetricJSON{{Name: "new_bookings", WeightagePct: 100}},
		Commissions: []factory.CommissionJSON{{Type: "new_arr", RatePct: 5}},
		NRR:         &factory.NRRJSON{OTEPct: 10},
	})
	require.NoError(t, err)

	assert.True(t, dec(70).Equal(plan.Metrics[0].Split.BookingPct))
	assert.True(t, dec(25).Equal(plan.Metrics[0].Split.CollectionPct))
	assert.True(t, dec(5).Equal(plan.Metrics[0].Split.YearEndPct))

	assert.True(t, dec(50).Equal(plan.Commissions[0].Split.BookingPct))
	assert.True(t, dec(50).Equal(plan.Commissions[0].Split.CollectionPct))
	assert.True(t, plan.Commissions[0].Split.YearEndPct.IsZero())

	assert.True(t, dec(50).Equal(plan.NRR.Split.BookingPct))
}

func TestFromJSON_DefaultsLogicAndSource(t *testing.T) {
	f := factory.NewPlanFactory()

	plan, err := f.FromJSON(factory.PlanJSON{
		ID:      "p1",
		Metrics: []factory.MetricJSON{{Name: "new_bookings", WeightagePct: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.LogicLinear, plan.Metrics[0].Logic)
	assert.Equal(t, engine.MetricSourceBookings, plan.Metrics[0].Source)
}

func TestFromJSON_Rejections(t *testing.T) {
	f := factory.NewPlanFactory()

	_, err := f.FromJSON(factory.PlanJSON{Name: "no id"})
	assert.Error(t, err, "missing plan id")

	_, err = f.FromJSON(factory.PlanJSON{
		ID:      "p1",
		Metrics: []factory.MetricJSON{{Name: "m", Logic: "quadratic"}},
	})
	assert.Error(t, err, "unknown logic type")

	_, err = f.ParsePlan("{not json")
	assert.Error(t, err, "malformed JSON")
}

func TestToJSON_RoundTrip(t *testing.T) {
	// Parsing the preset, serializing it and parsing again must yield the
	// same plan (the sqlite store persists plans through this path).
	f := factory.NewPlanFactory()

	original, err := f.ParsePlan(f.StandardSalesPlanJSON("sales-rep-2025", "Sales Rep FY25", 2025))
	require.NoError(t, err)

	reparsed, err := f.FromJSON(f.ToJSON(original))
	require.NoError(t, err)

	assert.Equal(t, original.ID, reparsed.ID)
	assert.Equal(t, len(original.Metrics), len(reparsed.Metrics))
	assert.Equal(t, len(original.Commissions), len(reparsed.Commissions))
	assert.Equal(t, original.CreditedRoles, reparsed.CreditedRoles)
	for i := range original.Metrics {
		assert.Equal(t, original.Metrics[i].Logic, reparsed.Metrics[i].Logic)
		assert.True(t, original.Metrics[i].WeightagePct.Equal(reparsed.Metrics[i].WeightagePct))
		assert.Equal(t, len(original.Metrics[i].Grid), len(reparsed.Metrics[i].Grid))
	}
}
