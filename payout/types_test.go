package payout_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/payout-engine/engine"
	"github.com/warp/payout-engine/payout"
)

func TestTargetThrough_QuarterlySplit(t *testing.T) {
	// GIVEN: A 1.2M annual target split unevenly across quarters
	// THEN: The denominator at a month is the sum of quarters elapsed so
	//       far in the fiscal year, not the full annual number
	fy := engine.NewFiscalYear(2025, time.April)
	target := payout.PerformanceTarget{
		EmployeeID: repID,
		MetricName: "new_bookings",
		Year:       2025,
		AnnualUSD:  dec(1200000),
		QuarterUSD: map[int]decimal.Decimal{
			1: dec(200000),
			2: dec(300000),
			3: dec(300000),
			4: dec(400000),
		},
	}

	cases := []struct {
		month engine.MonthYear
		want  decimal.Decimal
	}{
		{engine.NewMonthYear(2025, time.April), dec(200000)},  // Q1 start
		{engine.NewMonthYear(2025, time.June), dec(200000)},   // Q1 end
		{engine.NewMonthYear(2025, time.July), dec(500000)},   // Q2
		{engine.NewMonthYear(2025, time.December), dec(800000)}, // Q3
		{engine.NewMonthYear(2026, time.March), dec(1200000)}, // Q4, full year
	}
	for _, tc := range cases {
		got := target.TargetThrough(tc.month, fy)
		assertUSD(t, tc.want, got, tc.month.String())
	}
}

func TestTargetThrough_AnnualFallback(t *testing.T) {
	// No quarterly split configured: the annual target is the denominator
	// all year.
	fy := engine.NewFiscalYear(2025, time.April)
	target := payout.PerformanceTarget{AnnualUSD: dec(1200000)}

	got := target.TargetThrough(engine.NewMonthYear(2025, time.June), fy)
	assertUSD(t, dec(1200000), got, "annual fallback")
}
