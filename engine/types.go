/*
Package engine provides the core payout calculation engine.

PURPOSE:
  This package contains the pure business logic that turns raw sales
  activity (deals, ARR snapshots) plus plan configuration into owed money.
  Everything here operates on in-memory data: no stores, no network, no
  clocks. The payout package loads inputs and persists outputs; this
  package only computes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: A dual-currency amount (USD + local) with the FX rate used
  - MonthYear: A calendar month, the granularity of payout runs
  - FiscalYear: The annual boundary for pro-ration and achievement
  - Employee/Plan/Deal/Run IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: Evaluators are functions over in-memory inputs
  3. Dual currency: Every amount carries both USD and local plus the
     rate actually used, so later audits can detect mismatches
  4. Zero over error: Missing configuration pays nothing, it never throws

SEE ALSO:
  - metric.go: Achievement and multiplier resolution
  - tranche.go: Booking/collection/year-end splitting
  - proration.go: Target-bonus pro-ration across assignment segments
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type PlanID string
type DealID string
type RunID string

// =============================================================================
// MONEY - Dual-currency amount with the FX rate actually used
// =============================================================================

// RateSource tells which of the two exchange rates produced a local amount.
// Variable pay uses the compensation rate fixed at assignment time;
// commissions use the market rate looked up per month.
type RateSource string

const (
	RateCompensation RateSource = "compensation"
	RateMarket       RateSource = "market"
)

// Money is an amount normalized to USD with its local-currency mirror.
// The rate and its source are carried so every ledger row is auditable.
type Money struct {
	USD      decimal.Decimal
	Local    decimal.Decimal
	Currency string
	Rate     decimal.Decimal
	Source   RateSource
}

// NewMoney converts a USD amount to local currency using the given rate.
// A zero rate yields a zero local amount rather than dividing by zero.
func NewMoney(usd decimal.Decimal, currency string, rate decimal.Decimal, source RateSource) Money {
	local := decimal.Zero
	if !rate.IsZero() {
		local = usd.Mul(rate)
	}
	return Money{USD: usd, Local: local, Currency: currency, Rate: rate, Source: source}
}

func ZeroMoney(currency string, rate decimal.Decimal, source RateSource) Money {
	return NewMoney(decimal.Zero, currency, rate, source)
}

func (m Money) Add(other Money) Money {
	m.USD = m.USD.Add(other.USD)
	m.Local = m.Local.Add(other.Local)
	return m
}

func (m Money) MulPct(pct decimal.Decimal) Money {
	factor := pct.Div(hundred)
	m.USD = m.USD.Mul(factor)
	m.Local = m.Local.Mul(factor)
	return m
}

func (m Money) IsZero() bool     { return m.USD.IsZero() }
func (m Money) IsNegative() bool { return m.USD.IsNegative() }

var hundred = decimal.NewFromInt(100)

// =============================================================================
// MONTH-YEAR - Granularity of payout runs
// =============================================================================

// MonthYear identifies one calendar month. Payout runs, exchange-rate
// lookups and ARR snapshots are all keyed by it.
type MonthYear struct {
	Year  int
	Month time.Month
}

func NewMonthYear(year int, month time.Month) MonthYear {
	return MonthYear{Year: year, Month: month}
}

// ParseMonthYear parses "2025-04" style keys.
func ParseMonthYear(s string) (MonthYear, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return MonthYear{}, fmt.Errorf("invalid month-year %q: %w", s, err)
	}
	return MonthYear{Year: t.Year(), Month: t.Month()}, nil
}

func (my MonthYear) String() string {
	return fmt.Sprintf("%04d-%02d", my.Year, int(my.Month))
}

func (my MonthYear) Start() time.Time {
	return time.Date(my.Year, my.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (my MonthYear) End() time.Time {
	return my.Start().AddDate(0, 1, -1)
}

func (my MonthYear) Next() MonthYear {
	t := my.Start().AddDate(0, 1, 0)
	return MonthYear{Year: t.Year(), Month: t.Month()}
}

func (my MonthYear) Before(other MonthYear) bool {
	return my.Start().Before(other.Start())
}

func (my MonthYear) AfterOrEqual(other MonthYear) bool {
	return !my.Before(other)
}

// =============================================================================
// FISCAL YEAR - Annual boundary for pro-ration and achievement
// =============================================================================

// FiscalYear is the [Start, End] window a plan year covers. Start month is
// configurable (April for most deployments, January by default).
type FiscalYear struct {
	Start time.Time
	End   time.Time
}

// NewFiscalYear returns the fiscal year labeled by its starting calendar
// year. startMonth=time.April gives Apr 1 year .. Mar 31 year+1.
func NewFiscalYear(year int, startMonth time.Month) FiscalYear {
	start := time.Date(year, startMonth, 1, 0, 0, 0, 0, time.UTC)
	return FiscalYear{Start: start, End: start.AddDate(1, 0, -1)}
}

// FiscalYearFor returns the fiscal year containing the given date.
func FiscalYearFor(date time.Time, startMonth time.Month) FiscalYear {
	fy := NewFiscalYear(date.Year(), startMonth)
	if date.Before(fy.Start) {
		fy = NewFiscalYear(date.Year()-1, startMonth)
	}
	return fy
}

// Days returns the number of days in the fiscal year (365 or 366).
func (fy FiscalYear) Days() int {
	return int(fy.End.Sub(fy.Start).Hours()/24) + 1
}

func (fy FiscalYear) Contains(t time.Time) bool {
	return !t.Before(fy.Start) && !t.After(fy.End)
}

// DaysBetween counts whole days from a to b (inclusive of both ends when
// a <= b; zero when the window is empty).
func DaysBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}

// OverlapDays returns the number of days two inclusive windows share.
func OverlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	return DaysBetween(start, end)
}

// =============================================================================
// PERCENT HELPERS
// =============================================================================

// Pct converts a percentage into its fractional multiplier (70 -> 0.7).
func Pct(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
