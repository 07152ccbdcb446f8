/*
fx.go - Exchange-rate resolution

PURPOSE:
  Two distinct rates exist per employee and must never be conflated:

  Compensation rate: fixed when the assignment is created. Variable pay
  (metric payouts, NRR) converts with it so an employee's plan economics
  don't move with the market mid-year.

  Market rate: looked up per calendar month. Commissions and SPIFFs
  convert with it.

  Both rates are carried on every ledger row so audits can detect
  mismatches later.
*/
package engine

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE TABLE - Market rates by currency and month
// =============================================================================

// RateTable holds market rates (units of local currency per USD) keyed by
// currency and month. It is a plain in-memory input to the engine; the
// payout package loads it from the store.
type RateTable struct {
	rates map[string]map[MonthYear]decimal.Decimal
}

func NewRateTable() *RateTable {
	return &RateTable{rates: make(map[string]map[MonthYear]decimal.Decimal)}
}

func (rt *RateTable) Set(currency string, month MonthYear, rate decimal.Decimal) {
	if rt.rates[currency] == nil {
		rt.rates[currency] = make(map[MonthYear]decimal.Decimal)
	}
	rt.rates[currency][month] = rate
}

// Market returns the market rate for a currency+month.
func (rt *RateTable) Market(currency string, month MonthYear) (decimal.Decimal, bool) {
	byMonth, ok := rt.rates[currency]
	if !ok {
		return decimal.Zero, false
	}
	rate, ok := byMonth[month]
	return rate, ok
}

// Currencies returns every currency the table knows about.
func (rt *RateTable) Currencies() []string {
	out := make([]string, 0, len(rt.rates))
	for c := range rt.rates {
		out = append(out, c)
	}
	return out
}

// =============================================================================
// FX CONTEXT - Per-employee rate pair for one run month
// =============================================================================

// FXContext is the resolved rate pair an employee's statement uses.
// USD-denominated employees get rate 1 on both sides.
type FXContext struct {
	Currency string
	CompRate decimal.Decimal // fixed at assignment time
	MarketRate decimal.Decimal // looked up for the run month
}

// USDContext is the identity context for USD-paid employees.
func USDContext() FXContext {
	one := decimal.NewFromInt(1)
	return FXContext{Currency: "USD", CompRate: one, MarketRate: one}
}

// VariablePay converts a USD amount using the compensation rate.
func (fx FXContext) VariablePay(usd decimal.Decimal) Money {
	return NewMoney(usd, fx.Currency, fx.CompRate, RateCompensation)
}

// Commission converts a USD amount using the market rate.
func (fx FXContext) Commission(usd decimal.Decimal) Money {
	return NewMoney(usd, fx.Currency, fx.MarketRate, RateMarket)
}
