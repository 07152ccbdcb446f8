package engine_test

import (
	"testing"
	"time"

	"github.com/warp/payout-engine/engine"
)

func TestRateTable_Lookup(t *testing.T) {
	rt := engine.NewRateTable()
	june := engine.NewMonthYear(2025, time.June)
	rt.Set("INR", june, dec(83.1))

	rate, ok := rt.Market("INR", june)
	if !ok {
		t.Fatal("expected rate to exist")
	}
	assertDecimal(t, dec(83.1), rate, "rate")

	if _, ok := rt.Market("INR", engine.NewMonthYear(2025, time.July)); ok {
		t.Error("missing month must not resolve")
	}
	if _, ok := rt.Market("EUR", june); ok {
		t.Error("missing currency must not resolve")
	}
}

func TestFXContext_TwoRatesNeverConflated(t *testing.T) {
	// Variable pay converts at the frozen comp rate; commissions at the
	// month's market rate. Each ledger amount records which it used.
	fx := engine.FXContext{
		Currency:   "INR",
		CompRate:   dec(82.5),
		MarketRate: dec(83.1),
	}

	vp := fx.VariablePay(dec(1000))
	assertDecimal(t, dec(82500), vp.Local, "variable pay at comp rate")
	if vp.Source != engine.RateCompensation {
		t.Errorf("variable pay source: %s", vp.Source)
	}

	comm := fx.Commission(dec(1000))
	assertDecimal(t, dec(83100), comm.Local, "commission at market rate")
	if comm.Source != engine.RateMarket {
		t.Errorf("commission source: %s", comm.Source)
	}
}

func TestUSDContext_Identity(t *testing.T) {
	fx := engine.USDContext()
	m := fx.VariablePay(dec(5000))
	assertDecimal(t, dec(5000), m.Local, "USD local mirrors USD")
	assertDecimal(t, dec(1), m.Rate, "identity rate")
}

func TestNewMoney_ZeroRate(t *testing.T) {
	// A zero rate yields a zero local amount rather than dividing by zero.
	m := engine.NewMoney(dec(1000), "INR", dec(0), engine.RateMarket)
	assertDecimal(t, dec(0), m.Local, "zero-rate local")
	assertDecimal(t, dec(1000), m.USD, "USD untouched")
}
