package payout

import "time"

// Settings are the engine tunables a deployment configures once.
type Settings struct {
	// FiscalYearStartMonth anchors pro-ration and achievement windows.
	FiscalYearStartMonth time.Month

	// CollectionGraceDays releases a held collection tranche
	// unconditionally this many days after booking.
	CollectionGraceDays int

	// DisableCollectionGrace turns the unconditional release off
	// entirely: collection tranches release only on actual collection.
	// Needed because a zero CollectionGraceDays means "use the default".
	DisableCollectionGrace bool

	// Workers bounds the calculator's per-employee parallelism.
	Workers int
}

// DefaultSettings match the common deployment: April fiscal year,
// 90-day collection grace, modest parallelism.
func DefaultSettings() Settings {
	return Settings{
		FiscalYearStartMonth: time.April,
		CollectionGraceDays:  90,
		Workers:              8,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.FiscalYearStartMonth == 0 {
		s.FiscalYearStartMonth = d.FiscalYearStartMonth
	}
	if s.DisableCollectionGrace {
		s.CollectionGraceDays = 0
	} else if s.CollectionGraceDays == 0 {
		s.CollectionGraceDays = d.CollectionGraceDays
	}
	if s.Workers <= 0 {
		s.Workers = d.Workers
	}
	return s
}
