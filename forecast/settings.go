package forecast

import "fmt"

// Settings selects how a forecast is run. It is built once at the entry point and
// passed down unchanged.
type Settings struct {
	Horizons int

	// KillShocks forces every shock to zero.
	KillShocks bool
	// TDistShocks draws independent Student-t shocks instead of N(0, Q).
	TDistShocks bool
	TDistDF     float64

	EnforceZLB bool
	ZLBValue   float64

	Pseudoobservables bool

	// RateIndex is the row of the nominal rate among the observables.
	RateIndex int
	// RateShockIndex is the position of the monetary policy shock.
	RateShockIndex int
}

// DefaultSettings returns a 60 period forecast with normal shocks and a
// quarterly 13 basis point floor.
func DefaultSettings() Settings {
	return Settings{
		Horizons: 60,
		TDistDF:  15,
		ZLBValue: 0.13 / 4,
	}
}

// Validate checks the settings against a system with the given dimensions.
func (s Settings) Validate(nshocks, nobs int) error {
	if s.Horizons <= 0 {
		return fmt.Errorf("%w: horizons must be > 0, got %d", ErrInvalidSettings, s.Horizons)
	}
	if s.TDistShocks && !s.KillShocks && s.TDistDF <= 0 {
		return fmt.Errorf("%w: t degrees of freedom must be > 0, got %v", ErrInvalidSettings, s.TDistDF)
	}
	if s.EnforceZLB {
		if s.RateIndex < 0 || s.RateIndex >= nobs {
			return fmt.Errorf("%w: rate index %d outside %d observables", ErrInvalidSettings, s.RateIndex, nobs)
		}
		if s.RateShockIndex < 0 || s.RateShockIndex >= nshocks {
			return fmt.Errorf("%w: rate shock index %d outside %d shocks", ErrInvalidSettings, s.RateShockIndex, nshocks)
		}
	}
	return nil
}
