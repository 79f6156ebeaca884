package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

const (
	// zlbTol is how far below the floor a corrected rate may land.
	zlbTol = 1e-10
	// minSensitivity is the smallest response of the rate to its own shock that
	// the correction will divide by.
	minSensitivity = 1e-12
)

// Draw is one simulated forecast path. Every matrix has one column per period.
// Pseudo is nil when pseudo-observables are disabled or the system has none.
type Draw struct {
	States *mat.Dense
	Obs    *mat.Dense
	Pseudo *mat.Dense
	Shocks *mat.Dense
}

// ComputeForecast iterates the transition equation from z0 for s.Horizons periods
// and applies the measurement equations.
// sys: state space system for one parameter draw
// z0: initial state
// shocks: nshocks x horizons matrix, or nil to draw shocks per s
// src: random source for drawn shocks; nil uses the global source
// Returns: states, observables, pseudo-observables and the shocks that occurred
//
// Supplied shocks are copied. With ZLB enforcement on, the returned shocks carry
// the corrected policy shock wherever the floor binds.
func ComputeForecast(sys *System, z0 *mat.VecDense, shocks *mat.Dense, s Settings, src rand.Source) (*Draw, error) {
	if sys == nil {
		return nil, fmt.Errorf("%w: system is nil", ErrDimensionMismatch)
	}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	nstates, nshocks, nobs, _ := sys.Dims()
	if err := s.Validate(nshocks, nobs); err != nil {
		return nil, err
	}
	if z0 == nil || z0.Len() != nstates {
		return nil, fmt.Errorf("%w: initial state must have length %d", ErrDimensionMismatch, nstates)
	}

	horizon := s.Horizons
	var eps *mat.Dense
	if shocks == nil {
		sampler, err := NewShockSampler(s, sys.Measurement.Q, src)
		if err != nil {
			return nil, err
		}
		eps = sampler.Draw(horizon)
	} else {
		r, c := shocks.Dims()
		if r != nshocks || c != horizon {
			return nil, fmt.Errorf("%w: shocks are %dx%d, want %dx%d", ErrDimensionMismatch, r, c, nshocks, horizon)
		}
		eps = mat.DenseCopyOf(shocks)
	}

	tr, m := sys.Transition, sys.Measurement
	states := mat.NewDense(nstates, horizon, nil)
	prev := mat.VecDenseCopyOf(z0)
	z := mat.NewVecDense(nstates, nil)

	for t := 0; t < horizon; t++ {
		step(tr, prev, eps.ColView(t), z)

		if s.EnforceZLB && measure(m, s.RateIndex, z) < s.ZLBValue {
			if err := correctZLB(tr, m, s, prev, eps, t, z); err != nil {
				return nil, &PeriodError{Period: t + 1, Err: err}
			}
		}

		states.SetCol(t, z.RawVector().Data)
		prev, z = z, prev
	}

	d := &Draw{
		States: states,
		Obs:    observe(m.Z, m.D, states),
		Shocks: eps,
	}
	if s.Pseudoobservables && sys.Pseudo != nil {
		d.Pseudo = observe(sys.Pseudo.Z, sys.Pseudo.D, states)
	}
	return d, nil
}

// correctZLB replaces the policy shock in period t so that the rate lands on the
// floor. eps and z are updated in place.
func correctZLB(tr Transition, m Measurement, s Settings, prev *mat.VecDense, eps *mat.Dense, t int, z *mat.VecDense) error {
	r, sh := s.RateIndex, s.RateShockIndex

	// Baseline with the policy shock zeroed.
	eps.Set(sh, t, 0)
	step(tr, prev, eps.ColView(t), z)
	base := measure(m, r, z)

	sens := mat.Dot(m.Z.RowView(r), tr.R.ColView(sh))
	if math.Abs(sens) <= minSensitivity {
		return fmt.Errorf("%w: rate does not respond to shock %d", ErrZLBCorrection, sh)
	}
	needed := (s.ZLBValue - base) / sens
	eps.Set(sh, t, needed)
	step(tr, prev, eps.ColView(t), z)

	rate := measure(m, r, z)
	if rate < s.ZLBValue-zlbTol {
		return fmt.Errorf("%w: corrected rate %v is below floor %v", ErrZLBCorrection, rate, s.ZLBValue)
	}

	logger.WithFields(logrus.Fields{
		"period": t + 1,
		"shock":  needed,
		"rate":   rate,
	}).Debug("forecast: zero lower bound binds")
	return nil
}

// step writes C + T·prev + R·eps into dst.
func step(tr Transition, prev, eps mat.Vector, dst *mat.VecDense) {
	var re mat.VecDense
	re.MulVec(tr.R, eps)
	dst.MulVec(tr.T, prev)
	dst.AddVec(dst, &re)
	dst.AddVec(dst, tr.C)
}

// measure returns D[i] + Z[i,:]·z.
func measure(m Measurement, i int, z mat.Vector) float64 {
	return m.D.AtVec(i) + mat.Dot(m.Z.RowView(i), z)
}

// observe returns D + Z·states, D added to every column.
func observe(z *mat.Dense, d *mat.VecDense, states *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(z, states)
	r, c := out.Dims()
	for i := 0; i < r; i++ {
		di := d.AtVec(i)
		for j := 0; j < c; j++ {
			out.Set(i, j, out.At(i, j)+di)
		}
	}
	return &out
}
