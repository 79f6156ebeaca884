package forecast

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/rokkuran/dsge/gensys"
)

// newTestSystem is a two state, two shock system where the second observable is the rate.
func newTestSystem() *System {
	return &System{
		Transition: Transition{
			T: mat.NewDense(2, 2, []float64{0.9, 0, 0.1, 0.5}),
			R: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			C: mat.NewVecDense(2, []float64{0.01, 0}),
		},
		Measurement: Measurement{
			Z: mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			D: mat.NewVecDense(2, []float64{0, 0.02}),
			Q: mat.NewSymDense(2, []float64{1, 0, 0, 0.25}),
		},
		Pseudo: &PseudoMeasurement{
			Z: mat.NewDense(1, 2, []float64{1, 1}),
			D: mat.NewVecDense(1, []float64{0}),
		},
	}
}

func testSettings(horizons int) Settings {
	s := DefaultSettings()
	s.Horizons = horizons
	s.RateIndex = 1
	s.RateShockIndex = 1
	return s
}

func TestComputeForecastDeterministic(t *testing.T) {
	s := testSettings(2)
	s.KillShocks = true
	s.Pseudoobservables = true

	d, err := ComputeForecast(newTestSystem(), mat.NewVecDense(2, []float64{1, 2}), nil, s, nil)
	require.NoError(t, err)

	want := mat.NewDense(2, 2, []float64{
		0.91, 0.829,
		1.1, 0.641,
	})
	assert.True(t, mat.EqualApprox(want, d.States, 1e-12))

	assert.InDelta(t, 0.829, d.Obs.At(0, 1), 1e-12)
	assert.InDelta(t, 0.661, d.Obs.At(1, 1), 1e-12)
	assert.InDelta(t, 0.91+1.1, d.Pseudo.At(0, 0), 1e-12)
	assert.Zero(t, mat.Norm(d.Shocks, 1))
}

func TestComputeForecastSuppliedShocks(t *testing.T) {
	s := testSettings(3)
	shocks := mat.NewDense(2, 3, []float64{
		1, 0, 0,
		0, 0.5, 0,
	})
	orig := mat.DenseCopyOf(shocks)

	d, err := ComputeForecast(newTestSystem(), mat.NewVecDense(2, nil), shocks, s, nil)
	require.NoError(t, err)

	assert.True(t, mat.Equal(orig, shocks), "caller's shocks must not change")
	assert.True(t, mat.Equal(orig, d.Shocks))
	assert.InDelta(t, 1.01, d.States.At(0, 0), 1e-12)
	assert.InDelta(t, 0.101+0.5, d.States.At(1, 1), 1e-12)
}

func TestComputeForecastZLB(t *testing.T) {
	s := testSettings(8)
	s.EnforceZLB = true

	// A run of negative policy shocks drives the rate through the floor.
	shocks := mat.NewDense(2, 8, nil)
	for j := 0; j < 8; j++ {
		shocks.Set(1, j, -0.5)
	}
	orig := mat.DenseCopyOf(shocks)

	sys := newTestSystem()
	d, err := ComputeForecast(sys, mat.NewVecDense(2, []float64{0, 0.1}), shocks, s, nil)
	require.NoError(t, err)
	assert.True(t, mat.Equal(orig, shocks))

	corrected := 0
	for j := 0; j < 8; j++ {
		rate := sys.Measurement.D.AtVec(1) + mat.Dot(sys.Measurement.Z.RowView(1), d.States.ColView(j))
		assert.GreaterOrEqual(t, rate, s.ZLBValue-1e-10, "period %d", j+1)
		assert.InDelta(t, rate, d.Obs.At(1, j), 1e-12)
		if d.Shocks.At(1, j) != orig.At(1, j) {
			corrected++
			assert.InDelta(t, s.ZLBValue, rate, 1e-10)
		}
	}
	assert.Positive(t, corrected)
}

func TestComputeForecastZLBIdempotent(t *testing.T) {
	s := testSettings(12)
	s.EnforceZLB = true
	s.ZLBValue = 0.5
	z0 := mat.NewVecDense(2, []float64{0.3, -0.2})

	first, err := ComputeForecast(newTestSystem(), z0, nil, s, rand.NewPCG(7, 11))
	require.NoError(t, err)

	// Feeding the corrected shocks back reproduces the corrected path.
	again, err := ComputeForecast(newTestSystem(), z0, first.Shocks, s, nil)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(first.States, again.States, 1e-10))
	assert.True(t, mat.EqualApprox(first.Shocks, again.Shocks, 1e-10))
}

func TestComputeForecastZLBZeroSensitivity(t *testing.T) {
	s := testSettings(4)
	s.KillShocks = true
	s.EnforceZLB = true
	s.RateIndex = 0

	_, err := ComputeForecast(newTestSystem(), mat.NewVecDense(2, []float64{-1, 0}), nil, s, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZLBCorrection)

	var pe *PeriodError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 1, pe.Period)
}

func TestComputeForecastReproducible(t *testing.T) {
	s := testSettings(20)
	z0 := mat.NewVecDense(2, []float64{0.1, 0.2})

	a, err := ComputeForecast(newTestSystem(), z0, nil, s, rand.NewPCG(1, 2))
	require.NoError(t, err)
	b, err := ComputeForecast(newTestSystem(), z0, nil, s, rand.NewPCG(1, 2))
	require.NoError(t, err)

	assert.True(t, mat.Equal(a.Shocks, b.Shocks))
	assert.True(t, mat.Equal(a.States, b.States))
	assert.NotZero(t, mat.Norm(a.Shocks, 1))
}

func TestComputeForecastPseudo(t *testing.T) {
	s := testSettings(3)
	s.KillShocks = true
	z0 := mat.NewVecDense(2, nil)

	d, err := ComputeForecast(newTestSystem(), z0, nil, s, nil)
	require.NoError(t, err)
	assert.Nil(t, d.Pseudo, "disabled")

	s.Pseudoobservables = true
	sys := newTestSystem()
	sys.Pseudo = nil
	d, err = ComputeForecast(sys, z0, nil, s, nil)
	require.NoError(t, err)
	assert.Nil(t, d.Pseudo, "system has none")

	d, err = ComputeForecast(newTestSystem(), z0, nil, s, nil)
	require.NoError(t, err)
	require.NotNil(t, d.Pseudo)
	r, c := d.Pseudo.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 3, c)
}

func TestComputeForecastDimensionMismatch(t *testing.T) {
	s := testSettings(3)

	_, err := ComputeForecast(newTestSystem(), mat.NewVecDense(3, nil), nil, s, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = ComputeForecast(newTestSystem(), mat.NewVecDense(2, nil), mat.NewDense(2, 4, nil), s, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	sys := newTestSystem()
	sys.Measurement.Z = mat.NewDense(2, 3, nil)
	_, err = ComputeForecast(sys, mat.NewVecDense(2, nil), nil, s, nil)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	s.Horizons = 0
	_, err = ComputeForecast(newTestSystem(), mat.NewVecDense(2, nil), nil, s, nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

// ============================================================================
// SHOCK SAMPLER
// ============================================================================

func TestShockSamplerSingularCovariance(t *testing.T) {
	// Rank one covariance: every draw lies on the (1, 1) direction.
	q := mat.NewSymDense(2, []float64{1, 1, 1, 1})
	ss, err := NewShockSampler(DefaultSettings(), q, rand.NewPCG(3, 4))
	require.NoError(t, err)

	eps := ss.Draw(200)
	var sum float64
	for j := 0; j < 200; j++ {
		assert.InDelta(t, eps.At(0, j), eps.At(1, j), 1e-10)
		sum += eps.At(0, j) * eps.At(0, j)
	}
	// Each component has variance 1.
	assert.InDelta(t, 1, sum/200, 0.35)
}

func TestShockSamplerTDist(t *testing.T) {
	s := DefaultSettings()
	s.TDistShocks = true
	ss, err := NewShockSampler(s, mat.NewSymDense(3, nil), rand.NewPCG(5, 6))
	require.NoError(t, err)

	eps := ss.Draw(50)
	r, c := eps.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 50, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.False(t, math.IsNaN(eps.At(i, j)))
		}
	}
	assert.NotZero(t, mat.Norm(eps, 1), "t draws ignore Q")

	s.TDistDF = 0
	_, err = NewShockSampler(s, mat.NewSymDense(3, nil), nil)
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestShockSamplerKill(t *testing.T) {
	s := DefaultSettings()
	s.KillShocks = true
	s.TDistShocks = true
	ss, err := NewShockSampler(s, mat.NewSymDense(2, []float64{1, 0, 0, 1}), nil)
	require.NoError(t, err)
	assert.Zero(t, mat.Norm(ss.Draw(5), 1))
}

// ============================================================================
// SYSTEM
// ============================================================================

func TestNewTransitionFromSolution(t *testing.T) {
	beta, rho := 0.99, 0.5
	g0 := mat.NewDense(3, 3, []float64{1, -1, -beta, 0, 1, 0, 1, 0, 0})
	g1 := mat.NewDense(3, 3, []float64{0, 0, 0, 0, rho, 0, 0, 0, 1})
	sol, err := gensys.Solve(g0, g1, mat.NewDense(3, 1, nil),
		mat.NewDense(3, 1, []float64{0, 1, 0}), mat.NewDense(3, 1, []float64{0, 0, 1}), gensys.DefaultStake)
	require.NoError(t, err)

	tr, err := NewTransition(sol)
	require.NoError(t, err)
	assert.True(t, mat.Equal(sol.G1, tr.T))
	assert.InDelta(t, 1/(1-beta*rho), tr.R.At(0, 0), 1e-10)
	assert.Equal(t, 3, tr.C.Len())

	_, err = NewTransition(&gensys.Solution{EU: [2]int{gensys.Undetermined, gensys.Undetermined}})
	assert.ErrorIs(t, err, ErrUnsolved)
}

func TestSystemValidate(t *testing.T) {
	assert.NoError(t, newTestSystem().Validate())

	sys := newTestSystem()
	sys.Measurement.Q = mat.NewSymDense(3, nil)
	assert.ErrorIs(t, sys.Validate(), ErrDimensionMismatch)

	sys = newTestSystem()
	sys.Pseudo.D = mat.NewVecDense(2, nil)
	assert.ErrorIs(t, sys.Validate(), ErrDimensionMismatch)

	sys = newTestSystem()
	sys.Transition.C = nil
	assert.ErrorIs(t, sys.Validate(), ErrDimensionMismatch)

	nstates, nshocks, nobs, npseudo := newTestSystem().Dims()
	assert.Equal(t, []int{2, 2, 2, 1}, []int{nstates, nshocks, nobs, npseudo})
}

func TestSettingsValidate(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 60, s.Horizons)
	assert.InDelta(t, 0.0325, s.ZLBValue, 1e-15)
	assert.NoError(t, s.Validate(2, 2))

	s.EnforceZLB = true
	s.RateIndex = 4
	assert.ErrorIs(t, s.Validate(2, 2), ErrInvalidSettings)

	s.RateIndex = 0
	s.RateShockIndex = -1
	assert.ErrorIs(t, s.Validate(2, 2), ErrInvalidSettings)
}
