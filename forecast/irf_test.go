package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestImpulseResponses(t *testing.T) {
	sys := newTestSystem()
	sys.Transition.T = mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.2})
	sys.Measurement.Q = mat.NewSymDense(2, []float64{4, 0, 0, 1})

	irfs, err := ImpulseResponses(sys, 6)
	require.NoError(t, err)
	require.Len(t, irfs, 2)

	for h := 0; h < 6; h++ {
		// two standard deviations of 1 decaying at 0.5
		assert.InDelta(t, 2*math.Pow(0.5, float64(h)), irfs[0].States.At(0, h), 1e-12)
		assert.Zero(t, irfs[0].States.At(1, h))
		assert.InDelta(t, math.Pow(0.2, float64(h)), irfs[1].States.At(1, h), 1e-12)
	}

	// Measurement constants are dropped.
	assert.InDelta(t, 1, irfs[1].Obs.At(1, 0), 1e-12)
	require.NotNil(t, irfs[0].Pseudo)
	assert.InDelta(t, 2, irfs[0].Pseudo.At(0, 0), 1e-12)
	assert.Equal(t, 1, irfs[1].Shock)
}

func TestImpulseResponsesInvalid(t *testing.T) {
	_, err := ImpulseResponses(newTestSystem(), 0)
	assert.ErrorIs(t, err, ErrInvalidSettings)

	_, err = ImpulseResponses(nil, 4)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

// ============================================================================
// BANDS
// ============================================================================

func TestBands(t *testing.T) {
	draws := make([]*mat.Dense, 5)
	for i := range draws {
		v := float64(i + 1)
		draws[i] = mat.NewDense(1, 2, []float64{v, -v})
	}

	b, err := Bands(draws, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, 3, b.Mean.At(0, 0), 1e-12)
	assert.InDelta(t, 2, b.Lower.At(0, 0), 1e-12)
	assert.InDelta(t, 4, b.Upper.At(0, 0), 1e-12)
	assert.InDelta(t, -4, b.Lower.At(0, 1), 1e-12)
	assert.InDelta(t, -2, b.Upper.At(0, 1), 1e-12)

	b, err = Bands(draws, 2)
	require.NoError(t, err)
	assert.Equal(t, 0.1, b.Alpha)
}

func TestBandsMismatch(t *testing.T) {
	_, err := Bands(nil, 0.1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Bands([]*mat.Dense{mat.NewDense(1, 2, nil), mat.NewDense(2, 2, nil)}, 0.1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		samples []float64
		q       float64
		want    float64
	}{
		{[]float64{3, 1, 2}, 0.5, 2},
		{[]float64{1, 2, 3, 4}, 0.5, 2.5},
		{[]float64{5, 1}, 0, 1},
		{[]float64{5, 1}, 1, 5},
		{[]float64{0, 10}, 0.25, 2.5},
	}
	for _, tc := range tests {
		assert.InDelta(t, tc.want, quantile(tc.samples, tc.q), 1e-12)
	}
	assert.True(t, math.IsNaN(quantile(nil, 0.5)))
}
