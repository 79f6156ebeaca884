package forecast

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Band summarizes a set of draws pointwise.
type Band struct {
	Alpha float64
	Mean  *mat.Dense
	Lower *mat.Dense
	Upper *mat.Dense
}

// Bands computes the pointwise mean and the alpha/2 and 1-alpha/2 quantiles
// across draws. All draws must have the same shape.
// draws: one matrix per draw, e.g. Batch.Obs()
// alpha: total tail mass outside the band; values outside (0, 1) use 0.1
func Bands(draws []*mat.Dense, alpha float64) (*Band, error) {
	if len(draws) == 0 || draws[0] == nil {
		return nil, fmt.Errorf("%w: no draws", ErrDimensionMismatch)
	}
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.1
	}

	r, c := draws[0].Dims()
	for i, d := range draws {
		if d == nil {
			return nil, fmt.Errorf("%w: draw %d is nil", ErrDimensionMismatch, i)
		}
		if dr, dc := d.Dims(); dr != r || dc != c {
			return nil, fmt.Errorf("%w: draw %d is %dx%d, want %dx%d", ErrDimensionMismatch, i, dr, dc, r, c)
		}
	}

	b := &Band{
		Alpha: alpha,
		Mean:  mat.NewDense(r, c, nil),
		Lower: mat.NewDense(r, c, nil),
		Upper: mat.NewDense(r, c, nil),
	}
	samples := make([]float64, len(draws))
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			for k, d := range draws {
				samples[k] = d.At(i, j)
			}
			b.Mean.Set(i, j, stat.Mean(samples, nil))
			b.Lower.Set(i, j, quantile(samples, alpha/2))
			b.Upper.Set(i, j, quantile(samples, 1-alpha/2))
		}
	}
	return b, nil
}

// quantile returns the empirical q-quantile of samples (0 <= q <= 1)
// using linear interpolation between order statistics.
func quantile(samples []float64, q float64) float64 {
	n := len(samples)
	if n == 0 {
		return math.NaN()
	}

	tmp := make([]float64, n)
	copy(tmp, samples)
	sort.Float64s(tmp)

	if q <= 0 {
		return tmp[0]
	}
	if q >= 1 {
		return tmp[n-1]
	}

	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return tmp[lo]
	}
	w := pos - float64(lo)
	return tmp[lo]*(1-w) + tmp[hi]*w
}
