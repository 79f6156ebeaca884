package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ShockSampler draws nshocks x horizon shock matrices, one column per period.
type ShockSampler struct {
	nshocks int
	kill    bool

	tdist *distuv.StudentsT
	norm  distuv.Normal
	// scale is sqrt(Q), computed once.
	scale *mat.Dense
}

// NewShockSampler prepares a sampler for covariance q. The settings decide
// between zero, Student-t and N(0, q) shocks.
func NewShockSampler(s Settings, q *mat.SymDense, src rand.Source) (*ShockSampler, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: shock covariance is nil", ErrDimensionMismatch)
	}
	n := q.SymmetricDim()
	ss := &ShockSampler{nshocks: n, kill: s.KillShocks}
	if ss.kill {
		return ss, nil
	}

	if s.TDistShocks {
		if s.TDistDF <= 0 {
			return nil, fmt.Errorf("%w: t degrees of freedom must be > 0, got %v", ErrInvalidSettings, s.TDistDF)
		}
		ss.tdist = &distuv.StudentsT{Mu: 0, Sigma: 1, Nu: s.TDistDF, Src: src}
		return ss, nil
	}

	scale, err := sqrtSym(q)
	if err != nil {
		return nil, err
	}
	ss.scale = scale
	ss.norm = distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return ss, nil
}

// Draw returns a fresh shock matrix for horizon periods.
func (ss *ShockSampler) Draw(horizon int) *mat.Dense {
	out := mat.NewDense(ss.nshocks, horizon, nil)
	switch {
	case ss.kill:
	case ss.tdist != nil:
		for j := 0; j < horizon; j++ {
			for i := 0; i < ss.nshocks; i++ {
				out.Set(i, j, ss.tdist.Rand())
			}
		}
	default:
		z := mat.NewVecDense(ss.nshocks, nil)
		var e mat.VecDense
		for j := 0; j < horizon; j++ {
			for i := 0; i < ss.nshocks; i++ {
				z.SetVec(i, ss.norm.Rand())
			}
			e.MulVec(ss.scale, z)
			out.SetCol(j, e.RawVector().Data)
		}
	}
	return out
}

// sqrtSym returns the symmetric square root V·sqrt(Λ)·Vᵀ of q. Negative
// eigenvalues from rounding are clamped to zero, so a singular q keeps every
// draw in its range space.
func sqrtSym(q *mat.SymDense) (*mat.Dense, error) {
	n := q.SymmetricDim()
	var es mat.EigenSym
	if ok := es.Factorize(q, true); !ok {
		return nil, ErrShockCovariance
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	root := make([]float64, n)
	for i, v := range vals {
		root[i] = math.Sqrt(math.Max(v, 0))
	}
	var vd, out mat.Dense
	vd.Mul(&vecs, mat.NewDiagDense(n, root))
	out.Mul(&vd, vecs.T())
	return &out, nil
}
