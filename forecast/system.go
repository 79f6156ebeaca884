package forecast

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rokkuran/dsge/gensys"
)

// Transition is z_t = C + T·z_{t-1} + R·ε_t.
type Transition struct {
	T *mat.Dense
	R *mat.Dense
	C *mat.VecDense
}

// Measurement is obs_t = D + Z·z_t with shock covariance Q.
type Measurement struct {
	Z *mat.Dense
	D *mat.VecDense
	Q *mat.SymDense
}

// PseudoMeasurement maps states to unobserved quantities of interest.
type PseudoMeasurement struct {
	Z *mat.Dense
	D *mat.VecDense
}

// System bundles one parameter draw's state space matrices. Pseudo may be nil.
type System struct {
	Transition  Transition
	Measurement Measurement
	Pseudo      *PseudoMeasurement
}

// NewTransition builds the transition equation from a gensys solution.
func NewTransition(sol *gensys.Solution) (Transition, error) {
	if sol == nil || sol.G1 == nil || sol.Impact == nil || sol.C == nil {
		return Transition{}, ErrUnsolved
	}
	n, _ := sol.C.Dims()
	c := mat.NewVecDense(n, nil)
	c.CopyVec(sol.C.ColView(0))
	return Transition{
		T: mat.DenseCopyOf(sol.G1),
		R: mat.DenseCopyOf(sol.Impact),
		C: c,
	}, nil
}

// Dims returns the number of states, shocks, observables and pseudo-observables.
func (s *System) Dims() (nstates, nshocks, nobs, npseudo int) {
	if s.Transition.R != nil {
		nstates, nshocks = s.Transition.R.Dims()
	}
	if s.Measurement.Z != nil {
		nobs, _ = s.Measurement.Z.Dims()
	}
	if s.Pseudo != nil && s.Pseudo.Z != nil {
		npseudo, _ = s.Pseudo.Z.Dims()
	}
	return
}

// Validate checks that every matrix in the system conforms.
func (s *System) Validate() error {
	tr, m := s.Transition, s.Measurement
	if tr.T == nil || tr.R == nil || tr.C == nil {
		return fmt.Errorf("%w: transition matrices are incomplete", ErrDimensionMismatch)
	}
	if m.Z == nil || m.D == nil || m.Q == nil {
		return fmt.Errorf("%w: measurement matrices are incomplete", ErrDimensionMismatch)
	}

	nstates, nshocks := tr.R.Dims()
	if r, c := tr.T.Dims(); r != nstates || c != nstates {
		return fmt.Errorf("%w: T is %dx%d, want %dx%d", ErrDimensionMismatch, r, c, nstates, nstates)
	}
	if tr.C.Len() != nstates {
		return fmt.Errorf("%w: transition C has length %d, want %d", ErrDimensionMismatch, tr.C.Len(), nstates)
	}

	nobs, zc := m.Z.Dims()
	if zc != nstates {
		return fmt.Errorf("%w: Z has %d columns, want %d", ErrDimensionMismatch, zc, nstates)
	}
	if m.D.Len() != nobs {
		return fmt.Errorf("%w: D has length %d, want %d", ErrDimensionMismatch, m.D.Len(), nobs)
	}
	if m.Q.SymmetricDim() != nshocks {
		return fmt.Errorf("%w: Q is %dx%d, want %dx%d", ErrDimensionMismatch, m.Q.SymmetricDim(), m.Q.SymmetricDim(), nshocks, nshocks)
	}

	if p := s.Pseudo; p != nil {
		if p.Z == nil || p.D == nil {
			return fmt.Errorf("%w: pseudo-measurement matrices are incomplete", ErrDimensionMismatch)
		}
		npseudo, pc := p.Z.Dims()
		if pc != nstates {
			return fmt.Errorf("%w: pseudo Z has %d columns, want %d", ErrDimensionMismatch, pc, nstates)
		}
		if p.D.Len() != npseudo {
			return fmt.Errorf("%w: pseudo D has length %d, want %d", ErrDimensionMismatch, p.D.Len(), npseudo)
		}
	}
	return nil
}
