package gensys

import (
	"gonum.org/v1/gonum/mat"
)

// Existence and uniqueness codes reported in Solution.EU.
const (
	Fails        = 0
	Holds        = 1
	Undetermined = -1
)

// Solution is the reduced form y_t = G1·y_{t-1} + C + Impact·ε_t of a linear
// rational expectations model, together with the diagnostics of the solve.
type Solution struct {
	G1     *mat.Dense
	C      *mat.Dense
	Impact *mat.Dense

	// Fmat, Fwt and Ywt describe the explosive block. They are nil when the model
	// has no unstable roots.
	Fmat *mat.CDense
	Fwt  *mat.CDense
	Ywt  *mat.CDense

	// Gev holds the reordered diagonals of the Schur form: column 0 is S_ii, column 1 is T_ii.
	Gev *mat.CDense

	// EU is [existence, uniqueness].
	EU [2]int

	// Loose counts the expectational error directions left undetermined.
	Loose int
	// LooseMat loads the undetermined expectational errors onto y_t.
	LooseMat *mat.Dense

	NumUnstable int
	Stake       float64
}

// Exists reports whether a stable solution exists.
func (s *Solution) Exists() bool { return s.EU[0] == Holds }

// Unique reports whether the stable solution is unique.
func (s *Solution) Unique() bool { return s.EU[1] == Holds }

// Determinate reports EU == (1, 1).
func (s *Solution) Determinate() bool { return s.Exists() && s.Unique() }

// Dims returns the number of variables and of exogenous shocks. Both are zero
// when the solve stopped before building the reduced form.
func (s *Solution) Dims() (nvars, nshocks int) {
	if s.G1 == nil || s.Impact == nil {
		return 0, 0
	}
	nvars, _ = s.G1.Dims()
	_, nshocks = s.Impact.Dims()
	return nvars, nshocks
}

func code(ok bool) int {
	if ok {
		return Holds
	}
	return Fails
}
