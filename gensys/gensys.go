package gensys

import (
	"fmt"
	"math/cmplx"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/rokkuran/dsge/linalg"
)

const (
	// DefaultStake separates stable from unstable generalized eigenvalues.
	DefaultStake = 1 + 1e-6

	// realsmall is the cutoff for singular values and for coincident zeros.
	realsmall = 1e-6
)

// Solve computes the minimal state variable solution of
//
//	Γ0·y_t = Γ1·y_{t-1} + C + Ψ·ε_t + Π·η_t
//
// gamma0, gamma1: n x n structural matrices
// c: n x 1 constant
// psi: n x k loading of exogenous shocks
// pi: n x l loading of expectational errors
// stake: stability cutoff; values <= 0 select one automatically
// Returns: the reduced form and its existence/uniqueness diagnostics
//
// A non-existent or indeterminate solution is reported through Solution.EU and
// is not an error.
func Solve(gamma0, gamma1, c, psi, pi *mat.Dense, stake float64) (*Solution, error) {
	if err := checkDims(gamma0, gamma1, c, psi, pi); err != nil {
		return nil, err
	}
	f, err := linalg.Decompose(gamma0, gamma1)
	if err != nil {
		return nil, fmt.Errorf("gensys: %w", err)
	}
	return solve(f, c, psi, pi, stake)
}

// SolveQZ is Solve for a pencil that is already decomposed. f is reordered in place.
func SolveQZ(f *linalg.QZ, c, psi, pi *mat.Dense, stake float64) (*Solution, error) {
	n := f.Size()
	if err := checkRows(n, c, "C", psi, "Psi", pi, "Pi"); err != nil {
		return nil, err
	}
	if _, cc := c.Dims(); cc != 1 {
		return nil, fmt.Errorf("%w: C has %d columns, want 1", ErrDimensionMismatch, cc)
	}
	return solve(f, c, psi, pi, stake)
}

func checkDims(gamma0, gamma1, c, psi, pi *mat.Dense) error {
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{"Gamma0", gamma0}, {"Gamma1", gamma1}, {"C", c}, {"Psi", psi}, {"Pi", pi}} {
		if m.m == nil {
			return fmt.Errorf("%w: %s is nil", ErrDimensionMismatch, m.name)
		}
	}

	n, nc := gamma0.Dims()
	if n != nc {
		return fmt.Errorf("%w: Gamma0 is %dx%d, want square", ErrDimensionMismatch, n, nc)
	}
	if r, cc := gamma1.Dims(); r != n || cc != n {
		return fmt.Errorf("%w: Gamma1 is %dx%d, want %dx%d", ErrDimensionMismatch, r, cc, n, n)
	}
	if _, cc := c.Dims(); cc != 1 {
		return fmt.Errorf("%w: C has %d columns, want 1", ErrDimensionMismatch, cc)
	}
	return checkRows(n, c, "C", psi, "Psi", pi, "Pi")
}

func checkRows(n int, c *mat.Dense, cn string, psi *mat.Dense, psin string, pi *mat.Dense, pin string) error {
	for _, m := range []struct {
		name string
		m    *mat.Dense
	}{{cn, c}, {psin, psi}, {pin, pi}} {
		if m.m == nil {
			return fmt.Errorf("%w: %s is nil", ErrDimensionMismatch, m.name)
		}
		if r, _ := m.m.Dims(); r != n {
			return fmt.Errorf("%w: %s has %d rows, want %d", ErrDimensionMismatch, m.name, r, n)
		}
	}
	return nil
}

func solve(f *linalg.QZ, c, psi, pi *mat.Dense, stake float64) (*Solution, error) {
	n := f.Size()
	_, neta := pi.Dims()

	// Step 1: a pair of coincident zeros leaves the eigenvalue undetermined.
	if i := coincidentZero(f); i >= 0 {
		logger.WithFields(logrus.Fields{
			"position": i,
			"S":        f.S.At(i, i),
			"T":        f.T.At(i, i),
		}).Warn("gensys: coincident zeros, solution undetermined")
		return &Solution{
			Gev:   gev(f),
			EU:    [2]int{Undetermined, Undetermined},
			Stake: stake,
		}, nil
	}

	// Step 2: stable block first.
	if stake <= 0 {
		stake = ChooseStake(f)
	}
	n1 := f.ReorderStake(stake)
	n2 := n - n1

	sol := &Solution{
		Gev:         gev(f),
		NumUnstable: n2,
		Stake:       stake,
	}

	qh := linalg.Adjoint(f.Q)
	cpi := linalg.Complex(pi)
	cpsi := linalg.Complex(psi)
	cc := linalg.Complex(c)

	// Step 3: existence, from the expectational errors' reach into the unstable block.
	var (
		qh1, qh2       *mat.CDense
		etawt, etawt1  *mat.CDense
		pinvEta        *mat.CDense
		pinvEta1       *mat.CDense
		rankEta, rank1 int
		err            error
	)
	if n2 > 0 {
		qh2 = linalg.Block(qh, n1, n, 0, n)
		etawt = linalg.Mul(qh2, cpi)
		pinvEta, rankEta, err = linalg.PinvTrunc(etawt, realsmall)
		if err != nil {
			return nil, fmt.Errorf("gensys: %w", err)
		}
	}

	exists := rankEta >= n2
	if !exists {
		exists, err = shocksSpanned(qh2, cpsi, etawt, pinvEta, n)
		if err != nil {
			return nil, fmt.Errorf("gensys: %w", err)
		}
	}

	// Step 4: uniqueness, from the stable block's errors not pinned down by the unstable block.
	if n1 > 0 {
		qh1 = linalg.Block(qh, 0, n1, 0, n)
		etawt1 = linalg.Mul(qh1, cpi)
		pinvEta1, rank1, err = linalg.PinvTrunc(etawt1, realsmall)
		if err != nil {
			return nil, fmt.Errorf("gensys: %w", err)
		}
	}

	// pv projects onto the row space of etawt.
	pv := mat.NewCDense(neta, neta, nil)
	if rankEta > 0 {
		pv = linalg.Mul(pinvEta, etawt)
	}
	residual := linalg.Sub(linalg.Identity(neta), pv)

	if rank1 > 0 {
		pv1 := linalg.Mul(pinvEta1, etawt1)
		sol.Loose, err = linalg.Rank(linalg.Mul(residual, pv1), realsmall*float64(n))
		if err != nil {
			return nil, fmt.Errorf("gensys: %w", err)
		}
	}
	sol.EU = [2]int{code(exists), code(sol.Loose == 0)}

	fields := logrus.Fields{"unstable": n2, "neta": neta, "loose": sol.Loose, "rank": rankEta}
	if !exists {
		logger.WithFields(fields).Warn("gensys: no stable solution")
	} else if sol.Loose > 0 {
		logger.WithFields(fields).Warn("gensys: indeterminate solution")
	}

	// Step 5: tmat = [I, -phi] removes the expectational errors from the stable rows.
	var phi *mat.CDense
	if n1 > 0 && rankEta > 0 && rank1 > 0 {
		t1, err := linalg.Trunc(etawt1, realsmall)
		if err != nil {
			return nil, fmt.Errorf("gensys: %w", err)
		}
		phi = linalg.Mul(t1, pinvEta)
	}

	// Step 6: G0 = [tmat·S; 0 I], G1 = [tmat·T; 0].
	g0 := mat.NewCDense(n, n, nil)
	g1 := mat.NewCDense(n, n, nil)
	if n1 > 0 {
		setRows(g0, 0, project(phi, f.S, n1))
		setRows(g1, 0, project(phi, f.T, n1))
	}
	for i := n1; i < n; i++ {
		g0.Set(i, i, 1)
	}
	g0i, err := linalg.Inverse(g0)
	if err != nil {
		return nil, fmt.Errorf("gensys: stable block: %w", err)
	}

	qhc := linalg.Mul(qh, cc)
	qhpsi := linalg.Mul(qh, cpsi)

	constant := mat.NewCDense(n, 1, nil)
	impact := mat.NewCDense(n, psiCols(psi), nil)
	looseTop := mat.NewCDense(n, neta, nil)
	if n1 > 0 {
		setRows(constant, 0, project(phi, qhc, n1))
		setRows(impact, 0, project(phi, qhpsi, n1))
		setRows(looseTop, 0, linalg.Mul(etawt1, residual))
	}

	if n2 > 0 {
		s22 := linalg.Block(f.S, n1, n, n1, n)
		t22 := linalg.Block(f.T, n1, n, n1, n)
		qh2c := linalg.Block(qhc, n1, n, 0, 1)
		qh2psi := linalg.Block(qhpsi, n1, n, 0, psiCols(psi))

		if !isZero(qh2c) {
			cu, err := linalg.Solve(linalg.Sub(s22, t22), qh2c)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrSingularBlock, err)
			}
			setRows(constant, n1, cu)
		}

		sol.Fmat, err = linalg.Solve(t22, s22)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularBlock, err)
		}
		fwt, err := linalg.Solve(t22, qh2psi)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularBlock, err)
		}
		sol.Fwt = linalg.Scale(-1, fwt)
		sol.Ywt = linalg.Mul(f.Z, linalg.Block(g0i, 0, n, n1, n))
	}

	// Step 7: back to the original coordinates.
	zh := linalg.Adjoint(f.Z)
	sol.G1 = linalg.Real(linalg.Mul(linalg.Mul(f.Z, linalg.Mul(g0i, g1)), zh))
	sol.C = linalg.Real(linalg.Mul(f.Z, linalg.Mul(g0i, constant)))
	sol.Impact = linalg.Real(linalg.Mul(f.Z, linalg.Mul(g0i, impact)))
	sol.LooseMat = linalg.Real(linalg.Mul(f.Z, linalg.Mul(g0i, looseTop)))

	return sol, nil
}

// shocksSpanned reports whether the column space of Q2ᴴΨ lies inside the column
// space of Q2ᴴΠ, in which case a solution still exists for the shocks in Ψ.
func shocksSpanned(qh2, psi, etawt, pinvEta *mat.CDense, n int) (bool, error) {
	if qh2 == nil {
		return true, nil
	}
	zwt := linalg.Mul(qh2, psi)
	pinvZ, _, err := linalg.PinvTrunc(zwt, realsmall)
	if err != nil {
		return false, err
	}
	pz := linalg.Mul(zwt, pinvZ)
	peta := linalg.Mul(etawt, pinvEta)
	r, _ := peta.Dims()
	resid := linalg.Mul(linalg.Sub(linalg.Identity(r), peta), pz)
	norm, err := linalg.Norm2(resid)
	if err != nil {
		return false, err
	}
	return norm < realsmall*float64(n), nil
}

// ChooseStake picks a cutoff just above the largest root in (1, 1.01].
func ChooseStake(f *linalg.QZ) float64 {
	div := 1.01
	for i := 0; i < f.Size(); i++ {
		s := cmplx.Abs(f.S.At(i, i))
		if s == 0 {
			continue
		}
		divhat := cmplx.Abs(f.T.At(i, i)) / s
		if 1+realsmall < divhat && divhat <= div {
			div = 0.5 * (1 + divhat)
		}
	}
	return div
}

func coincidentZero(f *linalg.QZ) int {
	for i := 0; i < f.Size(); i++ {
		if cmplx.Abs(f.S.At(i, i)) < realsmall && cmplx.Abs(f.T.At(i, i)) < realsmall {
			return i
		}
	}
	return -1
}

func gev(f *linalg.QZ) *mat.CDense {
	n := f.Size()
	out := mat.NewCDense(n, 2, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, f.S.At(i, i))
		out.Set(i, 1, f.T.At(i, i))
	}
	return out
}

// project returns [I, -phi]·m, the leading n1 rows of m net of phi times the rest.
func project(phi, m *mat.CDense, n1 int) *mat.CDense {
	r, c := m.Dims()
	top := linalg.Block(m, 0, n1, 0, c)
	if phi == nil || r == n1 {
		return top
	}
	return linalg.Sub(top, linalg.Mul(phi, linalg.Block(m, n1, r, 0, c)))
}

func setRows(dst *mat.CDense, row int, src *mat.CDense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(row+i, j, src.At(i, j))
		}
	}
}

func isZero(m *mat.CDense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

func psiCols(psi *mat.Dense) int {
	_, c := psi.Dims()
	return c
}
