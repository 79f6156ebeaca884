package linalg

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

const (
	// swapSmall is the threshold for coincident zeros inside a 2x2 swap.
	swapSmall = 0x1p-26 * 10
	// zeroDiag marks S_ii as zero when classifying against a stake.
	zeroDiag = 1e-13
)

// Predicate reports whether the diagonal pair (S_ii, T_ii) belongs in the leading block.
type Predicate func(s, t complex128) bool

// StakePredicate selects positions with |T_ii|/|S_ii| <= stake. Positions with an
// S_ii below 1e-13 are infinite and never selected.
func StakePredicate(stake float64) Predicate {
	return func(s, t complex128) bool {
		as := cmplx.Abs(s)
		if as < zeroDiag {
			return false
		}
		return cmplx.Abs(t)/as <= stake
	}
}

// Reorder moves every diagonal position selected by stable to the leading block,
// preserving the relative order of both groups, and returns the number moved.
// Q, Z, S and T are updated in place and the decomposition still reconstructs the
// original pencil.
func (f *QZ) Reorder(stable Predicate) int {
	sel := make([]bool, f.n)
	for i := range sel {
		sel[i] = stable(f.S.At(i, i), f.T.At(i, i))
	}

	ks := 0
	for k := 0; k < f.n; k++ {
		if !sel[k] {
			continue
		}
		for i := k - 1; i >= ks; i-- {
			f.swap(i)
			sel[i], sel[i+1] = sel[i+1], sel[i]
		}
		ks++
	}
	return ks
}

// ReorderStake is Reorder with StakePredicate(stake).
func (f *QZ) ReorderStake(stake float64) int {
	return f.Reorder(StakePredicate(stake))
}

// swap exchanges the diagonal pairs at positions i and i+1.
func (f *QZ) swap(i int) {
	s, t := f.S, f.T
	a, d := s.At(i, i), t.At(i, i)
	b, e := s.At(i, i+1), t.At(i, i+1)
	c, g := s.At(i+1, i+1), t.At(i+1, i+1)

	var wz, xy [2][2]complex128
	switch {
	case cmplx.Abs(c) < swapSmall && cmplx.Abs(g) < swapSmall:
		if cmplx.Abs(a) < swapSmall {
			return
		}
		// Coincident zeros in the lower pair: move the zero of S to the top.
		p, q := normalize(b, -a)
		wz = [2][2]complex128{{p, cmplx.Conj(q)}, {q, -cmplx.Conj(p)}}
		xy = [2][2]complex128{{1, 0}, {0, 1}}
	case cmplx.Abs(a) < swapSmall && cmplx.Abs(d) < swapSmall:
		if cmplx.Abs(c) < swapSmall {
			return
		}
		p, q := normalize(c, -b)
		wz = [2][2]complex128{{1, 0}, {0, 1}}
		xy = [2][2]complex128{{cmplx.Conj(q), -cmplx.Conj(p)}, {p, q}}
	default:
		w0, w1 := c*e-g*b, cmplx.Conj(c*d-g*a)
		x0, x1 := cmplx.Conj(b*d-e*a), cmplx.Conj(c*d-g*a)
		if math.Hypot(cmplx.Abs(x0), cmplx.Abs(x1)) < 100*ulp {
			// S and T proportional on the block.
			return
		}
		w0, w1 = normalize(w0, w1)
		x0, x1 = normalize(x0, x1)
		wz = [2][2]complex128{{w0, w1}, {-cmplx.Conj(w1), cmplx.Conj(w0)}}
		xy = [2][2]complex128{{x0, x1}, {-cmplx.Conj(x1), cmplx.Conj(x0)}}
	}

	leftRows(s, i, xy)
	leftRows(t, i, xy)
	rightCols(s, i, wz)
	rightCols(t, i, wz)
	rightCols(f.Z, i, wz)
	rightCols(f.Q, i, adjoint2(xy))

	s.Set(i+1, i, 0)
	t.Set(i+1, i, 0)
}

func normalize(x, y complex128) (complex128, complex128) {
	n := complex(math.Hypot(cmplx.Abs(x), cmplx.Abs(y)), 0)
	return x / n, y / n
}

func adjoint2(m [2][2]complex128) [2][2]complex128 {
	return [2][2]complex128{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

// leftRows replaces rows i, i+1 of m with m2·rows.
func leftRows(m *mat.CDense, i int, m2 [2][2]complex128) {
	_, cols := m.Dims()
	for j := 0; j < cols; j++ {
		x, y := m.At(i, j), m.At(i+1, j)
		m.Set(i, j, m2[0][0]*x+m2[0][1]*y)
		m.Set(i+1, j, m2[1][0]*x+m2[1][1]*y)
	}
}

// rightCols replaces columns i, i+1 of m with cols·m2.
func rightCols(m *mat.CDense, i int, m2 [2][2]complex128) {
	rows, _ := m.Dims()
	for r := 0; r < rows; r++ {
		x, y := m.At(r, i), m.At(r, i+1)
		m.Set(r, i, x*m2[0][0]+y*m2[1][0])
		m.Set(r, i+1, x*m2[0][1]+y*m2[1][1])
	}
}
