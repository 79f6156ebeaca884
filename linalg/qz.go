package linalg

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

const (
	safmin = 0x1p-1022
	ulp    = 0x1p-52
)

// QZ holds the complex generalized Schur form of the pencil (A, B):
//
//	A = Q·S·Zᴴ
//	B = Q·T·Zᴴ
//
// Reorder updates all four factors in place.
type QZ struct {
	S *mat.CDense
	T *mat.CDense
	Q *mat.CDense
	Z *mat.CDense

	n int
	// tol is the threshold below which a diagonal entry of S counts as zero.
	tol float64
}

// Decompose computes the generalized Schur form of the square matrices a and b.
func Decompose(a, b mat.Matrix) (*QZ, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != ac || br != bc || ar != br {
		return nil, fmt.Errorf("%w: pencil of %dx%d and %dx%d matrices", ErrDimensionMismatch, ar, ac, br, bc)
	}
	if ar == 0 {
		return nil, fmt.Errorf("%w: empty pencil", ErrDimensionMismatch)
	}

	f := &QZ{
		S: Complex(a),
		T: Complex(b),
		Q: Identity(ar),
		Z: Identity(ar),
		n: ar,
	}
	f.tol = math.Max(safmin, ulp*frobenius(f.S))

	f.hessenbergTriangular()
	if err := f.iterate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Size returns the dimension of the pencil.
func (f *QZ) Size() int { return f.n }

// Alpha returns the diagonal of S.
func (f *QZ) Alpha() []complex128 { return diag(f.S) }

// Beta returns the diagonal of T.
func (f *QZ) Beta() []complex128 { return diag(f.T) }

// Eigenvalues returns T_ii / S_ii for every diagonal position, in the current
// order. Positions with a negligible S_ii hold cmplx.Inf().
func (f *QZ) Eigenvalues() []complex128 {
	ev := make([]complex128, f.n)
	for i := 0; i < f.n; i++ {
		s := f.S.At(i, i)
		if cmplx.Abs(s) <= f.tol {
			ev[i] = cmplx.Inf()
			continue
		}
		ev[i] = f.T.At(i, i) / s
	}
	return ev
}

// hessenbergTriangular reduces S to upper triangular and T to upper Hessenberg
// form with Givens rotations.
func (f *QZ) hessenbergTriangular() {
	n := f.n
	s, t := f.S, f.T

	for j := 0; j < n-1; j++ {
		for i := n - 1; i > j; i-- {
			if s.At(i, j) == 0 {
				continue
			}
			c, sn, _ := givens(s.At(i-1, j), s.At(i, j))
			f.rotateRows(i-1, i, c, sn)
			s.Set(i, j, 0)
		}
	}

	for j := 0; j < n-2; j++ {
		for i := n - 1; i >= j+2; i-- {
			if t.At(i, j) != 0 {
				c, sn, _ := givens(t.At(i-1, j), t.At(i, j))
				f.rotateRows(i-1, i, c, sn)
				t.Set(i, j, 0)
			}
			if s.At(i, i-1) != 0 {
				c, sn, _ := givens(s.At(i, i), s.At(i, i-1))
				f.rotateCols(i, i-1, c, sn)
				s.Set(i, i-1, 0)
			}
		}
	}
}

type split int

const (
	splitFinite split = iota
	splitInfinite
	splitSweep
)

// iterate runs single-shift QZ sweeps on the Hessenberg T against the triangular S
// until T is triangular. The structure follows LAPACK's zhgeqz.
func (f *QZ) iterate() error {
	n := f.n
	anorm := frobenius(f.T)
	bnorm := frobenius(f.S)
	btol := math.Max(safmin, ulp*bnorm)
	ascale := 1 / math.Max(safmin, anorm)
	bscale := 1 / math.Max(safmin, bnorm)

	var eshift complex128
	iiter := 0
	ilast := n - 1
	maxit := 30 * n

	for jiter := 0; jiter < maxit && ilast >= 0; jiter++ {
		kind, ifirst := f.split(ilast, btol)
		switch kind {
		case splitInfinite:
			f.deflateInfinite(ilast)
		case splitSweep:
			iiter++
			shift := f.shift(ilast, iiter, &eshift, ascale, bscale)
			f.sweep(ifirst, ilast, shift, ascale, bscale)
			continue
		}
		ilast--
		iiter = 0
		eshift = 0
	}

	if ilast >= 0 {
		return fmt.Errorf("%w: eigenvalue %d after %d iterations", ErrDecompositionFailure, ilast, maxit)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			f.S.Set(i, j, 0)
			f.T.Set(i, j, 0)
		}
	}
	return nil
}

// split looks for a deflation at ilast or the start of the active block.
func (f *QZ) split(ilast int, btol float64) (split, int) {
	h, r := f.T, f.S

	if ilast == 0 || negligibleSub(h, ilast) {
		if ilast > 0 {
			h.Set(ilast, ilast-1, 0)
		}
		return splitFinite, 0
	}
	if cmplx.Abs(r.At(ilast, ilast)) <= btol {
		r.Set(ilast, ilast, 0)
		return splitInfinite, 0
	}

	for j := ilast - 1; j >= 0; j-- {
		top := j == 0
		if !top && negligibleSub(h, j) {
			h.Set(j, j-1, 0)
			top = true
		}

		if cmplx.Abs(r.At(j, j)) >= btol {
			if top {
				return splitSweep, j
			}
			continue
		}
		r.Set(j, j, 0)

		if top {
			// The leading S entry of the block is zero: split 1x1 blocks off the top.
			for jch := j; jch < ilast; jch++ {
				c, s, _ := givens(h.At(jch, jch), h.At(jch+1, jch))
				f.rotateRows(jch, jch+1, c, s)
				h.Set(jch+1, jch, 0)
				if cmplx.Abs(r.At(jch+1, jch+1)) >= btol {
					if jch+1 >= ilast {
						return splitFinite, 0
					}
					return splitSweep, jch + 1
				}
				r.Set(jch+1, jch+1, 0)
			}
			return splitInfinite, 0
		}

		// Chase the zero down to S[ilast][ilast].
		for jch := j; jch < ilast; jch++ {
			c, s, _ := givens(r.At(jch, jch+1), r.At(jch+1, jch+1))
			f.rotateRows(jch, jch+1, c, s)
			r.Set(jch+1, jch+1, 0)

			c, s, _ = givens(h.At(jch+1, jch), h.At(jch+1, jch-1))
			f.rotateCols(jch, jch-1, c, s)
			h.Set(jch+1, jch-1, 0)
		}
		return splitInfinite, 0
	}
	return splitSweep, 0
}

// deflateInfinite zeroes T[ilast][ilast-1] once S[ilast][ilast] is zero.
func (f *QZ) deflateInfinite(ilast int) {
	h := f.T
	c, s, _ := givens(h.At(ilast, ilast), h.At(ilast, ilast-1))
	f.rotateCols(ilast, ilast-1, c, s)
	h.Set(ilast, ilast-1, 0)
}

// shift is the Wilkinson shift of the trailing 2x2 block of T·S⁻¹, replaced by an
// exceptional shift every tenth iteration.
func (f *QZ) shift(ilast, iiter int, eshift *complex128, ascale, bscale float64) complex128 {
	h, r := f.T, f.S
	as, bs := complex(ascale, 0), complex(bscale, 0)

	if iiter%10 != 0 {
		u12 := (bs * r.At(ilast-1, ilast)) / (bs * r.At(ilast, ilast))
		ad11 := (as * h.At(ilast-1, ilast-1)) / (bs * r.At(ilast-1, ilast-1))
		ad21 := (as * h.At(ilast, ilast-1)) / (bs * r.At(ilast-1, ilast-1))
		ad12 := (as * h.At(ilast-1, ilast)) / (bs * r.At(ilast, ilast))
		ad22 := (as * h.At(ilast, ilast)) / (bs * r.At(ilast, ilast))
		abi22 := ad22 - u12*ad21
		abi12 := ad12 - u12*ad11

		shift := abi22
		ctemp := cmplx.Sqrt(abi12) * cmplx.Sqrt(ad21)
		if ctemp != 0 {
			x := 0.5 * (ad11 - shift)
			temp2 := abs1(x)
			temp := math.Max(abs1(ctemp), temp2)
			tc := complex(temp, 0)
			y := tc * cmplx.Sqrt((x/tc)*(x/tc)+(ctemp/tc)*(ctemp/tc))
			if temp2 > 0 {
				xn := x / complex(temp2, 0)
				if real(xn)*real(y)+imag(xn)*imag(y) < 0 {
					y = -y
				}
			}
			shift -= ctemp * (ctemp / (x + y))
		}
		return shift
	}

	if iiter%20 == 0 && bscale*abs1(r.At(ilast, ilast)) > safmin {
		*eshift += (as * h.At(ilast, ilast)) / (bs * r.At(ilast, ilast))
	} else {
		*eshift += (as * h.At(ilast, ilast-1)) / (bs * r.At(ilast-1, ilast-1))
	}
	return *eshift
}

// sweep runs one implicit single-shift QZ step on rows and columns ifirst..ilast.
func (f *QZ) sweep(ifirst, ilast int, shift complex128, ascale, bscale float64) {
	h, r := f.T, f.S
	as, bs := complex(ascale, 0), complex(bscale, 0)

	c, s, _ := givens(as*h.At(ifirst, ifirst)-shift*bs*r.At(ifirst, ifirst), as*h.At(ifirst+1, ifirst))
	for j := ifirst; j < ilast; j++ {
		if j > ifirst {
			c, s, _ = givens(h.At(j, j-1), h.At(j+1, j-1))
		}
		f.rotateRows(j, j+1, c, s)
		if j > ifirst {
			h.Set(j+1, j-1, 0)
		}

		cz, sz, _ := givens(r.At(j+1, j+1), r.At(j+1, j))
		f.rotateCols(j+1, j, cz, sz)
		r.Set(j+1, j, 0)
	}
}

// rotateRows applies the rotation [c s; -conj(s) c] to rows x and y of S and T
// and accumulates its adjoint into Q.
func (f *QZ) rotateRows(x, y int, c float64, s complex128) {
	rotRows(f.S, x, y, c, s)
	rotRows(f.T, x, y, c, s)
	rotCols(f.Q, x, y, c, cmplx.Conj(s))
}

// rotateCols applies the same rotation to columns x and y of S, T and Z.
func (f *QZ) rotateCols(x, y int, c float64, s complex128) {
	rotCols(f.S, x, y, c, s)
	rotCols(f.T, x, y, c, s)
	rotCols(f.Z, x, y, c, s)
}

// givens returns c, s and r with [c s; -conj(s) c]·[f; g] = [r; 0].
func givens(f, g complex128) (c float64, s, r complex128) {
	if g == 0 {
		return 1, 0, f
	}
	if f == 0 {
		ag := cmplx.Abs(g)
		return 0, cmplx.Conj(g) / complex(ag, 0), complex(ag, 0)
	}
	af, ag := cmplx.Abs(f), cmplx.Abs(g)
	norm := math.Hypot(af, ag)
	phase := f / complex(af, 0)
	c = af / norm
	s = phase * cmplx.Conj(g) / complex(norm, 0)
	r = phase * complex(norm, 0)
	return c, s, r
}

func rotRows(m *mat.CDense, x, y int, c float64, s complex128) {
	_, cols := m.Dims()
	cc := complex(c, 0)
	sc := cmplx.Conj(s)
	for j := 0; j < cols; j++ {
		a, b := m.At(x, j), m.At(y, j)
		m.Set(x, j, cc*a+s*b)
		m.Set(y, j, -sc*a+cc*b)
	}
}

func rotCols(m *mat.CDense, x, y int, c float64, s complex128) {
	rows, _ := m.Dims()
	cc := complex(c, 0)
	sc := cmplx.Conj(s)
	for i := 0; i < rows; i++ {
		a, b := m.At(i, x), m.At(i, y)
		m.Set(i, x, cc*a+s*b)
		m.Set(i, y, -sc*a+cc*b)
	}
}

func negligibleSub(h *mat.CDense, j int) bool {
	return abs1(h.At(j, j-1)) <= math.Max(safmin, ulp*(abs1(h.At(j, j))+abs1(h.At(j-1, j-1))))
}

func abs1(z complex128) float64 {
	return math.Abs(real(z)) + math.Abs(imag(z))
}

func frobenius(m *mat.CDense) float64 {
	r, c := m.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a := cmplx.Abs(m.At(i, j))
			sum += a * a
		}
	}
	return math.Sqrt(sum)
}

func diag(m *mat.CDense) []complex128 {
	n, _ := m.Dims()
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		out[i] = m.At(i, i)
	}
	return out
}
