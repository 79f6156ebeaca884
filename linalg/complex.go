package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// Complex copies a real matrix into a new complex matrix.
func Complex(a mat.Matrix) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(a.At(i, j), 0))
		}
	}
	return out
}

// Real returns the real part of a.
func Real(a *mat.CDense) *mat.Dense {
	r, c := a.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, real(a.At(i, j)))
		}
	}
	return out
}

// Identity returns the n×n complex identity.
func Identity(n int) *mat.CDense {
	out := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		out.Set(i, i, 1)
	}
	return out
}

// Adjoint returns the conjugate transpose of a as a new matrix.
func Adjoint(a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(c, r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(j, i, cmplx.Conj(a.At(i, j)))
		}
	}
	return out
}

// Mul returns a·b. It panics with mat.ErrShape if the inner dimensions differ.
func Mul(a, b *mat.CDense) *mat.CDense {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ac != br {
		panic(mat.ErrShape)
	}
	out := mat.NewCDense(ar, bc, nil)
	for i := 0; i < ar; i++ {
		for l := 0; l < ac; l++ {
			ail := a.At(i, l)
			if ail == 0 {
				continue
			}
			for j := 0; j < bc; j++ {
				out.Set(i, j, out.At(i, j)+ail*b.At(l, j))
			}
		}
	}
	return out
}

// Sub returns a-b.
func Sub(a, b *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	if br, bc := b.Dims(); br != r || bc != c {
		panic(mat.ErrShape)
	}
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, a.At(i, j)-b.At(i, j))
		}
	}
	return out
}

// Scale returns alpha·a.
func Scale(alpha complex128, a *mat.CDense) *mat.CDense {
	r, c := a.Dims()
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, alpha*a.At(i, j))
		}
	}
	return out
}

// Block copies rows [i, k) and columns [j, l) of a into a new matrix.
func Block(a *mat.CDense, i, k, j, l int) *mat.CDense {
	out := mat.NewCDense(k-i, l-j, nil)
	for r := i; r < k; r++ {
		for c := j; c < l; c++ {
			out.Set(r-i, c-j, a.At(r, c))
		}
	}
	return out
}

// Embed returns the real 2r×2c representation [[X, -Y], [Y, X]] of X+iY.
// Products, inverses and singular values carry over through the embedding,
// each complex singular value appearing twice.
func Embed(a *mat.CDense) *mat.Dense {
	r, c := a.Dims()
	e := mat.NewDense(2*r, 2*c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			e.Set(i, j, real(v))
			e.Set(i, j+c, -imag(v))
			e.Set(i+r, j, imag(v))
			e.Set(i+r, j+c, real(v))
		}
	}
	return e
}

func unembed(e mat.Matrix) *mat.CDense {
	r2, c2 := e.Dims()
	r, c := r2/2, c2/2
	out := mat.NewCDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, complex(e.At(i, j), e.At(i+r, j)))
		}
	}
	return out
}

// conditionOK keeps results gonum flags as ill-conditioned but finite.
func conditionOK(err error) error {
	if err == nil {
		return nil
	}
	var cond mat.Condition
	if errors.As(err, &cond) && !math.IsInf(float64(cond), 1) {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrSingular, err)
}

// Inverse returns a⁻¹.
func Inverse(a *mat.CDense) (*mat.CDense, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("%w: inverse of %dx%d matrix", ErrDimensionMismatch, r, c)
	}
	var inv mat.Dense
	if err := conditionOK(inv.Inverse(Embed(a))); err != nil {
		return nil, err
	}
	return unembed(&inv), nil
}

// Solve returns x with a·x = b.
func Solve(a, b *mat.CDense) (*mat.CDense, error) {
	ar, ac := a.Dims()
	br, _ := b.Dims()
	if ar != ac || br != ar {
		return nil, fmt.Errorf("%w: solve %dx%d against %d rows", ErrDimensionMismatch, ar, ac, br)
	}
	var x mat.Dense
	if err := conditionOK(x.Solve(Embed(a), Embed(b))); err != nil {
		return nil, err
	}
	return unembed(&x), nil
}

// embeddedSVD is the thin SVD of the real embedding of a.
func embeddedSVD(a *mat.CDense, kind mat.SVDKind) (*mat.SVD, error) {
	var svd mat.SVD
	if ok := svd.Factorize(Embed(a), kind); !ok {
		r, c := a.Dims()
		return nil, fmt.Errorf("%w: SVD of %dx%d matrix failed", ErrDecompositionFailure, r, c)
	}
	return &svd, nil
}

func countAbove(values []float64, tol float64) int {
	keep := 0
	for _, v := range values {
		if v > tol {
			keep++
		}
	}
	return keep
}

// PinvTrunc returns the pseudo-inverse of a built from the singular values above
// tol, together with the number of complex singular values kept.
func PinvTrunc(a *mat.CDense, tol float64) (*mat.CDense, int, error) {
	svd, err := embeddedSVD(a, mat.SVDThin)
	if err != nil {
		return nil, 0, err
	}
	values := svd.Values(nil)
	keep := countAbove(values, tol)
	r, c := a.Dims()
	if keep == 0 {
		return mat.NewCDense(c, r, nil), 0, nil
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	inv := make([]float64, keep)
	for k := 0; k < keep; k++ {
		inv[k] = 1 / values[k]
	}
	var vd, p mat.Dense
	vd.Mul(v.Slice(0, 2*c, 0, keep), mat.NewDiagDense(keep, inv))
	p.Mul(&vd, u.Slice(0, 2*r, 0, keep).T())
	return unembed(&p), keep / 2, nil
}

// Trunc returns the part of a carried by singular values above tol.
func Trunc(a *mat.CDense, tol float64) (*mat.CDense, error) {
	svd, err := embeddedSVD(a, mat.SVDThin)
	if err != nil {
		return nil, err
	}
	values := svd.Values(nil)
	keep := countAbove(values, tol)
	r, c := a.Dims()
	if keep == 0 {
		return mat.NewCDense(r, c, nil), nil
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var ud, out mat.Dense
	ud.Mul(u.Slice(0, 2*r, 0, keep), mat.NewDiagDense(keep, values[:keep]))
	out.Mul(&ud, v.Slice(0, 2*c, 0, keep).T())
	return unembed(&out), nil
}

// Rank counts the complex singular values of a above tol.
func Rank(a *mat.CDense, tol float64) (int, error) {
	svd, err := embeddedSVD(a, mat.SVDNone)
	if err != nil {
		return 0, err
	}
	return countAbove(svd.Values(nil), tol) / 2, nil
}

// Norm2 returns the spectral norm of a.
func Norm2(a *mat.CDense) (float64, error) {
	svd, err := embeddedSVD(a, mat.SVDNone)
	if err != nil {
		return 0, err
	}
	return svd.Values(nil)[0], nil
}
