package linalg

import "errors"

var (
	// ErrDecompositionFailure indicates the QZ iteration did not converge.
	ErrDecompositionFailure = errors.New("linalg: generalized Schur decomposition did not converge")

	// ErrDimensionMismatch indicates non-square or non-conformable inputs.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")

	// ErrSingular indicates a complex matrix could not be inverted or solved against.
	ErrSingular = errors.New("linalg: matrix is singular")
)
