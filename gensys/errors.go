package gensys

import "errors"

var (
	// ErrDimensionMismatch indicates the structural matrices are not conformable.
	ErrDimensionMismatch = errors.New("gensys: dimension mismatch")

	// ErrSingularBlock indicates the unstable block could not be solved for the constant.
	ErrSingularBlock = errors.New("gensys: singular unstable block")
)
