// Package linalg provides the complex generalized Schur (QZ) decomposition used by
// the gensys solver, together with the small set of complex matrix operations the
// solver needs on top of gonum.
//
//   - [Decompose]: A = Q·S·Zᴴ, B = Q·T·Zᴴ with Q, Z unitary and S, T upper triangular
//   - [QZ.Reorder]: move a selected set of generalized eigenvalues to the leading block
//   - [Mul], [Adjoint], [Inverse], [Solve], [PinvTrunc], [Rank], [Norm2]: complex
//     helpers built on the real embedding X+iY -> [[X, -Y], [Y, X]]
//
// # Example
//
//	f, err := linalg.Decompose(gamma0, gamma1)
//	if err != nil {
//		return err
//	}
//	nstable := f.ReorderStake(1 + 1e-6)
//
// The generalized eigenvalue at position i is T_ii / S_ii. Positions with a
// negligible S_ii are reported as infinite.
package linalg
