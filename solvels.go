// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Solve the observation equation using weighted least squares
// - dx = (G^t W G)^-1 G^t W dr
// - Return the error covariance matrix (G^t W G)^-1 as cov
// - W may be nil (identity)
func SolveLS(G mat.Matrix, dr mat.Vector, W mat.Matrix) (dx *mat.VecDense, cov *mat.SymDense, err error) {
	return SolveLSDamped(G, dr, W, 0)
}

// Levenberg-Marquardt variant of SolveLS
// - dx = (G^t W G + lambda diag(G^t W G))^-1 G^t W dr
// - cov is always the undamped (G^t W G)^-1
func SolveLSDamped(G mat.Matrix, dr mat.Vector, W mat.Matrix, lambda float64) (dx *mat.VecDense, cov *mat.SymDense, err error) {

	n1, m1 := G.Dims()
	if W != nil {
		n2, m2 := W.Dims()
		if n1 != n2 || n2 != m2 {
			return nil, nil, fmt.Errorf("%w: invalid matrix size. G^T(%d x %d), W(%d x %d)", ErrInvalidArgument, m1, n1, n2, m2)
		}
	}
	if l1 := dr.Len(); l1 != n1 {
		return nil, nil, fmt.Errorf("%w: invalid matrix size. G(%d x %d), dr(%d x 1)", ErrInvalidArgument, n1, m1, l1)
	}

	// G^t W
	var GtW mat.Dense
	if W != nil {
		GtW.Mul(G.T(), W)
	} else {
		GtW.CloneFrom(G.T())
	}

	// A (G^t W G), symmetric by construction
	var A mat.Dense
	A.Mul(&GtW, G)
	N := mat.NewSymDense(m1, nil)
	for i := 0; i < m1; i++ {
		for j := i; j < m1; j++ {
			N.SetSym(i, j, 0.5*(A.At(i, j)+A.At(j, i)))
		}
	}

	// b (G^t W dr)
	var b mat.VecDense
	b.MulVec(&GtW, dr)

	// Damped normal matrix
	Nd := N
	if lambda > 0 {
		Nd = mat.NewSymDense(m1, nil)
		Nd.CopySym(N)
		for i := 0; i < m1; i++ {
			Nd.SetSym(i, i, N.At(i, i)*(1+lambda))
		}
	}

	// Solve for x (x = A^-1 b)
	var chol mat.Cholesky
	if ok := chol.Factorize(Nd); !ok {
		return nil, nil, fmt.Errorf("%w: normal matrix is not positive definite", ErrNumerical)
	}
	var x mat.VecDense
	if err = chol.SolveVecTo(&x, &b); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}
	dx = &x

	// Set (G^T W G)^-1 as the covariance matrix
	if lambda > 0 {
		if ok := chol.Factorize(N); !ok {
			return dx, nil, fmt.Errorf("%w: information matrix is not positive definite", ErrNumerical)
		}
	}
	var c mat.SymDense
	if err = chol.InverseTo(&c); err != nil {
		return dx, nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}
	cov = &c

	return
}

// Solve min |A x - b| with QR decomposition.
// The rank of A is checked first with an SVD so that degenerate geometry is
// reported instead of returning a meaningless solution.
func SolveQR(A mat.Matrix, b mat.Vector) (*mat.VecDense, error) {
	r, c := A.Dims()
	if r < c {
		return nil, fmt.Errorf("%w: under determined system (%d x %d)", ErrPositionEstimation, r, c)
	}
	if rank, err := matrixRank(A, RANK_TOLERANCE); err != nil {
		return nil, err
	} else if rank < c {
		return nil, fmt.Errorf("%w: rank deficient system, rank %d < %d", ErrPositionEstimation, rank, c)
	}

	var qr mat.QR
	qr.Factorize(A)
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPositionEstimation, err)
	}
	return &x, nil
}

// Unit vector spanning the null space of A (right singular vector of the
// smallest singular value). A must have rank cols-1.
func NullVector(A mat.Matrix) (*mat.VecDense, error) {
	_, c := A.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDFullV); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrPositionEstimation)
	}
	s := svd.Values(nil)
	if len(s) < c-1 || s[0] == 0 || s[c-2] <= RANK_TOLERANCE*s[0] {
		return nil, fmt.Errorf("%w: null space is not one dimensional", ErrPositionEstimation)
	}
	var V mat.Dense
	svd.VTo(&V)
	return mat.VecDenseCopyOf(V.ColView(c - 1)), nil
}

// Numerical rank of A
func matrixRank(A mat.Matrix, tol float64) (int, error) {
	var svd mat.SVD
	if ok := svd.Factorize(A, mat.SVDNone); !ok {
		return 0, fmt.Errorf("%w: SVD factorization failed", ErrPositionEstimation)
	}

	// Count singular values that are greater than tol relative to the largest
	s := svd.Values(nil)
	if len(s) == 0 || s[0] == 0 {
		return 0, nil
	}
	rank := 0
	for _, v := range s {
		if v > tol*s[0] {
			rank++
		}
	}
	return rank, nil
}
