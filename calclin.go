// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Implements closed-form (linear) lateration.

package gowips

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// One equation of the lateration problem
type Sample struct {
	Pos     Point    // Source position
	Dist    float64  // Measured distance [m]
	Std     float64  // Distance std [m], <= 0 if unknown
	Score   float64  // Quality score (PROSAC, PROMedS)
	Source  *Source  // Originating source (optional)
	Reading *Reading // Originating reading (optional)
	Rssi    bool     // Whether the distance was derived from RSSI
}

// LatSol contains the result of a lateration solve
type LatSol struct {
	Pos  Point         // Estimated position
	Cov  *mat.SymDense // Position covariance (dim x dim), nil if not computed
	Res  []float64     // Range residuals |x - p_i| - d_i
	Rms  float64       // Root mean square of the residuals
	Dop  float64       // Geometric dilution of precision sqrt(tr((J^T J)^-1)), 0 if unavailable
	Loop int           // Number of iterations (0 for the linear solver)

	CovErr error // Why Cov is nil although it was requested
}

// SolveLinear computes a closed-form position from at least dim+1 samples
//
// Parameters:
//   - dim: 2 or 3
//   - smps: samples (source position, distance)
//   - homogeneous: solve the homogeneous system (dim+2 unknowns, SVD null space)
//     instead of the inhomogeneous one (dim+1 unknowns, QR least squares)
//
// Returns:
//   - LatSol: position, residuals and, when every sample has Std > 0, the covariance
//   - error: ErrNotReady (too few samples), ErrPositionEstimation (degenerate geometry)
func SolveLinear(dim Dim, smps []Sample, homogeneous bool) (*LatSol, error) {

	if !dim.IsValid() {
		return nil, fmt.Errorf("%w: unsupported dimension %d", ErrInvalidArgument, dim)
	}
	if len(smps) < dim.MinSources() {
		return nil, fmt.Errorf("%w: not enough samples :%d < %d", ErrNotReady, len(smps), dim.MinSources())
	}

	// Normalize coordinates (translate to the centroid, scale to unit rms spread)
	nrm := newNormalizer(smps, dim)

	var pos Point
	var err error
	if homogeneous {
		pos, err = solveHomogeneous(dim, smps, nrm)
	} else {
		pos, err = solveInhomogeneous(dim, smps, nrm)
	}
	if err != nil {
		return nil, err
	}

	sol := &LatSol{Pos: pos}
	sol.Res, sol.Rms = rangeResiduals(smps, &pos, dim)
	sol.Dop = geometryDop(smps, &pos, dim)

	// Covariance by first order propagation of the distance errors
	if hasStd(smps) {
		sol.Cov, sol.CovErr = linearCovariance(dim, smps, nrm)
	}

	PrintD(3, "\tlinear(h=%v): n=%d, pos=%s, rms=%.6f\n", homogeneous, len(smps), pos.String(), sol.Rms)
	return sol, nil
}

// Inhomogeneous system
// - unknowns [x, y, (z), R = |x|^2]
// - row i: [-2 p_i, 1] = d_i^2 - |p_i|^2
func solveInhomogeneous(dim Dim, smps []Sample, nrm normalizer) (Point, error) {
	A, b := inhomogeneousSystem(dim, smps, nrm)
	x, err := SolveQR(A, b)
	if err != nil {
		return Point{}, fmt.Errorf("SolveQR() failed, err=%w", err)
	}
	if DBG_ >= 4 {
		PrintA("A=\n")
		PrintMat(A)
		PrintA("x=\n")
		PrintMat(x)
	}
	return nrm.denormalize(x.RawVector().Data, dim), nil
}

// Homogeneous system
// - unknowns [x, y, (z), w, r] with position = x / w
// - row i: [-2 p_i, 1, |p_i|^2 - d_i^2] h = 0
func solveHomogeneous(dim Dim, smps []Sample, nrm normalizer) (Point, error) {
	n := len(smps)
	nx := int(dim) + 2
	A := mat.NewDense(n, nx, nil)
	for i, s := range smps {
		p := nrm.point(&s.Pos, dim)
		d := nrm.dist(s.Dist)
		for j := 0; j < int(dim); j++ {
			A.Set(i, j, -2*p.At(j))
		}
		A.Set(i, int(dim), 1)
		A.Set(i, int(dim)+1, p.NormSq(dim)-SQ(d))
	}
	h, err := NullVector(A)
	if err != nil {
		return Point{}, fmt.Errorf("NullVector() failed, err=%w", err)
	}
	w := h.AtVec(int(dim) + 1)
	if math.Abs(w) < RANK_TOLERANCE {
		return Point{}, fmt.Errorf("%w: point at infinity (w=%e)", ErrPositionEstimation, w)
	}
	v := make([]float64, dim)
	for j := range v {
		v[j] = h.AtVec(j) / w
	}
	return nrm.denormalize(v, dim), nil
}

func inhomogeneousSystem(dim Dim, smps []Sample, nrm normalizer) (*mat.Dense, *mat.VecDense) {
	n := len(smps)
	nx := int(dim) + 1
	A := mat.NewDense(n, nx, nil)
	b := mat.NewVecDense(n, nil)
	for i, s := range smps {
		p := nrm.point(&s.Pos, dim)
		d := nrm.dist(s.Dist)
		for j := 0; j < int(dim); j++ {
			A.Set(i, j, -2*p.At(j))
		}
		A.Set(i, int(dim), 1)
		b.SetVec(i, SQ(d)-p.NormSq(dim))
	}
	return A, b
}

// Covariance of the linear solution
// - x = M b, M = (A^T A)^-1 A^T
// - db_i/dd_i = 2 d_i (normalized units)
// - Cov = M diag((2 d_i s_i)^2) M^T, top-left dim x dim, back to metric units
func linearCovariance(dim Dim, smps []Sample, nrm normalizer) (*mat.SymDense, error) {
	A, _ := inhomogeneousSystem(dim, smps, nrm)
	n, _ := A.Dims()

	var AtA mat.SymDense
	AtA.SymOuterK(1, A.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&AtA); !ok {
		return nil, fmt.Errorf("%w: A^T A is not positive definite", ErrNumerical)
	}
	var M mat.Dense
	if err := chol.SolveTo(&M, A.T()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	sd := make([]float64, n)
	for i, s := range smps {
		sd[i] = SQ(2 * nrm.dist(s.Dist) * nrm.dist(s.Std))
	}
	S := mat.NewDiagDense(n, sd)

	var MS, C mat.Dense
	MS.Mul(&M, S)
	C.Mul(&MS, M.T())

	cov := mat.NewSymDense(int(dim), nil)
	k := 1 / SQ(nrm.scale)
	for i := 0; i < int(dim); i++ {
		for j := i; j < int(dim); j++ {
			cov.SetSym(i, j, 0.5*(C.At(i, j)+C.At(j, i))*k)
		}
	}
	return cov, nil
}

// Similarity transform applied before building linear systems
type normalizer struct {
	center Point
	scale  float64
}

func newNormalizer(smps []Sample, dim Dim) normalizer {
	pts := make([]Point, len(smps))
	for i, s := range smps {
		pts[i] = s.Pos
	}
	c := Centroid(pts, dim)
	ms := 0.0
	for i := range pts {
		ms += SQ(EucDist(&pts[i], &c, dim))
	}
	ms /= float64(len(pts))
	scale := 1.0
	if ms > 0 {
		scale = 1 / math.Sqrt(ms)
	}
	return normalizer{center: c, scale: scale}
}

func (n normalizer) point(p *Point, dim Dim) Point {
	var q Point
	for i := 0; i < int(dim); i++ {
		q.Set(i, (p.At(i)-n.center.At(i))*n.scale)
	}
	return q
}

func (n normalizer) dist(d float64) float64 {
	return d * n.scale
}

func (n normalizer) denormalize(v []float64, dim Dim) Point {
	var p Point
	for i := 0; i < int(dim); i++ {
		p.Set(i, v[i]/n.scale+n.center.At(i))
	}
	return p
}

// Residuals |x - p_i| - d_i and their rms
func rangeResiduals(smps []Sample, pos *Point, dim Dim) ([]float64, float64) {
	res := make([]float64, len(smps))
	ss := 0.0
	for i := range smps {
		res[i] = EucDist(pos, &smps[i].Pos, dim) - smps[i].Dist
		ss += SQ(res[i])
	}
	if len(smps) == 0 {
		return res, 0
	}
	return res, math.Sqrt(ss / float64(len(smps)))
}

// sqrt(tr((J^T J)^-1)) with J the unit vectors from the sources to pos
func geometryDop(smps []Sample, pos *Point, dim Dim) float64 {
	J := rangeJacobian(smps, pos, dim)
	var N mat.SymDense
	N.SymOuterK(1, J.T())
	var chol mat.Cholesky
	if ok := chol.Factorize(&N); !ok {
		return 0
	}
	var Q mat.SymDense
	if err := chol.InverseTo(&Q); err != nil {
		return 0
	}
	return math.Sqrt(mat.Trace(&Q))
}

// Jacobian of |x - p_i| with respect to x
func rangeJacobian(smps []Sample, pos *Point, dim Dim) *mat.Dense {
	J := mat.NewDense(len(smps), int(dim), nil)
	for i := range smps {
		for j := 0; j < int(dim); j++ {
			J.Set(i, j, DistD(pos, &smps[i].Pos, j, dim))
		}
	}
	return J
}

func hasStd(smps []Sample) bool {
	for _, s := range smps {
		if s.Std <= 0 {
			return false
		}
	}
	return len(smps) > 0
}
