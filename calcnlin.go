// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Implements iterative (non-linear) lateration by weighted least squares.

package gowips

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NlinOpt contains options of the non-linear solver
type NlinOpt struct {
	MaxLoop     int     // Maximum number of iterations
	Tol         float64 // Relative step size regarded as converged
	FallbackStd float64 // Distance std used for samples without one [m]
	NoCov       bool    // Skip the covariance computation
}

// NewNlinOpt creates a new NlinOpt with default values
func NewNlinOpt() *NlinOpt {
	return &NlinOpt{
		MaxLoop:     NLIN_MAX_LOOP_COUNT,
		Tol:         NLIN_CONVERGENCE_THRESHOLD,
		FallbackStd: DEFAULT_FALLBACK_DISTANCE_STD,
		NoCov:       false,
	}
}

// SolveNonLinear refines a position by minimizing
// sum((|x - p_i| - d_i)^2 / s_i^2) with Levenberg-Marquardt iterations
//
// Parameters:
//   - dim: 2 or 3
//   - smps: samples (source position, distance, distance std)
//   - init: initial position. If nil, the linear solution is used, or the
//     centroid of the sources when the linear system is degenerate
//   - opt: solver options (nil for defaults)
//
// Returns:
//   - LatSol: position and residuals. Cov is (J^T W J)^-1 at convergence; when it
//     cannot be computed Cov is nil and CovErr tells why (the position is still valid)
//   - error: ErrNotReady (too few samples), ErrNumerical (no convergence)
func SolveNonLinear(dim Dim, smps []Sample, init *Point, opt *NlinOpt) (*LatSol, error) {

	if !dim.IsValid() {
		return nil, fmt.Errorf("%w: unsupported dimension %d", ErrInvalidArgument, dim)
	}
	if opt == nil {
		opt = NewNlinOpt()
	}
	n := len(smps)
	nx := int(dim)
	if n < nx {
		return nil, fmt.Errorf("%w: not enough samples :%d < %d", ErrNotReady, n, nx)
	}

	// Initial position
	upos := initialPosition(dim, smps, init)
	if DBG_ >= 3 {
		PrintA("\tupos(init): %s\n", upos.String())
	}

	// Weight matrix (inverse variances)
	w := make([]float64, n)
	for i, s := range smps {
		std := s.Std
		if std <= 0 {
			std = opt.FallbackStd
		}
		if std <= 0 {
			std = 1
		}
		w[i] = 1 / SQ(std)
	}
	W := mat.NewDiagDense(n, w)

	cost := weightedCost(smps, &upos, w, dim)
	lambda := NLIN_INITIAL_LAMBDA
	converged := cost == 0
	loop := 0

	// Solve observation equations iteratively
	for ; loop < opt.MaxLoop && !converged; loop++ {

		// Design matrix and residual vector
		G := rangeJacobian(smps, &upos, dim)
		dr := mat.NewVecDense(n, nil)
		for i := range smps {
			dr.SetVec(i, smps[i].Dist-EucDist(&upos, &smps[i].Pos, dim))
		}
		if DBG_ >= 4 {
			PrintA("G=\n")
			PrintMat(G)
			PrintA("dr=\n")
			PrintMat(dr)
		}

		dx, _, err := SolveLSDamped(G, dr, W, lambda)
		if err != nil {
			// Singular normal matrix: increase damping and retry
			PrintD(3, "\tLOOP %d: SolveLSDamped() failed, err=%s\n", loop+1, err.Error())
			lambda *= 10
			if lambda > NLIN_MAX_LAMBDA {
				return nil, fmt.Errorf("%w: normal matrix singular at %s", ErrNumerical, upos.String())
			}
			continue
		}

		// Candidate position
		cand := upos
		for j := 0; j < nx; j++ {
			cand.Set(j, cand.At(j)+dx.AtVec(j))
		}
		candCost := weightedCost(smps, &cand, w, dim)

		step := floats.Norm(dx.RawVector().Data, 2)
		small := step <= opt.Tol*(1+floats.Norm(upos.Vec(dim), 2))

		if candCost <= cost {
			// Accept and relax damping
			upos = cand
			improvement := cost - candCost
			cost = candCost
			lambda = math.Max(lambda/10, NLIN_MIN_LAMBDA)
			PrintD(3, "\tLOOP %d: pos=%s, cost=%e, step=%e\n", loop+1, upos.String(), cost, step)
			if small || cost == 0 || improvement <= 1e-15*cost {
				converged = true
			}
		} else {
			// Reject and increase damping
			lambda *= 10
			if small || lambda > NLIN_MAX_LAMBDA {
				// No descent direction left: local minimum
				converged = true
			}
		}
	}

	if !converged {
		return nil, fmt.Errorf("%w: number of loop reached max (%d)", ErrNumerical, opt.MaxLoop)
	}

	sol := &LatSol{Pos: upos, Loop: loop}
	sol.Res, sol.Rms = rangeResiduals(smps, &upos, dim)
	sol.Dop = geometryDop(smps, &upos, dim)

	// Covariance (J^T W J)^-1 at convergence
	if !opt.NoCov {
		G := rangeJacobian(smps, &upos, dim)
		dr := mat.NewVecDense(n, sol.Res)
		_, cov, err := SolveLS(G, dr, W)
		if err != nil {
			sol.CovErr = err
			PrintD(2, "\tcovariance unavailable, err=%s\n", err.Error())
		} else {
			sol.Cov = cov
		}
	}

	PrintD(3, "\tnon-linear: n=%d, loop=%d, pos=%s, rms=%.6f\n", n, loop, upos.String(), sol.Rms)
	return sol, nil
}

// Initial position for the non-linear solver
func initialPosition(dim Dim, smps []Sample, init *Point) Point {
	if init != nil {
		return *init
	}
	if len(smps) >= dim.MinSources() {
		sol, err := SolveLinear(dim, smps, false)
		if err == nil {
			return sol.Pos
		}
		if !errors.Is(err, ErrPositionEstimation) {
			PrintD(2, "\tSolveLinear() failed, err=%s\n", err.Error())
		}
	}
	pts := make([]Point, len(smps))
	for i, s := range smps {
		pts[i] = s.Pos
	}
	return Centroid(pts, dim)
}

// sum(w_i (|x - p_i| - d_i)^2)
func weightedCost(smps []Sample, pos *Point, w []float64, dim Dim) float64 {
	c := 0.0
	for i := range smps {
		c += w[i] * SQ(EucDist(pos, &smps[i].Pos, dim)-smps[i].Dist)
	}
	return c
}
