// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Implements robust position estimation (RANSAC, LMedS, MSAC, PROSAC, PROMedS).

package gowips

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimate computes a position from the current sources and fingerprint.
//
// Returns:
//   - Result: position, covariance and inliers. Also kept by the estimator.
//   - error: ErrLocked, ErrNotReady, ErrRobustEstimation (no model found),
//     ErrPositionEstimation (DIRECT fit failed)
func (e *Estimator) Estimate() (*Result, error) {
	if e.IsLocked() {
		return nil, ErrLocked
	}
	if err := e.checkReady(); err != nil {
		return nil, err
	}
	if !e.state.CompareAndSwap(stateIdle, stateEstimating) {
		return nil, ErrLocked
	}
	defer e.state.Store(stateIdle)

	if e.listener != nil {
		e.listener.OnEstimateStart(e)
	}
	res, err := e.estimate()
	if err == nil {
		e.result = res
		PrintD(1, "estimate(%s,%s,%s): pos=%s, iter=%d, rms=%.4f\n", e.dim, e.kind, e.method, res.Position.String(), res.Iterations, res.Rms)
	} else {
		PrintD(1, "estimate(%s,%s,%s) failed, err=%s\n", e.dim, e.kind, e.method, err.Error())
	}
	if e.listener != nil {
		e.listener.OnEstimateEnd(e)
	}
	return res, err
}

func (e *Estimator) estimate() (*Result, error) {
	smps, groups, err := e.buildSamples()
	if err != nil {
		return nil, err
	}
	if e.method == DIRECT {
		return e.estimateDirect(smps)
	}
	return e.estimateRobust(smps, groups)
}

// Score of a candidate model, smaller is better
type modelScore struct {
	primary   float64 // -inliers (RANSAC, PROSAC), truncated cost (MSAC), median squared residual (LMedS, PROMedS)
	secondary float64 // Residual sum of the inliers (RANSAC, PROSAC tie break)
}

func (s modelScore) better(o modelScore) bool {
	if s.primary != o.primary {
		return s.primary < o.primary
	}
	return s.secondary < o.secondary
}

func (e *Estimator) estimateRobust(smps []Sample, groups [][]int) (*Result, error) {

	n := len(smps)
	k := e.subsetSize
	if n < k {
		return nil, fmt.Errorf("%w: not enough samples :%d < %d", ErrNotReady, n, k)
	}

	var sampler Sampler
	if e.method.UsesQualityScores() {
		sampler = NewProsacSampler(e.rnd, n, k, min(e.maxIter, PROSAC_MAX_DRAWS))
	} else {
		var g [][]int
		if e.evenly {
			g = groups
		}
		sampler = NewUniformSampler(e.rnd, n, g)
	}

	idx := make([]int, k)
	sub := make([]Sample, k)
	res := make([]float64, n)

	var (
		found    bool
		bestPos  Point
		best     modelScore
		bestRes  []float64
		iter     int
		lastProg float64
	)
	maxIter := e.maxIter

	for iter < maxIter {
		iter++
		if e.listener != nil {
			e.listener.OnEstimateNextIteration(e, iter)
		}

		sampler.Sample(idx)
		for i, j := range idx {
			sub[i] = smps[j]
		}

		var pos Point
		var err error
		if n := distinctSources(sub); n < e.dim.MinSources() {
			err = fmt.Errorf("subset spans %d sources", n)
		} else {
			pos, err = e.fitSubset(sub)
		}
		if err == nil {
			absResiduals(smps, &pos, e.dim, res)
			sc, w := e.scoreModel(res)
			if !found || sc.better(best) {
				found = true
				bestPos = pos
				best = sc
				bestRes = slices.Clone(res)
				bound := iterationBound(e.confidence, w, k)
				maxIter = max(min(e.maxIter, bound), iter)
				PrintD(2, "\tITER %d: pos=%s, score=%.6g/%.6g, inlier ratio=%.3f, bound=%d\n", iter, pos.String(), sc.primary, sc.secondary, w, maxIter)
			}
		} else {
			PrintD(3, "\tITER %d: fitSubset() failed, err=%s\n", iter, err.Error())
		}

		// Progress notification
		prog := math.Min(float64(iter)/float64(maxIter), 1)
		if e.listener != nil && prog-lastProg >= e.progressDelta && prog > lastProg {
			e.listener.OnEstimateProgressChange(e, prog)
			lastProg = prog
		}

		// Median based methods stop at a small enough median
		if found && e.method.UsesMedian() && math.Sqrt(best.primary) <= e.threshold {
			PrintD(2, "\tITER %d: median below stop threshold\n", iter)
			break
		}
	}

	if !found {
		return nil, fmt.Errorf("%w: no model found in %d iterations", ErrRobustEstimation, iter)
	}

	inl := e.inliers(bestRes, best)
	if inl.NumInliers < e.dim.MinSources() {
		return nil, fmt.Errorf("%w: not enough inliers :%d < %d", ErrRobustEstimation, inl.NumInliers, e.dim.MinSources())
	}

	result := &Result{
		Position:   bestPos,
		Inliers:    inl,
		Samples:    smps,
		Iterations: iter,
	}
	inSmps := make([]Sample, 0, inl.NumInliers)
	for i, ok := range inl.Inliers {
		if ok {
			inSmps = append(inSmps, smps[i])
		}
	}

	if e.resultRefined {
		opt := e.nlinOpt(!e.covKept)
		sol, err := SolveNonLinear(e.dim, inSmps, &bestPos, opt)
		if err != nil {
			PrintD(1, "\trefinement over %d inliers failed, err=%s\n", len(inSmps), err.Error())
		} else {
			result.Position = sol.Pos
			if e.covKept {
				result.Covariance = sol.Cov
			}
		}
	}
	_, result.Rms = rangeResiduals(inSmps, &result.Position, e.dim)
	return result, nil
}

// Non-robust estimation over every sample
func (e *Estimator) estimateDirect(smps []Sample) (*Result, error) {

	if e.listener != nil {
		e.listener.OnEstimateNextIteration(e, 1)
	}

	result := &Result{Samples: smps, Iterations: 1}
	var start Point
	if e.linearSolver {
		lin, err := SolveLinear(e.dim, smps, e.homogeneous)
		if err != nil {
			return nil, fmt.Errorf("%w: SolveLinear() failed, err=%v", ErrPositionEstimation, err)
		}
		result.Position = lin.Pos
		if e.covKept {
			result.Covariance = lin.Cov
		}
		start = lin.Pos
	} else {
		start = e.startPosition(smps)
	}

	if e.resultRefined || !e.linearSolver {
		sol, err := SolveNonLinear(e.dim, smps, &start, e.nlinOpt(!e.covKept))
		switch {
		case err == nil:
			result.Position = sol.Pos
			result.Covariance = nil
			if e.covKept {
				result.Covariance = sol.Cov
			}
		case e.linearSolver:
			PrintD(1, "\trefinement failed, err=%s\n", err.Error())
			result.Covariance = nil
		default:
			return nil, fmt.Errorf("%w: SolveNonLinear() failed, err=%v", ErrPositionEstimation, err)
		}
	}

	if e.listener != nil {
		e.listener.OnEstimateProgressChange(e, 1)
	}
	_, result.Rms = rangeResiduals(smps, &result.Position, e.dim)
	return result, nil
}

// Position of a preliminary subset
func (e *Estimator) fitSubset(sub []Sample) (Point, error) {
	if e.linearSolver {
		lin, err := SolveLinear(e.dim, sub, e.homogeneous)
		if err != nil {
			return Point{}, err
		}
		if !e.prelimRefined {
			return lin.Pos, nil
		}
		sol, err := SolveNonLinear(e.dim, sub, &lin.Pos, e.nlinOpt(true))
		if err != nil {
			// Keep the linear solution
			return lin.Pos, nil
		}
		return sol.Pos, nil
	}
	start := e.startPosition(sub)
	sol, err := SolveNonLinear(e.dim, sub, &start, e.nlinOpt(true))
	if err != nil {
		return Point{}, err
	}
	return sol.Pos, nil
}

// Initial position, or the centroid of the sample sources
func (e *Estimator) startPosition(smps []Sample) Point {
	if e.initPos != nil {
		return *e.initPos
	}
	pts := make([]Point, len(smps))
	for i, s := range smps {
		pts[i] = s.Pos
	}
	return Centroid(pts, e.dim)
}

func (e *Estimator) nlinOpt(noCov bool) *NlinOpt {
	opt := NewNlinOpt()
	opt.FallbackStd = e.fallbackStd
	opt.NoCov = noCov
	return opt
}

// Score of a model from its absolute residuals, and its inlier ratio
func (e *Estimator) scoreModel(res []float64) (modelScore, float64) {
	n := float64(len(res))
	t := e.threshold

	switch e.method {
	case LMEDS, PROMEDS:
		med := medianSq(res)
		t = e.medianInlierThreshold(med, len(res))
		return modelScore{primary: med}, float64(countBelow(res, t)) / n

	case MSAC:
		c := 0.0
		for _, r := range res {
			c += math.Min(SQ(r), SQ(t))
		}
		return modelScore{primary: c}, float64(countBelow(res, t)) / n

	default: // RANSAC, PROSAC
		cnt, sum := 0, 0.0
		for _, r := range res {
			if r <= t {
				cnt++
				sum += r
			}
		}
		return modelScore{primary: -float64(cnt), secondary: sum}, float64(cnt) / n
	}
}

// Inliers of the best model
func (e *Estimator) inliers(res []float64, sc modelScore) *InliersData {
	t := e.threshold
	if e.method.UsesMedian() {
		t = e.medianInlierThreshold(sc.primary, len(res))
	}
	inl := &InliersData{
		Inliers:   make([]bool, len(res)),
		Residuals: res,
	}
	for i, r := range res {
		if r <= t {
			inl.Inliers[i] = true
			inl.NumInliers++
		}
	}
	PrintD(2, "\tinliers: %d/%d (threshold=%.4f)\n", inl.NumInliers, len(res), t)
	return inl
}

// Inlier threshold of LMedS from the median squared residual
// - robust std: 1.4826 (1 + 5/(n-k)) sqrt(median)
// - threshold: 2.5 robust std, never below the stop threshold
func (e *Estimator) medianInlierThreshold(med float64, n int) float64 {
	corr := 1.0
	if n > e.subsetSize {
		corr += 5 / float64(n-e.subsetSize)
	}
	sigma := LMEDS_STD_FACT * corr * math.Sqrt(med)
	return math.Max(LMEDS_INLIER_FACT*sigma, e.threshold)
}

// Number of iterations needed to draw one outlier-free subset with the given
// confidence: log(1 - conf) / log(1 - w^k)
func iterationBound(conf, w float64, k int) int {
	if w <= 0 {
		return math.MaxInt32
	}
	pk := math.Pow(w, float64(k))
	if pk >= 1 {
		return 1
	}
	n := math.Log(1-conf) / math.Log(1-pk)
	if math.IsNaN(n) || n > math.MaxInt32 {
		return math.MaxInt32
	}
	return max(int(math.Ceil(n)), 1)
}

// |(|x - p_i| - d_i)| into dst
func absResiduals(smps []Sample, pos *Point, dim Dim, dst []float64) {
	for i := range smps {
		dst[i] = math.Abs(EucDist(pos, &smps[i].Pos, dim) - smps[i].Dist)
	}
}

// Median of the squared residuals
func medianSq(res []float64) float64 {
	sq := make([]float64, len(res))
	floats.MulTo(sq, res, res)
	slices.Sort(sq)
	return stat.Quantile(0.5, stat.Empirical, sq, nil)
}

// Number of distinct sources of the samples. Samples without a source count
// as distinct.
func distinctSources(smps []Sample) int {
	n := 0
	for i := range smps {
		dup := false
		for j := 0; j < i && smps[i].Source != nil; j++ {
			if smps[j].Source == smps[i].Source {
				dup = true
				break
			}
		}
		if !dup {
			n++
		}
	}
	return n
}

func countBelow(res []float64, t float64) int {
	n := 0
	for _, r := range res {
		if r <= t {
			n++
		}
	}
	return n
}
