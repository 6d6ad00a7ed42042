// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Implements the position estimator: configuration, lock state and readiness.

package gowips

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// Estimator states
const (
	stateIdle = int32(iota)
	stateEstimating
)

// EstimatorOpt contains the parameters of a position estimator
type EstimatorOpt struct {
	Dim           Dim          // 2 or 3
	Kind          Kind         // Readings used as samples
	Method        Method       // Robust method, or DIRECT
	Sources       []*Source    // Located sources (optional at construction)
	Fingerprint   *Fingerprint // Readings (optional at construction)
	Listener      Listener     // Event listener (optional)
	SrcScores     []float64    // Quality score per source (PROSAC, PROMedS only)
	RdgScores     []float64    // Quality score per reading (PROSAC, PROMedS only)
	InitPos       *Point       // Initial position for the non-linear solver (optional)
	Threshold     *float64     // Inlier/stop threshold [m]. nil selects the method default
	Confidence    float64      // Confidence of the iteration bound, in (0,1)
	MaxIter       int          // Maximum number of robust iterations
	ProgressDelta float64      // Minimum progress change between notifications, in [0,1]
	ResultRefined bool         // Refine the best model over its inliers
	CovKept       bool         // Keep the covariance of the refined result
	LinearSolver  bool         // Fit preliminary subsets with the linear solver
	Homogeneous   bool         // Use the homogeneous linear system
	PrelimRefined bool         // Refine each preliminary solution with the non-linear solver
	SubsetSize    int          // Preliminary subset size. 0 selects dim+1
	Evenly        bool         // Spread samples evenly across sources
	SrcCovUsed    bool         // Add the source position covariance to the distance variance
	FallbackStd   float64      // Distance std for readings without one [m]
	Rand          *rand.Rand   // Random source for subset sampling (optional)
}

// NewEstimatorOpt creates a new EstimatorOpt with default values
func NewEstimatorOpt() *EstimatorOpt {
	return &EstimatorOpt{
		Dim:           DIM2,                          // Planar estimation
		Kind:          EST_RANGING,                   // Distances only
		Method:        DEFAULT_METHOD,                // PROMedS
		Threshold:     nil,                           // Method default
		Confidence:    DEFAULT_CONFIDENCE,            // 99%
		MaxIter:       DEFAULT_MAX_ITERATIONS,        // Iteration cap
		ProgressDelta: DEFAULT_PROGRESS_DELTA,        // 5% steps
		ResultRefined: true,                          // Refine over inliers
		CovKept:       true,                          // Keep covariance
		LinearSolver:  true,                          // Closed-form preliminary fits
		Homogeneous:   false,                         // Inhomogeneous system
		PrelimRefined: false,                         // No per-subset refinement
		SubsetSize:    0,                             // dim+1
		Evenly:        true,                          // Spread across sources
		SrcCovUsed:    false,                         // Ignore source covariance
		FallbackStd:   DEFAULT_FALLBACK_DISTANCE_STD, // 1 mm
	}
}

// Default threshold of a method
func DefaultThreshold(m Method) float64 {
	if m.UsesMedian() {
		return DEFAULT_STOP_THRESHOLD
	}
	return DEFAULT_THRESHOLD
}

// Data about the samples of the best robust model
type InliersData struct {
	Inliers    []bool    // Whether each sample is an inlier
	Residuals  []float64 // Absolute range residual of each sample [m]
	NumInliers int
}

// Result contains the output of one estimation
type Result struct {
	Position   Point         // Estimated position
	Covariance *mat.SymDense // Position covariance, nil if unavailable or not kept
	Inliers    *InliersData  // nil for DIRECT
	Samples    []Sample      // Samples, aligned with Inliers
	Iterations int           // Robust iterations performed
	Rms        float64       // Rms range residual of the samples used by the final fit [m]
}

// Estimator estimates a position from the readings of located sources.
// Setters fail with ErrLocked while Estimate runs (e.g. when called from a
// Listener), and with ErrInvalidArgument on invalid values, leaving the
// estimator unchanged.
type Estimator struct {
	dim    Dim
	kind   Kind
	method Method

	sources   []*Source
	fp        *Fingerprint
	listener  Listener
	srcScores []float64
	rdgScores []float64
	initPos   *Point

	threshold     float64
	confidence    float64
	maxIter       int
	progressDelta float64
	resultRefined bool
	covKept       bool
	linearSolver  bool
	homogeneous   bool
	prelimRefined bool
	subsetSize    int
	evenly        bool
	srcCovUsed    bool
	fallbackStd   float64

	rnd    *rand.Rand
	state  atomic.Int32
	result *Result
}

// NewEstimator creates an estimator. Quality scores are kept only for PROSAC
// and PROMedS; other methods accept and drop them.
func NewEstimator(opt *EstimatorOpt) (*Estimator, error) {
	if opt == nil {
		opt = NewEstimatorOpt()
	}
	if !opt.Dim.IsValid() {
		return nil, fmt.Errorf("%w: unsupported dimension %d", ErrInvalidArgument, opt.Dim)
	}
	if _, ok := kindNames[opt.Kind]; !ok {
		return nil, fmt.Errorf("%w: unknown estimator kind %d", ErrInvalidArgument, opt.Kind)
	}
	if _, ok := methodNames[opt.Method]; !ok {
		return nil, fmt.Errorf("%w: unknown method %d", ErrInvalidArgument, opt.Method)
	}

	e := &Estimator{
		dim:    opt.Dim,
		kind:   opt.Kind,
		method: opt.Method,
	}

	threshold := DefaultThreshold(opt.Method)
	if opt.Threshold != nil {
		threshold = *opt.Threshold
	}
	subsetSize := opt.SubsetSize
	if subsetSize == 0 {
		subsetSize = opt.Dim.MinSources()
	}

	// Validate everything before storing anything
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if err := validateConfidence(opt.Confidence); err != nil {
		return nil, err
	}
	if err := validateMaxIter(opt.MaxIter); err != nil {
		return nil, err
	}
	if err := validateProgressDelta(opt.ProgressDelta); err != nil {
		return nil, err
	}
	if err := e.validateSubsetSize(subsetSize); err != nil {
		return nil, err
	}
	if err := validateFallbackStd(opt.FallbackStd); err != nil {
		return nil, err
	}
	if opt.Sources != nil {
		if err := e.validateSources(opt.Sources); err != nil {
			return nil, err
		}
	}
	if e.method.UsesQualityScores() {
		if opt.SrcScores != nil {
			if err := e.validateScores(opt.SrcScores, "source"); err != nil {
				return nil, err
			}
			if opt.Sources != nil && len(opt.SrcScores) != len(opt.Sources) {
				return nil, fmt.Errorf("%w: %d source quality scores for %d sources", ErrInvalidArgument, len(opt.SrcScores), len(opt.Sources))
			}
		}
		if opt.RdgScores != nil {
			if err := e.validateScores(opt.RdgScores, "reading"); err != nil {
				return nil, err
			}
			if opt.Fingerprint != nil && len(opt.RdgScores) != len(opt.Fingerprint.Readings) {
				return nil, fmt.Errorf("%w: %d reading quality scores for %d readings", ErrInvalidArgument, len(opt.RdgScores), len(opt.Fingerprint.Readings))
			}
		}
		e.srcScores = opt.SrcScores
		e.rdgScores = opt.RdgScores
	}

	e.sources = opt.Sources
	e.fp = opt.Fingerprint
	e.listener = opt.Listener
	e.initPos = opt.InitPos
	e.threshold = threshold
	e.confidence = opt.Confidence
	e.maxIter = opt.MaxIter
	e.progressDelta = opt.ProgressDelta
	e.resultRefined = opt.ResultRefined
	e.covKept = opt.CovKept
	e.linearSolver = opt.LinearSolver
	e.homogeneous = opt.Homogeneous
	e.prelimRefined = opt.PrelimRefined
	e.subsetSize = subsetSize
	e.evenly = opt.Evenly
	e.srcCovUsed = opt.SrcCovUsed
	e.fallbackStd = opt.FallbackStd
	e.rnd = opt.Rand
	if e.rnd == nil {
		e.rnd = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	return e, nil
}

//-------------------------------------------------------------------
// Getters
//-------------------------------------------------------------------

func (e *Estimator) Dim() Dim { return e.dim }
func (e *Estimator) Kind() Kind { return e.kind }
func (e *Estimator) Method() Method { return e.method }
func (e *Estimator) Sources() []*Source { return e.sources }
func (e *Estimator) Fingerprint() *Fingerprint { return e.fp }
func (e *Estimator) Listener() Listener { return e.listener }
func (e *Estimator) SourceQualityScores() []float64 { return e.srcScores }
func (e *Estimator) ReadingQualityScores() []float64 { return e.rdgScores }
func (e *Estimator) InitialPosition() *Point { return e.initPos }
func (e *Estimator) Threshold() float64 { return e.threshold }
func (e *Estimator) Confidence() float64 { return e.confidence }
func (e *Estimator) MaxIterations() int { return e.maxIter }
func (e *Estimator) ProgressDelta() float64 { return e.progressDelta }
func (e *Estimator) IsResultRefined() bool { return e.resultRefined }
func (e *Estimator) IsCovarianceKept() bool { return e.covKept }
func (e *Estimator) IsLinearSolverUsed() bool { return e.linearSolver }
func (e *Estimator) IsHomogeneousLinearSolverUsed() bool { return e.homogeneous }
func (e *Estimator) IsPreliminarySolutionRefined() bool { return e.prelimRefined }
func (e *Estimator) PreliminarySubsetSize() int { return e.subsetSize }
func (e *Estimator) IsEvenlyDistributeReadings() bool { return e.evenly }
func (e *Estimator) IsSourcePositionCovarianceUsed() bool { return e.srcCovUsed }
func (e *Estimator) FallbackDistanceStd() float64 { return e.fallbackStd }

// Minimum number of sources for the dimension
func (e *Estimator) MinRequiredSources() int {
	return e.dim.MinSources()
}

// Whether an estimation is in progress
func (e *Estimator) IsLocked() bool {
	return e.state.Load() == stateEstimating
}

// Last successful result, nil if none
func (e *Estimator) Result() *Result {
	return e.result
}

// Last estimated position, nil if none
func (e *Estimator) EstimatedPosition() *Point {
	if e.result == nil {
		return nil
	}
	p := e.result.Position
	return &p
}

// Covariance of the last estimated position, nil if none
func (e *Estimator) Covariance() *mat.SymDense {
	if e.result == nil {
		return nil
	}
	return e.result.Covariance
}

// Inliers of the last robust estimation, nil if none
func (e *Estimator) InliersData() *InliersData {
	if e.result == nil {
		return nil
	}
	return e.result.Inliers
}

//-------------------------------------------------------------------
// Setters
//-------------------------------------------------------------------

func (e *Estimator) SetSources(sources []*Source) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := e.validateSources(sources); err != nil {
		return err
	}
	e.sources = sources
	return nil
}

func (e *Estimator) SetFingerprint(fp *Fingerprint) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if fp == nil {
		return fmt.Errorf("%w: fingerprint is nil", ErrInvalidArgument)
	}
	e.fp = fp
	return nil
}

func (e *Estimator) SetListener(l Listener) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.listener = l
	return nil
}

// Ignored (nil kept) for methods without quality scores
func (e *Estimator) SetSourceQualityScores(scores []float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if !e.method.UsesQualityScores() {
		return nil
	}
	if err := e.validateScores(scores, "source"); err != nil {
		return err
	}
	e.srcScores = scores
	return nil
}

// Ignored (nil kept) for methods without quality scores
func (e *Estimator) SetReadingQualityScores(scores []float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if !e.method.UsesQualityScores() {
		return nil
	}
	if err := e.validateScores(scores, "reading"); err != nil {
		return err
	}
	e.rdgScores = scores
	return nil
}

func (e *Estimator) SetInitialPosition(p *Point) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.initPos = p
	return nil
}

func (e *Estimator) SetThreshold(v float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := validateThreshold(v); err != nil {
		return err
	}
	e.threshold = v
	return nil
}

func (e *Estimator) SetConfidence(v float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := validateConfidence(v); err != nil {
		return err
	}
	e.confidence = v
	return nil
}

func (e *Estimator) SetMaxIterations(v int) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := validateMaxIter(v); err != nil {
		return err
	}
	e.maxIter = v
	return nil
}

func (e *Estimator) SetProgressDelta(v float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := validateProgressDelta(v); err != nil {
		return err
	}
	e.progressDelta = v
	return nil
}

func (e *Estimator) SetResultRefined(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.resultRefined = v
	return nil
}

func (e *Estimator) SetCovarianceKept(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.covKept = v
	return nil
}

func (e *Estimator) SetLinearSolverUsed(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.linearSolver = v
	return nil
}

func (e *Estimator) SetHomogeneousLinearSolverUsed(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.homogeneous = v
	return nil
}

func (e *Estimator) SetPreliminarySolutionRefined(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.prelimRefined = v
	return nil
}

func (e *Estimator) SetPreliminarySubsetSize(v int) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := e.validateSubsetSize(v); err != nil {
		return err
	}
	e.subsetSize = v
	return nil
}

func (e *Estimator) SetEvenlyDistributeReadings(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.evenly = v
	return nil
}

func (e *Estimator) SetSourcePositionCovarianceUsed(v bool) error {
	if e.IsLocked() {
		return ErrLocked
	}
	e.srcCovUsed = v
	return nil
}

func (e *Estimator) SetFallbackDistanceStd(v float64) error {
	if e.IsLocked() {
		return ErrLocked
	}
	if err := validateFallbackStd(v); err != nil {
		return err
	}
	e.fallbackStd = v
	return nil
}

//-------------------------------------------------------------------
// Validation
//-------------------------------------------------------------------

func validateThreshold(v float64) error {
	if !(v > 0) {
		return fmt.Errorf("%w: threshold must be positive, got %f", ErrInvalidArgument, v)
	}
	return nil
}

func validateConfidence(v float64) error {
	if !(v > 0 && v < 1) {
		return fmt.Errorf("%w: confidence must be in (0, 1), got %f", ErrInvalidArgument, v)
	}
	return nil
}

func validateMaxIter(v int) error {
	if v < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidArgument, v)
	}
	return nil
}

func validateProgressDelta(v float64) error {
	if !(v >= 0 && v <= 1) {
		return fmt.Errorf("%w: progress delta must be in [0, 1], got %f", ErrInvalidArgument, v)
	}
	return nil
}

func validateFallbackStd(v float64) error {
	if !(v >= 0) {
		return fmt.Errorf("%w: fallback distance std must not be negative, got %f", ErrInvalidArgument, v)
	}
	return nil
}

func (e *Estimator) validateSubsetSize(v int) error {
	if v < e.dim.MinSources() {
		return fmt.Errorf("%w: preliminary subset size %d < %d", ErrInvalidArgument, v, e.dim.MinSources())
	}
	return nil
}

func (e *Estimator) validateSources(sources []*Source) error {
	if sources == nil {
		return fmt.Errorf("%w: sources are nil", ErrInvalidArgument)
	}
	if len(sources) < e.dim.MinSources() {
		return fmt.Errorf("%w: not enough sources :%d < %d", ErrInvalidArgument, len(sources), e.dim.MinSources())
	}
	for i, s := range sources {
		if s == nil {
			return fmt.Errorf("%w: source[%d] is nil", ErrInvalidArgument, i)
		}
		for j := 0; j < i; j++ {
			if sources[j].SameAs(s) {
				return fmt.Errorf("%w: source[%d] and source[%d] are the same source %q", ErrInvalidArgument, j, i, s.ID)
			}
		}
	}
	return nil
}

func (e *Estimator) validateScores(scores []float64, what string) error {
	if scores == nil {
		return fmt.Errorf("%w: %s quality scores are nil", ErrInvalidArgument, what)
	}
	if len(scores) < e.dim.MinSources() {
		return fmt.Errorf("%w: not enough %s quality scores :%d < %d", ErrInvalidArgument, what, len(scores), e.dim.MinSources())
	}
	return nil
}

//-------------------------------------------------------------------
// Readiness
//-------------------------------------------------------------------

// Whether Estimate can run: sources and fingerprint set, enough usable
// readings over at least dim+1 sources, and for PROSAC/PROMedS quality
// scores of matching lengths
func (e *Estimator) IsReady() bool {
	return e.checkReady() == nil
}

func (e *Estimator) checkReady() error {
	if e.sources == nil {
		return fmt.Errorf("%w: no sources", ErrNotReady)
	}
	if e.fp == nil {
		return fmt.Errorf("%w: no fingerprint", ErrNotReady)
	}
	if e.method.UsesQualityScores() {
		if len(e.srcScores) != len(e.sources) {
			return fmt.Errorf("%w: %d source quality scores for %d sources", ErrNotReady, len(e.srcScores), len(e.sources))
		}
		if len(e.rdgScores) != len(e.fp.Readings) {
			return fmt.Errorf("%w: %d reading quality scores for %d readings", ErrNotReady, len(e.rdgScores), len(e.fp.Readings))
		}
	}
	nr, ns := e.resolvableReadings()
	if nr < e.subsetSize {
		return fmt.Errorf("%w: not enough usable readings :%d < %d", ErrNotReady, nr, e.subsetSize)
	}
	if ns < e.dim.MinSources() {
		return fmt.Errorf("%w: usable readings come from %d sources, need %d", ErrNotReady, ns, e.dim.MinSources())
	}
	return nil
}
