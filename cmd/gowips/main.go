// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	m "github.com/mkhts/gowips"
	"golang.org/x/exp/rand"
)

func main() {

	// Parse command line arguments
	args, err := parseArgs()
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	// Run the main application
	if err := runApplication(args); err != nil {
		m.PrintE(err)
		os.Exit(1)
	}
}

// Main application processing
func runApplication(args cmdOpt) error {

	// Prepare output file
	pos, err := prepareOutput(args)
	if err != nil {
		return fmt.Errorf("failed to prepare output: %w", err)
	}
	defer closeOutput(pos)

	// Print header
	if !args.noPosHeader {
		printPosHeader(pos, os.Args[0], args.scnFns)
	}

	// Process scenarios
	rnd := rand.New(rand.NewSource(args.seed))
	nerr := 0
	for _, fn := range args.scnFns {
		if err := processScenario(args, fn, rnd, pos); err != nil {
			m.PrintA("%s: %s\n", filepath.Base(fn), err.Error())
			nerr++
		}
	}
	if nerr == len(args.scnFns) {
		return fmt.Errorf("no scenario could be estimated")
	}
	return nil
}

// Process single scenario
func processScenario(args cmdOpt, fn string, rnd *rand.Rand, pos io.Writer) error {

	scn, err := m.LoadScenario(fn)
	if err != nil {
		return err
	}
	if args.set["d"] {
		scn.Dim = args.dim
		if err := scn.Validate(); err != nil {
			return err
		}
	}

	opt, err := scn.EstimatorOpt()
	if err != nil {
		return fmt.Errorf("failed to build estimator options: %w", err)
	}
	setEstimatorOpt(&args, opt)
	opt.Rand = rnd

	if m.DBG_ >= 1 {
		m.PrintA("--- fingerprint (%s)---\n", filepath.Base(fn))
		fmt.Fprintln(os.Stderr, opt.Fingerprint)
	}

	est, err := m.NewEstimator(opt)
	if err != nil {
		return fmt.Errorf("failed to create estimator: %w", err)
	}
	if m.DBG_ >= 2 {
		_ = est.SetListener(&m.ListenerFuncs{
			ProgressChange: func(e *m.Estimator, progress float64) {
				m.PrintA("\tprogress: %5.1f%%\n", progress*100)
			},
		})
	}

	res, err := est.Estimate()
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	printPos(pos, fn, est, res, scn.TruePosition())
	return nil
}

// Prepare output file
func prepareOutput(args cmdOpt) (io.WriteCloser, error) {

	// Use stdout if no output file is specified
	if len(args.posFn) == 0 {
		return &nopCloser{os.Stdout}, nil
	}

	// Create output file
	posf, err := os.Create(args.posFn)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return posf, nil
}

// Close output file
func closeOutput(pos io.WriteCloser) {
	if pos != nil {
		pos.Close()
	}
}

// nopCloser - WriteCloser that ignores close operations
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// Structure to hold command line argument information
type cmdOpt struct {
	scnFns      []string
	posFn       string
	noPosHeader bool
	dim         m.Dim
	kind        m.Kind
	method      m.Method
	threshold   float64
	confidence  float64
	maxIter     int
	homogeneous bool
	noLinear    bool
	noRefine    bool
	prelimRef   bool
	evenly      bool
	srcCov      bool
	fallbackStd float64
	seed        uint64
	set         map[string]bool // Flags given on the command line
}

// Parse command line arguments
func parseArgs() (a cmdOpt, err error) {
	flag.Usage = func() {
		m.PrintA(`
[Usage]
	%s [Options] scenario.yaml [scenario2.yaml ...]

[Options]
`, filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	eOpt := m.NewEstimatorOpt()
	a.dim = eOpt.Dim
	a.kind = eOpt.Kind
	a.method = eOpt.Method
	flag.Var(&a.dim, "d", "Dimension. 2 or 3. Overrides the scenario file.")
	flag.Var(&a.kind, "k", "Readings used. ranging, rssi, ranging_and_rssi or mixed. Overrides the scenario file.")
	flag.Var(&a.method, "p", "Estimation method. ransac, lmeds, msac, prosac, promeds or direct. Overrides the scenario file.")
	flag.Float64Var(&a.threshold, "t", 0, "Inlier threshold [m] (RANSAC, MSAC, PROSAC) or stop threshold (LMedS, PROMedS). Method dependent if not specified.")
	flag.Float64Var(&a.confidence, "c", eOpt.Confidence, "Confidence of the robust iteration bound, in (0,1).")
	flag.IntVar(&a.maxIter, "n", eOpt.MaxIter, "Maximum number of robust iterations.")
	flag.BoolVar(&a.homogeneous, "hs", eOpt.Homogeneous, "Use the homogeneous linear solver.")
	flag.BoolVar(&a.noLinear, "nl", !eOpt.LinearSolver, "Fit preliminary subsets with the non-linear solver only.")
	flag.BoolVar(&a.noRefine, "nr", !eOpt.ResultRefined, "Do not refine the result over the inliers.")
	flag.BoolVar(&a.prelimRef, "pr", eOpt.PrelimRefined, "Refine every preliminary solution with the non-linear solver.")
	flag.BoolVar(&a.evenly, "e", eOpt.Evenly, "Spread samples evenly across sources.")
	flag.BoolVar(&a.srcCov, "sc", eOpt.SrcCovUsed, "Add the source position covariance to the distance variance.")
	flag.Float64Var(&a.fallbackStd, "fs", eOpt.FallbackStd, "Distance std [m] for readings without one.")
	flag.Uint64Var(&a.seed, "seed", 1, "Seed of the subset sampler.")
	flag.StringVar(&a.posFn, "o", "", "Output file path. If not specified, output to stdout.")
	flag.BoolVar(&a.noPosHeader, "nh", false, "Do not output header section.")
	var dbg int
	flag.IntVar(&dbg, "x", 0, "Debug information display. Specify level value. 0(OFF), 1(display), 2(detailed display), 3(more detailed), 4(most detailed)")
	flag.Parse()
	if flag.NArg() == 0 {
		return a, fmt.Errorf("no scenario file")
	}
	a.scnFns = flag.Args()
	a.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		a.set[f.Name] = true
	})
	m.DBG_ = dbg
	return
}

// Apply the flags given on the command line
func setEstimatorOpt(args *cmdOpt, opt *m.EstimatorOpt) {
	if args.set["k"] {
		opt.Kind = args.kind
	}
	if args.set["p"] {
		opt.Method = args.method
		if opt.Method.UsesQualityScores() {
			if opt.SrcScores == nil {
				opt.SrcScores = make([]float64, len(opt.Sources))
			}
			if opt.RdgScores == nil {
				opt.RdgScores = make([]float64, len(opt.Fingerprint.Readings))
			}
		}
	}
	if args.set["d"] {
		opt.Dim = args.dim
	}
	if args.set["t"] {
		opt.Threshold = &args.threshold
	}
	if args.set["c"] {
		opt.Confidence = args.confidence
	}
	if args.set["n"] {
		opt.MaxIter = args.maxIter
	}
	if args.set["hs"] {
		opt.Homogeneous = args.homogeneous
	}
	if args.set["nl"] {
		opt.LinearSolver = !args.noLinear
	}
	if args.set["nr"] {
		opt.ResultRefined = !args.noRefine
	}
	if args.set["pr"] {
		opt.PrelimRefined = args.prelimRef
	}
	if args.set["e"] {
		opt.Evenly = args.evenly
	}
	if args.set["sc"] {
		opt.SrcCovUsed = args.srcCov
	}
	if args.set["fs"] {
		opt.FallbackStd = args.fallbackStd
	}
}

// Print header
func printPosHeader(pos io.Writer, cmd string, scnFns []string) {
	fmt.Fprintf(pos, "%% program   : %s\n", filepath.Base(cmd))
	for _, fn := range scnFns {
		fmt.Fprintf(pos, "%% inp file  : %s\n", fn)
	}
	fmt.Fprintf(pos, "%%  scenario               method   dim          x(m)          y(m)          z(m)     sx(m)     sy(m)     sz(m)  inl/ns  iter     rms(m)     err(m)\n")
}

// Output one result line
func printPos(pos io.Writer, fn string, est *m.Estimator, res *m.Result, truth *m.Point) {
	dim := est.Dim()
	var sd [3]float64
	for i := range sd {
		sd[i] = math.NaN()
	}
	if res.Covariance != nil {
		for i := 0; i < int(dim); i++ {
			sd[i] = math.Sqrt(res.Covariance.At(i, i))
		}
	}
	ns := len(res.Samples)
	ni := ns
	if res.Inliers != nil {
		ni = res.Inliers.NumInliers
	}
	errv := math.NaN()
	if truth != nil {
		errv = m.EucDist(&res.Position, truth, dim)
	}
	p := res.Position
	fmt.Fprintf(pos, "%-24s %-8s %3s %13.4f %13.4f %13.4f %9.4f %9.4f %9.4f %3d/%-3d %5d %10.4f %10.4f\n",
		filepath.Base(fn), est.Method(), dim, p.X, p.Y, p.Z, sd[0], sd[1], sd[2], ni, ns, res.Iterations, res.Rms, errv)
}
