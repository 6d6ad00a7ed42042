// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	testMinPos = -50.0
	testMaxPos = 50.0
)

// Sources with ranging readings around a known position
type testScene struct {
	dim     Dim
	truth   Point
	sources []*Source
	fp      *Fingerprint
	outlier []bool // Per reading
}

func randomPoint(src rand.Source, dim Dim) Point {
	u := distuv.Uniform{Min: testMinPos, Max: testMaxPos, Src: src}
	var p Point
	for i := 0; i < int(dim); i++ {
		p.Set(i, u.Rand())
	}
	return p
}

// n sources placed at random with exact distances. A fraction of the readings
// gets gaussian errors of outlierStd.
func newRangingScene(t *testing.T, seed uint64, dim Dim, n int, outlierRatio, outlierStd float64) *testScene {
	t.Helper()
	src := rand.NewSource(seed)
	sc := &testScene{dim: dim, truth: randomPoint(src, dim)}
	u := distuv.Uniform{Min: 0, Max: 1, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: outlierStd, Src: src}

	var readings []*Reading
	for i := 0; i < n; i++ {
		s, err := NewSource(fmt.Sprintf("ap%02d", i), randomPoint(src, dim), nil)
		require.NoError(t, err)
		sc.sources = append(sc.sources, s)

		d := EucDist(&sc.truth, &s.Pos, dim)
		bad := outlierRatio > 0 && u.Rand() < outlierRatio
		if bad {
			d = max(d+noise.Rand(), 0)
		}
		r, err := NewRangingReading(s, d, 0)
		require.NoError(t, err)
		readings = append(readings, r)
		sc.outlier = append(sc.outlier, bad)
	}
	sc.fp = NewFingerprint(readings...)
	return sc
}

// Samples of exact distances from the given source positions
func exactSamples(truth Point, dim Dim, pts ...Point) []Sample {
	smps := make([]Sample, len(pts))
	for i := range pts {
		smps[i] = Sample{Pos: pts[i], Dist: EucDist(&truth, &pts[i], dim)}
	}
	return smps
}

func randomSamples(seed uint64, dim Dim, n int) (Point, []Sample) {
	src := rand.NewSource(seed)
	truth := randomPoint(src, dim)
	pts := make([]Point, n)
	for i := range pts {
		pts[i] = randomPoint(src, dim)
	}
	return truth, exactSamples(truth, dim, pts...)
}

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Listener counting its events
type countingListener struct {
	start, end, next, progress int
	lastIteration              int
	lastProgress               float64
}

func (l *countingListener) OnEstimateStart(e *Estimator) { l.start++ }
func (l *countingListener) OnEstimateEnd(e *Estimator) { l.end++ }
func (l *countingListener) OnEstimateNextIteration(e *Estimator, iteration int) {
	l.next++
	l.lastIteration = iteration
}
func (l *countingListener) OnEstimateProgressChange(e *Estimator, progress float64) {
	l.progress++
	l.lastProgress = progress
}
