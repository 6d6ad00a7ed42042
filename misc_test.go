// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	for m, n := range methodNames {
		got, err := ParseMethod(n)
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	got, err := ParseMethod("promeds")
	require.NoError(t, err)
	assert.Equal(t, PROMEDS, got)
	assert.True(t, got.UsesMedian())
	assert.True(t, got.UsesQualityScores())
	assert.False(t, MSAC.UsesMedian())
	assert.False(t, LMEDS.UsesQualityScores())

	_, err = ParseMethod("mlesac")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, "UNKNOWN!", Method(42).String())
}

func TestFlagVars(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(&bytes.Buffer{})
	var (
		dim    = DIM2
		kind   = EST_RANGING
		method = DEFAULT_METHOD
	)
	fs.Var(&dim, "d", "")
	fs.Var(&kind, "k", "")
	fs.Var(&method, "p", "")
	require.NoError(t, fs.Parse([]string{"-d", "3d", "-k", "mixed", "-p", "msac"}))
	assert.Equal(t, DIM3, dim)
	assert.Equal(t, EST_MIXED, kind)
	assert.Equal(t, MSAC, method)

	assert.Error(t, fs.Parse([]string{"-d", "4"}))
	assert.Error(t, fs.Parse([]string{"-k", "sonar"}))
}

func TestPrintD(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	defer SetLogOutput(nil)
	dbg := DBG_
	defer func() { DBG_ = dbg }()

	DBG_ = 1
	PrintD(1, "shown %d\n", 1)
	PrintD(2, "hidden\n")
	assert.Equal(t, "shown 1\n", buf.String())
}

func TestPoint(t *testing.T) {
	p := NewPoint3D(1, 2, 3)
	assert.Equal(t, []float64{1, 2}, p.Vec(DIM2))
	assert.Equal(t, []float64{1, 2, 3}, p.Vec(DIM3))
	assert.InDelta(t, 5.0, p.NormSq(DIM2), 1e-12)

	q := PointFromVec([]float64{4, 6, 100}, DIM2)
	assert.Zero(t, q.Z)
	assert.InDelta(t, 5.0, EucDist(p, &q, DIM2), 1e-12)

	c := Centroid([]Point{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 1, Y: 3}}, DIM2)
	assert.InDelta(t, 1.0, c.X, 1e-12)
	assert.InDelta(t, 1.0, c.Y, 1e-12)
}
