// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sortedView struct {
	Source   string
	Score    float64
	Readings []string
}

func viewOf(sorted []SourceReadings, names map[*Reading]string) []sortedView {
	var v []sortedView
	for _, sr := range sorted {
		e := sortedView{Source: sr.Source.ID, Score: sr.Score}
		for _, r := range sr.Readings {
			e.Readings = append(e.Readings, names[r.Reading])
		}
		v = append(v, e)
	}
	return v
}

func TestReadingSorter_Order(t *testing.T) {
	a, _ := NewRssiSource("a", *NewPoint2D(0, 0), nil, -40, 2)
	b, _ := NewRssiSource("b", *NewPoint2D(10, 0), nil, -40, 2)
	c, _ := NewRssiSource("c", *NewPoint2D(0, 10), nil, -40, 2)

	a1, _ := NewRssiReading(a, -60, 1)
	a2, _ := NewRangingReading(a, 3, 0.1)
	a3, _ := NewRangingAndRssiReading(a, 3, 0.1, -60, 1)
	a4, _ := NewRangingReading(a, 3.1, 0.1)
	b1, _ := NewRangingReading(b, 7, 0.1)
	c1, _ := NewRssiReading(c, -55, 1)
	c2, _ := NewRssiReading(c, -56, 1)
	names := map[*Reading]string{a1: "a1", a2: "a2", a3: "a3", a4: "a4", b1: "b1", c1: "c1", c2: "c2"}

	fp := NewFingerprint(a1, a2, a3, a4, b1, c1, c2)
	s, err := NewReadingSorter([]*Source{a, b, c}, fp,
		[]float64{0.1, 0.9, 0.5},
		[]float64{5, 1, 1, 2, 0, 1, 3})
	require.NoError(t, err)

	assert.Nil(t, s.SortedSourcesAndReadings())
	s.Sort()

	want := []sortedView{
		{Source: "b", Score: 0.9, Readings: []string{"b1"}},
		{Source: "c", Score: 0.5, Readings: []string{"c2", "c1"}},
		// Type first (ranging, ranging+rssi, rssi), then score
		{Source: "a", Score: 0.1, Readings: []string{"a4", "a2", "a3", "a1"}},
	}
	if diff := cmp.Diff(want, viewOf(s.SortedSourcesAndReadings(), names)); diff != "" {
		t.Errorf("sorted mismatch (-want +got):\n%s", diff)
	}
}

func TestReadingSorter_StableForEqualScores(t *testing.T) {
	var sources []*Source
	var readings []*Reading
	names := map[*Reading]string{}
	for i, id := range []string{"s0", "s1", "s2", "s3"} {
		src, err := NewSource(id, *NewPoint2D(float64(i), 0), nil)
		require.NoError(t, err)
		sources = append(sources, src)
		for j, n := range []string{"x", "y"} {
			r, err := NewRangingReading(src, float64(j+1), 0)
			require.NoError(t, err)
			readings = append(readings, r)
			names[r] = id + n
		}
	}

	// Without scores, and with equal scores, the input order is kept
	for _, scores := range [][]float64{nil, {1, 1, 1, 1}} {
		var rdgScores []float64
		if scores != nil {
			rdgScores = make([]float64, len(readings))
		}
		s, err := NewReadingSorter(sources, NewFingerprint(readings...), scores, rdgScores)
		require.NoError(t, err)
		s.Sort()
		got := viewOf(s.SortedSourcesAndReadings(), names)
		require.Len(t, got, 4)
		for i, v := range got {
			assert.Equal(t, sources[i].ID, v.Source)
			assert.Equal(t, []string{v.Source + "x", v.Source + "y"}, v.Readings)
		}
	}
}

func TestReadingSorter_SkipsSourcesWithoutReadings(t *testing.T) {
	a, _ := NewSource("a", *NewPoint2D(0, 0), nil)
	b, _ := NewSource("b", *NewPoint2D(1, 0), nil)
	other, _ := NewSource("other", *NewPoint2D(2, 0), nil)
	ra, _ := NewRangingReading(a, 1, 0)
	ro, _ := NewRangingReading(other, 1, 0)

	s, err := NewReadingSorter([]*Source{a, b}, NewFingerprint(ra, ro), nil, nil)
	require.NoError(t, err)
	s.Sort()
	got := s.SortedSourcesAndReadings()
	require.Len(t, got, 1)
	assert.Same(t, a, got[0].Source)
	assert.Same(t, ra, got[0].Readings[0].Reading)
}

func TestReadingSorter_MatchesSourcesByID(t *testing.T) {
	a, _ := NewSource("bssid-1", *NewPoint2D(0, 0), nil)
	copyOfA, _ := NewSource("bssid-1", *NewPoint2D(0, 0), nil)
	r, _ := NewRangingReading(copyOfA, 1, 0)

	s, err := NewReadingSorter([]*Source{a}, NewFingerprint(r), nil, nil)
	require.NoError(t, err)
	s.Sort()
	require.Len(t, s.SortedSourcesAndReadings(), 1)
	assert.Same(t, a, s.SortedSourcesAndReadings()[0].Source)
}

func TestReadingSorter_ReadingBelongsToFirstMatch(t *testing.T) {
	x1, _ := NewSource("x", *NewPoint2D(0, 0), nil)
	x2, _ := NewSource("x", *NewPoint2D(10, 0), nil)
	c, _ := NewSource("c", *NewPoint2D(0, 10), nil)
	rx, _ := NewRangingReading(x1, 1, 0)
	rc, _ := NewRangingReading(c, 2, 0)

	s, err := NewReadingSorter([]*Source{x1, x2, c}, NewFingerprint(rx, rc), nil, nil)
	require.NoError(t, err)
	s.Sort()
	got := s.SortedSourcesAndReadings()
	require.Len(t, got, 2)
	assert.Same(t, x1, got[0].Source)
	assert.Same(t, c, got[1].Source)

	n := 0
	for _, sr := range got {
		n += len(sr.Readings)
	}
	assert.Equal(t, 2, n)
}

func TestNewReadingSorter_Invalid(t *testing.T) {
	a, _ := NewSource("a", *NewPoint2D(0, 0), nil)
	r, _ := NewRangingReading(a, 1, 0)
	fp := NewFingerprint(r)

	_, err := NewReadingSorter([]*Source{a}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewReadingSorter([]*Source{a}, fp, []float64{1, 2}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewReadingSorter([]*Source{a}, fp, nil, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
