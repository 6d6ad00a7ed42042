// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewSource(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{0.1, 0, 0, 0.1})
	s, err := NewSource("ap", *NewPoint2D(1, 2), cov)
	require.NoError(t, err)
	assert.False(t, s.IsRssiCapable())
	assert.Same(t, cov, s.PosCov)

	_, err = NewSource("ap", *NewPoint2D(1, 2), mat.NewSymDense(4, nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	r, err := NewRssiSource("ap", *NewPoint3D(1, 2, 3), nil, -40, 2.2)
	require.NoError(t, err)
	assert.True(t, r.IsRssiCapable())

	_, err = NewRssiSource("ap", *NewPoint3D(1, 2, 3), nil, -40, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSource_SameAs(t *testing.T) {
	a, _ := NewSource("x", Point{}, nil)
	b, _ := NewSource("x", Point{X: 1}, nil)
	c, _ := NewSource("y", Point{}, nil)
	anon1, _ := NewSource("", Point{}, nil)
	anon2, _ := NewSource("", Point{}, nil)

	assert.True(t, a.SameAs(a))
	assert.True(t, a.SameAs(b))
	assert.False(t, a.SameAs(c))
	assert.True(t, anon1.SameAs(anon1))
	assert.False(t, anon1.SameAs(anon2))
	assert.False(t, a.SameAs(nil))
}

func TestNewReadings(t *testing.T) {
	src, _ := NewRssiSource("ap", Point{}, nil, -40, 2)

	tests := []struct {
		name    string
		build   func() (*Reading, error)
		typ     ReadingType
		ranging bool
		rssi    bool
	}{
		{"ranging", func() (*Reading, error) { return NewRangingReading(src, 3, 0.1) }, RANGING, true, false},
		{"rssi", func() (*Reading, error) { return NewRssiReading(src, -60, 1) }, RSSI, false, true},
		{"both", func() (*Reading, error) { return NewRangingAndRssiReading(src, 3, 0.1, -60, 1) }, RANGING_AND_RSSI, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.typ, r.Type)
			assert.Equal(t, tt.ranging, r.HasRanging())
			assert.Equal(t, tt.rssi, r.HasRssi())
			assert.Same(t, src, r.Source)
		})
	}

	_, err := NewRangingReading(nil, 3, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRangingReading(src, -1, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRangingReading(src, 1, -0.1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRssiReading(src, -60, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewRangingAndRssiReading(src, 1, 0, -60, -1)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestParseReadingType(t *testing.T) {
	for _, rt := range []ReadingType{RANGING, RANGING_AND_RSSI, RSSI} {
		got, err := ParseReadingType(rt.String())
		require.NoError(t, err)
		assert.Equal(t, rt, got)
	}
	got, err := ParseReadingType("RSSI")
	require.NoError(t, err)
	assert.Equal(t, RSSI, got)

	_, err = ParseReadingType("tof")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
