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
)

func TestRssiToDistance(t *testing.T) {
	// 20 dB below the 1 m power with n=2 is 10 m
	assert.InDelta(t, 10.0, RssiToDistance(-40, 2, -60), 1e-12)
	assert.InDelta(t, 1.0, RssiToDistance(-40, 2, -40), 1e-12)
	assert.InDelta(t, 100.0, RssiToDistance(-40, 3, -100), 1e-9)

	for _, d := range []float64{0.5, 1, 7.3, 42} {
		rssi := DistanceToRssi(-45, 2.7, d)
		assert.InDelta(t, d, RssiToDistance(-45, 2.7, rssi), 1e-9)
	}
}

func TestRssiStdToDistanceStd(t *testing.T) {
	// Numerical derivative of the model
	const (
		tx   = -40.0
		n    = 2.5
		rssi = -70.0
		h    = 1e-6
	)
	d := RssiToDistance(tx, n, rssi)
	deriv := (RssiToDistance(tx, n, rssi-h) - RssiToDistance(tx, n, rssi+h)) / (2 * h)
	assert.InDelta(t, deriv*3, RssiStdToDistanceStd(d, n, 3), 1e-6)
}

func TestReading_RssiDistance(t *testing.T) {
	src, err := NewRssiSource("ap", *NewPoint2D(0, 0), nil, -40, 2)
	require.NoError(t, err)
	r, err := NewRangingAndRssiReading(src, 9.5, 0.3, -60, 2)
	require.NoError(t, err)

	d, std, ok := r.RssiDistance()
	require.True(t, ok)
	assert.InDelta(t, 10.0, d, 1e-12)
	assert.InDelta(t, 10*LN10*2/20, std, 1e-12)

	// No RSSI parameters
	plain, _ := NewSource("plain", *NewPoint2D(0, 0), nil)
	r, _ = NewRssiReading(plain, -60, 2)
	_, _, ok = r.RssiDistance()
	assert.False(t, ok)

	// No RSSI in the reading
	r, _ = NewRangingReading(src, 3, 0)
	_, _, ok = r.RssiDistance()
	assert.False(t, ok)
}
