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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exactTol = 1e-6

func TestSolveLinear_NoiseFree(t *testing.T) {
	for _, dim := range []Dim{DIM2, DIM3} {
		for _, homogeneous := range []bool{false, true} {
			for _, n := range []int{dim.MinSources(), 10, 50} {
				t.Run(fmt.Sprintf("%s/h=%v/n=%d", dim, homogeneous, n), func(t *testing.T) {
					for seed := uint64(1); seed <= 20; seed++ {
						truth, smps := randomSamples(seed, dim, n)
						sol, err := SolveLinear(dim, smps, homogeneous)
						require.NoError(t, err, "seed %d", seed)
						assert.Less(t, EucDist(&sol.Pos, &truth, dim), exactTol, "seed %d", seed)
						assert.Less(t, sol.Rms, exactTol)
						assert.Nil(t, sol.Cov, "no std, no covariance")
					}
				})
			}
		}
	}
}

func TestSolveLinear_KnownPosition(t *testing.T) {
	truth := *NewPoint2D(3, 4)
	smps := exactSamples(truth, DIM2, *NewPoint2D(0, 0), *NewPoint2D(10, 0), *NewPoint2D(0, 10))
	assert.InDelta(t, 5.0, smps[0].Dist, 1e-12)
	assert.InDelta(t, 7.0, smps[2].Dist, 1e-12)

	for _, homogeneous := range []bool{false, true} {
		sol, err := SolveLinear(DIM2, smps, homogeneous)
		require.NoError(t, err)
		assert.InDelta(t, 3.0, sol.Pos.X, exactTol)
		assert.InDelta(t, 4.0, sol.Pos.Y, exactTol)
		assert.Zero(t, sol.Pos.Z)
		assert.Zero(t, sol.Loop)
	}
}

func TestSolveLinear_Covariance(t *testing.T) {
	truth, smps := randomSamples(7, DIM3, 12)
	for i := range smps {
		smps[i].Std = 0.5
	}
	sol, err := SolveLinear(DIM3, smps, false)
	require.NoError(t, err)
	assert.Less(t, EucDist(&sol.Pos, &truth, DIM3), exactTol)
	require.NotNil(t, sol.Cov)
	assert.Equal(t, 3, sol.Cov.SymmetricDim())
	for i := 0; i < 3; i++ {
		assert.Greater(t, sol.Cov.At(i, i), 0.0)
	}
	assert.Greater(t, sol.Dop, 0.0)
}

func TestSolveLinear_Degenerate(t *testing.T) {
	// Collinear sources in 2D
	truth := *NewPoint2D(3, 4)
	smps := exactSamples(truth, DIM2, *NewPoint2D(0, 0), *NewPoint2D(1, 0), *NewPoint2D(2, 0), *NewPoint2D(5, 0))
	_, err := SolveLinear(DIM2, smps, false)
	assert.ErrorIs(t, err, ErrPositionEstimation)

	// Coincident sources
	smps = exactSamples(truth, DIM2, *NewPoint2D(1, 1), *NewPoint2D(1, 1), *NewPoint2D(1, 1))
	_, err = SolveLinear(DIM2, smps, true)
	assert.ErrorIs(t, err, ErrPositionEstimation)
}

func TestSolveLinear_InvalidInput(t *testing.T) {
	_, smps := randomSamples(1, DIM2, 2)
	_, err := SolveLinear(DIM2, smps, false)
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = SolveLinear(Dim(4), smps, false)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
