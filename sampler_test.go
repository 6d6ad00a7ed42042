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
	"golang.org/x/exp/slices"
)

func assertDistinctIn(t *testing.T, idx []int, n int) {
	t.Helper()
	seen := make(map[int]bool)
	for _, i := range idx {
		require.True(t, i >= 0 && i < n, "index %d out of [0, %d)", i, n)
		require.False(t, seen[i], "duplicate index %d in %v", i, idx)
		seen[i] = true
	}
}

func TestUniformSampler(t *testing.T) {
	p := NewUniformSampler(testRand(1), 10, nil)
	dst := make([]int, 4)
	hits := make([]int, 10)
	for it := 0; it < 2000; it++ {
		p.Sample(dst)
		assertDistinctIn(t, dst, 10)
		for _, i := range dst {
			hits[i]++
		}
	}
	// Every index is drawn about 800 times
	for i, h := range hits {
		assert.InDelta(t, 800, h, 200, "index %d", i)
	}
}

func TestUniformSampler_Groups(t *testing.T) {
	groups := [][]int{{0, 3, 6}, {1, 4}, {2, 5, 7, 8}}
	groupOf := map[int]int{}
	for g, idx := range groups {
		for _, i := range idx {
			groupOf[i] = g
		}
	}
	p := NewUniformSampler(testRand(2), 9, groups)
	dst := make([]int, 3)
	for it := 0; it < 500; it++ {
		p.Sample(dst)
		assertDistinctIn(t, dst, 9)
		gs := []int{groupOf[dst[0]], groupOf[dst[1]], groupOf[dst[2]]}
		slices.Sort(gs)
		assert.Equal(t, []int{0, 1, 2}, gs)
	}

	// More indices than groups: plain uniform
	dst = make([]int, 5)
	p.Sample(dst)
	assertDistinctIn(t, dst, 9)
}

func TestProsacSampler(t *testing.T) {
	const (
		N = 30
		m = 3
	)
	p := NewProsacSampler(testRand(3), N, m, 5000)
	dst := make([]int, m)

	// The first draws come from the best samples
	p.Sample(dst)
	assertDistinctIn(t, dst, p.PoolSize())
	assert.LessOrEqual(t, p.PoolSize(), m+1)

	prev := p.PoolSize()
	for it := 0; it < 6000; it++ {
		p.Sample(dst)
		assertDistinctIn(t, dst, p.PoolSize())
		assert.GreaterOrEqual(t, p.PoolSize(), prev)
		prev = p.PoolSize()
	}
	assert.Equal(t, N, p.PoolSize(), "pool grows to all samples")
}

func TestProsacSampler_AllSamples(t *testing.T) {
	p := NewProsacSampler(testRand(4), 3, 3, 100)
	dst := make([]int, 3)
	for it := 0; it < 10; it++ {
		p.Sample(dst)
		s := slices.Clone(dst)
		slices.Sort(s)
		assert.Equal(t, []int{0, 1, 2}, s)
	}
}
