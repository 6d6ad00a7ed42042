// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"math"

	"golang.org/x/exp/rand"
)

// Sampler draws the indices of a preliminary subset
type Sampler interface {
	// Fill dst with distinct sample indices
	Sample(dst []int)
}

// Uniform sampling without replacement.
// When groups are given (sample indices per source) and there are at least
// as many groups as requested indices, every index comes from a different group.
type UniformSampler struct {
	rnd    *rand.Rand
	n      int
	groups [][]int
	perm   []int
}

func NewUniformSampler(rnd *rand.Rand, n int, groups [][]int) *UniformSampler {
	perm := make([]int, max(n, len(groups)))
	return &UniformSampler{rnd: rnd, n: n, groups: groups, perm: perm}
}

func (p *UniformSampler) Sample(dst []int) {
	k := len(dst)
	if len(p.groups) >= k {
		p.partialShuffle(len(p.groups), k)
		for i := 0; i < k; i++ {
			g := p.groups[p.perm[i]]
			dst[i] = g[p.rnd.Intn(len(g))]
		}
		return
	}
	p.partialShuffle(p.n, k)
	copy(dst, p.perm[:k])
}

// First k elements of perm become a random k-subset of [0, n)
func (p *UniformSampler) partialShuffle(n, k int) {
	for i := 0; i < n; i++ {
		p.perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + p.rnd.Intn(n-i)
		p.perm[i], p.perm[j] = p.perm[j], p.perm[i]
	}
}

// Progressive sampling (PROSAC, Chum & Matas 2005).
// Samples are assumed ordered by decreasing quality: draws start from the
// best m samples and the pool grows towards all N.
type ProsacSampler struct {
	rnd     *rand.Rand
	N       int     // Number of samples
	m       int     // Subset size
	n       int     // Current pool size
	t       int     // Number of draws
	tn      float64 // T_n
	tnPrime int     // T'_n
	uniform *UniformSampler
}

// tN: number of draws after which PROSAC degenerates to uniform sampling
func NewProsacSampler(rnd *rand.Rand, N, m, tN int) *ProsacSampler {
	tn := float64(tN)
	for i := 0; i < m; i++ {
		tn *= float64(m-i) / float64(N-i)
	}
	return &ProsacSampler{
		rnd:     rnd,
		N:       N,
		m:       m,
		n:       m,
		tn:      tn,
		tnPrime: 1,
		uniform: NewUniformSampler(rnd, N, nil),
	}
}

func (p *ProsacSampler) Sample(dst []int) {
	p.t++

	// Grow the pool
	for p.t == p.tnPrime && p.n < p.N {
		tn1 := p.tn * float64(p.n+1) / float64(p.n+1-p.m)
		p.tnPrime += int(math.Ceil(tn1 - p.tn))
		p.tn = tn1
		p.n++
	}

	if p.tnPrime < p.t || p.n == p.m {
		// m from the current pool
		p.uniform.partialShuffle(p.n, p.m)
		copy(dst, p.uniform.perm[:p.m])
		return
	}

	// m-1 from the pool without its last sample, plus the last sample
	p.uniform.partialShuffle(p.n-1, p.m-1)
	copy(dst, p.uniform.perm[:p.m-1])
	dst[p.m-1] = p.n - 1
}

// Current pool size
func (p *ProsacSampler) PoolSize() int {
	return p.n
}
