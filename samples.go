// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"cmp"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// Build the samples of the fingerprint in sampling order.
// groups[i] holds the sample indices of the i-th source in sorter order.
func (e *Estimator) buildSamples() ([]Sample, [][]int, error) {

	var srcScores, rdgScores []float64
	if e.method.UsesQualityScores() {
		srcScores, rdgScores = e.srcScores, e.rdgScores
	}
	sorter, err := NewReadingSorter(e.sources, e.fp, srcScores, rdgScores)
	if err != nil {
		return nil, nil, fmt.Errorf("NewReadingSorter() failed, err=%w", err)
	}
	sorter.Sort()

	// Samples per source, best reading first
	var perSrc [][]Sample
	for _, sr := range sorter.SortedSourcesAndReadings() {
		var ss []Sample
		for _, r := range sr.Readings {
			for _, s := range e.readingSamples(sr.Source, r.Reading) {
				s.Score = sr.Score + r.Score
				ss = append(ss, s)
			}
		}
		if len(ss) > 0 {
			perSrc = append(perSrc, ss)
		}
	}

	type tagged struct {
		smp Sample
		grp int
	}
	var order []tagged
	if e.evenly {
		// Round robin across sources
		for k := 0; ; k++ {
			added := false
			for g, ss := range perSrc {
				if k < len(ss) {
					order = append(order, tagged{ss[k], g})
					added = true
				}
			}
			if !added {
				break
			}
		}
	} else {
		for g, ss := range perSrc {
			for _, s := range ss {
				order = append(order, tagged{s, g})
			}
		}
		if e.method.UsesQualityScores() {
			slices.SortStableFunc(order, func(a, b tagged) int {
				return cmp.Compare(b.smp.Score, a.smp.Score)
			})
		}
	}

	smps := make([]Sample, len(order))
	groups := make([][]int, len(perSrc))
	for i, t := range order {
		smps[i] = t.smp
		groups[t.grp] = append(groups[t.grp], i)
	}

	if DBG_ >= 3 {
		for i, s := range smps {
			PrintA("\tsmp[%2d] %-20s d=%10.3f std=%8.3f score=%8.3f rssi=%v\n", i, s.Source.ID, s.Dist, s.Std, s.Score, s.Rssi)
		}
	}
	return smps, groups, nil
}

// Readings that match a source and yield at least one sample, and the
// number of distinct sources among them
func (e *Estimator) resolvableReadings() (readings, sources int) {
	seen := make(map[*Source]bool)
	for _, r := range e.fp.Readings {
		if r == nil {
			continue
		}
		src := e.findSource(r.Source)
		if src == nil || len(e.readingSamples(src, r)) == 0 {
			continue
		}
		readings++
		if !seen[src] {
			seen[src] = true
			sources++
		}
	}
	return readings, sources
}

func (e *Estimator) findSource(s *Source) *Source {
	for _, src := range e.sources {
		if src.SameAs(s) {
			return src
		}
	}
	return nil
}

// Samples a reading contributes for the estimator kind
func (e *Estimator) readingSamples(src *Source, r *Reading) []Sample {
	var ranging, rssi bool
	switch e.kind {
	case EST_RANGING:
		ranging = r.HasRanging()
	case EST_RSSI:
		rssi = r.HasRssi()
	case EST_RANGING_AND_RSSI:
		ranging = r.Type == RANGING_AND_RSSI
		rssi = ranging
	case EST_MIXED:
		ranging = r.HasRanging()
		rssi = r.HasRssi()
	}

	var ss []Sample
	if ranging {
		ss = append(ss, Sample{
			Pos:     src.Pos,
			Dist:    r.Distance,
			Std:     e.sampleStd(src, r.DistanceStd),
			Source:  src,
			Reading: r,
		})
	}
	if rssi {
		// Sources without RSSI parameters yield no sample
		if d, std, ok := r.RssiDistance(); ok && src.IsRssiCapable() {
			ss = append(ss, Sample{
				Pos:     src.Pos,
				Dist:    d,
				Std:     e.sampleStd(src, std),
				Source:  src,
				Reading: r,
				Rssi:    true,
			})
		}
	}
	return ss
}

// Distance std of a sample
// - the reading std, or the fallback std if unknown
// - plus the mean variance of the source position when enabled
func (e *Estimator) sampleStd(src *Source, std float64) float64 {
	if std <= 0 {
		std = e.fallbackStd
	}
	if !e.srcCovUsed {
		return std
	}
	v := SQ(std)
	if src.PosCov != nil {
		v += sourceVariance(src.PosCov, e.dim)
	} else {
		v += SQ(e.fallbackStd)
	}
	return math.Sqrt(v)
}

// Mean variance over the axes a position covariance shares with dim
func sourceVariance(cov mat.Symmetric, dim Dim) float64 {
	n := min(cov.SymmetricDim(), int(dim))
	if n == 0 {
		return 0
	}
	tr := 0.0
	for i := 0; i < n; i++ {
		tr += cov.At(i, i)
	}
	return tr / float64(n)
}
