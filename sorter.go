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

	"golang.org/x/exp/slices"
)

// Reading with its quality score
type ScoredReading struct {
	Reading *Reading
	Score   float64
}

// Source with its quality score and its readings, best first
type SourceReadings struct {
	Source   *Source
	Score    float64
	Readings []ScoredReading
}

// ReadingSorter groups the readings of a fingerprint by source and orders
// them by quality:
//   - sources by descending score
//   - readings of a source by type (RANGING, RANGING_AND_RSSI, RSSI), then by descending score
//
// Both sorts are stable. Inputs are read only.
type ReadingSorter struct {
	sources   []*Source
	fp        *Fingerprint
	srcScores []float64
	rdgScores []float64
	sorted    []SourceReadings
}

// Create a sorter. Score slices may be nil (all scores equal); when given,
// their lengths must match the number of sources and readings.
func NewReadingSorter(sources []*Source, fp *Fingerprint, srcScores, rdgScores []float64) (*ReadingSorter, error) {
	if fp == nil {
		return nil, fmt.Errorf("%w: fingerprint is nil", ErrInvalidArgument)
	}
	if srcScores != nil && len(srcScores) != len(sources) {
		return nil, fmt.Errorf("%w: %d source quality scores for %d sources", ErrInvalidArgument, len(srcScores), len(sources))
	}
	if rdgScores != nil && len(rdgScores) != len(fp.Readings) {
		return nil, fmt.Errorf("%w: %d reading quality scores for %d readings", ErrInvalidArgument, len(rdgScores), len(fp.Readings))
	}
	return &ReadingSorter{
		sources:   sources,
		fp:        fp,
		srcScores: srcScores,
		rdgScores: rdgScores,
	}, nil
}

// Build the sorted structure
func (p *ReadingSorter) Sort() {

	// Group readings by source, keeping input order.
	// A reading belongs to the first source it matches.
	sorted := make([]SourceReadings, 0, len(p.sources))
	taken := make([]bool, len(p.fp.Readings))
	for i, src := range p.sources {
		if src == nil {
			continue
		}
		entry := SourceReadings{Source: src, Score: scoreAt(p.srcScores, i)}
		for j, r := range p.fp.Readings {
			if taken[j] || r == nil || !src.SameAs(r.Source) {
				continue
			}
			taken[j] = true
			entry.Readings = append(entry.Readings, ScoredReading{Reading: r, Score: scoreAt(p.rdgScores, j)})
		}
		// Skip sources without readings
		if len(entry.Readings) == 0 {
			continue
		}
		slices.SortStableFunc(entry.Readings, compareScoredReadings)
		sorted = append(sorted, entry)
	}

	slices.SortStableFunc(sorted, func(a, b SourceReadings) int {
		return cmp.Compare(b.Score, a.Score)
	})

	PrintD(3, "\tsorted %d sources, %d readings\n", len(sorted), len(p.fp.Readings))
	p.sorted = sorted
}

// Sorted sources and readings. nil before Sort.
func (p *ReadingSorter) SortedSourcesAndReadings() []SourceReadings {
	return p.sorted
}

// Type order first, then descending score
func compareScoredReadings(a, b ScoredReading) int {
	if c := cmp.Compare(a.Reading.Type, b.Reading.Type); c != 0 {
		return c
	}
	return cmp.Compare(b.Score, a.Score)
}

func scoreAt(scores []float64, i int) float64 {
	if scores == nil || i >= len(scores) {
		return 0
	}
	return scores[i]
}
