// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package gowips

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Located radio source (access point, beacon).
// Treated as immutable once constructed; estimators keep a reference only.
type Source struct {
	ID          string        // Identifier like a BSSID
	Pos         Point         // Known position
	PosCov      mat.Symmetric // Position covariance (optional, dim x dim)
	TxPower     float64       // Received power at 1 m [dBm] (RSSI capable sources)
	PathLossExp float64       // Path loss exponent, 0 if the source has no RSSI parameters
}

// Create a ranging-only source
func NewSource(id string, pos Point, posCov mat.Symmetric) (*Source, error) {
	if posCov != nil {
		if n := posCov.SymmetricDim(); n != 2 && n != 3 {
			return nil, fmt.Errorf("%w: position covariance must be 2x2 or 3x3, got %dx%d", ErrInvalidArgument, n, n)
		}
	}
	return &Source{ID: id, Pos: pos, PosCov: posCov}, nil
}

// Create a source that also supports RSSI readings
func NewRssiSource(id string, pos Point, posCov mat.Symmetric, txPower, pathLossExp float64) (*Source, error) {
	if pathLossExp <= 0 {
		return nil, fmt.Errorf("%w: path loss exponent must be positive, got %f", ErrInvalidArgument, pathLossExp)
	}
	s, err := NewSource(id, pos, posCov)
	if err != nil {
		return nil, err
	}
	s.TxPower = txPower
	s.PathLossExp = pathLossExp
	return s, nil
}

// Whether RSSI readings of this source can be turned into distances
func (s *Source) IsRssiCapable() bool {
	return s.PathLossExp > 0
}

// Whether two sources are the same (same pointer, or same non-empty ID)
func (s *Source) SameAs(o *Source) bool {
	if s == nil || o == nil {
		return false
	}
	return s == o || (s.ID != "" && s.ID == o.ID)
}

func (s *Source) String() string {
	return fmt.Sprintf("%s(%s)", s.ID, s.Pos.String())
}

// Type of reading. The order is the priority used when sorting readings.
type ReadingType int

const (
	RANGING = ReadingType(iota)
	RANGING_AND_RSSI
	RSSI
)

func (t ReadingType) String() string {
	switch t {
	case RANGING:
		return "ranging"
	case RANGING_AND_RSSI:
		return "ranging_and_rssi"
	case RSSI:
		return "rssi"
	default:
		return "UNKNOWN!"
	}
}

func ParseReadingType(s string) (ReadingType, error) {
	for _, t := range []ReadingType{RANGING, RANGING_AND_RSSI, RSSI} {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown reading type %q", ErrInvalidArgument, s)
}

// One observation of a source
type Reading struct {
	Type        ReadingType
	Source      *Source
	Distance    float64 // [m] (RANGING, RANGING_AND_RSSI)
	DistanceStd float64 // [m], 0 if unknown
	Rssi        float64 // [dBm] (RSSI, RANGING_AND_RSSI)
	RssiStd     float64 // [dB], 0 if unknown
}

func NewRangingReading(src *Source, dist, distStd float64) (*Reading, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: reading source is nil", ErrInvalidArgument)
	}
	if dist < 0 || distStd < 0 {
		return nil, fmt.Errorf("%w: distance and its std must not be negative (%f, %f)", ErrInvalidArgument, dist, distStd)
	}
	return &Reading{Type: RANGING, Source: src, Distance: dist, DistanceStd: distStd}, nil
}

func NewRssiReading(src *Source, rssi, rssiStd float64) (*Reading, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: reading source is nil", ErrInvalidArgument)
	}
	if rssiStd < 0 {
		return nil, fmt.Errorf("%w: rssi std must not be negative (%f)", ErrInvalidArgument, rssiStd)
	}
	return &Reading{Type: RSSI, Source: src, Rssi: rssi, RssiStd: rssiStd}, nil
}

func NewRangingAndRssiReading(src *Source, dist, distStd, rssi, rssiStd float64) (*Reading, error) {
	r, err := NewRangingReading(src, dist, distStd)
	if err != nil {
		return nil, err
	}
	if rssiStd < 0 {
		return nil, fmt.Errorf("%w: rssi std must not be negative (%f)", ErrInvalidArgument, rssiStd)
	}
	r.Type = RANGING_AND_RSSI
	r.Rssi = rssi
	r.RssiStd = rssiStd
	return r, nil
}

// Whether the reading carries a distance
func (r *Reading) HasRanging() bool {
	return r.Type == RANGING || r.Type == RANGING_AND_RSSI
}

// Whether the reading carries an RSSI
func (r *Reading) HasRssi() bool {
	return r.Type == RSSI || r.Type == RANGING_AND_RSSI
}

// Readings collected at one unknown location
type Fingerprint struct {
	Readings []*Reading
}

func NewFingerprint(readings ...*Reading) *Fingerprint {
	return &Fingerprint{Readings: readings}
}

// Display fingerprint overview
func (p *Fingerprint) String() string {
	if len(p.Readings) == 0 {
		return "NO DATA"
	}
	var sb strings.Builder
	for _, r := range p.Readings {
		switch r.Type {
		case RANGING:
			fmt.Fprintf(&sb, "%-20s %-16s d=%10.3f std=%8.3f\n", r.Source.ID, r.Type, r.Distance, r.DistanceStd)
		case RSSI:
			fmt.Fprintf(&sb, "%-20s %-16s rssi=%8.2f std=%6.2f\n", r.Source.ID, r.Type, r.Rssi, r.RssiStd)
		default:
			fmt.Fprintf(&sb, "%-20s %-16s d=%10.3f std=%8.3f rssi=%8.2f std=%6.2f\n", r.Source.ID, r.Type, r.Distance, r.DistanceStd, r.Rssi, r.RssiStd)
		}
	}
	return sb.String()
}
