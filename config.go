// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

// Scenario files: sources, their readings and estimator settings in YAML.

package gowips

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Scenario describes one estimation problem
type Scenario struct {
	Dim       Dim               `yaml:"dim"`
	Kind      string            `yaml:"kind,omitempty"`
	Method    string            `yaml:"method,omitempty"`
	Truth     []float64         `yaml:"truth,omitempty"` // True position, if known
	Estimator EstimatorSettings `yaml:"estimator,omitempty"`
	Sources   []SourceConfig    `yaml:"sources"`
}

// Estimator overrides. Unset fields keep the defaults of NewEstimatorOpt.
type EstimatorSettings struct {
	Threshold     *float64  `yaml:"threshold,omitempty"`
	Confidence    *float64  `yaml:"confidence,omitempty"`
	MaxIter       *int      `yaml:"max_iterations,omitempty"`
	ProgressDelta *float64  `yaml:"progress_delta,omitempty"`
	ResultRefined *bool     `yaml:"result_refined,omitempty"`
	CovKept       *bool     `yaml:"covariance_kept,omitempty"`
	LinearSolver  *bool     `yaml:"linear_solver,omitempty"`
	Homogeneous   *bool     `yaml:"homogeneous,omitempty"`
	PrelimRefined *bool     `yaml:"preliminary_refined,omitempty"`
	SubsetSize    *int      `yaml:"preliminary_subset_size,omitempty"`
	Evenly        *bool     `yaml:"evenly_distribute,omitempty"`
	SrcCovUsed    *bool     `yaml:"source_covariance_used,omitempty"`
	FallbackStd   *float64  `yaml:"fallback_distance_std,omitempty"`
	InitPos       []float64 `yaml:"initial_position,omitempty"`
}

// Located source and the readings taken of it
type SourceConfig struct {
	ID          string          `yaml:"id,omitempty"`
	Pos         []float64       `yaml:"pos"`
	Cov         [][]float64     `yaml:"cov,omitempty"`
	TxPower     *float64        `yaml:"tx_power,omitempty"`
	PathLossExp float64         `yaml:"path_loss_exp,omitempty"`
	Score       *float64        `yaml:"score,omitempty"`
	Readings    []ReadingConfig `yaml:"readings,omitempty"`
}

type ReadingConfig struct {
	Type        string   `yaml:"type"`
	Distance    float64  `yaml:"distance,omitempty"`
	DistanceStd float64  `yaml:"distance_std,omitempty"`
	Rssi        float64  `yaml:"rssi,omitempty"`
	RssiStd     float64  `yaml:"rssi_std,omitempty"`
	Score       *float64 `yaml:"score,omitempty"`
}

// LoadScenario reads and validates a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scenario file not found: %s", path)
		}
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML
func ParseScenario(data []byte) (*Scenario, error) {
	sc := Scenario{Dim: DIM2}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// SaveScenario writes a scenario to a YAML file
func SaveScenario(path string, sc *Scenario) error {
	data, err := yaml.Marshal(sc)
	if err != nil {
		return fmt.Errorf("marshaling scenario YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing scenario file: %w", err)
	}
	return nil
}

// Validate checks the fields the estimator cannot check itself.
// Sources without an ID get a random one.
func (sc *Scenario) Validate() error {
	if !sc.Dim.IsValid() {
		return fmt.Errorf("%w: dim must be 2 or 3, got %d", ErrInvalidArgument, sc.Dim)
	}
	if sc.Kind != "" {
		if _, err := ParseKind(sc.Kind); err != nil {
			return err
		}
	}
	if sc.Method != "" {
		if _, err := ParseMethod(sc.Method); err != nil {
			return err
		}
	}
	n := int(sc.Dim)
	if sc.Truth != nil && len(sc.Truth) != n {
		return fmt.Errorf("%w: truth must have %d coordinates", ErrInvalidArgument, n)
	}
	if sc.Estimator.InitPos != nil && len(sc.Estimator.InitPos) != n {
		return fmt.Errorf("%w: estimator.initial_position must have %d coordinates", ErrInvalidArgument, n)
	}
	if len(sc.Sources) == 0 {
		return fmt.Errorf("%w: at least one source must be defined", ErrInvalidArgument)
	}

	ids := make(map[string]int)
	for i := range sc.Sources {
		src := &sc.Sources[i]
		if src.ID == "" {
			src.ID = uuid.NewString()
		}
		if j, dup := ids[src.ID]; dup {
			return fmt.Errorf("%w: sources[%d] and sources[%d] share id %q", ErrInvalidArgument, j, i, src.ID)
		}
		ids[src.ID] = i
		if len(src.Pos) != n {
			return fmt.Errorf("%w: sources[%d].pos must have %d coordinates", ErrInvalidArgument, i, n)
		}
		if src.Cov != nil {
			if len(src.Cov) != n {
				return fmt.Errorf("%w: sources[%d].cov must be %dx%d", ErrInvalidArgument, i, n, n)
			}
			for _, row := range src.Cov {
				if len(row) != n {
					return fmt.Errorf("%w: sources[%d].cov must be %dx%d", ErrInvalidArgument, i, n, n)
				}
			}
		}
		for j, r := range src.Readings {
			t, err := ParseReadingType(r.Type)
			if err != nil {
				return fmt.Errorf("sources[%d].readings[%d]: %w", i, j, err)
			}
			if t != RANGING && (src.TxPower == nil || src.PathLossExp <= 0) {
				return fmt.Errorf("%w: sources[%d].readings[%d] has rssi but the source has no tx_power/path_loss_exp", ErrInvalidArgument, i, j)
			}
		}
	}
	return nil
}

// Build creates the sources and the fingerprint. Quality scores are
// returned only when at least one is given (missing ones count as 0).
func (sc *Scenario) Build() (sources []*Source, fp *Fingerprint, srcScores, rdgScores []float64, err error) {

	var readings []*Reading
	var hasSrcScore, hasRdgScore bool
	for i, c := range sc.Sources {
		pos := PointFromVec(c.Pos, sc.Dim)
		var cov mat.Symmetric
		if c.Cov != nil {
			n := len(c.Cov)
			sd := mat.NewSymDense(n, nil)
			for r := 0; r < n; r++ {
				for k := r; k < n; k++ {
					sd.SetSym(r, k, 0.5*(c.Cov[r][k]+c.Cov[k][r]))
				}
			}
			cov = sd
		}

		var src *Source
		if c.TxPower != nil && c.PathLossExp > 0 {
			src, err = NewRssiSource(c.ID, pos, cov, *c.TxPower, c.PathLossExp)
		} else {
			src, err = NewSource(c.ID, pos, cov)
		}
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		sources = append(sources, src)
		srcScores = append(srcScores, scoreOf(c.Score))
		hasSrcScore = hasSrcScore || c.Score != nil

		for j, rc := range c.Readings {
			r, err := rc.build(src)
			if err != nil {
				return nil, nil, nil, nil, fmt.Errorf("sources[%d].readings[%d]: %w", i, j, err)
			}
			readings = append(readings, r)
			rdgScores = append(rdgScores, scoreOf(rc.Score))
			hasRdgScore = hasRdgScore || rc.Score != nil
		}
	}
	if !hasSrcScore {
		srcScores = nil
	}
	if !hasRdgScore {
		rdgScores = nil
	}
	return sources, NewFingerprint(readings...), srcScores, rdgScores, nil
}

func (rc ReadingConfig) build(src *Source) (*Reading, error) {
	t, err := ParseReadingType(rc.Type)
	if err != nil {
		return nil, err
	}
	switch t {
	case RANGING:
		return NewRangingReading(src, rc.Distance, rc.DistanceStd)
	case RSSI:
		return NewRssiReading(src, rc.Rssi, rc.RssiStd)
	default:
		return NewRangingAndRssiReading(src, rc.Distance, rc.DistanceStd, rc.Rssi, rc.RssiStd)
	}
}

func scoreOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// EstimatorOpt builds estimator options from the scenario
func (sc *Scenario) EstimatorOpt() (*EstimatorOpt, error) {
	opt := NewEstimatorOpt()
	opt.Dim = sc.Dim
	if sc.Kind != "" {
		k, err := ParseKind(sc.Kind)
		if err != nil {
			return nil, err
		}
		opt.Kind = k
	}
	if sc.Method != "" {
		m, err := ParseMethod(sc.Method)
		if err != nil {
			return nil, err
		}
		opt.Method = m
	}

	var err error
	opt.Sources, opt.Fingerprint, opt.SrcScores, opt.RdgScores, err = sc.Build()
	if err != nil {
		return nil, fmt.Errorf("Build() failed, err=%w", err)
	}
	// Equal quality when the file gives none
	if opt.Method.UsesQualityScores() {
		if opt.SrcScores == nil {
			opt.SrcScores = make([]float64, len(opt.Sources))
		}
		if opt.RdgScores == nil {
			opt.RdgScores = make([]float64, len(opt.Fingerprint.Readings))
		}
	}

	st := &sc.Estimator
	if st.Threshold != nil {
		opt.Threshold = st.Threshold
	}
	setIf(&opt.Confidence, st.Confidence)
	setIf(&opt.MaxIter, st.MaxIter)
	setIf(&opt.ProgressDelta, st.ProgressDelta)
	setIf(&opt.ResultRefined, st.ResultRefined)
	setIf(&opt.CovKept, st.CovKept)
	setIf(&opt.LinearSolver, st.LinearSolver)
	setIf(&opt.Homogeneous, st.Homogeneous)
	setIf(&opt.PrelimRefined, st.PrelimRefined)
	setIf(&opt.SubsetSize, st.SubsetSize)
	setIf(&opt.Evenly, st.Evenly)
	setIf(&opt.SrcCovUsed, st.SrcCovUsed)
	setIf(&opt.FallbackStd, st.FallbackStd)
	if st.InitPos != nil {
		p := PointFromVec(st.InitPos, sc.Dim)
		opt.InitPos = &p
	}
	return opt, nil
}

// True position, nil if unknown
func (sc *Scenario) TruePosition() *Point {
	if sc.Truth == nil {
		return nil
	}
	p := PointFromVec(sc.Truth, sc.Dim)
	return &p
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
