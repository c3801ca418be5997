package forecast

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ErrInvalidArtifact is returned for a model artifact that does not match
// the feature layout.
var ErrInvalidArtifact = errors.New("invalid model artifact")

// Artifact is the exported training state: the fitted Min-Max scaler and an
// optional linear inference head.
type Artifact struct {
	Columns      []string  `yaml:"columns"`
	FeatureRange []float64 `yaml:"feature_range"`
	DataMin      []float64 `yaml:"data_min"`
	DataMax      []float64 `yaml:"data_max"`
	Weights      []float64 `yaml:"weights,omitempty"`
	Bias         float64   `yaml:"bias,omitempty"`
}

// LoadArtifact reads and validates a YAML artifact from path.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseArtifact(data)
}

// ParseArtifact decodes a YAML artifact. The column order must equal
// Columns exactly.
func ParseArtifact(data []byte) (*Artifact, error) {
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArtifact, err)
	}
	if !slices.Equal(a.Columns, Columns) {
		return nil, fmt.Errorf("%w: column order %v does not match %v", ErrInvalidArtifact, a.Columns, Columns)
	}
	if len(a.FeatureRange) == 0 {
		a.FeatureRange = []float64{0, 1}
	}
	if len(a.FeatureRange) != 2 {
		return nil, fmt.Errorf("%w: feature_range must have two values", ErrInvalidArtifact)
	}
	if len(a.DataMin) != len(Columns) || len(a.DataMax) != len(Columns) {
		return nil, fmt.Errorf("%w: scaler has %d/%d values, want %d", ErrInvalidArtifact, len(a.DataMin), len(a.DataMax), len(Columns))
	}
	if len(a.Weights) != 0 && len(a.Weights) != len(Columns) {
		return nil, fmt.Errorf("%w: %d weights, want %d", ErrInvalidArtifact, len(a.Weights), len(Columns))
	}
	return &a, nil
}

// Scaler builds the fitted scaler of the artifact.
func (a *Artifact) Scaler() (*Scaler, error) {
	return NewScaler(a.DataMin, a.DataMax, a.FeatureRange[0], a.FeatureRange[1])
}

// LinearModel builds the linear inference head of the artifact.
func (a *Artifact) LinearModel() (*LinearModel, error) {
	if len(a.Weights) == 0 {
		return nil, fmt.Errorf("%w: no linear weights", ErrInvalidArtifact)
	}
	return NewLinearModel(a.Weights, a.Bias), nil
}

// Scaler is a fitted per-column Min-Max scaler. Columns with a zero data
// range are treated as having range 1.
type Scaler struct {
	dataMin []float64
	scale   []float64
	lo      float64
}

// NewScaler wraps bounds fitted at training time.
func NewScaler(dataMin, dataMax []float64, lo, hi float64) (*Scaler, error) {
	if len(dataMin) != len(dataMax) {
		return nil, fmt.Errorf("%w: data_min and data_max differ in length", ErrInvalidArtifact)
	}
	if hi <= lo {
		return nil, fmt.Errorf("%w: empty feature range [%g, %g]", ErrInvalidArtifact, lo, hi)
	}

	scale := make([]float64, len(dataMin))
	for i := range dataMin {
		span := dataMax[i] - dataMin[i]
		if span < 0 {
			return nil, fmt.Errorf("%w: column %d has data_max < data_min", ErrInvalidArtifact, i)
		}
		if span == 0 {
			span = 1
		}
		scale[i] = (hi - lo) / span
	}
	return &Scaler{
		dataMin: slices.Clone(dataMin),
		scale:   scale,
		lo:      lo,
	}, nil
}

// Width is the number of columns the scaler was fitted on.
func (s *Scaler) Width() int { return len(s.scale) }

func (s *Scaler) Transform(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = (v-s.dataMin[i])*s.scale[i] + s.lo
	}
	return out
}

func (s *Scaler) Inverse(vec []float64) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = s.InverseAt(i, v)
	}
	return out
}

// InverseAt unscales a single value of column i.
func (s *Scaler) InverseAt(i int, v float64) float64 {
	return (v-s.lo)/s.scale[i] + s.dataMin[i]
}
