package optimize

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Candidate is one point in the threshold search space.
type Candidate struct {
	VolumeThreshold      float64 `json:"volume_threshold"`
	CorrelationThreshold float64 `json:"correlation_threshold"`
	MinConfidence        float64 `json:"min_confidence"`
	BaseFraction         float64 `json:"base_fraction"`
}

// Space is a discretized grid over the tunable thresholds of the classifier/
// detector/validator chain and position sizing.
type Space struct {
	VolumeThresholds      []float64 `yaml:"volume_thresholds"`
	CorrelationThresholds []float64 `yaml:"correlation_thresholds"`
	MinConfidences        []float64 `yaml:"min_confidences"`
	BaseFractions         []float64 `yaml:"base_fractions"`
}

// DefaultSpace returns the standard sweep ranges.
func DefaultSpace() Space {
	return Space{
		VolumeThresholds:      []float64{1.5, 1.75, 2.0, 2.25, 2.5, 2.75},
		CorrelationThresholds: []float64{0.5, 0.6, 0.7, 0.8},
		MinConfidences:        []float64{0.4, 0.5, 0.6, 0.7},
		BaseFractions:         []float64{0.05, 0.075, 0.1, 0.125, 0.15},
	}
}

// LoadSpace reads a sweep grid from a YAML file. Axes left empty fall back
// to the default ranges.
func LoadSpace(path string) (Space, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Space{}, fmt.Errorf("failed to read space file %s: %w", path, err)
	}
	space := DefaultSpace()
	if err := yaml.Unmarshal(data, &space); err != nil {
		return Space{}, fmt.Errorf("failed to parse space file %s: %w", path, err)
	}
	return space, nil
}

// Candidates expands the grid into the full cartesian product, in a fixed
// deterministic order.
func (s Space) Candidates() []Candidate {
	var out []Candidate
	for _, vt := range s.VolumeThresholds {
		for _, ct := range s.CorrelationThresholds {
			for _, mc := range s.MinConfidences {
				for _, bf := range s.BaseFractions {
					out = append(out, Candidate{
						VolumeThreshold:      vt,
						CorrelationThreshold: ct,
						MinConfidence:        mc,
						BaseFraction:         bf,
					})
				}
			}
		}
	}
	return out
}
