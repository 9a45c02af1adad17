package rotation

import (
	"fmt"
	"math"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

// weightSumTolerance bounds how far confidence weights may drift from 1.0.
const weightSumTolerance = 0.01

// Subscores are the normalized inputs to the confidence model. Combine clamps
// each into [0,1] before weighting.
type Subscores struct {
	Volume      float64
	Correlation float64
	Pattern     float64
}

// Weights allocates confidence across the three sub-scores. Must sum to 1.0
// within tolerance.
type Weights struct {
	Volume      float64
	Correlation float64
	Pattern     float64
}

// Validate enforces the weight invariant: non-negative components summing to
// 1.0 within tolerance.
func (w Weights) Validate() error {
	if w.Volume < 0 || w.Correlation < 0 || w.Pattern < 0 {
		return &market.ConfigError{Field: "confidence_weights",
			Reason: fmt.Sprintf("negative weight in %+v", w)}
	}
	sum := w.Volume + w.Correlation + w.Pattern
	if math.Abs(sum-1.0) > weightSumTolerance {
		return &market.ConfigError{Field: "confidence_weights",
			Reason: fmt.Sprintf("sum %.3f outside tolerance %.2f of 1.0", sum, weightSumTolerance)}
	}
	return nil
}

// Combine computes the weighted confidence from pre-normalized sub-scores.
// Inputs are clamped to [0,1] and the result is clipped to [0,1], so the
// output is always a valid confidence regardless of upstream noise.
func Combine(s Subscores, w Weights) float64 {
	c := w.Volume*clamp01(s.Volume) +
		w.Correlation*clamp01(s.Correlation) +
		w.Pattern*clamp01(s.Pattern)
	return clamp01(c)
}
