package signal

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/domain/smartmoney"
)

// Context carries the market evidence a signal is judged against: the
// destination tier's volume surge and cross-tier correlation at emission
// time, plus the smart-money patterns detected for assets in that tier.
type Context struct {
	VolumeZScore float64
	Correlation  float64
	TierPatterns []smartmoney.Pattern
}

// Checks records the outcome of each independent validation check.
type Checks struct {
	Volume      bool `json:"volume"`
	Correlation bool `json:"correlation"`
	Pattern     bool `json:"pattern"`
}

// Passed reports the strict conjunction: every check must hold. No partial
// credit.
func (c Checks) Passed() bool {
	return c.Volume && c.Correlation && c.Pattern
}

// Params configure the validation gate.
type Params struct {
	VolumeThreshold      float64
	CorrelationThreshold float64
	MinPatternStrength   float64
}

// Validator applies the multi-check gate before a signal is considered
// actionable. Rejected signals are dropped, never retried; the detector
// regenerates them naturally if conditions persist.
type Validator struct {
	params Params
}

// NewValidator creates a validator with the given gate parameters.
func NewValidator(params Params) *Validator {
	return &Validator{params: params}
}

// Validate applies all checks and reports whether the signal is actionable.
func (v *Validator) Validate(sig rotation.Signal, ctx Context) bool {
	checks := v.Evaluate(sig, ctx)
	if !checks.Passed() {
		log.Debug().
			Str("signal_id", sig.ID).
			Int("from_tier", sig.FromTier).
			Int("to_tier", sig.ToTier).
			Bool("volume_ok", checks.Volume).
			Bool("correlation_ok", checks.Correlation).
			Bool("pattern_ok", checks.Pattern).
			Msg("Signal rejected by validation gate")
		return false
	}
	return true
}

// Evaluate runs each check independently and returns the full breakdown.
func (v *Validator) Evaluate(sig rotation.Signal, ctx Context) Checks {
	return Checks{
		Volume:      ctx.VolumeZScore > v.params.VolumeThreshold,
		Correlation: math.Abs(ctx.Correlation) >= v.params.CorrelationThreshold,
		Pattern:     v.patternConfirmed(ctx.TierPatterns),
	}
}

// patternConfirmed looks for a supportive accumulation pattern in the
// destination tier. A zero strength floor accepts any accumulation evidence;
// with no patterns at all the check fails.
func (v *Validator) patternConfirmed(patterns []smartmoney.Pattern) bool {
	for _, p := range patterns {
		if p.Type == smartmoney.Accumulation && p.Strength >= v.params.MinPatternStrength {
			return true
		}
	}
	return false
}
