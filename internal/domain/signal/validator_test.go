package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/domain/smartmoney"
)

func testSignal() rotation.Signal {
	return rotation.Signal{
		ID:         "sig-1",
		Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		FromTier:   0,
		ToTier:     1,
		Confidence: 0.8,
	}
}

func accumulation(strength float64) smartmoney.Pattern {
	return smartmoney.Pattern{Asset: "btc", Type: smartmoney.Accumulation, Strength: strength}
}

func distribution(strength float64) smartmoney.Pattern {
	return smartmoney.Pattern{Asset: "btc", Type: smartmoney.Distribution, Strength: strength}
}

func TestEvaluateAllChecksPass(t *testing.T) {
	v := NewValidator(Params{VolumeThreshold: 2.0, CorrelationThreshold: 0.7, MinPatternStrength: 0.5})

	checks := v.Evaluate(testSignal(), Context{
		VolumeZScore: 3.1,
		Correlation:  0.85,
		TierPatterns: []smartmoney.Pattern{accumulation(0.6)},
	})
	assert.True(t, checks.Volume)
	assert.True(t, checks.Correlation)
	assert.True(t, checks.Pattern)
	assert.True(t, checks.Passed())
}

func TestEvaluateSingleFailureRejects(t *testing.T) {
	v := NewValidator(Params{VolumeThreshold: 2.0, CorrelationThreshold: 0.7, MinPatternStrength: 0.5})
	good := Context{
		VolumeZScore: 3.1,
		Correlation:  0.85,
		TierPatterns: []smartmoney.Pattern{accumulation(0.6)},
	}

	// No partial credit: flipping any one input fails the conjunction.
	lowVolume := good
	lowVolume.VolumeZScore = 2.0 // threshold is strict
	assert.False(t, v.Evaluate(testSignal(), lowVolume).Passed())

	lowCorr := good
	lowCorr.Correlation = 0.69
	assert.False(t, v.Evaluate(testSignal(), lowCorr).Passed())

	weakPattern := good
	weakPattern.TierPatterns = []smartmoney.Pattern{accumulation(0.4)}
	assert.False(t, v.Evaluate(testSignal(), weakPattern).Passed())

	noPatterns := good
	noPatterns.TierPatterns = nil
	assert.False(t, v.Evaluate(testSignal(), noPatterns).Passed())
}

func TestNegativeCorrelationCounts(t *testing.T) {
	v := NewValidator(Params{VolumeThreshold: 2.0, CorrelationThreshold: 0.7})
	checks := v.Evaluate(testSignal(), Context{
		VolumeZScore: 3.0,
		Correlation:  -0.9,
		TierPatterns: []smartmoney.Pattern{accumulation(0.5)},
	})
	assert.True(t, checks.Correlation)
}

func TestDistributionDoesNotConfirm(t *testing.T) {
	v := NewValidator(Params{VolumeThreshold: 2.0, CorrelationThreshold: 0.7})
	checks := v.Evaluate(testSignal(), Context{
		VolumeZScore: 3.0,
		Correlation:  0.9,
		TierPatterns: []smartmoney.Pattern{distribution(0.95)},
	})
	assert.False(t, checks.Pattern)

	// A single accumulation alongside distributions is enough.
	checks = v.Evaluate(testSignal(), Context{
		VolumeZScore: 3.0,
		Correlation:  0.9,
		TierPatterns: []smartmoney.Pattern{distribution(0.95), accumulation(0.1)},
	})
	assert.True(t, checks.Pattern)
}

func TestValidateMatchesEvaluate(t *testing.T) {
	v := NewValidator(Params{VolumeThreshold: 2.0, CorrelationThreshold: 0.7})
	ctx := Context{
		VolumeZScore: 3.0,
		Correlation:  0.9,
		TierPatterns: []smartmoney.Pattern{accumulation(0.5)},
	}
	assert.True(t, v.Validate(testSignal(), ctx))

	ctx.VolumeZScore = 1.0
	assert.False(t, v.Validate(testSignal(), ctx))
}
