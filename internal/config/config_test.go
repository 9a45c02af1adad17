package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 4, cfg.Analysis.TierCount)
	assert.Equal(t, 30, cfg.Analysis.LookbackPeriods)
	assert.Equal(t, 2.0, cfg.Analysis.VolumeThreshold)
	assert.Equal(t, 0.7, cfg.Analysis.CorrelationThreshold)
	assert.Equal(t, 0.6, cfg.Analysis.MinConfidence)
	assert.Equal(t, 100000.0, cfg.Backtest.InitialCapital)
	assert.Equal(t, 0.1, cfg.Backtest.MaxPosition)
	assert.Equal(t, 0.05, cfg.Backtest.StopLoss)
	assert.Equal(t, 0.15, cfg.Backtest.TakeProfit)
}

func TestValidateRejections(t *testing.T) {
	mutations := []struct {
		name  string
		field string
		apply func(*Config)
	}{
		{"tier count too low", "analysis.tier_count", func(c *Config) { c.Analysis.TierCount = 1 }},
		{"unknown tier mode", "analysis.tier_mode", func(c *Config) { c.Analysis.TierMode = "percentile" }},
		{"lookback too short", "analysis.lookback_periods", func(c *Config) { c.Analysis.LookbackPeriods = 1 }},
		{"volume threshold", "analysis.volume_threshold", func(c *Config) { c.Analysis.VolumeThreshold = 0 }},
		{"correlation range", "analysis.correlation_threshold", func(c *Config) { c.Analysis.CorrelationThreshold = 1.5 }},
		{"confidence range", "analysis.min_confidence", func(c *Config) { c.Analysis.MinConfidence = -0.1 }},
		{"weights do not sum", "analysis.weights", func(c *Config) { c.Analysis.VolumeWeight = 0.9 }},
		{"negative capital", "backtest.initial_capital", func(c *Config) { c.Backtest.InitialCapital = -1 }},
		{"base fraction", "backtest.base_fraction", func(c *Config) { c.Backtest.BaseFraction = 1.5 }},
		{"max position", "backtest.max_position", func(c *Config) { c.Backtest.MaxPosition = 0 }},
		{"stop loss", "backtest.stop_loss", func(c *Config) { c.Backtest.StopLoss = 1.0 }},
		{"take profit", "backtest.take_profit", func(c *Config) { c.Backtest.TakeProfit = 0 }},
		{"negative tier adjustment", "backtest.tier_size_adjustment", func(c *Config) {
			c.Backtest.TierSizeAdjustment = []float64{1.0, -0.5}
		}},
		{"workers", "optimize.workers", func(c *Config) { c.Optimize.Workers = 0 }},
	}

	for _, m := range mutations {
		t.Run(m.name, func(t *testing.T) {
			cfg := Default()
			m.apply(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			var ce *market.ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, m.field, ce.Field)
		})
	}
}

func TestWeightToleranceBoundary(t *testing.T) {
	cfg := Default()
	cfg.Analysis.VolumeWeight = 0.405 // sum 1.005, within 0.01
	assert.NoError(t, cfg.Validate())

	cfg.Analysis.VolumeWeight = 0.42 // sum 1.02, outside
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Analysis, cfg.Analysis)
}

func TestLoadYAMLOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tierflow.yaml")
	data := []byte("analysis:\n  tier_count: 6\n  volume_threshold: 2.5\nbacktest:\n  stop_loss: 0.08\n")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Analysis.TierCount)
	assert.Equal(t, 2.5, cfg.Analysis.VolumeThreshold)
	assert.Equal(t, 0.08, cfg.Backtest.StopLoss)
	// Untouched fields keep their defaults.
	assert.Equal(t, 0.7, cfg.Analysis.CorrelationThreshold)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: ["), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TIERFLOW_REDIS_ADDR", "redis.internal:6379")
	t.Setenv("TIERFLOW_VOLUME_THRESHOLD", "3.5")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "redis.internal:6379", cfg.Cache.Addr)
	assert.Equal(t, 3.5, cfg.Analysis.VolumeThreshold)
}

func TestTierAdjustment(t *testing.T) {
	b := BacktestConfig{TierSizeAdjustment: []float64{1.0, 0.9}}
	assert.Equal(t, 1.0, b.TierAdjustment(0))
	assert.Equal(t, 0.9, b.TierAdjustment(1))
	// Beyond the explicit table the default ramp applies.
	assert.InDelta(t, 0.7, b.TierAdjustment(2), 1e-9)
}
