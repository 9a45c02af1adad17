package config

import (
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

// WeightSumTolerance bounds how far confidence weights may drift from 1.0.
const WeightSumTolerance = 0.01

// Config is the single run configuration shared across the pipeline,
// backtester, and optimizer. Loaded once per run; value-copied into optimizer
// candidates so no instance is ever shared.
type Config struct {
	Analysis AnalysisConfig `yaml:"analysis"`
	Backtest BacktestConfig `yaml:"backtest"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor"`
}

// AnalysisConfig drives tier classification and rotation detection.
type AnalysisConfig struct {
	TierCount            int     `yaml:"tier_count"`
	TierMode             string  `yaml:"tier_mode"` // "equal-count" or "cap-share"
	LookbackPeriods      int     `yaml:"lookback_periods"`
	VolumeThreshold      float64 `yaml:"volume_threshold"`
	CorrelationThreshold float64 `yaml:"correlation_threshold"`
	MinConfidence        float64 `yaml:"min_confidence"`
	SmartMoneyLookback   int     `yaml:"smart_money_lookback"`

	// Confidence sub-score weights; must sum to 1.0 within tolerance.
	VolumeWeight      float64 `yaml:"volume_weight"`
	CorrelationWeight float64 `yaml:"correlation_weight"`
	PatternWeight     float64 `yaml:"pattern_weight"`
}

// BacktestConfig drives position sizing and exit rules.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	BaseFraction   float64 `yaml:"base_fraction"`
	MaxPosition    float64 `yaml:"max_position"`
	StopLoss       float64 `yaml:"stop_loss"`
	TakeProfit     float64 `yaml:"take_profit"`
	Annualization  float64 `yaml:"annualization"`

	// TierSizeAdjustment scales position size per destination tier.
	// Index = tier; missing tiers fall back to the default ramp.
	TierSizeAdjustment []float64 `yaml:"tier_size_adjustment"`
}

// OptimizeConfig drives the parameter sweep objective.
type OptimizeConfig struct {
	Workers          int     `yaml:"workers"`
	TopK             int     `yaml:"top_k"`
	MaxTrades        int     `yaml:"max_trades"`
	TradePenalty     float64 `yaml:"trade_penalty"`
	DrawdownCap      float64 `yaml:"drawdown_cap"`
	DrawdownPenalty  float64 `yaml:"drawdown_penalty"`
}

// CacheConfig configures the optional Redis snapshot cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	TTLSec  int    `yaml:"ttl_seconds"`
}

// DatabaseConfig configures optional Postgres persistence of run artifacts.
type DatabaseConfig struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

// MonitorConfig configures the monitoring HTTP server.
type MonitorConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the documented default configuration.
func Default() Config {
	return Config{
		Analysis: AnalysisConfig{
			TierCount:            4,
			TierMode:             "equal-count",
			LookbackPeriods:      30,
			VolumeThreshold:      2.0,
			CorrelationThreshold: 0.7,
			MinConfidence:        0.6,
			SmartMoneyLookback:   14,
			VolumeWeight:         0.4,
			CorrelationWeight:    0.3,
			PatternWeight:        0.3,
		},
		Backtest: BacktestConfig{
			InitialCapital:     100000,
			BaseFraction:       0.1,
			MaxPosition:        0.1,
			StopLoss:           0.05,
			TakeProfit:         0.15,
			Annualization:      1.0,
			TierSizeAdjustment: nil, // default ramp, see TierAdjustment
		},
		Optimize: OptimizeConfig{
			Workers:         4,
			TopK:            5,
			MaxTrades:       200,
			TradePenalty:    0.005,
			DrawdownCap:     0.25,
			DrawdownPenalty: 2.0,
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			TTLSec: 3600,
		},
		Monitor: MonitorConfig{
			Addr: ":8090",
		},
	}
}

// Load reads the YAML config at path, applies environment overrides, and
// validates. A missing path yields the defaults (still env-overridden).
func Load(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides maps a small set of deployment knobs from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TIERFLOW_REDIS_ADDR"); v != "" {
		cfg.Cache.Addr = v
		cfg.Cache.Enabled = true
	}
	if v := os.Getenv("TIERFLOW_DB_DSN"); v != "" {
		cfg.Database.DSN = v
		cfg.Database.Enabled = true
	}
	if v := os.Getenv("TIERFLOW_MONITOR_ADDR"); v != "" {
		cfg.Monitor.Addr = v
	}
	if v := os.Getenv("TIERFLOW_VOLUME_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.VolumeThreshold = f
		}
	}
	if v := os.Getenv("TIERFLOW_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.MinConfidence = f
		}
	}
}

// Validate enforces the startup contract. Any violation is fatal before
// processing begins.
func (c Config) Validate() error {
	a := c.Analysis
	if a.TierCount < 2 {
		return &market.ConfigError{Field: "analysis.tier_count",
			Reason: fmt.Sprintf("must be >= 2, got %d", a.TierCount)}
	}
	if a.TierMode != "equal-count" && a.TierMode != "cap-share" {
		return &market.ConfigError{Field: "analysis.tier_mode",
			Reason: fmt.Sprintf("unknown mode %q", a.TierMode)}
	}
	if a.LookbackPeriods < 2 {
		return &market.ConfigError{Field: "analysis.lookback_periods",
			Reason: fmt.Sprintf("must be >= 2, got %d", a.LookbackPeriods)}
	}
	if a.VolumeThreshold <= 0 {
		return &market.ConfigError{Field: "analysis.volume_threshold",
			Reason: fmt.Sprintf("must be positive, got %.3f", a.VolumeThreshold)}
	}
	if a.CorrelationThreshold < 0 || a.CorrelationThreshold > 1 {
		return &market.ConfigError{Field: "analysis.correlation_threshold",
			Reason: fmt.Sprintf("must be in [0,1], got %.3f", a.CorrelationThreshold)}
	}
	if a.MinConfidence < 0 || a.MinConfidence > 1 {
		return &market.ConfigError{Field: "analysis.min_confidence",
			Reason: fmt.Sprintf("must be in [0,1], got %.3f", a.MinConfidence)}
	}
	weightSum := a.VolumeWeight + a.CorrelationWeight + a.PatternWeight
	if math.Abs(weightSum-1.0) > WeightSumTolerance {
		return &market.ConfigError{Field: "analysis.weights",
			Reason: fmt.Sprintf("sum %.3f outside tolerance %.2f of 1.0", weightSum, WeightSumTolerance)}
	}
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"volume_weight", a.VolumeWeight},
		{"correlation_weight", a.CorrelationWeight},
		{"pattern_weight", a.PatternWeight},
	} {
		if w.value < 0 {
			return &market.ConfigError{Field: "analysis." + w.name,
				Reason: fmt.Sprintf("cannot be negative, got %.3f", w.value)}
		}
	}

	b := c.Backtest
	if b.InitialCapital <= 0 {
		return &market.ConfigError{Field: "backtest.initial_capital",
			Reason: fmt.Sprintf("must be positive, got %.2f", b.InitialCapital)}
	}
	if b.BaseFraction <= 0 || b.BaseFraction > 1 {
		return &market.ConfigError{Field: "backtest.base_fraction",
			Reason: fmt.Sprintf("must be in (0,1], got %.3f", b.BaseFraction)}
	}
	if b.MaxPosition <= 0 || b.MaxPosition > 1 {
		return &market.ConfigError{Field: "backtest.max_position",
			Reason: fmt.Sprintf("must be in (0,1], got %.3f", b.MaxPosition)}
	}
	if b.StopLoss <= 0 || b.StopLoss >= 1 {
		return &market.ConfigError{Field: "backtest.stop_loss",
			Reason: fmt.Sprintf("must be in (0,1), got %.3f", b.StopLoss)}
	}
	if b.TakeProfit <= 0 {
		return &market.ConfigError{Field: "backtest.take_profit",
			Reason: fmt.Sprintf("must be positive, got %.3f", b.TakeProfit)}
	}
	for i, adj := range b.TierSizeAdjustment {
		if adj < 0 {
			return &market.ConfigError{Field: "backtest.tier_size_adjustment",
				Reason: fmt.Sprintf("tier %d adjustment cannot be negative: %.3f", i, adj)}
		}
	}

	o := c.Optimize
	if o.Workers < 1 {
		return &market.ConfigError{Field: "optimize.workers",
			Reason: fmt.Sprintf("must be >= 1, got %d", o.Workers)}
	}
	if o.DrawdownCap < 0 || o.DrawdownCap > 1 {
		return &market.ConfigError{Field: "optimize.drawdown_cap",
			Reason: fmt.Sprintf("must be in [0,1], got %.3f", o.DrawdownCap)}
	}
	return nil
}

// TierAdjustment returns the position-size multiplier for a destination tier.
// Explicit config wins; otherwise the default ramp shrinks size for lower
// tiers and never goes below 0.25.
func (b BacktestConfig) TierAdjustment(tier int) float64 {
	if tier >= 0 && tier < len(b.TierSizeAdjustment) {
		return b.TierSizeAdjustment[tier]
	}
	adj := 1.0 - float64(tier)*0.15
	if adj < 0.25 {
		adj = 0.25
	}
	return adj
}
