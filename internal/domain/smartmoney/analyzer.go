package smartmoney

import (
	"fmt"
	"math"
	"time"

	"github.com/sawpanic/tierflow/internal/domain/market"
)

// PatternType classifies the detected smart-money behavior.
type PatternType string

const (
	// Accumulation: price flat or declining while volume and the
	// large-transaction ratio rise. Large actors building a position.
	Accumulation PatternType = "accumulation"

	// Distribution: the mirror condition under rising price. Large actors
	// unloading into strength.
	Distribution PatternType = "distribution"
)

// Pattern is one detected smart-money event for a single asset.
type Pattern struct {
	Asset     string      `json:"asset"`
	Timestamp time.Time   `json:"timestamp"`
	Type      PatternType `json:"pattern_type"`
	Strength  float64     `json:"strength"` // [0,1]
}

// Weights allocates pattern strength across the three sub-scores.
type Weights struct {
	LargeTx       float64
	VolumeProfile float64
	PriceAction   float64
}

// DefaultWeights leans on the flow and price-action components, with the
// large-transaction proxy as a smaller tiebreaker.
func DefaultWeights() Weights {
	return Weights{LargeTx: 0.2, VolumeProfile: 0.4, PriceAction: 0.4}
}

// Analyzer derives per-asset smart-money indicators from a supplied history
// window. Stateless across calls; no hidden caching.
type Analyzer struct {
	lookback int
	weights  Weights
}

// NewAnalyzer creates an analyzer with the given lookback (observations, not
// wall clock). Zero weights fall back to the defaults.
func NewAnalyzer(lookback int, weights Weights) (*Analyzer, error) {
	if lookback < 2 {
		return nil, &market.ConfigError{Field: "smart_money_lookback",
			Reason: fmt.Sprintf("must be >= 2, got %d", lookback)}
	}
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	return &Analyzer{lookback: lookback, weights: weights}, nil
}

// Detect scans an asset's chronological history for accumulation and
// distribution patterns. History shorter than the lookback yields
// market.ErrInsufficientData.
func (a *Analyzer) Detect(asset string, history []market.PricePoint) ([]Pattern, error) {
	if len(history) < a.lookback {
		return nil, fmt.Errorf("%d points for lookback %d: %w",
			len(history), a.lookback, market.ErrInsufficientData)
	}

	var patterns []Pattern
	for i := a.lookback; i <= len(history); i++ {
		window := history[i-a.lookback : i]
		if p, ok := a.evaluate(asset, window); ok {
			patterns = append(patterns, p)
		}
	}
	return patterns, nil
}

// Latest evaluates only the most recent window of an asset's history,
// returning the pattern detected there, if any.
func (a *Analyzer) Latest(asset string, history []market.PricePoint) (Pattern, bool) {
	if len(history) < a.lookback {
		return Pattern{}, false
	}
	return a.evaluate(asset, history[len(history)-a.lookback:])
}

// Score reduces the latest window of an asset's history to a single [0,1]
// smart-money score for signal confidence. Assets with too little history
// score zero.
func (a *Analyzer) Score(history []market.PricePoint) float64 {
	if len(history) < a.lookback {
		return 0
	}
	window := history[len(history)-a.lookback:]
	largeTx := a.largeTxRatio(window)
	volProfile := a.volumeProfile(window)
	priceAction := a.priceAction(window)

	return clamp01(a.weights.LargeTx*largeTx +
		a.weights.VolumeProfile*math.Abs(volProfile) +
		a.weights.PriceAction*priceAction)
}

// evaluate classifies one window. The volume-profile score is signed:
// positive when volume rises against flat/falling price (accumulation side),
// negative under rising price (distribution side).
func (a *Analyzer) evaluate(asset string, window []market.PricePoint) (Pattern, bool) {
	largeTx := a.largeTxRatio(window)
	volProfile := a.volumeProfile(window)
	priceAction := a.priceAction(window)

	priceTrend := trend(prices(window))
	volumeTrend := trend(volumes(window))

	// Both conditions require rising volume backed by large transactions.
	if volumeTrend <= 0 || largeTx == 0 {
		return Pattern{}, false
	}

	var pt PatternType
	switch {
	case priceTrend <= 0:
		pt = Accumulation
	default:
		pt = Distribution
	}

	strength := clamp01(a.weights.LargeTx*largeTx +
		a.weights.VolumeProfile*math.Abs(volProfile) +
		a.weights.PriceAction*priceAction)
	if strength == 0 {
		return Pattern{}, false
	}

	return Pattern{
		Asset:     asset,
		Timestamp: window[len(window)-1].Timestamp,
		Type:      pt,
		Strength:  strength,
	}, true
}

// largeTxRatio proxies institutional activity from volume concentration: the
// share of observations whose volume/market-cap ratio exceeds the window mean
// by two standard deviations.
func (a *Analyzer) largeTxRatio(window []market.PricePoint) float64 {
	ratios := make([]float64, len(window))
	for i, p := range window {
		if p.MarketCap > 0 {
			ratios[i] = p.Volume / p.MarketCap
		}
	}
	m := meanOf(ratios)
	sd := stdDevOf(ratios)
	if sd == 0 {
		return 0
	}
	threshold := m + 2*sd
	large := 0
	for _, r := range ratios {
		if r > threshold {
			large++
		}
	}
	return float64(large) / float64(len(ratios))
}

// volumeProfile blends two flow reads, each in [-1,1]: volume-trend vs
// price-trend divergence, and on-balance volume. Disagreement between the
// reads shrinks the magnitude that feeds pattern strength.
func (a *Analyzer) volumeProfile(window []market.PricePoint) float64 {
	pt := trend(prices(window))
	vt := trend(volumes(window))
	divergence := math.Tanh(vt - pt)
	return 0.5*divergence + 0.5*obvFlow(window)
}

// obvFlow reduces on-balance volume over the window to [-1,1]: volume signed
// by price direction, accumulated and normalized by total traded volume.
// Positive flow means volume concentrates on up moves.
func obvFlow(window []market.PricePoint) float64 {
	var obv, total float64
	for i := 1; i < len(window); i++ {
		total += window[i].Volume
		switch {
		case window[i].Price > window[i-1].Price:
			obv += window[i].Volume
		case window[i].Price < window[i-1].Price:
			obv -= window[i].Volume
		}
	}
	if total == 0 {
		return 0
	}
	return obv / total
}

// priceAction scores directional persistence: the fraction of consecutive
// moves sharing the dominant direction, rescaled so a coin flip scores 0.
func (a *Analyzer) priceAction(window []market.PricePoint) float64 {
	if len(window) < 2 {
		return 0
	}
	up, down := 0, 0
	for i := 1; i < len(window); i++ {
		switch {
		case window[i].Price > window[i-1].Price:
			up++
		case window[i].Price < window[i-1].Price:
			down++
		}
	}
	moves := up + down
	if moves == 0 {
		return 0
	}
	dominant := up
	if down > up {
		dominant = down
	}
	persistence := float64(dominant)/float64(moves)*2 - 1
	return clamp01(persistence)
}

// trend is the normalized slope of a series: least-squares slope divided by
// the series mean, so it is comparable across assets of different scale.
func trend(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	m := meanOf(xs)
	if m == 0 {
		return 0
	}
	// Least squares against index 0..n-1.
	tMean := float64(n-1) / 2
	var num, den float64
	for i, x := range xs {
		dt := float64(i) - tMean
		num += dt * (x - m)
		den += dt * dt
	}
	if den == 0 {
		return 0
	}
	return (num / den) / m
}

func prices(window []market.PricePoint) []float64 {
	out := make([]float64, len(window))
	for i, p := range window {
		out[i] = p.Price
	}
	return out
}

func volumes(window []market.PricePoint) []float64 {
	out := make([]float64, len(window))
	for i, p := range window {
		out[i] = p.Volume
	}
	return out
}

func meanOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevOf(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := meanOf(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
