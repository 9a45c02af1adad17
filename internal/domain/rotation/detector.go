package rotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/domain/market"
	"github.com/sawpanic/tierflow/internal/domain/tier"
)

// Signal is a scored hypothesis that capital is rotating from one tier into
// another. Created here, consumed read-only downstream.
type Signal struct {
	ID         string             `json:"id"`
	Timestamp  time.Time          `json:"timestamp"`
	FromTier   int                `json:"from_tier"`
	ToTier     int                `json:"to_tier"`
	Confidence float64            `json:"confidence"`
	Metrics    map[string]float64 `json:"metrics"`
}

// Params are the detection thresholds. Value-copied per detector instance so
// optimizer candidates never share state.
type Params struct {
	TierCount            int
	LookbackPeriods      int
	VolumeThreshold      float64
	CorrelationThreshold float64
	MinConfidence        float64
	Weights              Weights
}

// Detector tracks tier-level aggregates over a rolling window and emits
// rotation signals. Not safe for concurrent use; each pipeline owns its own
// instance.
type Detector struct {
	params  Params
	window  *Window
	prevCap []float64 // previous tier price-index values
	hasPrev bool
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(params Params) (*Detector, error) {
	if params.TierCount < 2 {
		return nil, &market.ConfigError{Field: "tier_count",
			Reason: fmt.Sprintf("must be >= 2, got %d", params.TierCount)}
	}
	if params.LookbackPeriods < 2 {
		return nil, &market.ConfigError{Field: "lookback_periods",
			Reason: fmt.Sprintf("must be >= 2, got %d", params.LookbackPeriods)}
	}
	if err := params.Weights.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		params:  params,
		window:  NewWindow(params.LookbackPeriods),
		prevCap: make([]float64, params.TierCount),
	}, nil
}

// Update folds one classified snapshot into the rolling window and returns
// any rotation signals it produces. No signals are emitted until the window
// holds a full lookback of observations; identical window contents always
// yield identical signals.
//
// patternScores carries the per-tier smart-money score for this snapshot
// (index = tier, values pre-normalized to [0,1]); nil means no pattern input.
func (d *Detector) Update(snap market.Snapshot, assignment tier.Assignment, patternScores []float64) ([]Signal, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}

	volumes, caps := d.aggregate(snap, assignment)
	returns := d.tierReturns(caps)

	d.window.Push(Observation{
		Timestamp:   snap.Timestamp,
		TierVolumes: volumes,
		TierReturns: returns,
	})

	// Cold start: suppress emission until the lookback is full. Expected
	// transient condition, not a failure.
	if !d.window.Full() {
		return nil, nil
	}

	var signals []Signal
	for from := 0; from < d.params.TierCount; from++ {
		for to := 0; to < d.params.TierCount; to++ {
			if from == to {
				continue
			}
			sig, ok := d.evaluatePair(snap.Timestamp, from, to, patternScores)
			if ok {
				signals = append(signals, sig)
			}
		}
	}
	return signals, nil
}

// aggregate computes per-tier total volume and the cap-weighted price index
// (aggregate market cap) for one snapshot.
func (d *Detector) aggregate(snap market.Snapshot, assignment tier.Assignment) (volumes, caps []float64) {
	volumes = make([]float64, d.params.TierCount)
	caps = make([]float64, d.params.TierCount)
	for _, id := range snap.AssetIDs() {
		t, ok := assignment.Tiers[id]
		if !ok || t >= d.params.TierCount {
			continue
		}
		q := snap.Assets[id]
		volumes[t] += q.Volume
		caps[t] += q.MarketCap
	}
	return volumes, caps
}

// tierReturns derives per-tier period returns from the price index and rolls
// the previous index forward.
func (d *Detector) tierReturns(caps []float64) []float64 {
	returns := make([]float64, d.params.TierCount)
	if d.hasPrev {
		for t := range caps {
			if d.prevCap[t] > 0 {
				returns[t] = (caps[t] - d.prevCap[t]) / d.prevCap[t]
			}
		}
	}
	copy(d.prevCap, caps)
	d.hasPrev = true
	return returns
}

// evaluatePair applies the candidate conditions for a single ordered tier
// pair and builds the signal when all of them hold.
func (d *Detector) evaluatePair(ts time.Time, from, to int, patternScores []float64) (Signal, bool) {
	volSeries := d.window.VolumeSeries(to)
	n := len(volSeries)
	if n < 2 {
		return Signal{}, false
	}

	// Volume surge: current observation against its trailing distribution.
	z := zScore(volSeries[n-1], volSeries[:n-1])
	if z <= d.params.VolumeThreshold {
		return Signal{}, false
	}

	// Co-movement between the two tiers across the window.
	fromReturns := d.window.ReturnSeries(from)
	toReturns := d.window.ReturnSeries(to)
	corr := pearson(fromReturns, toReturns)
	if corr < -1 || corr > 1 {
		return Signal{}, false
	}
	absCorr := corr
	if absCorr < 0 {
		absCorr = -absCorr
	}
	if absCorr < d.params.CorrelationThreshold {
		return Signal{}, false
	}

	// Direction: the destination tier must be outperforming the source in
	// the latest period, otherwise capital is not rotating toward it.
	spread := toReturns[len(toReturns)-1] - fromReturns[len(fromReturns)-1]
	if spread <= 0 {
		return Signal{}, false
	}

	patternScore := 0.0
	if to < len(patternScores) {
		patternScore = patternScores[to]
	}

	sub := Subscores{
		Volume:      z / (2 * d.params.VolumeThreshold),
		Correlation: absCorr,
		Pattern:     patternScore,
	}
	confidence := Combine(sub, d.params.Weights)
	if confidence < d.params.MinConfidence {
		log.Debug().
			Int("from_tier", from).
			Int("to_tier", to).
			Float64("confidence", confidence).
			Float64("min_confidence", d.params.MinConfidence).
			Msg("Rotation candidate below confidence floor")
		return Signal{}, false
	}

	return Signal{
		ID:         signalID(ts, from, to),
		Timestamp:  ts,
		FromTier:   from,
		ToTier:     to,
		Confidence: confidence,
		Metrics: map[string]float64{
			"volume_zscore": z,
			"correlation":   corr,
			"pattern_score": patternScore,
			"return_spread": spread,
		},
	}, true
}

// WindowLen exposes the current fill level of the rolling window.
func (d *Detector) WindowLen() int { return d.window.Len() }

// Reset clears all rolling state, returning the detector to cold start.
func (d *Detector) Reset() {
	d.window.Reset()
	d.hasPrev = false
	for i := range d.prevCap {
		d.prevCap[i] = 0
	}
}

// signalID derives a stable identifier from the emission coordinates, so
// identical inputs reproduce identical signals byte for byte.
func signalID(ts time.Time, from, to int) string {
	name := fmt.Sprintf("rotation:%d:%d:%d", ts.UnixNano(), from, to)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
