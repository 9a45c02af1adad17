package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/config"
	"github.com/sawpanic/tierflow/internal/domain/market"
	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/domain/signal"
	"github.com/sawpanic/tierflow/internal/domain/smartmoney"
	"github.com/sawpanic/tierflow/internal/domain/tier"
)

// Result carries everything one pipeline pass produces: the tier assignment
// history, the accepted signals, and the snapshots that actually entered the
// analysis (invalid ones are skipped). Snapshots and Assignments are parallel
// slices, ready for the backtest engine.
type Result struct {
	Snapshots   []market.Snapshot
	Assignments []tier.Assignment
	Signals     []rotation.Signal

	RejectedSignals  int
	SkippedSnapshots int
}

// Observer receives pipeline progress events. Implementations must be cheap;
// the pipeline calls them inline.
type Observer interface {
	SnapshotProcessed()
	SnapshotSkipped()
	SignalEmitted()
	SignalRejected()
}

// Pipeline wires classifier, rotation detector, smart-money analyzer, and
// validator into the snapshot-to-signal flow. Stateful via the detector
// window; construct a fresh pipeline per run (the optimizer relies on this
// isolation).
type Pipeline struct {
	cfg        config.AnalysisConfig
	classifier *tier.Classifier
	detector   *rotation.Detector
	analyzer   *smartmoney.Analyzer
	validator  *signal.Validator
	observer   Observer
}

// New builds a pipeline from the analysis configuration.
func New(cfg config.AnalysisConfig) (*Pipeline, error) {
	classifier, err := tier.NewClassifier(cfg.TierCount, tier.Mode(cfg.TierMode))
	if err != nil {
		return nil, err
	}
	detector, err := rotation.NewDetector(rotation.Params{
		TierCount:            cfg.TierCount,
		LookbackPeriods:      cfg.LookbackPeriods,
		VolumeThreshold:      cfg.VolumeThreshold,
		CorrelationThreshold: cfg.CorrelationThreshold,
		MinConfidence:        cfg.MinConfidence,
		Weights: rotation.Weights{
			Volume:      cfg.VolumeWeight,
			Correlation: cfg.CorrelationWeight,
			Pattern:     cfg.PatternWeight,
		},
	})
	if err != nil {
		return nil, err
	}
	analyzer, err := smartmoney.NewAnalyzer(cfg.SmartMoneyLookback, smartmoney.Weights{})
	if err != nil {
		return nil, err
	}
	validator := signal.NewValidator(signal.Params{
		VolumeThreshold:      cfg.VolumeThreshold,
		CorrelationThreshold: cfg.CorrelationThreshold,
		MinPatternStrength:   0,
	})
	return &Pipeline{
		cfg:        cfg,
		classifier: classifier,
		detector:   detector,
		analyzer:   analyzer,
		validator:  validator,
	}, nil
}

// SetObserver attaches a progress observer. Optional.
func (p *Pipeline) SetObserver(obs Observer) { p.observer = obs }

// Run processes the ordered snapshot stream and returns the accepted signals
// together with the tier assignment history. Snapshot-level validation
// failures are skipped and logged; the run continues. A snapshot whose
// timestamp does not advance past the previous one is dropped the same way,
// so the detector window and backtest ledger only ever see a strictly
// increasing stream.
func (p *Pipeline) Run(ctx context.Context, snapshots []market.Snapshot) (*Result, error) {
	result := &Result{}
	var last time.Time
	hasLast := false
	for i := range snapshots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap := snapshots[i]

		if hasLast && !snap.Timestamp.After(last) {
			verr := &market.ValidationError{Timestamp: snap.Timestamp,
				Field: "timestamp", Reason: "not strictly increasing"}
			result.SkippedSnapshots++
			p.notifySkipped()
			log.Warn().Err(verr).Msg("Skipping out-of-order snapshot")
			continue
		}
		last = snap.Timestamp
		hasLast = true

		if err := snap.Validate(); err != nil {
			result.SkippedSnapshots++
			p.notifySkipped()
			log.Warn().Err(err).Msg("Skipping invalid snapshot")
			continue
		}

		assignment, err := p.classifier.Classify(snap)
		if err != nil {
			if errors.Is(err, market.ErrInsufficientData) {
				result.SkippedSnapshots++
				p.notifySkipped()
				log.Warn().
					Time("timestamp", snap.Timestamp).
					Int("assets", len(snap.Assets)).
					Msg("Too few assets for tier count, snapshot skipped")
				continue
			}
			result.SkippedSnapshots++
			p.notifySkipped()
			log.Warn().Err(err).Msg("Classification failed, snapshot skipped")
			continue
		}

		result.Snapshots = append(result.Snapshots, snap)
		result.Assignments = append(result.Assignments, assignment)

		tierScores, tierPatterns := p.analyzeSmartMoney(result.Snapshots, snap, assignment)

		candidates, err := p.detector.Update(snap, assignment, tierScores)
		if err != nil {
			return nil, fmt.Errorf("rotation detection failed: %w", err)
		}

		for _, sig := range candidates {
			sctx := signal.Context{
				VolumeZScore: sig.Metrics["volume_zscore"],
				Correlation:  sig.Metrics["correlation"],
				TierPatterns: tierPatterns[sig.ToTier],
			}
			if p.validator.Validate(sig, sctx) {
				result.Signals = append(result.Signals, sig)
				p.notifyEmitted()
			} else {
				result.RejectedSignals++
				p.notifyRejected()
			}
		}
		p.notifyProcessed()
	}
	return result, nil
}

// analyzeSmartMoney fans the per-asset analysis out across a bounded worker
// set. Assets are independent within one snapshot, and results are merged
// back in asset-id order so the output stays deterministic.
func (p *Pipeline) analyzeSmartMoney(history []market.Snapshot, snap market.Snapshot, assignment tier.Assignment) ([]float64, map[int][]smartmoney.Pattern) {
	ids := snap.AssetIDs()

	type assetResult struct {
		score   float64
		pattern smartmoney.Pattern
		hasPat  bool
	}
	results := make([]assetResult, len(ids))

	workers := runtime.GOMAXPROCS(0)
	if workers > len(ids) {
		workers = len(ids)
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			assetHistory := market.History(history, id)
			results[i].score = p.analyzer.Score(assetHistory)
			results[i].pattern, results[i].hasPat = p.analyzer.Latest(id, assetHistory)
		}(i, id)
	}
	wg.Wait()

	tierScores := make([]float64, p.cfg.TierCount)
	tierCounts := make([]int, p.cfg.TierCount)
	tierPatterns := make(map[int][]smartmoney.Pattern)
	for i, id := range ids {
		t, ok := assignment.Tiers[id]
		if !ok || t >= p.cfg.TierCount {
			continue
		}
		tierScores[t] += results[i].score
		tierCounts[t]++
		if results[i].hasPat {
			tierPatterns[t] = append(tierPatterns[t], results[i].pattern)
		}
	}
	for t := range tierScores {
		if tierCounts[t] > 0 {
			tierScores[t] /= float64(tierCounts[t])
		}
	}
	return tierScores, tierPatterns
}

func (p *Pipeline) notifyProcessed() {
	if p.observer != nil {
		p.observer.SnapshotProcessed()
	}
}

func (p *Pipeline) notifySkipped() {
	if p.observer != nil {
		p.observer.SnapshotSkipped()
	}
}

func (p *Pipeline) notifyEmitted() {
	if p.observer != nil {
		p.observer.SignalEmitted()
	}
}

func (p *Pipeline) notifyRejected() {
	if p.observer != nil {
		p.observer.SignalRejected()
	}
}
