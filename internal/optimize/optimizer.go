package optimize

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/application/pipeline"
	"github.com/sawpanic/tierflow/internal/backtest"
	"github.com/sawpanic/tierflow/internal/config"
	"github.com/sawpanic/tierflow/internal/domain/market"
)

// Evaluation is the outcome of one candidate: its parameters, objective
// score, and the full backtest result. Failed candidates carry Err and never
// abort the sweep.
type Evaluation struct {
	Index     int              `json:"index"`
	Candidate Candidate        `json:"candidate"`
	Score     float64          `json:"score"`
	Result    *backtest.Result `json:"result,omitempty"`
	Err       string           `json:"error,omitempty"`
}

// Result summarizes one optimizer sweep: the best-scoring candidate plus the
// top-K runners-up.
type Result struct {
	Best      Evaluation   `json:"best"`
	TopK      []Evaluation `json:"top_k"`
	Evaluated int          `json:"evaluated"`
	Failed    int          `json:"failed"`
}

// Objective scores a backtest run: Sharpe ratio with penalties for excess
// trading and drawdown beyond the cap.
type Objective struct {
	MaxTrades       int
	TradePenalty    float64
	DrawdownCap     float64
	DrawdownPenalty float64
}

// Score applies the objective to one backtest result.
func (o Objective) Score(r *backtest.Result) float64 {
	score := r.Metrics.SharpeRatio
	if o.MaxTrades > 0 && r.Metrics.TotalTrades > o.MaxTrades {
		score -= o.TradePenalty * float64(r.Metrics.TotalTrades-o.MaxTrades)
	}
	if r.Metrics.MaxDrawdown > o.DrawdownCap {
		score -= o.DrawdownPenalty * (r.Metrics.MaxDrawdown - o.DrawdownCap)
	}
	return score
}

// Progress receives sweep progress callbacks (completed, total). Optional.
type Progress func(completed, total int)

// Optimizer searches the threshold space against backtest outcomes. Every
// candidate evaluation owns a fresh pipeline and ledger; nothing mutable is
// shared between candidates, so evaluations run in parallel safely.
type Optimizer struct {
	base      config.Config
	objective Objective
	workers   int
	topK      int
	progress  Progress
}

// New creates an optimizer around a validated base configuration.
func New(base config.Config) (*Optimizer, error) {
	if err := base.Validate(); err != nil {
		return nil, err
	}
	workers := base.Optimize.Workers
	if workers < 1 {
		workers = 1
	}
	return &Optimizer{
		base: base,
		objective: Objective{
			MaxTrades:       base.Optimize.MaxTrades,
			TradePenalty:    base.Optimize.TradePenalty,
			DrawdownCap:     base.Optimize.DrawdownCap,
			DrawdownPenalty: base.Optimize.DrawdownPenalty,
		},
		workers: workers,
		topK:    base.Optimize.TopK,
	}, nil
}

// SetProgress attaches a progress callback. Optional.
func (o *Optimizer) SetProgress(fn Progress) { o.progress = fn }

// Optimize sweeps the space and returns the best candidate. Cancellation is
// honored between candidate evaluations: completed evaluations survive, and
// the best of what finished is returned alongside the context error.
func (o *Optimizer) Optimize(ctx context.Context, snapshots []market.Snapshot, space Space) (*Result, error) {
	candidates := space.Candidates()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("empty parameter space")
	}

	evaluations := make([]Evaluation, len(candidates))
	jobs := make(chan int)

	var wg sync.WaitGroup
	var completed int
	var mu sync.Mutex

	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				evaluations[idx] = o.evaluate(idx, candidates[idx], snapshots)
				mu.Lock()
				completed++
				done := completed
				mu.Unlock()
				if o.progress != nil {
					o.progress(done, len(candidates))
				}
			}
		}()
	}

	var ctxErr error
dispatch:
	for idx := range candidates {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()

	result := o.selectBest(evaluations)
	if result == nil {
		if ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("no candidate produced a usable backtest")
	}

	log.Info().
		Int("evaluated", result.Evaluated).
		Int("failed", result.Failed).
		Float64("best_score", result.Best.Score).
		Float64("volume_threshold", result.Best.Candidate.VolumeThreshold).
		Float64("correlation_threshold", result.Best.Candidate.CorrelationThreshold).
		Float64("min_confidence", result.Best.Candidate.MinConfidence).
		Msg("Optimizer sweep completed")
	return result, ctxErr
}

// evaluate runs one candidate in full isolation: fresh classifier, detector,
// validator, and backtest ledger built from a value copy of the base config.
func (o *Optimizer) evaluate(idx int, cand Candidate, snapshots []market.Snapshot) Evaluation {
	eval := Evaluation{Index: idx, Candidate: cand}

	cfg := o.base // value copy; candidates never share config
	cfg.Analysis.VolumeThreshold = cand.VolumeThreshold
	cfg.Analysis.CorrelationThreshold = cand.CorrelationThreshold
	cfg.Analysis.MinConfidence = cand.MinConfidence
	cfg.Backtest.BaseFraction = cand.BaseFraction

	pipe, err := pipeline.New(cfg.Analysis)
	if err != nil {
		eval.Err = err.Error()
		return eval
	}
	pr, err := pipe.Run(context.Background(), snapshots)
	if err != nil {
		eval.Err = err.Error()
		return eval
	}

	engine, err := backtest.NewEngine(cfg.Backtest)
	if err != nil {
		eval.Err = err.Error()
		return eval
	}
	br, err := engine.Run(pr.Snapshots, pr.Assignments, pr.Signals)
	if err != nil {
		eval.Err = err.Error()
		return eval
	}

	eval.Result = br
	eval.Score = o.objective.Score(br)
	return eval
}

// selectBest orders completed evaluations by score, breaking ties by lower
// max drawdown, then fewer trades, then candidate order.
func (o *Optimizer) selectBest(evaluations []Evaluation) *Result {
	var done []Evaluation
	failed := 0
	for _, e := range evaluations {
		switch {
		case e.Err != "":
			failed++
			log.Warn().
				Int("candidate", e.Index).
				Str("error", e.Err).
				Msg("Candidate evaluation failed")
		case e.Result != nil:
			done = append(done, e)
		}
	}
	if len(done) == 0 {
		return nil
	}

	sort.SliceStable(done, func(i, j int) bool {
		a, b := done[i], done[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Result.Metrics.MaxDrawdown != b.Result.Metrics.MaxDrawdown {
			return a.Result.Metrics.MaxDrawdown < b.Result.Metrics.MaxDrawdown
		}
		if a.Result.Metrics.TotalTrades != b.Result.Metrics.TotalTrades {
			return a.Result.Metrics.TotalTrades < b.Result.Metrics.TotalTrades
		}
		return a.Index < b.Index
	})

	topK := o.topK
	if topK <= 0 || topK > len(done) {
		topK = len(done)
	}

	return &Result{
		Best:      done[0],
		TopK:      append([]Evaluation(nil), done[:topK]...),
		Evaluated: len(done) + failed,
		Failed:    failed,
	}
}

// Summary renders a human-readable sweep report.
func (r *Result) Summary() string {
	s := "Parameter Optimization Results:\n\nOptimal Parameters:\n"
	s += fmt.Sprintf("- volume_threshold: %.3f\n", r.Best.Candidate.VolumeThreshold)
	s += fmt.Sprintf("- correlation_threshold: %.3f\n", r.Best.Candidate.CorrelationThreshold)
	s += fmt.Sprintf("- min_confidence: %.3f\n", r.Best.Candidate.MinConfidence)
	s += fmt.Sprintf("- base_fraction: %.3f\n", r.Best.Candidate.BaseFraction)
	s += "\nPerformance:\n"
	s += fmt.Sprintf("- score: %.4f\n", r.Best.Score)
	if m := r.Best.Result; m != nil {
		s += fmt.Sprintf("- sharpe_ratio: %.4f\n", m.Metrics.SharpeRatio)
		s += fmt.Sprintf("- total_return: %.4f\n", m.Metrics.TotalReturn)
		s += fmt.Sprintf("- win_rate: %.4f\n", m.Metrics.WinRate)
		s += fmt.Sprintf("- max_drawdown: %.4f\n", m.Metrics.MaxDrawdown)
		s += fmt.Sprintf("- trades: %d\n", m.Metrics.TotalTrades)
	}
	s += fmt.Sprintf("\nEvaluated %d candidates (%d failed)\n", r.Evaluated, r.Failed)
	return s
}
