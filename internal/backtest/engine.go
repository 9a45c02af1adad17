package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/config"
	"github.com/sawpanic/tierflow/internal/domain/market"
	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/domain/tier"
)

// Engine replays accepted signals chronologically against price history and
// manages positions under the configured sizing and risk rules. The engine
// exclusively owns its ledger for the duration of one run; construct a fresh
// engine per run and never share one across goroutines.
type Engine struct {
	cfg config.BacktestConfig

	cash      float64
	positions []*Trade
	closed    []Trade
	curve     []EquityPoint
	lastPrice map[string]float64
	skipped   int
	seq       int
}

// NewEngine creates an engine for one simulation run.
func NewEngine(cfg config.BacktestConfig) (*Engine, error) {
	if cfg.InitialCapital <= 0 {
		return nil, &market.ConfigError{Field: "initial_capital",
			Reason: fmt.Sprintf("must be positive, got %.2f", cfg.InitialCapital)}
	}
	return &Engine{
		cfg:       cfg,
		cash:      cfg.InitialCapital,
		lastPrice: make(map[string]float64),
	}, nil
}

// Run drives the simulation across the full history. snapshots and
// assignments are parallel slices ordered by timestamp; signals may arrive in
// any order and are sorted internally. Identical inputs and parameters always
// produce an identical Result.
func (e *Engine) Run(snapshots []market.Snapshot, assignments []tier.Assignment, signals []rotation.Signal) (*Result, error) {
	if len(snapshots) != len(assignments) {
		return nil, fmt.Errorf("snapshot/assignment length mismatch: %d vs %d",
			len(snapshots), len(assignments))
	}
	if err := market.CheckOrder(snapshots); err != nil {
		return nil, err
	}

	byTime := groupSignals(signals)

	for i := range snapshots {
		snap := &snapshots[i]
		e.observePrices(snap)
		e.applyExitRules(snap.Timestamp)

		for _, sig := range byTime[snap.Timestamp.UnixNano()] {
			e.closeContrary(sig, snap.Timestamp)
			e.openPosition(sig, snap, assignments[i])
		}

		e.curve = append(e.curve, EquityPoint{
			Timestamp: snap.Timestamp,
			Equity:    e.equity(),
		})
	}

	// End of data: whatever is still open closes at the last known price.
	if len(snapshots) > 0 {
		e.closeAll(snapshots[len(snapshots)-1].Timestamp)
	}

	result := &Result{
		InitialCapital: e.cfg.InitialCapital,
		Trades:         append([]Trade(nil), e.closed...),
		EquityCurve:    append([]EquityPoint(nil), e.curve...),
		SkippedEntries: e.skipped,
	}
	result.Metrics = computeMetrics(result.Trades, result.EquityCurve,
		e.cfg.InitialCapital, e.cfg.Annualization)
	return result, nil
}

// observePrices records the latest price of every asset so positions can be
// marked even when an asset later drops out of a snapshot.
func (e *Engine) observePrices(snap *market.Snapshot) {
	for id, q := range snap.Assets {
		e.lastPrice[id] = q.Price
	}
}

// applyExitRules checks every open position against the exit rules in fixed
// priority order: stop-loss first, then take-profit. The first rule to
// trigger wins regardless of later price recovery.
func (e *Engine) applyExitRules(ts time.Time) {
	for _, pos := range e.positions {
		if pos.Status != StatusOpen {
			continue
		}
		price, ok := e.lastPrice[pos.Asset]
		if !ok {
			continue
		}
		change := float64(pos.Direction) * (price - pos.EntryPrice) / pos.EntryPrice
		switch {
		case change <= -e.cfg.StopLoss:
			e.closePosition(pos, ts, price, StatusStoppedOut)
		case change >= e.cfg.TakeProfit:
			e.closePosition(pos, ts, price, StatusTookProfit)
		}
	}
	e.sweepClosed()
}

// closeContrary closes open positions in the signal's source tier: capital is
// rotating away from them.
func (e *Engine) closeContrary(sig rotation.Signal, ts time.Time) {
	for _, pos := range e.positions {
		if pos.Status != StatusOpen || pos.Tier != sig.FromTier {
			continue
		}
		if price, ok := e.lastPrice[pos.Asset]; ok {
			e.closePosition(pos, ts, price, StatusClosed)
		}
	}
	e.sweepClosed()
}

// openPosition enters a long position in the signal's destination tier, sized
// by the tier adjustment and signal confidence, never exceeding max_position
// of current equity. Insufficient cash is a logged no-op.
func (e *Engine) openPosition(sig rotation.Signal, snap *market.Snapshot, assignment tier.Assignment) {
	asset, ok := e.targetAsset(sig.ToTier, snap, assignment)
	if !ok {
		log.Debug().
			Str("signal_id", sig.ID).
			Int("to_tier", sig.ToTier).
			Msg("No tradable asset in destination tier")
		return
	}
	entryPrice := snap.Assets[asset].Price

	equity := e.equity()
	confAdj := sig.Confidence
	if confAdj < 0.3 {
		confAdj = 0.3
	}
	if confAdj > 1.0 {
		confAdj = 1.0
	}
	size := equity * e.cfg.BaseFraction * e.cfg.TierAdjustment(sig.ToTier) * confAdj
	if cap := equity * e.cfg.MaxPosition; size > cap {
		size = cap
	}

	if size <= 0 || size > e.cash {
		e.skipped++
		log.Debug().
			Str("signal_id", sig.ID).
			Float64("size", size).
			Float64("cash", e.cash).
			Msg("Insufficient capital, entry skipped")
		return
	}

	e.seq++
	trade := &Trade{
		ID:         tradeID(snap.Timestamp, asset, e.seq),
		Asset:      asset,
		Tier:       sig.ToTier,
		Direction:  1,
		EntryTime:  snap.Timestamp,
		EntryPrice: entryPrice,
		Size:       size,
		Confidence: sig.Confidence,
		Status:     StatusOpen,
	}
	e.cash -= size
	e.positions = append(e.positions, trade)
}

// targetAsset picks the largest-cap asset of the destination tier present in
// this snapshot, tie-broken by asset id.
func (e *Engine) targetAsset(t int, snap *market.Snapshot, assignment tier.Assignment) (string, bool) {
	best := ""
	bestCap := -1.0
	for _, id := range snap.AssetIDs() {
		if assignment.Tiers[id] != t {
			continue
		}
		if c := snap.Assets[id].MarketCap; c > bestCap {
			best = id
			bestCap = c
		}
	}
	return best, best != ""
}

// closePosition realizes PnL into the cash balance and marks the trade
// terminal.
func (e *Engine) closePosition(pos *Trade, ts time.Time, price float64, status Status) {
	exitTime := ts
	pos.ExitTime = &exitTime
	pos.ExitPrice = price
	pos.PnL = (price - pos.EntryPrice) / pos.EntryPrice * pos.Size * float64(pos.Direction)
	pos.Status = status
	e.cash += pos.Size + pos.PnL
}

// closeAll force-closes remaining open positions at the last known price.
func (e *Engine) closeAll(ts time.Time) {
	for _, pos := range e.positions {
		if pos.Status != StatusOpen {
			continue
		}
		price, ok := e.lastPrice[pos.Asset]
		if !ok {
			price = pos.EntryPrice
		}
		e.closePosition(pos, ts, price, StatusClosed)
	}
	e.sweepClosed()
}

// sweepClosed moves terminal positions from the active set to the closed
// ledger, preserving close order.
func (e *Engine) sweepClosed() {
	active := e.positions[:0]
	for _, pos := range e.positions {
		if pos.Status.Terminal() {
			e.closed = append(e.closed, *pos)
		} else {
			active = append(active, pos)
		}
	}
	e.positions = active
}

// equity returns cash plus mark-to-market value of open positions.
func (e *Engine) equity() float64 {
	total := e.cash
	for _, pos := range e.positions {
		if pos.Status != StatusOpen {
			continue
		}
		price, ok := e.lastPrice[pos.Asset]
		if !ok {
			price = pos.EntryPrice
		}
		unrealized := (price - pos.EntryPrice) / pos.EntryPrice * pos.Size * float64(pos.Direction)
		total += pos.Size + unrealized
	}
	return total
}

// groupSignals buckets signals by timestamp, ordered within each bucket by id
// so replay is deterministic.
func groupSignals(signals []rotation.Signal) map[int64][]rotation.Signal {
	sorted := append([]rotation.Signal(nil), signals...)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.Before(sorted[j].Timestamp)
		}
		return sorted[i].ID < sorted[j].ID
	})
	grouped := make(map[int64][]rotation.Signal)
	for _, sig := range sorted {
		key := sig.Timestamp.UnixNano()
		grouped[key] = append(grouped[key], sig)
	}
	return grouped
}

// tradeID derives a stable identifier so identical runs reproduce identical
// trade lists.
func tradeID(ts time.Time, asset string, seq int) string {
	name := fmt.Sprintf("trade:%d:%s:%d", ts.UnixNano(), asset, seq)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
