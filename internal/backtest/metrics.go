package backtest

import "math"

// computeMetrics derives the run summary from the closed trade list and
// equity curve.
func computeMetrics(trades []Trade, curve []EquityPoint, initialCapital, annualization float64) Metrics {
	m := Metrics{
		TotalTrades: len(trades),
		FinalEquity: initialCapital,
		TierReturns: make(map[int]float64),
		TierTrades:  make(map[int]int),
	}
	if len(curve) > 0 {
		m.FinalEquity = curve[len(curve)-1].Equity
	}
	if initialCapital > 0 {
		m.TotalReturn = (m.FinalEquity - initialCapital) / initialCapital
	}

	wins := 0
	tierPnL := make(map[int]float64)
	tierAllocated := make(map[int]float64)
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
		tierPnL[t.Tier] += t.PnL
		tierAllocated[t.Tier] += t.Size
		m.TierTrades[t.Tier]++
	}
	if len(trades) > 0 {
		m.WinRate = float64(wins) / float64(len(trades))
	}
	for tier, pnl := range tierPnL {
		if alloc := tierAllocated[tier]; alloc > 0 {
			m.TierReturns[tier] = pnl / alloc
		}
	}

	m.SharpeRatio = sharpeRatio(curve, annualization)
	m.MaxDrawdown = maxDrawdown(curve)
	return m
}

// sharpeRatio computes mean periodic return over its standard deviation,
// scaled by the configured annualization factor. Fewer than three equity
// points or a flat curve yield 0.
func sharpeRatio(curve []EquityPoint, annualization float64) float64 {
	if len(curve) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	avg := sum / float64(len(returns))

	var ss float64
	for _, r := range returns {
		d := r - avg
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(returns)))
	if sd == 0 {
		return 0
	}
	if annualization <= 0 {
		annualization = 1
	}
	return avg / sd * annualization
}

// maxDrawdown returns the largest peak-to-trough decline of the equity curve
// as a positive fraction of the peak.
func maxDrawdown(curve []EquityPoint) float64 {
	peak := 0.0
	worst := 0.0
	for _, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
