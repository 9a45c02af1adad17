package backtest

import (
	"time"
)

// Status tracks a position through its lifecycle. Terminal states are
// mutually exclusive and final.
type Status string

const (
	StatusPending    Status = "pending"
	StatusOpen       Status = "open"
	StatusClosed     Status = "closed"
	StatusStoppedOut Status = "stopped_out"
	StatusTookProfit Status = "took_profit"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusStoppedOut || s == StatusTookProfit
}

// Trade is one simulated position from entry to exit.
type Trade struct {
	ID         string     `json:"id"`
	Asset      string     `json:"asset"`
	Tier       int        `json:"tier"`
	Direction  int        `json:"direction"` // +1 long, -1 short
	EntryTime  time.Time  `json:"entry_time"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	EntryPrice float64    `json:"entry_price"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
	Size       float64    `json:"size"`
	Confidence float64    `json:"confidence"`
	PnL        float64    `json:"pnl"`
	Status     Status     `json:"status"`
}

// EquityPoint is one sample of the equity curve: cash plus mark-to-market
// value of open positions.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// Metrics summarizes one completed simulation run.
type Metrics struct {
	TotalReturn  float64         `json:"total_return"`
	WinRate      float64         `json:"win_rate"`
	SharpeRatio  float64         `json:"sharpe_ratio"`
	MaxDrawdown  float64         `json:"max_drawdown"`
	TotalTrades  int             `json:"total_trades"`
	FinalEquity  float64         `json:"final_equity"`
	TierReturns  map[int]float64 `json:"tier_returns"`
	TierTrades   map[int]int     `json:"tier_trades"`
}

// Result is the immutable summary of one backtest run.
type Result struct {
	InitialCapital float64       `json:"initial_capital"`
	Trades         []Trade       `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
	Metrics        Metrics       `json:"metrics"`

	// SkippedEntries counts signals that could not open a position for
	// lack of simulated capital. Diagnostic, not an error.
	SkippedEntries int `json:"skipped_entries"`
}
