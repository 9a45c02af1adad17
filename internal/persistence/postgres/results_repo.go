package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/backtest"
	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/persistence"
)

// ResultsRepo persists runs, signals, and backtest outcomes to Postgres.
type ResultsRepo struct {
	db *sqlx.DB
}

// NewResultsRepo connects using the given DSN and verifies the connection.
func NewResultsRepo(dsn string) (*ResultsRepo, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &ResultsRepo{db: db}, nil
}

// NewWithDB wraps an existing connection. Used by tests.
func NewWithDB(db *sqlx.DB) *ResultsRepo {
	return &ResultsRepo{db: db}
}

// SaveRun records one run header row.
func (r *ResultsRepo) SaveRun(ctx context.Context, run persistence.RunRecord) error {
	const q = `
		INSERT INTO runs (id, kind, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, run.ID, run.Kind, run.CreatedAt); err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveSignals writes the accepted signals of a run in one transaction.
func (r *ResultsRepo) SaveSignals(ctx context.Context, runID string, signals []rotation.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin signal transaction: %w", err)
	}
	defer tx.Rollback()

	const q = `
		INSERT INTO signals (id, run_id, ts, from_tier, to_tier, confidence, metrics)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	for _, sig := range signals {
		metrics, err := json.Marshal(sig.Metrics)
		if err != nil {
			return fmt.Errorf("failed to encode signal metrics: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q,
			sig.ID, runID, sig.Timestamp, sig.FromTier, sig.ToTier,
			sig.Confidence, metrics); err != nil {
			return fmt.Errorf("failed to save signal %s: %w", sig.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signals: %w", err)
	}
	log.Debug().Str("run_id", runID).Int("signals", len(signals)).Msg("Signals persisted")
	return nil
}

// SaveBacktest writes the summary metrics and trade ledger of one run.
func (r *ResultsRepo) SaveBacktest(ctx context.Context, runID string, result *backtest.Result) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin backtest transaction: %w", err)
	}
	defer tx.Rollback()

	const summaryQ = `
		INSERT INTO backtest_results
			(run_id, initial_capital, final_equity, total_return,
			 win_rate, sharpe_ratio, max_drawdown, total_trades, skipped_entries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			final_equity = EXCLUDED.final_equity,
			total_return = EXCLUDED.total_return,
			win_rate = EXCLUDED.win_rate,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			max_drawdown = EXCLUDED.max_drawdown,
			total_trades = EXCLUDED.total_trades,
			skipped_entries = EXCLUDED.skipped_entries`
	m := result.Metrics
	if _, err := tx.ExecContext(ctx, summaryQ,
		runID, result.InitialCapital, m.FinalEquity, m.TotalReturn,
		m.WinRate, m.SharpeRatio, m.MaxDrawdown, m.TotalTrades,
		result.SkippedEntries); err != nil {
		return fmt.Errorf("failed to save backtest summary: %w", err)
	}

	const tradeQ = `
		INSERT INTO trades
			(id, run_id, asset, tier, direction, entry_time, exit_time,
			 entry_price, exit_price, size, confidence, pnl, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`
	for _, t := range result.Trades {
		if _, err := tx.ExecContext(ctx, tradeQ,
			t.ID, runID, t.Asset, t.Tier, t.Direction, t.EntryTime, t.ExitTime,
			t.EntryPrice, t.ExitPrice, t.Size, t.Confidence, t.PnL,
			string(t.Status)); err != nil {
			return fmt.Errorf("failed to save trade %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit backtest result: %w", err)
	}
	log.Debug().Str("run_id", runID).Int("trades", len(result.Trades)).Msg("Backtest result persisted")
	return nil
}

// LatestRuns returns the most recent runs of a kind, newest first.
func (r *ResultsRepo) LatestRuns(ctx context.Context, kind string, limit int) ([]persistence.RunRecord, error) {
	const q = `
		SELECT id, kind, created_at
		FROM runs
		WHERE kind = $1
		ORDER BY created_at DESC
		LIMIT $2`
	var runs []persistence.RunRecord
	if err := r.db.SelectContext(ctx, &runs, q, kind, limit); err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return runs, nil
}

// Close releases the connection pool.
func (r *ResultsRepo) Close() error {
	return r.db.Close()
}
