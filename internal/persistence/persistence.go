package persistence

import (
	"context"
	"time"

	"github.com/sawpanic/tierflow/internal/backtest"
	"github.com/sawpanic/tierflow/internal/domain/rotation"
)

// RunRecord identifies one persisted analysis or backtest run.
type RunRecord struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"` // "scan", "backtest", "optimize"
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ResultStore persists signals and backtest outcomes for later review.
type ResultStore interface {
	SaveRun(ctx context.Context, run RunRecord) error
	SaveSignals(ctx context.Context, runID string, signals []rotation.Signal) error
	SaveBacktest(ctx context.Context, runID string, result *backtest.Result) error
	LatestRuns(ctx context.Context, kind string, limit int) ([]RunRecord, error)
	Close() error
}
