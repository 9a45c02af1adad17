package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tierflow/internal/backtest"
	"github.com/sawpanic/tierflow/internal/domain/rotation"
	"github.com/sawpanic/tierflow/internal/persistence"
)

func newMockRepo(t *testing.T) (*ResultsRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewWithDB(sqlx.NewDb(db, "postgres")), mock
}

func TestSaveRun(t *testing.T) {
	repo, mock := newMockRepo(t)

	run := persistence.RunRecord{
		ID:        "run-1",
		Kind:      "scan",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	mock.ExpectExec("INSERT INTO runs").
		WithArgs(run.ID, run.Kind, run.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignals(t *testing.T) {
	repo, mock := newMockRepo(t)

	signals := []rotation.Signal{
		{
			ID:         "sig-1",
			Timestamp:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			FromTier:   0,
			ToTier:     1,
			Confidence: 0.8,
			Metrics:    map[string]float64{"volume_zscore": 3.2},
		},
		{
			ID:         "sig-2",
			Timestamp:  time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC),
			FromTier:   2,
			ToTier:     0,
			Confidence: 0.7,
		},
	}

	mock.ExpectBegin()
	for range signals {
		mock.ExpectExec("INSERT INTO signals").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, repo.SaveSignals(context.Background(), "run-1", signals))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignalsEmptyIsNoop(t *testing.T) {
	repo, mock := newMockRepo(t)
	require.NoError(t, repo.SaveSignals(context.Background(), "run-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSignalsRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	signals := []rotation.Signal{{ID: "sig-1", Timestamp: time.Now()}}
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO signals").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	assert.Error(t, repo.SaveSignals(context.Background(), "run-1", signals))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveBacktest(t *testing.T) {
	repo, mock := newMockRepo(t)

	exitTime := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	result := &backtest.Result{
		InitialCapital: 100000,
		Trades: []backtest.Trade{
			{
				ID:         "trade-1",
				Asset:      "btc",
				Tier:       0,
				Direction:  1,
				EntryTime:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				ExitTime:   &exitTime,
				EntryPrice: 100,
				ExitPrice:  94,
				Size:       10000,
				Confidence: 0.8,
				PnL:        -600,
				Status:     backtest.StatusStoppedOut,
			},
		},
		Metrics:        backtest.Metrics{FinalEquity: 99400, TotalTrades: 1},
		SkippedEntries: 0,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO backtest_results").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO trades").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.SaveBacktest(context.Background(), "run-1", result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRuns(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "kind", "created_at"}).
		AddRow("run-2", "backtest", created.Add(time.Hour)).
		AddRow("run-1", "backtest", created)
	mock.ExpectQuery("SELECT id, kind, created_at").
		WithArgs("backtest", 10).
		WillReturnRows(rows)

	runs, err := repo.LatestRuns(context.Background(), "backtest", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)
}
