package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tierflow/internal/application/pipeline"
	"github.com/sawpanic/tierflow/internal/backtest"
	"github.com/sawpanic/tierflow/internal/infrastructure/source"
	"github.com/sawpanic/tierflow/internal/metrics"
	"github.com/sawpanic/tierflow/internal/persistence"
	"github.com/sawpanic/tierflow/internal/persistence/postgres"
)

func backtestCmd() *cobra.Command {
	var input string
	var showTrades bool

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay rotation signals against price history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snapshots, err := source.LoadSnapshots(input)
			if err != nil {
				return err
			}

			collector := metrics.NewCollector()
			pipe, err := pipeline.New(cfg.Analysis)
			if err != nil {
				return err
			}
			pipe.SetObserver(collector)

			pr, err := pipe.Run(cmd.Context(), snapshots)
			if err != nil {
				return err
			}
			log.Info().
				Int("snapshots", len(pr.Snapshots)).
				Int("signals", len(pr.Signals)).
				Msg("Pipeline pass complete, replaying signals")

			engine, err := backtest.NewEngine(cfg.Backtest)
			if err != nil {
				return err
			}
			result, err := engine.Run(pr.Snapshots, pr.Assignments, pr.Signals)
			if err != nil {
				return err
			}
			for _, t := range result.Trades {
				collector.TradeClosed(string(t.Status))
			}
			collector.SetEquity(result.Metrics.FinalEquity)

			printBacktest(os.Stdout, result, showTrades)

			if cfg.Database.Enabled {
				if err := persistBacktest(cmd.Context(), cfg.Database.DSN, pr, result); err != nil {
					log.Warn().Err(err).Msg("Failed to persist backtest results")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot history file (.json or .jsonl)")
	cmd.Flags().BoolVar(&showTrades, "trades", false, "print the full trade ledger")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printBacktest(w io.Writer, result *backtest.Result, showTrades bool) {
	m := result.Metrics
	fmt.Fprintln(w, "Backtest Results:")
	fmt.Fprintf(w, "- initial_capital: %.2f\n", result.InitialCapital)
	fmt.Fprintf(w, "- final_equity:    %.2f\n", m.FinalEquity)
	fmt.Fprintf(w, "- total_return:    %.4f\n", m.TotalReturn)
	fmt.Fprintf(w, "- win_rate:        %.4f\n", m.WinRate)
	fmt.Fprintf(w, "- sharpe_ratio:    %.4f\n", m.SharpeRatio)
	fmt.Fprintf(w, "- max_drawdown:    %.4f\n", m.MaxDrawdown)
	fmt.Fprintf(w, "- total_trades:    %d\n", m.TotalTrades)
	fmt.Fprintf(w, "- skipped_entries: %d\n", result.SkippedEntries)

	if len(m.TierReturns) > 0 {
		fmt.Fprintln(w, "\nPer-tier performance:")
		tiers := make([]int, 0, len(m.TierReturns))
		for t := range m.TierReturns {
			tiers = append(tiers, t)
		}
		sort.Ints(tiers)
		table := tablewriter.NewWriter(w)
		table.Header("Tier", "Trades", "Return")
		for _, t := range tiers {
			table.Append(
				fmt.Sprintf("T%d", t),
				fmt.Sprintf("%d", m.TierTrades[t]),
				fmt.Sprintf("%.4f", m.TierReturns[t]),
			)
		}
		table.Render()
	}

	if showTrades && len(result.Trades) > 0 {
		fmt.Fprintln(w, "\nTrades:")
		table := tablewriter.NewWriter(w)
		table.Header("Asset", "Tier", "Entry", "Exit", "Size", "PnL", "Status")
		for _, t := range result.Trades {
			exit := "-"
			if t.ExitTime != nil {
				exit = t.ExitTime.Format(time.RFC3339)
			}
			table.Append(
				t.Asset,
				fmt.Sprintf("T%d", t.Tier),
				t.EntryTime.Format(time.RFC3339),
				exit,
				fmt.Sprintf("%.2f", t.Size),
				fmt.Sprintf("%+.2f", t.PnL),
				string(t.Status),
			)
		}
		table.Render()
	}
}

func persistBacktest(ctx context.Context, dsn string, pr *pipeline.Result, result *backtest.Result) error {
	repo, err := postgres.NewResultsRepo(dsn)
	if err != nil {
		return err
	}
	defer repo.Close()

	run := persistence.RunRecord{
		ID:        uuid.New().String(),
		Kind:      "backtest",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := repo.SaveSignals(ctx, run.ID, pr.Signals); err != nil {
		return err
	}
	return repo.SaveBacktest(ctx, run.ID, result)
}
