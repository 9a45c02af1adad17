package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tierflow/internal/application/pipeline"
	"github.com/sawpanic/tierflow/internal/infrastructure/cache"
	"github.com/sawpanic/tierflow/internal/infrastructure/source"
	"github.com/sawpanic/tierflow/internal/metrics"
	"github.com/sawpanic/tierflow/internal/persistence"
	"github.com/sawpanic/tierflow/internal/persistence/postgres"
)

func scanCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Detect tier rotation signals in a snapshot history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snapshots, err := source.LoadSnapshots(input)
			if err != nil {
				return err
			}
			log.Info().Int("snapshots", len(snapshots)).Str("file", input).Msg("Snapshots loaded")

			if cfg.Cache.Enabled {
				c := cache.NewSnapshotCache(cfg.Cache)
				defer c.Close()
				c.StoreAll(cmd.Context(), snapshots)
			}

			collector := metrics.NewCollector()
			pipe, err := pipeline.New(cfg.Analysis)
			if err != nil {
				return err
			}
			pipe.SetObserver(collector)

			result, err := pipe.Run(cmd.Context(), snapshots)
			if err != nil {
				return err
			}

			printSignals(result)

			if cfg.Database.Enabled {
				if err := persistScan(cmd.Context(), cfg.Database.DSN, result); err != nil {
					log.Warn().Err(err).Msg("Failed to persist scan results")
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot history file (.json or .jsonl)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printSignals(result *pipeline.Result) {
	fmt.Printf("Processed %d snapshots (%d skipped), %d signals accepted, %d rejected\n\n",
		len(result.Snapshots), result.SkippedSnapshots,
		len(result.Signals), result.RejectedSignals)

	if len(result.Signals) == 0 {
		fmt.Println("No rotation signals detected.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Time", "From", "To", "Confidence", "Vol Z", "Corr", "Pattern")
	for _, sig := range result.Signals {
		table.Append(
			sig.Timestamp.Format(time.RFC3339),
			fmt.Sprintf("T%d", sig.FromTier),
			fmt.Sprintf("T%d", sig.ToTier),
			fmt.Sprintf("%.3f", sig.Confidence),
			fmt.Sprintf("%.2f", sig.Metrics["volume_zscore"]),
			fmt.Sprintf("%.2f", sig.Metrics["correlation"]),
			fmt.Sprintf("%.2f", sig.Metrics["pattern_score"]),
		)
	}
	table.Render()
}

func persistScan(ctx context.Context, dsn string, result *pipeline.Result) error {
	repo, err := postgres.NewResultsRepo(dsn)
	if err != nil {
		return err
	}
	defer repo.Close()

	run := persistence.RunRecord{
		ID:        uuid.New().String(),
		Kind:      "scan",
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.SaveRun(ctx, run); err != nil {
		return err
	}
	return repo.SaveSignals(ctx, run.ID, result.Signals)
}
