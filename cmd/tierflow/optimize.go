package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sawpanic/tierflow/internal/infrastructure/source"
	tflog "github.com/sawpanic/tierflow/internal/log"
	"github.com/sawpanic/tierflow/internal/optimize"
)

func optimizeCmd() *cobra.Command {
	var input string
	var spacePath string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Sweep detector thresholds against backtest performance",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			snapshots, err := source.LoadSnapshots(input)
			if err != nil {
				return err
			}

			space := optimize.DefaultSpace()
			if spacePath != "" {
				space, err = optimize.LoadSpace(spacePath)
				if err != nil {
					return err
				}
			}

			opt, err := optimize.New(cfg)
			if err != nil {
				return err
			}

			total := len(space.Candidates())
			bar := tflog.NewProgressBar("Optimizing", total)
			opt.SetProgress(func(completed, _ int) {
				bar.Update(completed)
			})

			result, err := opt.Optimize(cmd.Context(), snapshots, space)
			bar.Finish()
			if err != nil && result == nil {
				return err
			}

			fmt.Println(result.Summary())
			printTopK(result)
			return err
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "snapshot history file (.json or .jsonl)")
	cmd.Flags().StringVar(&spacePath, "space", "", "YAML file describing the sweep grid (defaults apply when omitted)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printTopK(result *optimize.Result) {
	if len(result.TopK) < 2 {
		return
	}
	fmt.Println("Top candidates:")
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Rank", "Vol Thr", "Corr Thr", "Min Conf", "Base Frac", "Score", "Sharpe", "Drawdown")
	for i, e := range result.TopK {
		table.Append(
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%.2f", e.Candidate.VolumeThreshold),
			fmt.Sprintf("%.2f", e.Candidate.CorrelationThreshold),
			fmt.Sprintf("%.2f", e.Candidate.MinConfidence),
			fmt.Sprintf("%.3f", e.Candidate.BaseFraction),
			fmt.Sprintf("%.4f", e.Score),
			fmt.Sprintf("%.4f", e.Result.Metrics.SharpeRatio),
			fmt.Sprintf("%.4f", e.Result.Metrics.MaxDrawdown),
		)
	}
	table.Render()
}
