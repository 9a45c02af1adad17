package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	tfhttp "github.com/sawpanic/tierflow/internal/interfaces/http"
	"github.com/sawpanic/tierflow/internal/metrics"
)

func monitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Serve health and Prometheus metrics endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			collector := metrics.NewCollector()
			server := tfhttp.NewServer(cfg.Monitor.Addr, collector)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case <-cmd.Context().Done():
				log.Info().Msg("Shutting down monitoring server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				return err
			}
		},
	}
}
