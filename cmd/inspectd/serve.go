package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/inspectflow/internal/app"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the voice annotation queue and the metrics endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				logger.Error().Err(err).Msg("failed to start")
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error().Err(err).Msg("failed to shut down cleanly")
				}
			}()

			logger.Info().Str("db_path", cfg.DBPath).Str("notify_backend", cfg.NotifyBackend).Msg("inspectd starting")
			return a.Run(ctx)
		},
	}
}
