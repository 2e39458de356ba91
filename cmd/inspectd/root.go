package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vbonduro/inspectflow/internal/config"
	"github.com/vbonduro/inspectflow/internal/logging"
)

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "inspectd",
		Short:         "Vehicle inspection workflow and voice annotation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "YAML config file (overrides CONFIG_FILE)")
	root.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	_ = viper.BindPFlag("config_file", root.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(serveCommand(), migrateCommand(), parseCommand(), rulesCommand())
	return root
}

// setup loads configuration and the logger shared by every subcommand. The
// returned cleanup must be deferred.
func setup() (*config.Config, zerolog.Logger, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, zerolog.Nop(), nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, cleanup, nil
}
