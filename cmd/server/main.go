package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"econglobe.io/explorer/internal/catalog"
	"econglobe.io/explorer/internal/config"
	"econglobe.io/explorer/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configPath, logLevel string

	root := &cobra.Command{
		Use:   "econglobe",
		Short: "Explore World Bank economic indicators on a globe",
		Long: `econglobe serves the globe explorer, the country comparison page and
per-user dashboards.

Run without a subcommand to start the HTTP server. The catalog and compare
subcommands talk to the same upstream services from the terminal.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(configPath, logLevel)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "TOML config file (overrides ECONGLOBE_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "DEBUG, INFO, WARN or ERROR (overrides LOG_LEVEL)")

	root.AddCommand(
		newServeCmd(a),
		newCountriesCmd(a),
		newSeriesCmd(a),
		newCompareCmd(a),
	)
	return root
}

func (a *app) init(configPath, logLevel string) error {
	if configPath != "" {
		if err := os.Setenv("ECONGLOBE_CONFIG", configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Read()
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) catalog() *catalog.Client {
	return catalog.NewClient(a.cfg.WorldBankURL, nil, a.logger.Named("catalog"))
}
