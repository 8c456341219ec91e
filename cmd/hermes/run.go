package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scribe-hq/hermes/pkg/config"
	"scribe-hq/hermes/pkg/prompt"
	"scribe-hq/hermes/pkg/providers"
	"scribe-hq/hermes/pkg/providers/openai"
	"scribe-hq/hermes/pkg/server"
	"scribe-hq/hermes/pkg/telemetry"
	"scribe-hq/hermes/pkg/telemetry/metrics"
	"scribe-hq/hermes/pkg/usage"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	watchConfig   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Hermes relay server",
	Long: `Start the Hermes relay server with the specified configuration.

Examples:
  # Start with default config
  hermes run

  # Start with custom config
  hermes run --config /etc/hermes/config.yaml

  # Override listen address
  hermes run --listen 0.0.0.0:8085

  # Reload configuration on file changes
  hermes run --watch-config`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.watchConfig, "watch-config", false, "reload configuration on file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if _, err := telemetry.SetupLogging(&cfg.Telemetry.Logging); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	slog.Info("starting hermes",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"provider", cfg.Provider.Name,
		"base_url", cfg.Provider.BaseURL,
	)

	provider := openai.NewProvider(providers.Config{
		Name:            cfg.Provider.Name,
		BaseURL:         cfg.Provider.BaseURL,
		APIKey:          cfg.Provider.APIKey,
		Timeout:         cfg.Provider.Timeout,
		MaxIdleConns:    cfg.Provider.MaxIdleConns,
		IdleConnTimeout: cfg.Provider.IdleConnTimeout,
	})
	defer provider.Close()

	store, err := prompt.NewStore(&prompt.StoreConfig{
		Path:         cfg.Store.Path,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
		BusyTimeout:  cfg.Store.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to open prompt store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var ledger *usage.Ledger
	if cfg.Usage.Enabled {
		ledger, err = usage.NewLedger(&usage.LedgerConfig{
			Path:          cfg.Usage.Path,
			RetentionDays: cfg.Usage.RetentionDays,
			PruneSchedule: cfg.Usage.PruneSchedule,
		})
		if err != nil {
			return fmt.Errorf("failed to open usage ledger: %w", err)
		}
		defer ledger.Close()

		scheduler := usage.NewScheduler(ledger)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	}

	if runFlags.watchConfig {
		watcher, err := config.NewWatcher(cfgFile, slog.Default())
		if err != nil {
			return fmt.Errorf("failed to create config watcher: %w", err)
		}
		defer watcher.Close()

		go func() {
			// Reloads that change the listen address or stores require a
			// restart; log level changes apply immediately.
			err := watcher.Watch(ctx, func(newCfg *config.Config) {
				if _, err := telemetry.SetupLogging(&newCfg.Telemetry.Logging); err != nil {
					slog.Error("failed to apply reloaded logging config", "error", err)
				}
			})
			if err != nil {
				slog.Error("config watcher stopped", "error", err)
			}
		}()
	}

	srv := server.NewServer(server.Options{
		Config:      &cfg.Server,
		Provider:    provider,
		Store:       store,
		Ledger:      ledger,
		Collector:   collector,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Version:     Version,
	})

	return srv.Start(ctx)
}
