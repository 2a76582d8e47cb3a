package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/relay"
	"mercator-hq/relay/pkg/security/secrets"
	"mercator-hq/relay/pkg/server"
	"mercator-hq/relay/pkg/session"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	envFile       string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the relay server",
	Long: `Start the relay server with the specified configuration.

The server loads every stored session, then listens for chat turns and
forwards them to the configured models. Edits to the models section of the
configuration file are picked up without a restart.

Examples:
  # Start with default config
  relay run

  # Start with custom config and secrets from a .env file
  relay run --config /etc/relay/config.yaml --env-file /etc/relay/.env

  # Override listen address
  relay run --listen 0.0.0.0:8080

  # Validate config without starting server
  relay run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.envFile, "env-file", ".env", "dotenv file with RELAY_* overrides (ignored when missing)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "do not reload models when the config file changes")
}

func runServer(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if runFlags.envFile != "" {
		set, err := config.LoadEnvFile(runFlags.envFile)
		if err != nil {
			return cli.NewConfigError(runFlags.envFile, err)
		}
		if len(set) > 0 {
			slog.Debug("environment loaded", "file", runFlags.envFile, "variables", len(set))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	if runFlags.dryRun {
		fmt.Fprintf(out, "✓ Configuration valid (%d models, %s sessions)\n", len(cfg.Models), cfg.Sessions.Backend)
		return nil
	}

	printBanner(cmd, cfg)

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	durable, err := openBackend(cfg.Sessions, cfg.Sessions.Backend)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	store, err := session.Open(ctx, durable)
	if err != nil {
		durable.Close()
		return cli.NewCommandError("run", err)
	}
	defer store.Close()
	fmt.Fprintf(out, "✓ Sessions loaded (%d sessions, %s backend)\n", store.Count(), durable.Kind())

	if cfg.Sessions.Backend == "file" {
		janitor := session.NewJanitor(cfg.Sessions.Dir, cfg.Sessions.SweepSchedule, cfg.Sessions.TempGrace)
		if err := janitor.Start(ctx); err != nil {
			logger.Warn("failed to start session janitor", "error", err)
		} else {
			defer janitor.Stop()
			if next := janitor.NextRun(); next != nil {
				logger.Debug("session janitor scheduled", "next_run", next)
			}
		}
	}

	registry, err := backend.NewRegistry(cfg.BackendConfigs(), cfg.DefaultModel)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	fmt.Fprintf(out, "✓ Models ready (%d models, default %q)\n", len(registry.Keys()), registry.Default())

	config.OnReload(func(next *config.Config) {
		if err := registry.Update(next.BackendConfigs(), next.DefaultModel); err != nil {
			logger.Error("model catalog reload rejected", "error", err)
			return
		}
		logger.Info("model catalog reloaded", "models", registry.Keys(), "default", registry.Default())
	})
	if !runFlags.noWatch {
		watcher := config.NewWatcher(config.Path(), nil)
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
		if cfg.Secrets.Dir != "" {
			watchSecrets(ctx, cfg.Secrets.Dir, logger)
		}
	}

	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		collector.SetSessions(store.Count())
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.OTLP.Timeout)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()
	if tracer.Enabled() {
		fmt.Fprintf(out, "✓ Tracing to %s (%s sampler)\n", cfg.Telemetry.Tracing.Endpoint, cfg.Telemetry.Tracing.Sampler)
	}

	orch := relay.New(store, registry, relay.Options{Metrics: collector, Logger: logger, Tracer: tracer})
	srv := server.NewServer(cfg, server.Dependencies{
		Relay:    orch,
		Sessions: store,
		Models:   registry,
		Metrics:  collector,
		Tracer:   tracer,
		Version:  versionInfo(),
		Logger:   logger,
	})

	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
	}
	fmt.Fprintf(out, "✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Fprintf(out, "✓ Health endpoint: %s://%s/health\n", scheme, cfg.Server.ListenAddress)
	if collector != nil {
		fmt.Fprintf(out, "✓ Metrics endpoint: %s://%s%s\n", scheme, cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	if cfg.Server.WebSocket.Enabled {
		wsScheme := "ws"
		if cfg.Server.TLS.Enabled {
			wsScheme = "wss"
		}
		fmt.Fprintf(out, "✓ WebSocket endpoint: %s://%s/ws\n", wsScheme, cfg.Server.ListenAddress)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

// watchSecrets reloads the configuration when a file in the secrets
// directory changes, so rotated API keys reach the model registry.
func watchSecrets(ctx context.Context, dir string, logger *slog.Logger) {
	fp, err := secrets.NewFileProvider(dir)
	if err != nil {
		logger.Warn("not watching secrets directory", "dir", dir, "error", err)
		return
	}
	go func() {
		err := fp.Watch(ctx, config.DefaultDebounce, func() {
			if err := config.ReloadConfig(config.Path()); err != nil {
				logger.Error("reload after secret change failed, keeping previous configuration", "error", err)
			}
		})
		if err != nil {
			logger.Warn("secrets watcher stopped", "error", err)
		}
	}()
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Relay v%s\n", Version)
	fmt.Fprintf(out, "Loading configuration from: %s\n", cfgFile)
	fmt.Fprintln(out, "✓ Configuration loaded")

	for _, key := range sortedModelKeys(cfg) {
		m := cfg.Models[key]
		slog.Debug("model configured",
			"key", key,
			"model_name", m.ModelName,
			"api_key", logging.RedactKey(m.APIKey),
		)
	}
}
