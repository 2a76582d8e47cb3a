package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "Stateful chat relay for OpenAI-compatible backends",
	Long: `Relay sits between a chat client and an OpenAI-compatible completion backend.

Each chat turn names a session. The relay merges the turn with the stored
history, forwards it to the configured model, streams the reply back as it
arrives and persists the finished conversation.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupCLILogging,
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return cli.ExitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setupCLILogging installs a text logger on stderr for the offline
// commands. run replaces it with the configured logger.
func setupCLILogging(cmd *cobra.Command, args []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	_, err := logging.Setup(config.LoggingConfig{Level: level, Format: "text"}, os.Stderr)
	return err
}

// loadConfig loads cfgFile with environment overrides and installs it as the
// process configuration.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	slog.Debug("configuration loaded", "path", cfgFile)
	return config.GetConfig(), nil
}
