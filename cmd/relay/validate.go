package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/telemetry/logging"
)

var validateFlags struct {
	output string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration file with environment overrides applied, validate it
and print the resulting model catalog. API keys are shown redacted.

Exits with status 2 when the configuration is invalid.

Examples:
  relay validate --config config.yaml
  relay validate --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.output)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The registry performs the same checks the server does at startup.
	registry, err := backend.NewRegistry(cfg.BackendConfigs(), cfg.DefaultModel)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		fmt.Fprintf(out, "✓ %s is valid\n\n", cfgFile)
	}
	return cli.NewFormatter(format).FormatTo(out, modelTable(cfg, registry.Default()))
}

func modelTable(cfg *config.Config, defaultModel string) cli.Table {
	table := cli.Table{Headers: []string{"KEY", "MODEL", "BASE URL", "API KEY", "TIMEOUT", "RETRIES", "DEFAULT"}}
	for _, bc := range cfg.BackendConfigs() {
		table.Rows = append(table.Rows, []string{
			bc.Key,
			bc.ModelName,
			bc.BaseURL,
			logging.RedactKey(bc.APIKey),
			bc.Timeout.String(),
			strconv.Itoa(bc.MaxRetries),
			strconv.FormatBool(bc.Key == defaultModel),
		})
	}
	return table
}

func sortedModelKeys(cfg *config.Config) []string {
	keys := make([]string, 0, len(cfg.Models))
	for key := range cfg.Models {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
