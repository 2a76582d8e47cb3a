package main

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/security/secrets"
)

var secretsFlags struct {
	output string
}

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Inspect secret references",
}

var secretsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available secrets and the models that reference them",
	Long: `List every secret the configured providers can serve, plus every
${secret:name} reference in model API keys and whether it resolves.
Secret values are never printed.

The file is read without environment overrides so that unresolved
references can be reported instead of failing the load.

Examples:
  relay secrets list
  relay secrets list --output json`,
	Args: cobra.NoArgs,
	RunE: listSecrets,
}

func init() {
	rootCmd.AddCommand(secretsCmd)
	secretsCmd.AddCommand(secretsListCmd)

	secretsCmd.PersistentFlags().StringVarP(&secretsFlags.output, "output", "o", "text", "output format: text, json, csv")
}

func listSecrets(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(secretsFlags.output)
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	manager, err := config.SecretManager(cfg.Secrets)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	usedBy := make(map[string][]string)
	for _, key := range sortedModelKeys(cfg) {
		for _, name := range secrets.References(cfg.Models[key].APIKey) {
			usedBy[name] = append(usedBy[name], key)
		}
	}

	names := manager.ListSecrets(cmd.Context())
	for name := range usedBy {
		names = append(names, name)
	}
	sort.Strings(names)

	table := cli.Table{Headers: []string{"SECRET", "MODELS", "STATUS"}}
	for i, name := range names {
		if i > 0 && names[i-1] == name {
			continue
		}
		status := "available"
		if _, err := manager.GetSecret(cmd.Context(), name); err != nil {
			status = "missing"
		}
		table.Rows = append(table.Rows, []string{name, strings.Join(usedBy[name], ","), status})
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}
