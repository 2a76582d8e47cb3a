package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/cli"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/session"
)

// previewWidth caps message content in text listings.
const previewWidth = 60

var sessionsFlags struct {
	output string
	to     string
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage stored sessions",
	Long: `Inspect and manage the sessions in the configured storage backend.

These commands read storage directly and do not need a running server.

Examples:
  relay sessions list
  relay sessions show 0192f7c3-7d2a-7cc4-a1f3-5c7a7a0e6f10 --output json
  relay sessions create
  relay sessions migrate --to sqlite`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	Args:  cobra.NoArgs,
	RunE:  listSessions,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print the history of one session",
	Args:  cobra.ExactArgs(1),
	RunE:  showSession,
}

var sessionsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty session and print its id",
	Args:  cobra.NoArgs,
	RunE:  createSession,
}

var sessionsMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every session to another storage backend",
	Long: `Copy every session from the configured backend to another one.

The source is left untouched. Sessions that already exist in the target are
overwritten. Point sessions.backend at the target afterwards.`,
	Args: cobra.NoArgs,
	RunE: migrateSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsCreateCmd, sessionsMigrateCmd)

	sessionsCmd.PersistentFlags().StringVarP(&sessionsFlags.output, "output", "o", "text", "output format: text, json, csv")
	sessionsMigrateCmd.Flags().StringVar(&sessionsFlags.to, "to", "", "target backend: file or sqlite")
	_ = sessionsMigrateCmd.MarkFlagRequired("to")
}

// openStore loads the configured session store.
func openStore(ctx context.Context) (*session.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	durable, err := openBackend(cfg.Sessions, cfg.Sessions.Backend)
	if err != nil {
		return nil, err
	}
	store, err := session.Open(ctx, durable)
	if err != nil {
		durable.Close()
		return nil, err
	}
	return store, nil
}

func listSessions(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(sessionsFlags.output)
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	table := cli.Table{Headers: []string{"SESSION", "MESSAGES", "LAST"}}
	for _, id := range store.List() {
		messages, err := store.Load(id)
		if err != nil {
			return cli.NewCommandError("sessions list", err)
		}
		last := ""
		if n := len(messages); n > 0 {
			last = preview(messages[n-1])
		}
		table.Rows = append(table.Rows, []string{id, strconv.Itoa(len(messages)), last})
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func showSession(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(sessionsFlags.output)
	if err != nil {
		return err
	}

	id := args[0]
	if err := session.ValidateID(id); err != nil {
		return err
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	messages, err := store.Load(id)
	if err != nil {
		return cli.NewCommandError("sessions show", err)
	}

	if format == cli.FormatJSON {
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), map[string]any{
			"session_id": id,
			"messages":   messages,
		})
	}

	table := cli.Table{Headers: []string{"#", "ROLE", "CONTENT", "TOOL CALLS", "FINISH"}}
	for i, msg := range messages {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(i + 1),
			string(msg.Role),
			truncate(msg.Content),
			toolCallNames(msg),
			msg.FinishReason,
		})
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
}

func createSession(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Create(cmd.Context())
	if err != nil {
		return cli.NewCommandError("sessions create", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func migrateSessions(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if sessionsFlags.to == cfg.Sessions.Backend {
		return fmt.Errorf("sessions already use the %s backend", sessionsFlags.to)
	}

	n, err := migrate(cmd.Context(), cfg.Sessions, sessionsFlags.to, cli.NewProgressReporter(cmd.ErrOrStderr(), "Migrating"))
	if err != nil {
		return cli.NewCommandError("sessions migrate", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Migrated %d sessions from %s to %s\n", n, cfg.Sessions.Backend, sessionsFlags.to)
	return nil
}

// migrate copies every session from the configured backend to the target
// backend and returns how many were copied.
func migrate(ctx context.Context, cfg config.SessionsConfig, target string, progress cli.ProgressReporter) (int, error) {
	src, err := openBackend(cfg, cfg.Backend)
	if err != nil {
		return 0, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	dst, err := openBackend(cfg, target)
	if err != nil {
		return 0, fmt.Errorf("open target: %w", err)
	}
	defer dst.Close()

	all, err := src.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load sessions: %w", err)
	}

	progress.Start(len(all))
	copied := 0
	for id, messages := range all {
		if err := dst.Save(ctx, id, messages); err != nil {
			progress.Error(err)
			return copied, err
		}
		copied++
		progress.Increment()
	}
	progress.Finish()
	return copied, nil
}

func preview(msg chat.Message) string {
	if msg.Content == "" && len(msg.ToolCalls) > 0 {
		return fmt.Sprintf("%s: [tool calls: %s]", msg.Role, toolCallNames(msg))
	}
	return fmt.Sprintf("%s: %s", msg.Role, truncate(msg.Content))
}

func toolCallNames(msg chat.Message) string {
	names := make([]string, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		names = append(names, tc.Function.Name)
	}
	return strings.Join(names, ",")
}

func truncate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewWidth {
		return string(r[:previewWidth-1]) + "…"
	}
	return s
}
