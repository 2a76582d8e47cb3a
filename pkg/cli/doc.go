/*
Package cli provides command-line helpers for the relay binary.

Output Formatting:

Commands that print listings accept --output text|json|csv:

	format, err := cli.ParseOutputFormat(outputFlag)
	if err != nil {
		return err
	}
	table := cli.Table{Headers: []string{"SESSION", "MESSAGES"}, Rows: rows}
	if err := cli.NewFormatter(format).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "Migrating")
	progress.Start(len(ids))
	for range ids {
		// copy one session
		progress.Increment()
	}
	progress.Finish()

Errors and Exit Codes:

ConfigError marks failures caused by the configuration file; ExitCode maps
them to exit status 2 and every other error to 1.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
