package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-runner/internal/executor"
	"github.com/aqasim81/migration-runner/internal/ledger"
)

var applyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "apply",
	Short: "Apply pending migrations",
	Long: `Apply every migration file not yet listed in the ledger, in file-name
order, one at a time on a single session. The run stops at the first
migration that fails; earlier migrations stay applied and recorded.`,
	RunE: runApply,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	applyCmd.Flags().Duration("lock-timeout", 0, "override lock timeout (e.g., 10s, 1m)")
	applyCmd.Flags().Duration("statement-timeout", 0, "override statement timeout (e.g., 30s, 5m)")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	lockTimeout := cfg.LockTimeout
	if cmd.Flags().Changed("lock-timeout") {
		lockTimeout, _ = cmd.Flags().GetDuration("lock-timeout")
	}

	stmtTimeout := cfg.StatementTimeout
	if cmd.Flags().Changed("statement-timeout") {
		stmtTimeout, _ = cmd.Flags().GetDuration("statement-timeout")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	conn, release, err := openSession(ctx, cfg, out)
	if err != nil || conn == nil {
		return err
	}
	defer release()

	exec := executor.New(conn, ledger.New(conn, cfg.LedgerSchema, cfg.LedgerTable),
		executor.WithLockTimeout(lockTimeout),
		executor.WithStatementTimeout(stmtTimeout),
		executor.WithInitFile(cfg.InitFile),
		executor.WithLogger(newLogger(cmd)),
		executor.WithProgressCallback(progressPrinter(out)),
	)

	applied, err := exec.ApplyAll(ctx, cfg.MigrationsDir)
	if err != nil {
		return err
	}

	printSummary(out, applied)

	return nil
}

// progressPrinter renders executor events as they happen.
func progressPrinter(out io.Writer) func(executor.ProgressEvent) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	return func(event executor.ProgressEvent) {
		switch event.Status {
		case executor.StatusStarting:
			fmt.Fprintf(out, "  Applying %s ... ", event.Migration.Name)
		case executor.StatusSkipped:
			fmt.Fprintf(out, "  Skipping %s (already applied)\n", event.Migration.Name)
		case executor.StatusApplied:
			green.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))
		case executor.StatusRecovered:
			yellow.Fprintf(out, "done without CREATE SCHEMA (%s)\n", event.Duration.Truncate(time.Millisecond))
			printStripped(out, event.Stripped)
		case executor.StatusMarked:
			yellow.Fprintln(out, "marked as applied")
			printStripped(out, event.Stripped)

			if event.Error != nil {
				fmt.Fprintf(out, "    Reason: %v\n", event.Error)
			}
		case executor.StatusFailed:
			red.Fprintln(out, "FAILED")
			red.Fprintf(out, "    Error: %v\n", event.Error)
		}
	}
}

func printStripped(out io.Writer, stripped []string) {
	for _, line := range stripped {
		fmt.Fprintf(out, "    Removed: %s\n", line)
	}
}

func printSummary(out io.Writer, applied int) {
	if applied == 0 {
		color.New(color.FgGreen).Fprintln(out, "All migrations already up to date!")
		return
	}

	color.New(color.FgGreen, color.Bold).Fprintf(out, "%d migration(s) completed!\n", applied)
}
