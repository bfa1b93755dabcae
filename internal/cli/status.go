package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-runner/internal/ledger"
	"github.com/aqasim81/migration-runner/internal/migration"
)

// Row states shown by status.
const (
	stateApplied     = "applied"
	statePending     = "pending"
	stateMissingFile = "missing file"
)

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display every migration file as applied or pending, plus ledger entries
whose file no longer exists. Nothing is created or modified.`,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	files, err := migration.LoadFromDir(afero.NewOsFs(), cfg.MigrationsDir, cfg.InitFile)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
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

	entries, err := ledger.New(conn, cfg.LedgerSchema, cfg.LedgerTable).Entries(ctx)
	if err != nil && !errors.Is(err, ledger.ErrLedgerMissing) {
		return err
	}

	rows := statusRows(migration.Sort(files), entries)

	table, err := pterm.DefaultTable.WithHasHeader().WithData(rows).Srender()
	if err != nil {
		return fmt.Errorf("rendering status table: %w", err)
	}

	fmt.Fprintln(out, table)
	fmt.Fprintln(out, statusSummary(rows))

	return nil
}

// statusRows builds the table: a header, then one row per file in order,
// then ledger entries with no file.
func statusRows(files []migration.Migration, entries []ledger.Entry) [][]string {
	recorded := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		recorded[e.Name] = e.AppliedAt
	}

	rows := [][]string{{"Migration", "State", "Applied at"}}
	onDisk := make(map[string]struct{}, len(files))

	for _, m := range files {
		onDisk[m.Name] = struct{}{}

		if at, ok := recorded[m.Name]; ok {
			rows = append(rows, []string{m.Name, stateApplied, formatTime(at)})
			continue
		}

		rows = append(rows, []string{m.Name, statePending, ""})
	}

	for _, e := range entries {
		if _, ok := onDisk[e.Name]; !ok {
			rows = append(rows, []string{e.Name, stateMissingFile, formatTime(e.AppliedAt)})
		}
	}

	return rows
}

func statusSummary(rows [][]string) string {
	counts := map[string]int{}
	for _, r := range rows[1:] {
		counts[r[1]]++
	}

	s := fmt.Sprintf("%d applied, %d pending", counts[stateApplied], counts[statePending])
	if n := counts[stateMissingFile]; n > 0 {
		s += fmt.Sprintf(", %d missing file", n)
	}

	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.Local().Format(time.DateTime)
}
