package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/afero"

	"github.com/aqasim81/migration-runner/internal/database"
	"github.com/aqasim81/migration-runner/internal/ledger"
	"github.com/aqasim81/migration-runner/internal/migration"
	"github.com/aqasim81/migration-runner/internal/parser"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting = "starting"
	// StatusApplied: the body ran and the ledger entry was written.
	StatusApplied = "applied"
	// StatusSkipped: the ledger already lists the migration.
	StatusSkipped = "skipped"
	// StatusRecovered: the body ran after CREATE SCHEMA lines were stripped.
	StatusRecovered = "recovered"
	// StatusMarked: the body did not run to completion, but its objects were
	// judged to exist already, so the ledger entry was written anyway.
	StatusMarked = "marked"
	StatusFailed = "failed"
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Migration
	Status    string
	Duration  time.Duration
	Error     error
	Stripped  []string // CREATE SCHEMA lines removed on the recovery path
}

// LedgerStore abstracts the ledger table for testability.
type LedgerStore interface {
	Schema() string
	EnsureSchema(ctx context.Context) error
	EnsureTable(ctx context.Context, initSQL string) error
	Applied(ctx context.Context) (map[string]struct{}, error)
	Record(ctx context.Context, name string) error
}

// sqlExecFunc executes one migration body.
type sqlExecFunc func(ctx context.Context, sql string) error

// Executor applies pending migrations one at a time, in name order, on a
// single session, recording each in the ledger.
type Executor struct {
	session          database.Session
	ledger           LedgerStore
	fs               afero.Fs
	initFile         string
	lockTimeout      time.Duration
	statementTimeout time.Duration
	onProgress       func(ProgressEvent)
	logger           *slog.Logger
	execSQL          sqlExecFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithLockTimeout sets the per-transaction lock_timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Executor) { e.lockTimeout = d }
}

// WithStatementTimeout sets the per-transaction statement_timeout.
func WithStatementTimeout(d time.Duration) Option {
	return func(e *Executor) { e.statementTimeout = d }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithFs sets the filesystem migrations are read from.
func WithFs(fs afero.Fs) Option {
	return func(e *Executor) { e.fs = fs }
}

// WithInitFile sets the reserved initializer file name.
func WithInitFile(name string) Option {
	return func(e *Executor) { e.initFile = name }
}

// New creates an Executor running on session and recording into l.
func New(session database.Session, l LedgerStore, opts ...Option) *Executor {
	e := &Executor{
		session:  session,
		ledger:   l,
		initFile: migration.DefaultInitFile,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.setDefaults()

	return e
}

// setDefaults fills injectable dependencies left nil by options or tests.
func (e *Executor) setDefaults() {
	if e.fs == nil {
		e.fs = afero.NewOsFs()
	}

	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}

	if e.execSQL == nil {
		e.execSQL = e.executeSQL
	}
}

// ApplyAll brings the database up to date with the migrations in dir and
// returns how many migration bodies ran successfully. Migrations only
// marked in the ledger are not counted.
func (e *Executor) ApplyAll(ctx context.Context, dir string) (int, error) {
	e.setDefaults()

	if err := e.ensureLedger(ctx, dir); err != nil {
		return 0, err
	}

	all, applied, err := e.discover(ctx, dir)
	if err != nil {
		return 0, err
	}

	count := 0

	for i := range all {
		m := &all[i]

		if _, ok := applied[m.Name]; ok {
			e.fireProgress(ProgressEvent{Migration: m, Status: StatusSkipped})
			continue
		}

		status, err := e.applyOne(ctx, m)
		if err != nil {
			return count, err
		}

		if status == StatusApplied || status == StatusRecovered {
			count++
		}
	}

	return count, nil
}

// ListPending returns the migrations in dir that the ledger does not list,
// sorted by name. A missing ledger means everything is pending.
func (e *Executor) ListPending(ctx context.Context, dir string) ([]migration.Migration, error) {
	e.setDefaults()

	all, applied, err := e.discover(ctx, dir)
	if err != nil {
		return nil, err
	}

	return migration.Pending(all, applied), nil
}

// ensureLedger creates the ledger schema and table. The initializer in dir,
// if present, replaces the built-in table DDL and is never recorded.
func (e *Executor) ensureLedger(ctx context.Context, dir string) error {
	if err := e.ledger.EnsureSchema(ctx); err != nil {
		if errors.Is(err, ledger.ErrPermissionDenied) {
			return fmt.Errorf(
				"%w: schema %s does not exist and this role cannot create it; "+
					"ask a database administrator to run CREATE SCHEMA %s (or grant CREATE on the database), then re-run: %w",
				ErrSchemaProvisioning, e.ledger.Schema(), pgx.Identifier{e.ledger.Schema()}.Sanitize(), err,
			)
		}

		return fmt.Errorf("ensuring ledger schema: %w", err)
	}

	init, err := migration.LoadInit(e.fs, dir, e.initFile)
	if err != nil {
		return err
	}

	var initSQL string
	if init != nil {
		initSQL = init.SQL
		e.logger.Debug("running initializer", "file", init.FileName)
	}

	if err := e.ledger.EnsureTable(ctx, initSQL); err != nil {
		return fmt.Errorf("ensuring ledger table: %w", err)
	}

	return nil
}

// discover loads the ledger and all migration files, sorted by name.
func (e *Executor) discover(ctx context.Context, dir string) ([]migration.Migration, map[string]struct{}, error) {
	applied, err := e.readLedger(ctx)
	if err != nil {
		return nil, nil, err
	}

	all, err := migration.LoadFromDir(e.fs, dir, e.initFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading migrations: %w", err)
	}

	return migration.Sort(all), applied, nil
}

// readLedger returns the applied set, treating a missing ledger as empty.
func (e *Executor) readLedger(ctx context.Context) (map[string]struct{}, error) {
	applied, err := e.ledger.Applied(ctx)
	if errors.Is(err, ledger.ErrLedgerMissing) {
		e.logger.Debug("ledger not found; treating as empty", "error", err)

		return map[string]struct{}{}, nil
	}

	if err != nil {
		return nil, err
	}

	return applied, nil
}

// applyOne runs a single pending migration through the
// Executing -> {Applied, RecoveredApplied, Marked, Fatal} transitions.
func (e *Executor) applyOne(ctx context.Context, m *migration.Migration) (string, error) {
	e.fireProgress(ProgressEvent{Migration: m, Status: StatusStarting})

	start := time.Now()

	execErr := e.execSQL(ctx, m.SQL)
	if execErr == nil {
		if err := e.ledger.Record(ctx, m.Name); err != nil {
			return "", e.fail(m, start, err)
		}

		e.fireProgress(ProgressEvent{Migration: m, Status: StatusApplied, Duration: time.Since(start)})

		return StatusApplied, nil
	}

	kind := database.Classify(execErr)

	switch {
	case kind == database.KindPermissionDenied && database.MentionsSchemaOrDatabase(execErr):
		return e.recoverWithoutSchema(ctx, m, start, execErr)
	case kind == database.KindDuplicateObject:
		e.logger.Info("objects already exist; marking migration applied",
			"migration", m.Name, "error", execErr)
		e.markApplied(ctx, m, start, execErr, nil)

		return StatusMarked, nil
	default:
		e.logger.Debug("migration failed", "migration", m.Name, "kind", kind)

		return "", e.fail(m, start, fmt.Errorf("%w: %w", ErrExecutionFailed, execErr))
	}
}

// recoverWithoutSchema handles a schema/database permission denial: the
// objects were most likely provisioned by someone else, so the body is
// retried without its CREATE SCHEMA lines. A retry that again hits a
// permission or duplicate-object error is marked applied without proof that
// every object exists; this favors convergence over blocking.
func (e *Executor) recoverWithoutSchema(
	ctx context.Context,
	m *migration.Migration,
	start time.Time,
	cause error,
) (string, error) {
	remainder, stripped := migration.StripCreateSchema(m.SQL)

	e.logger.Warn("schema privilege denied; retrying without CREATE SCHEMA statements",
		"migration", m.Name, "stripped", stripped, "error", cause)

	if migration.IsBlank(remainder) {
		e.markApplied(ctx, m, start, cause, stripped)

		return StatusMarked, nil
	}

	retryErr := e.execSQL(ctx, remainder)
	if retryErr == nil {
		e.recordBestEffort(ctx, m)
		e.fireProgress(ProgressEvent{
			Migration: m,
			Status:    StatusRecovered,
			Duration:  time.Since(start),
			Stripped:  stripped,
		})

		return StatusRecovered, nil
	}

	switch database.Classify(retryErr) {
	case database.KindPermissionDenied, database.KindDuplicateObject:
		e.logger.Warn("retry failed on existing or unowned objects; marking migration applied",
			"migration", m.Name, "error", retryErr)
		e.markApplied(ctx, m, start, retryErr, stripped)

		return StatusMarked, nil
	default:
		return "", e.fail(m, start, fmt.Errorf("%w: retry without CREATE SCHEMA: %w", ErrExecutionFailed, retryErr))
	}
}

func (e *Executor) markApplied(ctx context.Context, m *migration.Migration, start time.Time, cause error, stripped []string) {
	e.recordBestEffort(ctx, m)
	e.fireProgress(ProgressEvent{
		Migration: m,
		Status:    StatusMarked,
		Duration:  time.Since(start),
		Error:     cause,
		Stripped:  stripped,
	})
}

// recordBestEffort writes the ledger entry on the recovery paths, where a
// failure only means the migration will be attempted again next run.
func (e *Executor) recordBestEffort(ctx context.Context, m *migration.Migration) {
	if err := e.ledger.Record(ctx, m.Name); err != nil {
		e.logger.Warn("could not record migration; it will be retried on the next run",
			"migration", m.Name, "error", err)
	}
}

func (e *Executor) fail(m *migration.Migration, start time.Time, err error) error {
	e.fireProgress(ProgressEvent{
		Migration: m,
		Status:    StatusFailed,
		Duration:  time.Since(start),
		Error:     err,
	})

	return &MigrationError{Name: m.Name, Err: err}
}

// executeSQL sends one migration body as a single batch. Bodies that cannot
// run in a transaction block go straight to the session; the rest run in a
// transaction carrying the configured timeouts.
func (e *Executor) executeSQL(ctx context.Context, sql string) error {
	autocommit, err := parser.RequiresAutocommit(sql)
	if err != nil {
		e.logger.Debug("could not parse migration locally; sending as-is", "error", err)
	}

	if autocommit {
		return ExecWithoutTransaction(ctx, e.session, sql)
	}

	return ExecInTransaction(ctx, e.session, func(tx pgx.Tx) error {
		if e.lockTimeout > 0 {
			if err := SetLockTimeout(ctx, tx, e.lockTimeout); err != nil {
				return err
			}
		}

		if e.statementTimeout > 0 {
			if err := SetStatementTimeout(ctx, tx, e.statementTimeout); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, sql); err != nil {
			return fmt.Errorf("executing SQL: %w", err)
		}

		return nil
	})
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
