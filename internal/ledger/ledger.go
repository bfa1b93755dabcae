package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/aqasim81/migration-runner/internal/database"
)

// Entry is one row of the ledger.
type Entry struct {
	Name      string
	AppliedAt time.Time
}

// Ledger reads and writes the table recording which migrations have been
// applied. It is the only writer of that table.
type Ledger struct {
	db     database.Session
	schema string
	table  string
}

// New creates a Ledger stored in schema.table on the given session.
// Empty names fall back to DefaultSchema and DefaultTable.
func New(db database.Session, schema, table string) *Ledger {
	if schema == "" {
		schema = DefaultSchema
	}

	if table == "" {
		table = DefaultTable
	}

	return &Ledger{db: db, schema: schema, table: table}
}

// Schema returns the schema the ledger lives in.
func (l *Ledger) Schema() string { return l.schema }

// QualifiedName returns the quoted schema-qualified ledger table name.
func (l *Ledger) QualifiedName() string {
	return pgx.Identifier{l.schema, l.table}.Sanitize()
}

// EnsureSchema creates the ledger schema when the catalog does not list it.
// A concurrent creation is not an error. If the role may not create it,
// the returned error wraps ErrPermissionDenied.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	var exists bool

	if err := l.db.QueryRow(ctx, schemaExistsSQL, l.schema).Scan(&exists); err != nil {
		return fmt.Errorf("checking schema %s: %w", l.schema, err)
	}

	if exists {
		return nil
	}

	_, err := l.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{l.schema}.Sanitize())
	if err == nil {
		return nil
	}

	switch database.Classify(err) {
	case database.KindDuplicateObject:
		return nil
	case database.KindPermissionDenied:
		return fmt.Errorf("%w: schema %s: %w", ErrPermissionDenied, l.schema, err)
	default:
		return fmt.Errorf("creating schema %s: %w", l.schema, err)
	}
}

// EnsureTable creates the ledger table. initSQL, when not blank, is run
// instead of the built-in DDL. Already-existing objects are success; a
// permission denial is success only if the table turns out to exist.
func (l *Ledger) EnsureTable(ctx context.Context, initSQL string) error {
	ddl := initSQL
	if strings.TrimSpace(ddl) == "" {
		ddl = createTableSQL(l.QualifiedName())
	}

	_, err := l.db.Exec(ctx, ddl)
	if err == nil {
		return nil
	}

	switch database.Classify(err) {
	case database.KindDuplicateObject:
		return nil
	case database.KindPermissionDenied:
		exists, existsErr := l.tableExists(ctx)
		if existsErr != nil {
			return fmt.Errorf("%w: %w", ErrTableCreation, existsErr)
		}

		if exists {
			return nil
		}

		return fmt.Errorf("%w: table %s: %w", ErrPermissionDenied, l.QualifiedName(), err)
	default:
		return fmt.Errorf("%w: %w", ErrTableCreation, err)
	}
}

// Applied returns the names recorded in the ledger. A missing table or
// schema yields ErrLedgerMissing.
func (l *Ledger) Applied(ctx context.Context) (map[string]struct{}, error) {
	rows, err := l.db.Query(ctx, "SELECT name FROM "+l.QualifiedName())
	if err != nil {
		return nil, l.readErr(err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, l.readErr(err)
	}

	applied := make(map[string]struct{}, len(names))
	for _, n := range names {
		applied[n] = struct{}{}
	}

	return applied, nil
}

// Entries returns every ledger row ordered by name.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.Query(ctx, "SELECT name, applied_at FROM "+l.QualifiedName()+" ORDER BY name")
	if err != nil {
		return nil, l.readErr(err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		if scanErr := row.Scan(&e.Name, &e.AppliedAt); scanErr != nil {
			return Entry{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return e, nil
	})
	if err != nil {
		return nil, l.readErr(err)
	}

	return entries, nil
}

// Record inserts name into the ledger. Recording a name twice is a no-op.
func (l *Ledger) Record(ctx context.Context, name string) error {
	_, err := l.db.Exec(ctx,
		"INSERT INTO "+l.QualifiedName()+" (name) VALUES ($1) ON CONFLICT DO NOTHING",
		name,
	)
	if err != nil {
		return fmt.Errorf("recording migration %s: %w", name, err)
	}

	return nil
}

func (l *Ledger) tableExists(ctx context.Context) (bool, error) {
	var exists bool

	if err := l.db.QueryRow(ctx, tableExistsSQL, l.QualifiedName()).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking table %s: %w", l.QualifiedName(), err)
	}

	return exists, nil
}

func (l *Ledger) readErr(err error) error {
	if database.Classify(err) == database.KindMissingRelation {
		return fmt.Errorf("%w: %s: %w", ErrLedgerMissing, l.QualifiedName(), err)
	}

	return fmt.Errorf("reading ledger %s: %w", l.QualifiedName(), err)
}
