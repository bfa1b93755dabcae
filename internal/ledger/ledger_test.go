package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-runner/internal/ledger"
)

// fakeSession scripts Exec and QueryRow results and records executed SQL.
type fakeSession struct {
	execErrs  []error
	rowValues []bool
	rowErr    error
	queryErr  error
	execs     []string
	execArgs  [][]any
}

func (f *fakeSession) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, sql)
	f.execArgs = append(f.execArgs, args)

	if len(f.execErrs) == 0 {
		return pgconn.CommandTag{}, nil
	}

	err := f.execErrs[0]
	f.execErrs = f.execErrs[1:]

	return pgconn.CommandTag{}, err
}

func (f *fakeSession) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, f.queryErr
}

func (f *fakeSession) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	row := fakeRow{err: f.rowErr}
	if len(f.rowValues) > 0 {
		row.value = f.rowValues[0]
		f.rowValues = f.rowValues[1:]
	}

	return row
}

func (f *fakeSession) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("not supported")
}

type fakeRow struct {
	value bool
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}

	*(dest[0].(*bool)) = r.value

	return nil
}

func pgErr(code, msg string) error {
	return &pgconn.PgError{Code: code, Message: msg}
}

func TestNew_defaults(t *testing.T) {
	t.Parallel()

	l := ledger.New(nil, "", "")

	assert.Equal(t, ledger.DefaultSchema, l.Schema())
	assert.Equal(t, `"public"."migrations"`, l.QualifiedName())
}

func TestQualifiedName_quotesIdentifiers(t *testing.T) {
	t.Parallel()

	l := ledger.New(nil, "ops", `odd"name`)

	assert.Equal(t, `"ops"."odd""name"`, l.QualifiedName())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		session   *fakeSession
		wantErrIs error
		wantErr   string
		wantExecs int
	}{
		{
			name:      "existing schema is left alone",
			session:   &fakeSession{rowValues: []bool{true}},
			wantExecs: 0,
		},
		{
			name:      "missing schema is created",
			session:   &fakeSession{rowValues: []bool{false}},
			wantExecs: 1,
		},
		{
			name: "concurrently created schema is success",
			session: &fakeSession{
				rowValues: []bool{false},
				execErrs:  []error{pgErr(pgerrcode.DuplicateSchema, `schema "ops" already exists`)},
			},
			wantExecs: 1,
		},
		{
			name: "permission denial is reported",
			session: &fakeSession{
				rowValues: []bool{false},
				execErrs:  []error{pgErr(pgerrcode.InsufficientPrivilege, "permission denied for database prod")},
			},
			wantErrIs: ledger.ErrPermissionDenied,
			wantExecs: 1,
		},
		{
			name: "other failures are wrapped",
			session: &fakeSession{
				rowValues: []bool{false},
				execErrs:  []error{errors.New("connection reset")},
			},
			wantErr:   "creating schema ops",
			wantExecs: 1,
		},
		{
			name:    "catalog check failure",
			session: &fakeSession{rowErr: errors.New("boom")},
			wantErr: "checking schema ops",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := ledger.New(tt.session, "ops", "migrations")
			err := l.EnsureSchema(context.Background())

			switch {
			case tt.wantErrIs != nil:
				require.ErrorIs(t, err, tt.wantErrIs)
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			default:
				require.NoError(t, err)
			}

			assert.Len(t, tt.session.execs, tt.wantExecs)
		})
	}
}

func TestEnsureSchema_createsQuotedSchema(t *testing.T) {
	t.Parallel()

	s := &fakeSession{rowValues: []bool{false}}
	l := ledger.New(s, "ops", "migrations")

	require.NoError(t, l.EnsureSchema(context.Background()))
	require.Len(t, s.execs, 1)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "ops"`, s.execs[0])
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		initSQL   string
		session   *fakeSession
		wantErrIs error
		check     func(t *testing.T, s *fakeSession)
	}{
		{
			name:    "built-in DDL when no initializer",
			session: &fakeSession{},
			check: func(t *testing.T, s *fakeSession) {
				t.Helper()
				require.Len(t, s.execs, 1)
				assert.Contains(t, s.execs[0], `CREATE TABLE IF NOT EXISTS "public"."migrations"`)
				assert.Contains(t, s.execs[0], "name        TEXT PRIMARY KEY")
			},
		},
		{
			name:    "initializer body replaces built-in DDL",
			initSQL: "CREATE TABLE IF NOT EXISTS public.migrations (name TEXT PRIMARY KEY);",
			session: &fakeSession{},
			check: func(t *testing.T, s *fakeSession) {
				t.Helper()
				require.Len(t, s.execs, 1)
				assert.Equal(t, "CREATE TABLE IF NOT EXISTS public.migrations (name TEXT PRIMARY KEY);", s.execs[0])
			},
		},
		{
			name:    "blank initializer falls back to built-in DDL",
			initSQL: "  \n",
			session: &fakeSession{},
			check: func(t *testing.T, s *fakeSession) {
				t.Helper()
				assert.Contains(t, s.execs[0], "CREATE TABLE IF NOT EXISTS")
			},
		},
		{
			name: "duplicate table is success",
			session: &fakeSession{
				execErrs: []error{pgErr(pgerrcode.DuplicateTable, `relation "migrations" already exists`)},
			},
		},
		{
			name: "permission denied but table exists is success",
			session: &fakeSession{
				execErrs:  []error{pgErr(pgerrcode.InsufficientPrivilege, "permission denied for schema public")},
				rowValues: []bool{true},
			},
		},
		{
			name: "permission denied and table missing is fatal",
			session: &fakeSession{
				execErrs:  []error{pgErr(pgerrcode.InsufficientPrivilege, "permission denied for schema public")},
				rowValues: []bool{false},
			},
			wantErrIs: ledger.ErrPermissionDenied,
		},
		{
			name: "other failures wrap ErrTableCreation",
			session: &fakeSession{
				execErrs: []error{pgErr(pgerrcode.SyntaxError, "syntax error at or near \"TABEL\"")},
			},
			wantErrIs: ledger.ErrTableCreation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l := ledger.New(tt.session, "", "")
			err := l.EnsureTable(context.Background(), tt.initSQL)

			if tt.wantErrIs != nil {
				require.ErrorIs(t, err, tt.wantErrIs)
			} else {
				require.NoError(t, err)
			}

			if tt.check != nil {
				tt.check(t, tt.session)
			}
		})
	}
}

func TestApplied_missingTable_returnsErrLedgerMissing(t *testing.T) {
	t.Parallel()

	s := &fakeSession{queryErr: pgErr(pgerrcode.UndefinedTable, `relation "public.migrations" does not exist`)}
	l := ledger.New(s, "", "")

	_, err := l.Applied(context.Background())

	require.ErrorIs(t, err, ledger.ErrLedgerMissing)
}

func TestApplied_missingSchema_returnsErrLedgerMissing(t *testing.T) {
	t.Parallel()

	s := &fakeSession{queryErr: pgErr(pgerrcode.InvalidSchemaName, `schema "ops" does not exist`)}
	l := ledger.New(s, "ops", "")

	_, err := l.Applied(context.Background())

	require.ErrorIs(t, err, ledger.ErrLedgerMissing)
}

func TestApplied_otherError_isWrapped(t *testing.T) {
	t.Parallel()

	s := &fakeSession{queryErr: errors.New("connection reset")}
	l := ledger.New(s, "", "")

	_, err := l.Applied(context.Background())

	require.Error(t, err)
	assert.NotErrorIs(t, err, ledger.ErrLedgerMissing)
	assert.Contains(t, err.Error(), "reading ledger")
}

func TestEntries_missingTable_returnsErrLedgerMissing(t *testing.T) {
	t.Parallel()

	s := &fakeSession{queryErr: pgErr(pgerrcode.UndefinedTable, "missing")}
	l := ledger.New(s, "", "")

	_, err := l.Entries(context.Background())

	require.ErrorIs(t, err, ledger.ErrLedgerMissing)
}

func TestRecord_insertsIgnoringConflicts(t *testing.T) {
	t.Parallel()

	s := &fakeSession{}
	l := ledger.New(s, "", "")

	require.NoError(t, l.Record(context.Background(), "001_a"))

	require.Len(t, s.execs, 1)
	assert.Equal(t, `INSERT INTO "public"."migrations" (name) VALUES ($1) ON CONFLICT DO NOTHING`, s.execs[0])
	assert.Equal(t, []any{"001_a"}, s.execArgs[0])
}

func TestRecord_error_isWrapped(t *testing.T) {
	t.Parallel()

	s := &fakeSession{execErrs: []error{errors.New("read-only transaction")}}
	l := ledger.New(s, "", "")

	err := l.Record(context.Background(), "001_a")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording migration 001_a")
}
