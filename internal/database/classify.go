package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Kind is the class of a database error as far as migration control flow
// is concerned. Callers branch on Kind, never on driver messages.
type Kind int

const (
	// KindOther is any error the migration logic does not know how to absorb.
	KindOther Kind = iota
	// KindDuplicateObject means the object being created already exists.
	KindDuplicateObject
	// KindMissingRelation means a referenced table or schema does not exist.
	KindMissingRelation
	// KindPermissionDenied means the current role lacks a privilege.
	KindPermissionDenied
)

// String returns a lowercase label for the kind.
func (k Kind) String() string {
	switch k {
	case KindDuplicateObject:
		return "duplicate-object"
	case KindMissingRelation:
		return "missing-relation"
	case KindPermissionDenied:
		return "permission-denied"
	default:
		return "other"
	}
}

// Classify maps an error returned by pgx to a Kind using its SQLSTATE.
// Errors that are not *pgconn.PgError (network, context, parse) are KindOther.
func Classify(err error) Kind {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return KindOther
	}

	switch pgErr.Code {
	case pgerrcode.DuplicateTable,
		pgerrcode.DuplicateSchema,
		pgerrcode.DuplicateObject,
		pgerrcode.DuplicateFunction,
		pgerrcode.DuplicateDatabase,
		pgerrcode.DuplicateColumn:
		return KindDuplicateObject
	case pgerrcode.UndefinedTable, pgerrcode.InvalidSchemaName:
		return KindMissingRelation
	case pgerrcode.InsufficientPrivilege:
		return KindPermissionDenied
	default:
		return KindOther
	}
}

// schemaOrDatabaseDenials are the message prefixes PostgreSQL uses when a
// privilege check fails on a schema or a database.
var schemaOrDatabaseDenials = []string{ //nolint:gochecknoglobals // read-only lookup table
	"permission denied for schema ",
	"permission denied for database ",
	"permission denied to create database",
}

// MentionsSchemaOrDatabase reports whether a PostgreSQL error is a privilege
// failure on a schema or a database, as in "permission denied for schema app"
// or "permission denied for database prod". Denials on other objects report
// false even when the object's name contains "schema" or "database".
func MentionsSchemaOrDatabase(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	msg := strings.ToLower(pgErr.Message)

	for _, prefix := range schemaOrDatabaseDenials {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}

	return false
}
