package ledger

import "fmt"

// DefaultSchema and DefaultTable name the ledger when nothing is configured.
const (
	DefaultSchema = "public"
	DefaultTable  = "migrations"
)

// createTableSQL returns the built-in ledger DDL for a sanitized table name.
func createTableSQL(qualified string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name        TEXT PRIMARY KEY,
    applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, qualified)
}

const schemaExistsSQL = `SELECT EXISTS(SELECT 1 FROM pg_catalog.pg_namespace WHERE nspname = $1)`

const tableExistsSQL = `SELECT to_regclass($1) IS NOT NULL`
