package parser //nolint:revive // intentional: does not conflict with go/parser in internal package

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// ParseResult holds the parsed AST and original SQL.
type ParseResult struct {
	Stmts []*pg_query.RawStmt
	SQL   string
}

// Parse parses a PostgreSQL SQL string and returns the AST.
// Returns an empty result (zero statements) for empty or whitespace-only input.
func Parse(sql string) (*ParseResult, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return &ParseResult{SQL: sql}, nil
	}

	tree, err := pg_query.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parsing SQL: %w", err)
	}

	return &ParseResult{
		Stmts: tree.Stmts,
		SQL:   sql,
	}, nil
}

// RequiresAutocommit reports whether any statement in sql refuses to run
// inside a transaction block: CREATE INDEX CONCURRENTLY, VACUUM,
// CREATE/DROP DATABASE, CREATE/DROP TABLESPACE and ALTER SYSTEM.
//
// A true result does not make a mixed body runnable: PostgreSQL executes a
// multi-statement simple query as one implicit transaction, so such a
// statement must be the only statement in its file or the server rejects it
// with SQLSTATE 25001.
func RequiresAutocommit(sql string) (bool, error) {
	result, err := Parse(sql)
	if err != nil {
		return false, err
	}

	for _, stmt := range result.Stmts {
		if stmt.Stmt == nil {
			continue
		}

		switch node := stmt.Stmt.Node.(type) {
		case *pg_query.Node_IndexStmt:
			if node.IndexStmt != nil && node.IndexStmt.Concurrent {
				return true, nil
			}
		case *pg_query.Node_VacuumStmt,
			*pg_query.Node_CreatedbStmt,
			*pg_query.Node_DropdbStmt,
			*pg_query.Node_CreateTableSpaceStmt,
			*pg_query.Node_DropTableSpaceStmt,
			*pg_query.Node_AlterSystemStmt:
			return true, nil
		}
	}

	return false, nil
}
