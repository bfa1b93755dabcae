package migration

import "strings"

const createSchemaPrefix = "CREATE SCHEMA"

// StripCreateSchema removes single-line CREATE SCHEMA statements from sql.
//
// A line is removed only when, after trimming whitespace, it starts with
// CREATE SCHEMA (any case) and ends with a semicolon. Multi-line statements,
// statements sharing a line with other SQL, and everything else are kept
// verbatim. The removed lines are returned trimmed, in file order.
func StripCreateSchema(sql string) (string, []string) {
	lines := strings.SplitAfter(sql, "\n")
	kept := make([]string, 0, len(lines))

	var removed []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if isCreateSchemaLine(trimmed) {
			removed = append(removed, trimmed)
			continue
		}

		kept = append(kept, line)
	}

	return strings.Join(kept, ""), removed
}

func isCreateSchemaLine(trimmed string) bool {
	if len(trimmed) < len(createSchemaPrefix) || !strings.HasSuffix(trimmed, ";") {
		return false
	}

	if !strings.EqualFold(trimmed[:len(createSchemaPrefix)], createSchemaPrefix) {
		return false
	}

	// "CREATE SCHEMAS" or "CREATE SCHEMA_x" are not the statement.
	rest := trimmed[len(createSchemaPrefix):]

	return rest == ";" || rest[0] == ' ' || rest[0] == '\t'
}

// IsBlank reports whether sql has nothing left to execute: only whitespace
// and full-line "--" comments.
func IsBlank(sql string) bool {
	for _, line := range strings.Split(sql, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		return false
	}

	return true
}
