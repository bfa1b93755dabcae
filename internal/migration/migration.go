package migration

import (
	"path/filepath"
	"strings"
)

// DefaultInitFile is the reserved initializer that creates the ledger.
const DefaultInitFile = "000_init.sql"

const sqlExt = ".sql"

// Migration is a single SQL migration file read from disk.
type Migration struct {
	Name     string // "001_create_users", the file stem and ledger key
	FileName string // "001_create_users.sql"
	SQL      string // file contents
	Path     string // path of the file on its filesystem
}

// NameFromFile returns the ledger name for a migration file: its base name
// without the .sql extension.
func NameFromFile(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), sqlExt)
}

// Names returns the ledger names of ms in order.
func Names(ms []Migration) []string {
	names := make([]string, len(ms))
	for i := range ms {
		names[i] = ms[i].Name
	}

	return names
}
