package executor

import (
	"errors"
	"fmt"
)

// ErrExecutionFailed indicates a migration body failed for a reason the
// runner does not recover from. The migration is left out of the ledger.
var ErrExecutionFailed = errors.New("migration execution failed")

// ErrSchemaProvisioning indicates the ledger schema is missing and the
// current role may not create it.
var ErrSchemaProvisioning = errors.New("ledger schema must be provisioned manually")

// MigrationError carries the name of the migration that stopped the run.
type MigrationError struct {
	Name string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s: %v", e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}
