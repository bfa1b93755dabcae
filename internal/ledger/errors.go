package ledger

import "errors"

// ErrPermissionDenied indicates the current role may not create the ledger
// schema or table and the object does not already exist.
var ErrPermissionDenied = errors.New("permission denied creating ledger")

// ErrLedgerMissing indicates the ledger table (or its schema) does not exist yet.
var ErrLedgerMissing = errors.New("ledger table does not exist")

// ErrTableCreation indicates the ledger table could not be created.
var ErrTableCreation = errors.New("creating ledger table")
