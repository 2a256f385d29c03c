package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups for records that do not exist or
// are no longer visible (e.g. a cancelled expense).
var ErrNotFound = errors.New("not found")

// ValidationError reports bad caller input: a non-positive amount, an
// empty description, an empty participant list. It is always raised
// before any mutation takes effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// IntegrityError reports a reference to a record that does not exist,
// such as inserting obligations for an unknown expense. It indicates a
// caller or store bug and is surfaced rather than masked.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return "integrity violation: " + e.Reason
}

// StorageError wraps a failure of the underlying database. It is
// surfaced verbatim and never retried inside the ledger core.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
