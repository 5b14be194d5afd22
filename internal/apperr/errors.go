// Package apperr defines the error taxonomy shared by the storage engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks operations against a record that has no file.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate marks attempts to create a record whose identity already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrUnknownType marks references to a type the registry does not know.
	ErrUnknownType = errors.New("unknown type")
	// ErrValidation marks input rejected before any file or index mutation.
	ErrValidation = errors.New("validation failed")
)

// Validationf wraps ErrValidation with a formatted reason.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// SyncError reports an index write that failed after the record's file was
// durably written. The file remains authoritative; rebuilding the type is
// the documented recovery path.
type SyncError struct {
	Type string
	ID   string
	Err  error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("index sync failed for %s-%s (file is on disk, rebuild to recover): %v", e.Type, e.ID, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }
