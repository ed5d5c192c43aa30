// ABOUTME: Storage error taxonomy returned by every local store operation.
// ABOUTME: Error carries the failing operation; sentinels classify the cause.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrMissingReference is returned when a link points at an entity that is not stored locally.
	ErrMissingReference = errors.New("missing reference")
)

// Error is a local storage failure. Callers decide how to surface it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// wrap tags err with op. Errors already carrying an op keep their innermost one.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Err: err}
}

func missing(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrMissingReference, kind, id)
}

// IsStorageError reports whether err originated in the local store.
func IsStorageError(err error) bool {
	var se *Error
	return errors.As(err, &se)
}
