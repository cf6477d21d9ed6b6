// Package common defines shared constants and sentinel errors used across
// the protocol core and its adapters. Callers should use errors.Is to match
// these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Protocol errors.
	ErrTokenInvalid     = errors.New("access token invalid")
	ErrLockMismatch     = errors.New("lock mismatch")
	ErrConflictDetected = errors.New("conflict detected")
	ErrStorage          = errors.New("storage error")
	ErrValidation       = errors.New("validation error")
)

// StorageError wraps a backing repository failure. It matches ErrStorage and
// unwraps to the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NewStorageError wraps err as a StorageError for the named operation.
// A nil err yields nil, and an error that already is a StorageError is
// returned unchanged.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// ValidationError describes malformed input rejected before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
