package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors for the escalation engine. Handlers map these onto HTTP
// status codes; the engine itself only deals in this taxonomy.
var (
	ErrAlertNotFound = errors.New("alert not found")
	ErrStaffNotFound = errors.New("staff not found")
)

// ValidationError reports missing or malformed input fields. It carries a
// field -> message map so the transport layer can surface every problem at
// once.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %d invalid field(s)", len(e.Fields))
}

func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

// AlreadyResolvedError is returned when a human response arrives after the
// alert has already left the pending state. It carries the current status so
// the responder can be told what happened.
type AlreadyResolvedError struct {
	Status string
}

func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("alert already resolved: status is %s", e.Status)
}

// StorageError wraps a durable-store failure. The engine never retries these
// itself; the caller's retry policy governs re-invocation.
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

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsAlreadyResolved(err error) bool {
	var ar *AlreadyResolvedError
	return errors.As(err, &ar)
}

func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
