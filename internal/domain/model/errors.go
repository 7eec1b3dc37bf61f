package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNonJSONBody is returned for webhook bodies that are not JSON at all.
	ErrNonJSONBody = &ClientInputError{Msg: "Only JSON bodies are supported"}

	// ErrNotAnObject is returned for JSON bodies that cannot be a structured CloudEvent.
	ErrNotAnObject = &ClientInputError{Msg: "CloudEvents envelope must be a JSON object"}
)

// ClientInputError is a malformed request. Its message is safe to return
// to the caller verbatim and is not a system fault.
type ClientInputError struct {
	Msg string
}

func (e *ClientInputError) Error() string { return e.Msg }

// StorageError is a failure of the event log backend.
type StorageError struct {
	Op        string
	Namespace Namespace
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("event log %s %q: %v", e.Op, e.Namespace, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// IsClientInput reports whether err carries a ClientInputError.
func IsClientInput(err error) bool {
	var ce *ClientInputError
	return errors.As(err, &ce)
}

// IsStorage reports whether err carries a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
