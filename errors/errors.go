// Package errors provides error types and handling for object-storage
// batch operations. Backend failures are classified into a small set of
// sentinel errors so orchestrators can decide between retrying, reporting
// a per-item failure, and aborting a whole batch.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a batch-operation error with context about the operation
// that failed. It wraps the underlying backend error with the container and
// object it was acting on.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "delete container")
	Op string

	// Container is the container name (if applicable)
	Container string

	// Object is the object name (if applicable)
	Object string

	// Err is the underlying error from the backend or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Container != "" && e.Object != "" {
		return fmt.Sprintf("swift.%s %s/%s: %v", e.Op, e.Container, e.Object, e.Err)
	}
	if e.Container != "" {
		return fmt.Sprintf("swift.%s container %s: %v", e.Op, e.Container, e.Err)
	}
	if e.Object != "" {
		return fmt.Sprintf("swift.%s object %s: %v", e.Op, e.Object, e.Err)
	}
	return fmt.Sprintf("swift.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContainer adds container context to an existing error.
func (e *Error) WithContainer(container string) *Error {
	e.Container = container
	return e
}

// WithObject adds object name context to an existing error.
func (e *Error) WithObject(object string) *Error {
	e.Object = object
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewContainerError creates a new Error with container context.
func NewContainerError(op, container string, err error) *Error {
	return &Error{
		Op:        op,
		Container: container,
		Err:       err,
	}
}

// NewObjectError creates a new Error with container and object context.
func NewObjectError(op, container, object string, err error) *Error {
	return &Error{
		Op:        op,
		Container: container,
		Object:    object,
		Err:       err,
	}
}

// Sentinel errors for common backend failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrNotFound indicates that the requested object or container does not
	// exist. Orchestrators report it as a non-fatal per-item failure.
	ErrNotFound = errors.New("swift: not found")

	// ErrConflict indicates that the backend rejected the request because of
	// a conflicting state, e.g. deleting a non-empty container.
	ErrConflict = errors.New("swift: conflict")

	// ErrAuthorization indicates that the request was not authorized.
	ErrAuthorization = errors.New("swift: authorization failed")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("swift: invalid input")

	// ErrServerBusy indicates a transient backend failure that is worth
	// retrying (rate limiting, timeouts, 5xx responses).
	ErrServerBusy = errors.New("swift: server busy")

	// ErrChecksum indicates that a computed checksum does not match the
	// entity tag reported by the backend.
	ErrChecksum = errors.New("swift: checksum mismatch")

	// ErrLengthMismatch indicates that a transferred body was shorter or
	// longer than the backend-reported content length.
	ErrLengthMismatch = errors.New("swift: content length mismatch")

	// ErrSegmentUpload indicates that one or more segments of a large-object
	// upload failed, so no manifest was written.
	ErrSegmentUpload = errors.New("swift: segment upload failed")

	// ErrRetryLimit indicates that an operation kept failing after the
	// configured number of attempts.
	ErrRetryLimit = errors.New("swift: retry limit reached")

	// ErrConnection indicates a connection-level error talking to the backend.
	ErrConnection = errors.New("swift: connection error")

	// ErrAccountUnscoped indicates an account-wide destructive operation was
	// requested without the explicit yes-all confirmation option.
	ErrAccountUnscoped = errors.New("swift: account-wide operation requires confirmation")
)

// IsNotFound checks if an error indicates that an object or container was
// not found. It handles both sentinel errors and wrapped errors.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error indicates a backend state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsTransient checks if an error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrServerBusy) || errors.Is(err, ErrConnection)
}

// IsAuthorization checks if an error indicates an authorization failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorization)
}

// IsInvalidInput checks if an error indicates invalid input.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
