// Package errors provides error types and handling for cloud storage operations.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error represents a storage operation error with context about the operation
// that failed. It wraps the underlying provider error with additional context
// for diagnostics.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "list", "uploadPart")
	Op string

	// Bucket is the container name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error from the provider SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("cloudstore.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("cloudstore.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("cloudstore.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("cloudstore.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
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

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for common storage operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrMalformedLocator indicates that the destination/source locator string
	// matches none of the accepted grammars
	ErrMalformedLocator = errors.New("cloudstore: malformed storage locator")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("cloudstore: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("cloudstore: bucket not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("cloudstore: invalid input")

	// ErrPartSequence indicates that a multipart completion was attempted with
	// a missing, duplicated, or misordered part list
	ErrPartSequence = errors.New("cloudstore: part sequence is incomplete or misordered")

	// ErrPartTooLarge indicates that a single part exceeds the provider's
	// part-size ceiling
	ErrPartTooLarge = errors.New("cloudstore: part exceeds provider part-size limit")

	// ErrTooManyParts indicates that an upload would exceed the provider's
	// maximum part count
	ErrTooManyParts = errors.New("cloudstore: upload exceeds provider part-count limit")

	// ErrObjectTooLarge indicates that an upload would exceed the provider's
	// maximum object size
	ErrObjectTooLarge = errors.New("cloudstore: object exceeds provider size limit")

	// ErrSessionClosed indicates that an operation was attempted on a torn-down session
	ErrSessionClosed = errors.New("cloudstore: session is closed")
)

// DeleteBatchError reports the per-key failures of a bulk delete. Every key in
// the batch is attempted regardless of individual failures; a non-empty
// Failures map means at least one requested key is still present.
type DeleteBatchError struct {
	// Failures maps each object key that failed to delete to its cause.
	Failures map[string]error
}

// Error implements the error interface, enumerating every failed key.
func (e *DeleteBatchError) Error() string {
	keys := e.FailedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, e.Failures[k]))
	}
	return fmt.Sprintf("cloudstore: failed to delete %d object(s): %s", len(keys), strings.Join(parts, "; "))
}

// Unwrap exposes the underlying causes for errors.Is / errors.As matching.
func (e *DeleteBatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, k := range e.FailedKeys() {
		errs = append(errs, e.Failures[k])
	}
	return errs
}

// FailedKeys returns the keys that failed to delete, sorted for determinism.
func (e *DeleteBatchError) FailedKeys() []string {
	keys := make([]string, 0, len(e.Failures))
	for k := range e.Failures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsObjectNotFound checks if an error indicates that an object was not found.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsBucketNotFound checks if an error indicates that a bucket was not found.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsMalformedLocator checks if an error indicates a locator parsing failure.
func IsMalformedLocator(err error) bool {
	return errors.Is(err, ErrMalformedLocator)
}
