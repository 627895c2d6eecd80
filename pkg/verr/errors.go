// Package verr defines the error taxonomy shared by every component of the
// vector database core: each error carries a Kind so callers can branch on
// failure category without string matching.
package verr

import (
	"errors"
	"fmt"
)

// Kind classifies an error without tying callers to a concrete error type.
type Kind string

const (
	// KindNotFound covers a missing library, document, chunk, or index.
	KindNotFound Kind = "not-found"
	// KindAlreadyExists covers a duplicate library index binding.
	KindAlreadyExists Kind = "already-exists"
	// KindValidation covers empty text, k<1, empty vector, dimension mismatch,
	// or "nothing to update".
	KindValidation Kind = "validation"
	// KindIndex covers search/build against a non-existent index or
	// malformed index parameters.
	KindIndex Kind = "index"
	// KindEmbedding covers upstream embedding-provider failures.
	KindEmbedding Kind = "embedding"
)

// Error wraps an underlying error with an operation name and a taxonomy kind.
type Error struct {
	Op  string
	Kd  Kind
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectordb: %s: %v", e.Kd, e.Err)
	}
	return fmt.Sprintf("vectordb: %s: %s: %v", e.Op, e.Kd, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches the underlying error.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// KindOf returns the taxonomy kind of err, or "" if err is not one of ours.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kd
	}
	return ""
}

// Wrap annotates err with an operation name and a taxonomy kind.
// Returns nil if err is nil.
func Wrap(op string, kd Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kd: kd, Err: err}
}

// NotFound returns a not-found error for the given operation.
func NotFound(op string, err error) error { return Wrap(op, KindNotFound, err) }

// AlreadyExists returns an already-exists error for the given operation.
func AlreadyExists(op string, err error) error { return Wrap(op, KindAlreadyExists, err) }

// Validation returns a validation error for the given operation.
func Validation(op string, err error) error { return Wrap(op, KindValidation, err) }

// Index returns an index error for the given operation.
func Index(op string, err error) error { return Wrap(op, KindIndex, err) }

// Embedding returns an embedding error for the given operation.
func Embedding(op string, err error) error { return Wrap(op, KindEmbedding, err) }
