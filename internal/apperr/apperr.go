// Package apperr classifies pipeline failures into a small set of kinds so
// callers can react to them without string matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is the machine readable class of a failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindIntegrity  Kind = "integrity"
	KindForbidden  Kind = "forbidden"
	KindTransient  Kind = "transient"
	KindStorage    Kind = "storage"
	KindRender     Kind = "render"
	KindInternal   Kind = "internal"
)

// Error carries a kind, the failing operation and a human readable message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}

	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an *Error. When message is empty the wrapped error text is used.
func New(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validation is a shorthand for a validation failure without a cause.
func Validation(op, message string) *Error {
	return New(KindValidation, op, message, nil)
}

// NotFound is a shorthand for a missing resource.
func NotFound(op, message string, err error) *Error {
	return New(KindNotFound, op, message, err)
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
