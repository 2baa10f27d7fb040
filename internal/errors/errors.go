// Package errors defines the stable error taxonomy shared by all bssh
// subsystems. Every failure that crosses a package boundary carries one of
// the codes below so callers can branch on the class of failure without
// string matching.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code represents stable error codes for all failure modes
type Code string

const (
	// NotFound indicates a lookup matched nothing and no fallback applies
	NotFound Code = "NOT_FOUND"
	// AmbiguousMatch indicates a query matched several connections where
	// exactly one was required
	AmbiguousMatch Code = "AMBIGUOUS_MATCH"
	// InvalidState indicates a session transition attempted from an
	// incompatible state, or a reference to a missing record
	InvalidState Code = "INVALID_STATE"
	// Persistence indicates the store is unreachable, corrupt, or rejected
	// a read/write
	Persistence Code = "PERSISTENCE"
	// Configuration indicates invalid ranking weights or constants
	Configuration Code = "CONFIGURATION"
)

// Error is a bssh error with a stable code and optional underlying cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that records an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf returns the code carried by err, or the empty string if err does
// not carry one.
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}
