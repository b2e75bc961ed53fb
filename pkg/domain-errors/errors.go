// Package domainerrors provides coded errors for domain and service layers.
//
// Services return these instead of raw errors so transport layers can map
// them to protocol responses without string matching. Infrastructure layers
// (stores) return pkg/platform/sentinel errors; services translate those
// into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and retry decisions.
type Code string

const (
	// CodeInvalidInput marks malformed identifiers or values at a trust boundary.
	CodeInvalidInput Code = "invalid_input"
	// CodeValidation marks a request that parsed but failed domain validation.
	CodeValidation Code = "validation"
	// CodeBadRequest marks a request the transport layer could not interpret.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks an operation rejected because of the entity's
	// current state (already archived, not archived, retention window open).
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks a domain invariant breach. Model
	// constructors and transition guards return this; services usually
	// translate it to CodeValidation or CodeConflict before surfacing.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnauthorized marks a missing or unverifiable caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a caller that is known but not permitted.
	CodeForbidden Code = "forbidden"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It may wrap an underlying cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is lets errors.Is match two coded errors by code and message, so packages
// can export coded errors as sentinels (var ErrX = dErrors.New(...)) and
// callers can test for them after wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/errors.As.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err or any error in its chain carries the code.
func HasCode(err error, code Code) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Code == code {
			return true
		}
		if e.cause == nil {
			return false
		}
		err = e.cause
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries no code at all.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
