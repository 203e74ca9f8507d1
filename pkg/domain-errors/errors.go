// Package domainerrors provides code-based domain errors shared across
// services and transports. Services attach a Code describing the failure
// class; the HTTP layer maps codes to status lines without inspecting
// free-form messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a domain failure. Codes are stable API surface: the HTTP
// layer serializes them verbatim into error envelopes.
type Code string

const (
	// CodeValidation marks user-correctable input failures (400).
	CodeValidation Code = "validation_error"
	// CodeBadRequest marks malformed requests that never reached validation (400).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput marks rejected values at trust boundaries, e.g. IDs (400).
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks missing or invalid credentials (401).
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a party attempting an action it may not perform (403).
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks lookups of entities that do not exist (404).
	CodeNotFound Code = "not_found"
	// CodeConflict marks duplicate keys and illegal state transitions (409).
	CodeConflict Code = "conflict"
	// CodeTimeout marks aborted work due to deadline expiry (504).
	CodeTimeout Code = "timeout"
	// CodeUnavailable marks transient infrastructure trouble (503).
	CodeUnavailable Code = "unavailable"
	// CodeInvariantViolation marks broken aggregate invariants. Services
	// translate these to CodeValidation or CodeConflict before they reach
	// the transport.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal is the fallback for unexpected failures (500).
	CodeInternal Code = "internal_error"
)

// Error carries a Code alongside a human-readable message and an optional
// wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a domain error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is / errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) is a domain error
// carrying the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias of HasCode kept for call-site readability.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// non-domain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport should emit.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput, CodeInvariantViolation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
