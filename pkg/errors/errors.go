// Package errors provides structured error types for gallade.
//
// Every failure that can abort a resolution or cache operation maps to one of
// the codes below. Codes are stable, machine-readable, and drive the exit code
// of the command-line tool:
//
//   - INVALID_MANIFEST: malformed or duplicate manifest input
//   - UNRESOLVED_COORDINATE: no version satisfies a request, or the remote has no record
//   - VERSION_CONFLICT: stale pin or irreconcilable hard constraints
//   - CYCLE_DETECTED: a dependency reaches itself
//   - NETWORK_ERROR: transient transport failure (retried before surfacing)
//   - CHECKSUM_MISMATCH: downloaded bytes do not match the published checksum
//   - LOCKFILE_CORRUPT: unreadable lockfile or unknown schema version
//
// # Usage
//
//	err := errors.New(errors.ErrCodeManifest, "unknown scope %q", scope)
//	if errors.Is(err, errors.ErrCodeManifest) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors and attach context
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "fetch %s", url).
//	    WithCoordinate("org.slf4j:slf4j-api:2.0.9")
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the resolver error taxonomy.
const (
	ErrCodeManifest         Code = "INVALID_MANIFEST"
	ErrCodeUnresolved       Code = "UNRESOLVED_COORDINATE"
	ErrCodeVersionConflict  Code = "VERSION_CONFLICT"
	ErrCodeCycle            Code = "CYCLE_DETECTED"
	ErrCodeNetwork          Code = "NETWORK_ERROR"
	ErrCodeChecksumMismatch Code = "CHECKSUM_MISMATCH"
	ErrCodeLockfileCorrupt  Code = "LOCKFILE_CORRUPT"

	// Generic errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeNotFound     Code = "NOT_FOUND"
	ErrCodeInternal     Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional context.
type Error struct {
	Code       Code     // Machine-readable error code
	Message    string   // Human-readable message
	Coordinate string   // Offending coordinate, if any
	Chain      []string // Requesting chain or cycle path, root first
	Cause      error    // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Coordinate != "" {
		fmt.Fprintf(&b, " [%s]", e.Coordinate)
	}
	if len(e.Chain) > 0 {
		fmt.Fprintf(&b, " (via %s)", strings.Join(e.Chain, " -> "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithCoordinate sets the offending coordinate and returns e.
func (e *Error) WithCoordinate(c string) *Error {
	e.Coordinate = c
	return e
}

// WithChain sets the requesting chain and returns e.
// The slice is copied.
func (e *Error) WithChain(chain []string) *Error {
	e.Chain = append([]string(nil), chain...)
	return e
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Cause
	}
	return false
}

// GetCode extracts the outermost error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		msg := e.Message
		if e.Coordinate != "" {
			msg += ": " + e.Coordinate
		}
		if len(e.Chain) > 0 {
			msg += " (" + strings.Join(e.Chain, " -> ") + ")"
		}
		if e.Code == ErrCodeLockfileCorrupt {
			msg += "; delete the lockfile and run `gallade lock` to regenerate it"
		}
		return msg
	}
	return err.Error()
}

// ExitCode maps an error to a process exit status.
// A nil error maps to 0 and errors without a known code map to 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case ErrCodeManifest:
		return 2
	case ErrCodeUnresolved:
		return 3
	case ErrCodeVersionConflict:
		return 4
	case ErrCodeCycle:
		return 5
	case ErrCodeNetwork:
		return 6
	case ErrCodeChecksumMismatch:
		return 7
	case ErrCodeLockfileCorrupt:
		return 8
	default:
		return 1
	}
}
