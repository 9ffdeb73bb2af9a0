// Package errors provides structured error types for penplot.
//
// Every failure that crosses a package boundary towards the CLI or the HTTP
// API carries a machine-readable [Code]. The pipeline uses the code to decide
// whether a failure is isolated to one channel or fatal for the whole run:
//
//   - INPUT_ERROR: a mask is empty or unreadable (channel fails)
//   - PARSE_ERROR: a program line is malformed (line skipped) or a whole
//     program is unparseable (channel fails)
//   - UNKNOWN_CHANNEL: the channel has no holder position (channel skipped
//     at sequencing)
//   - IO_ERROR: an output file cannot be written (channel fails)
//   - NO_CHANNELS: nothing usable reached the sequencer (run fails)
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInput, "mask %q has zero dimensions", name)
//	if errors.Is(err, errors.ErrCodeInput) {
//	    // report and continue with the next channel
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Per-channel failures
	ErrCodeInput          Code = "INPUT_ERROR"
	ErrCodeParse          Code = "PARSE_ERROR"
	ErrCodeUnknownChannel Code = "UNKNOWN_CHANNEL"
	ErrCodeIO             Code = "IO_ERROR"

	// Run-level failures
	ErrCodeNoChannels    Code = "NO_CHANNELS"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidPath   Code = "INVALID_PATH"
	ErrCodeCanceled      Code = "CANCELED"

	// Lookups
	ErrCodeNotFound Code = "NOT_FOUND"

	// Internal errors
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
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
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
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
		return e.Message
	}
	return err.Error()
}

// Fatal reports whether err should abort a whole run rather than a single
// channel.
func Fatal(err error) bool {
	switch GetCode(err) {
	case ErrCodeNoChannels, ErrCodeInvalidConfig, ErrCodeCanceled:
		return true
	}
	return false
}
