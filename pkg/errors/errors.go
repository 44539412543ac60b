// Package errors provides structured error handling for Tributary.
//
// Every failure crossing a connector boundary is classified with a Code and
// an explicit retryable flag. The retry executor uses that flag as its sole
// input when deciding whether an operation is worth another attempt.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Code is the failure classification carried by every connector error.
type Code string

const (
	// CodeConnection represents connect-time failures. Not retryable: a
	// dead endpoint is reported to the caller, not hammered.
	CodeConnection Code = "CONNECTION_ERROR"
	// CodeTimeout represents an operation that exceeded its deadline. Retryable.
	CodeTimeout Code = "TIMEOUT"
	// CodeAuth represents authentication/authorization failures. Not
	// retryable: bad credentials will not self-heal.
	CodeAuth Code = "AUTH_ERROR"
	// CodeRateLimit represents a 429 from the remote side. Retryable.
	CodeRateLimit Code = "RATE_LIMIT_EXCEEDED"
	// CodeServer represents remote 5xx failures. Retryable.
	CodeServer Code = "SERVER_ERROR"
	// CodeParse represents a malformed payload. Not retryable: the same
	// payload will fail the same way.
	CodeParse Code = "PARSE_ERROR"
	// CodeInvalidConfig represents configuration validation failures,
	// raised at construction and never retried.
	CodeInvalidConfig Code = "INVALID_CONFIG"
	// CodeMaxRetries is the terminal error raised when the retry executor
	// exhausts all attempts. Wraps the last cause.
	CodeMaxRetries Code = "MAX_RETRIES_EXCEEDED"
	// CodeUnknown is the conservative default for unclassified failures.
	// Retryable, so transient issues are not silently dropped.
	CodeUnknown Code = "UNKNOWN_ERROR"
)

// retryableByCode is the default retryability per classification.
var retryableByCode = map[Code]bool{
	CodeConnection:    false,
	CodeTimeout:       true,
	CodeAuth:          false,
	CodeRateLimit:     true,
	CodeServer:        true,
	CodeParse:         false,
	CodeInvalidConfig: false,
	CodeMaxRetries:    false,
	CodeUnknown:       true,
}

// Error represents a structured connector error with classification context.
type Error struct {
	Code      Code
	Message   string
	Cause     error
	Retryable bool
	Details   map[string]interface{}
	Stack     []StackFrame
}

// StackFrame represents a single frame in the call stack
type StackFrame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithDetail adds a key-value detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRetryable overrides the default retryability for this error
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// New creates a new error with the given code and message
func New(code Code, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: retryableByCode[code],
		Stack:     captureStack(2),
	}
}

// Newf creates a new error with a formatted message
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
		Retryable: retryableByCode[code],
		Stack:     captureStack(2),
	}
}

// Wrap wraps an existing error with a classification and message
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}

	// If already classified, preserve the original stack
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{
			Code:      code,
			Message:   message,
			Cause:     err,
			Retryable: retryableByCode[code],
			Stack:     existing.Stack,
		}
	}

	return &Error{
		Code:      code,
		Message:   message,
		Cause:     err,
		Retryable: retryableByCode[code],
		Stack:     captureStack(2),
	}
}

// Retryable reports whether the error is explicitly marked retryable.
// Unclassified errors are never retried.
func Retryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Retryable
}

// IsCode checks if the error carries the given classification
func IsCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf returns the classification of an error, or CodeUnknown for
// unclassified errors.
func CodeOf(err error) Code {
	var e *Error
	if !errors.As(err, &e) {
		return CodeUnknown
	}
	return e.Code
}

// As is a convenience re-export of the standard errors.As
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a convenience re-export of the standard errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// captureStack captures the current call stack
func captureStack(skip int) []StackFrame {
	const maxFrames = 32
	frames := make([]StackFrame, 0, maxFrames)

	for i := skip; i < maxFrames+skip; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		frames = append(frames, StackFrame{
			Function: fn.Name(),
			File:     file,
			Line:     line,
		})
	}

	return frames
}
