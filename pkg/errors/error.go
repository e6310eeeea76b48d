// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Strategy graph and configuration validation
//   - Data errors (200-299): Missing series, cache misses, data source failures
//   - Indicator errors (300-399): Indicator construction and calculation errors
//   - Condition errors (400-499): Operand resolution and comparison errors
//   - Session errors (500-599): Session lifecycle and execution errors
//   - Output errors (600-699): Result writing and serialization errors
//   - Market data errors (700-799): Market data fetching and parsing errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Create a formatted error
//	err := errors.Newf(errors.ErrCodeSeriesNotFound, "no series for symbol %s", symbol)
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeQueryFailed, "failed to execute query", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeSeriesNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// DataUnavailableError represents an error when an operand references data
// that does not exist at the requested position: a lag offset reaching before
// the first bar, or an indicator that has not warmed up yet.
//
// Condition evaluation treats this error as a degraded (false) leaf rather
// than a fatal failure, so it carries enough context to be diagnosable from
// the evaluation trace alone.
type DataUnavailableError struct {
	Symbol    string // Instrument the lookup targeted
	Key       string // Field or indicator key (e.g. "close", "ema_21")
	Offset    int    // Requested lag offset (0 = current step)
	Available int    // Number of values actually present
	Message   string // Human-readable message
}

// NewDataUnavailableError creates a new DataUnavailableError.
func NewDataUnavailableError(symbol, key string, offset, available int, message string) *DataUnavailableError {
	return &DataUnavailableError{
		Symbol:    symbol,
		Key:       key,
		Offset:    offset,
		Available: available,
		Message:   message,
	}
}

// NewDataUnavailableErrorf creates a new DataUnavailableError with a formatted message.
func NewDataUnavailableErrorf(symbol, key string, offset, available int, format string, args ...any) *DataUnavailableError {
	return &DataUnavailableError{
		Symbol:    symbol,
		Key:       key,
		Offset:    offset,
		Available: available,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *DataUnavailableError) Error() string {
	return e.Message
}

// IsDataUnavailableError checks if an error is a DataUnavailableError.
// It uses errors.As to check the error chain.
func IsDataUnavailableError(err error) bool {
	var unavailableErr *DataUnavailableError

	return errors.As(err, &unavailableErr)
}
