// Package errors defines common error types for the load balancer.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the balancer.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeDegenerateInput   = "DEGENERATE_INPUT"
	CodeCollectiveFailure = "COLLECTIVE_FAILURE"
)

// AppError represents a balancer error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInvalidArgument   = New(CodeInvalidArgument, "invalid argument")
	ErrDegenerateInput   = New(CodeDegenerateInput, "degenerate input")
	ErrCollectiveFailure = New(CodeCollectiveFailure, "collective failure")
)

// IsInvalidArgument checks if the error is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsDegenerateInput checks if the error is a degenerate input error.
func IsDegenerateInput(err error) bool {
	return errors.Is(err, ErrDegenerateInput)
}

// IsCollectiveFailure checks if the error is a collective failure.
func IsCollectiveFailure(err error) bool {
	return errors.Is(err, ErrCollectiveFailure)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
