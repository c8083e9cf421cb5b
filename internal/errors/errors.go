package errors

import "fmt"

// ErrorCode classifies a skycast error.
type ErrorCode string

const (
	ErrStorage  ErrorCode = "STORAGE"   // store open/read/write failure
	ErrNetwork  ErrorCode = "NETWORK"   // timeout, connection failure, non-2xx status
	ErrParse    ErrorCode = "PARSE"     // malformed response body
	ErrNotFound ErrorCode = "NOT_FOUND" // no matching cached entry
)

// SkycastError represents a structured error with a code and an optional cause.
type SkycastError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *SkycastError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *SkycastError) Unwrap() error {
	return e.Cause
}

// NewStorage creates a storage error wrapping err.
func NewStorage(msg string, err error) *SkycastError {
	return &SkycastError{
		Code:    ErrStorage,
		Message: msg,
		Cause:   err,
	}
}

// NewNetwork creates a network error wrapping err.
func NewNetwork(msg string, err error) *SkycastError {
	return &SkycastError{
		Code:    ErrNetwork,
		Message: msg,
		Cause:   err,
	}
}

// NewParse creates a parse error wrapping err.
func NewParse(msg string, err error) *SkycastError {
	return &SkycastError{
		Code:    ErrParse,
		Message: msg,
		Cause:   err,
	}
}

// NewNotFound creates a not-found error for the given key.
func NewNotFound(key string) *SkycastError {
	return &SkycastError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("no cached entry for %q", key),
	}
}

// Is checks if an error is a SkycastError with the given code.
func Is(err error, code ErrorCode) bool {
	if sErr, ok := err.(*SkycastError); ok {
		return sErr.Code == code
	}
	return false
}
