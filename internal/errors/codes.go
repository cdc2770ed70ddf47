// Package errors defines the structured error taxonomy for chat operations.
package errors

import (
	"fmt"
)

// ErrorCode classifies a chat operation failure.
type ErrorCode string

const (
	// ErrCodeMissingProvider indicates the request did not name a provider.
	ErrCodeMissingProvider ErrorCode = "MISSING_PROVIDER"
	// ErrCodeUnsupportedProvider indicates the requested provider tag is not registered.
	ErrCodeUnsupportedProvider ErrorCode = "UNSUPPORTED_PROVIDER"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeProviderError indicates an upstream LLM failure.
	ErrCodeProviderError ErrorCode = "PROVIDER_ERROR"
	// ErrCodeSessionNotFound indicates a read of a never-created session.
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	// ErrCodeReportFailed indicates report generation failure.
	ErrCodeReportFailed ErrorCode = "REPORT_FAILED"
)

// ChatError is a structured error carrying a taxonomy code.
type ChatError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Cause
}

// MissingProvider creates a missing provider error.
func MissingProvider() *ChatError {
	return &ChatError{Code: ErrCodeMissingProvider, Message: "provider not specified"}
}

// UnsupportedProvider creates an unsupported provider error.
func UnsupportedProvider(tag string) *ChatError {
	return &ChatError{
		Code:    ErrCodeUnsupportedProvider,
		Message: fmt.Sprintf("unsupported provider: %s", tag),
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *ChatError {
	return &ChatError{Code: ErrCodeInvalidArgument, Message: msg}
}

// ProviderFailed creates a provider error wrapping the upstream failure.
func ProviderFailed(provider string, cause error) *ChatError {
	return &ChatError{
		Code:    ErrCodeProviderError,
		Message: fmt.Sprintf("provider %s failed", provider),
		Cause:   cause,
	}
}

// SessionNotFound creates a session not found error.
func SessionNotFound(sessionID string) *ChatError {
	return &ChatError{
		Code:    ErrCodeSessionNotFound,
		Message: fmt.Sprintf("session not found: %s", sessionID),
	}
}

// ReportFailed creates a report generation error.
func ReportFailed(msg string, cause error) *ChatError {
	return &ChatError{Code: ErrCodeReportFailed, Message: msg, Cause: cause}
}

// IsCode checks whether an error carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not a ChatError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	if chatErr, ok := err.(*ChatError); ok {
		return chatErr.Code
	}
	return defaultCode
}
