package errors

import (
	"fmt"
)

// AuditError is the structured error type for indexaudit.
// It provides rich context for error handling, logging, and user presentation.
type AuditError struct {
	// Code is the unique error code (e.g., "ERR_302_SOCKET_TIMEOUT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Transport, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AuditError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with AuditError.
func (e *AuditError) Is(target error) bool {
	if t, ok := target.(*AuditError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AuditError) WithDetail(key, value string) *AuditError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new AuditError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AuditError {
	return &AuditError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AuditError from an existing error.
// The error's message becomes the AuditError message.
func Wrap(code string, err error) *AuditError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// TransportError creates an index-service transport error. Transport
// errors are fatal to a run and must be distinguishable from empty
// results.
func TransportError(code string, message string, cause error) *AuditError {
	return New(code, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *AuditError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *AuditError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *AuditError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an AuditError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AuditError); ok {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := err.(*AuditError); ok {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an AuditError.
// Returns empty string if not an AuditError.
func GetCode(err error) string {
	if ae, ok := err.(*AuditError); ok {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from an AuditError.
// Returns empty string if not an AuditError.
func GetCategory(err error) Category {
	if ae, ok := err.(*AuditError); ok {
		return ae.Category
	}
	return ""
}
