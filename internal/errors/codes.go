// Package errors provides structured error handling for indexaudit.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (crawl, disk)
//   - 3XX: Transport errors (index service socket)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryTransport indicates index-service transport errors.
	CategoryTransport Category = "TRANSPORT"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299). Crawl-entry failures are warnings: the crawl
	// skips the entry and proceeds with a partial snapshot.
	ErrCodeEntryStat    = "ERR_201_ENTRY_STAT"
	ErrCodeEntryList    = "ERR_202_ENTRY_LIST"
	ErrCodeRootNotFound = "ERR_203_ROOT_NOT_FOUND"
	ErrCodeLockHeld     = "ERR_204_LOCK_HELD"

	// Transport errors (300-399). All fatal to a run: partial index data
	// must never be silently reconciled.
	ErrCodeSocketUnavailable = "ERR_301_SOCKET_UNAVAILABLE"
	ErrCodeSocketTimeout     = "ERR_302_SOCKET_TIMEOUT"
	ErrCodeMalformedResponse = "ERR_303_MALFORMED_RESPONSE"
	ErrCodeServiceError      = "ERR_304_SERVICE_ERROR"

	// Validation errors (400-499)
	ErrCodeInvalidInput = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidPath  = "ERR_402_INVALID_PATH"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryTransport
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryTransport:
		// Transport failures abort the whole reconciliation.
		return SeverityFatal
	case CategoryIO:
		switch code {
		case ErrCodeEntryStat, ErrCodeEntryList:
			return SeverityWarning
		}
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Only the initial socket connection is worth retrying: the service may
// be mid-restart. Mid-conversation failures are not.
func isRetryableCode(code string) bool {
	return code == ErrCodeSocketUnavailable
}
