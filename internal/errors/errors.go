// Package errors provides structured error types for the Tidemark system.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
//
// These errors never cross the datastore boundary: adapters fold them into
// failure results or false returns. They exist for construction-time
// failures, CLI exit paths, and log context.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryTranslate  ErrorCategory = "TRANSLATE"
	ErrCategoryWarehouse  ErrorCategory = "WAREHOUSE"
	ErrCategoryEmbedded   ErrorCategory = "EMBEDDED"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidSchema      = "INVALID_SCHEMA"
	CodeDuplicateParameter = "DUPLICATE_PARAMETER"
	CodeUnboundParameter   = "UNBOUND_PARAMETER"
	CodeUnmappedType       = "UNMAPPED_TYPE"

	// Config codes
	CodeInvalidBackend = "INVALID_BACKEND"
	CodeMissingSetting = "MISSING_SETTING"

	// Translate codes
	CodeUnsupportedConstruct = "UNSUPPORTED_CONSTRUCT"

	// Warehouse codes
	CodeQueryFailed    = "QUERY_FAILED"
	CodeTableNotFound  = "TABLE_NOT_FOUND"
	CodeStagingFailed  = "STAGING_FAILED"
	CodeNotInitialized = "NOT_INITIALIZED"

	// Embedded codes
	CodeConnectionClosed = "CONNECTION_CLOSED"
	CodeExecFailed       = "EXEC_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// TidemarkError is the structured error type used throughout the system.
type TidemarkError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *TidemarkError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TidemarkError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TidemarkError) Is(target error) bool {
	var t *TidemarkError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TidemarkError.
func New(category ErrorCategory, code, message string) *TidemarkError {
	return &TidemarkError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new TidemarkError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TidemarkError {
	return &TidemarkError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *TidemarkError) WithDetails(details map[string]interface{}) *TidemarkError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Retry policy itself belongs to callers; this flag is advisory.
func IsRetryable(err error) bool {
	var te *TidemarkError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TidemarkError.
func GetCategory(err error) ErrorCategory {
	var te *TidemarkError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TidemarkError.
func GetCode(err error) string {
	var te *TidemarkError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only transient
// warehouse conditions qualify; everything else needs caller intervention.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryWarehouse && code == CodeQueryFailed:
		return true
	case category == ErrCategoryWarehouse && code == CodeStagingFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *TidemarkError {
	return New(ErrCategoryValidation, code, message)
}

func NewConfigError(code, message string) *TidemarkError {
	return New(ErrCategoryConfig, code, message)
}

func NewWarehouseError(code, message string, cause error) *TidemarkError {
	return Wrap(ErrCategoryWarehouse, code, message, cause)
}

func NewEmbeddedError(code, message string, cause error) *TidemarkError {
	return Wrap(ErrCategoryEmbedded, code, message, cause)
}

func NewInternalError(message string, cause error) *TidemarkError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
