package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Validation errors
	ErrInvalidTimeLimit      = errors.New("invalid time limit: must be positive")
	ErrInvalidCheckLimit     = errors.New("invalid check limit: must be positive")
	ErrInvalidParameters     = errors.New("invalid algorithm parameters")
	ErrInvalidGeneralization = errors.New("invalid generalization")
	ErrInvalidDataset        = errors.New("invalid dataset")
	ErrInvalidHierarchy      = errors.New("invalid generalization hierarchy")

	// Configuration errors
	ErrInvalidConfiguration    = errors.New("invalid configuration")
	ErrUnsupportedMonotonicity = errors.New("unsupported combination of privacy and utility monotonicity")
	ErrConfigurationLoad       = errors.New("failed to load configuration")

	// Search errors
	ErrSolutionSpaceTooLarge = errors.New("solution space exceeds the 64-bit identifier range")
	ErrCheckFailed           = errors.New("transformation check failed")
	ErrUnknownAlgorithm      = errors.New("unknown search algorithm")

	// Privacy errors
	ErrPrivacyBudgetDerivation = errors.New("failed to derive privacy budget")
	ErrPrivacyBudgetExceeded   = errors.New("privacy budget exceeded")
	ErrEmptyDistribution       = errors.New("exponential mechanism has no candidates")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeSearch        ErrorType = "search"
	ErrorTypePrivacy       ErrorType = "privacy"
	ErrorTypeInternal      ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Details != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewValidationError creates a validation error wrapping one of the sentinel errors
func NewValidationError(cause error, code, message string) *AppError {
	return WrapError(cause, ErrorTypeValidation, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(cause error, message string) *AppError {
	return WrapError(cause, ErrorTypeConfiguration, CodeInvalidConfiguration, message)
}

// NewSearchError creates a search error
func NewSearchError(cause error, code, message string) *AppError {
	return WrapError(cause, ErrorTypeSearch, code, message)
}

// NewPrivacyError creates a privacy error
func NewPrivacyError(cause error, code, message string) *AppError {
	return WrapError(cause, ErrorTypePrivacy, code, message)
}

// NewInternalError creates an internal error; the cause may be nil
func NewInternalError(cause error, message string) *AppError {
	return WrapError(errors.Join(ErrInternal, cause), ErrorTypeInternal, CodeInternalError, message)
}

// IsType reports whether err is an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput     = "INVALID_INPUT"
	CodeOutOfRange       = "OUT_OF_RANGE"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeMissingField     = "MISSING_FIELD"
	CodeInvalidLimit     = "INVALID_LIMIT"
	CodeInvalidDataset   = "INVALID_DATASET"
	CodeInvalidHierarchy = "INVALID_HIERARCHY"

	// Configuration error codes
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"

	// Search error codes
	CodeSpaceTooLarge    = "SOLUTION_SPACE_TOO_LARGE"
	CodeCheckFailed      = "CHECK_FAILED"
	CodeUnknownAlgorithm = "UNKNOWN_ALGORITHM"

	// Privacy error codes
	CodeBudgetDerivation      = "PRIVACY_BUDGET_DERIVATION"
	CodePrivacyBudgetExceeded = "PRIVACY_BUDGET_EXCEEDED"
	CodeEmptyDistribution     = "EMPTY_DISTRIBUTION"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
