package errors

import (
	"fmt"
	"strings"
)

// ValidationErrorDetail represents detailed validation error information
type ValidationErrorDetail struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
}

// ValidationErrors collects every problem found while validating a parameter set
type ValidationErrors struct {
	Message string                  `json:"message"`
	Errors  []ValidationErrorDetail `json:"errors"`
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors(message string) *ValidationErrors {
	if message == "" {
		message = "validation failed"
	}
	return &ValidationErrors{
		Message: message,
		Errors:  make([]ValidationErrorDetail, 0),
	}
}

// Error implements the error interface for ValidationErrors
func (ve *ValidationErrors) Error() string {
	if len(ve.Errors) == 0 {
		return ve.Message
	}
	parts := make([]string, 0, len(ve.Errors))
	for _, detail := range ve.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", detail.Field, detail.Message))
	}
	return fmt.Sprintf("%s: %s", ve.Message, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrInvalidParameters for any collected failure
func (ve *ValidationErrors) Unwrap() error {
	if len(ve.Errors) == 0 {
		return nil
	}
	return ErrInvalidParameters
}

// Add adds a validation error
func (ve *ValidationErrors) Add(field, code, message string, value interface{}) {
	ve.Errors = append(ve.Errors, ValidationErrorDetail{
		Field:   field,
		Value:   value,
		Message: message,
		Code:    code,
	})
}

// Check records a failure when ok is false
func (ve *ValidationErrors) Check(ok bool, field, message string, value interface{}) {
	if !ok {
		ve.Add(field, CodeOutOfRange, message, value)
	}
}

// HasErrors checks if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ErrorOrNil returns the collected errors, or nil when there are none
func (ve *ValidationErrors) ErrorOrNil() error {
	if ve.HasErrors() {
		return ve
	}
	return nil
}
