package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Registry errors
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownRule   = errors.New("unknown rule")
	ErrSchemaExists  = errors.New("schema already registered")
	ErrInvalidSchema = errors.New("invalid schema definition")
	ErrInvalidRule   = errors.New("invalid rule definition")

	// Transform errors
	ErrMalformedRecord = errors.New("malformed record")
	ErrEmptyBatch      = errors.New("empty batch provided")

	// Aggregation errors
	ErrInvalidGroupSpec = errors.New("invalid group specification")
	ErrAggregationKey   = errors.New("grouping key extractor is not total")
	ErrUnsupportedFn    = errors.New("unsupported aggregation function")

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrConfigurationLoad    = errors.New("failed to load configuration")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeRegistry      ErrorType = "registry"
	ErrorTypeTransform     ErrorType = "transform"
	ErrorTypeQuality       ErrorType = "quality"
	ErrorTypeAggregation   ErrorType = "aggregation"
	ErrorTypePipeline      ErrorType = "pipeline"
	ErrorTypeConfiguration ErrorType = "configuration"
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
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
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

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:    errType,
		Code:    code,
		Message: message,
	}
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

// NewRegistryError creates a registry error
func NewRegistryError(code, message string) *AppError {
	return NewAppError(ErrorTypeRegistry, code, message)
}

// NewTransformError creates a transform error
func NewTransformError(code, message string) *AppError {
	return NewAppError(ErrorTypeTransform, code, message)
}

// NewQualityError creates a data-quality error
func NewQualityError(code, message string) *AppError {
	return NewAppError(ErrorTypeQuality, code, message)
}

// NewAggregationError creates an aggregation error
func NewAggregationError(code, message string) *AppError {
	return NewAppError(ErrorTypeAggregation, code, message)
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(code, message string) *AppError {
	return NewAppError(ErrorTypeConfiguration, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// Error codes for different error scenarios
const (
	// Registry error codes
	CodeUnknownEntity = "UNKNOWN_ENTITY"
	CodeUnknownRule   = "UNKNOWN_RULE"
	CodeSchemaExists  = "SCHEMA_EXISTS"
	CodeInvalidSchema = "INVALID_SCHEMA"
	CodeInvalidRule   = "INVALID_RULE"

	// Transform error codes
	CodeMalformedRecord = "MALFORMED_RECORD"
	CodeEmptyBatch      = "EMPTY_BATCH"

	// Aggregation error codes
	CodeInvalidGroupSpec = "INVALID_GROUP_SPEC"
	CodeAggregationKey   = "AGGREGATION_KEY_ERROR"
	CodeUnsupportedFn    = "UNSUPPORTED_AGGREGATION_FN"

	// Configuration error codes
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeConfigurationLoad    = "CONFIGURATION_LOAD_FAILED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
