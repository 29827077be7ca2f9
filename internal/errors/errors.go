package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeInputRejected marks a non-image input; nothing is analyzed or stored
	ErrorTypeInputRejected ErrorType = "input_rejected"
	// ErrorTypeCapabilityUnavailable marks a missing tag source or face detector
	ErrorTypeCapabilityUnavailable ErrorType = "capability_unavailable"
	// ErrorTypeComputation marks a failure inside a pixel analysis
	ErrorTypeComputation ErrorType = "computation"
	// ErrorTypePersistence marks a history or settings read/write failure
	ErrorTypePersistence ErrorType = "persistence"

	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNetwork    ErrorType = "network"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeInternal   ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"status_code"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails returns a copy of the error carrying details
func (e *AppError) WithDetails(details string) *AppError {
	c := *e
	c.Details = details
	return &c
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInputRejectedError creates an error for inputs that are not images
func NewInputRejectedError(message string, cause error) *AppError {
	return newError(ErrorTypeInputRejected, http.StatusUnsupportedMediaType, message, cause)
}

// NewCapabilityUnavailableError creates an error for an absent external capability
func NewCapabilityUnavailableError(message string, cause error) *AppError {
	return newError(ErrorTypeCapabilityUnavailable, http.StatusNotImplemented, message, cause)
}

// NewComputationError creates an error for a failed pixel analysis
func NewComputationError(message string, cause error) *AppError {
	return newError(ErrorTypeComputation, http.StatusUnprocessableEntity, message, cause)
}

// NewPersistenceError creates an error for a storage failure
func NewPersistenceError(message string, cause error) *AppError {
	return newError(ErrorTypePersistence, http.StatusServiceUnavailable, message, cause)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, cause error) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message, cause)
}

// NewNetworkError creates a new network error
func NewNetworkError(message string, cause error) *AppError {
	return newError(ErrorTypeNetwork, http.StatusBadGateway, message, cause)
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(message string, cause error) *AppError {
	return newError(ErrorTypeTimeout, http.StatusGatewayTimeout, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if err, or any error it wraps, is an AppError of the given type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// GetStatusCode extracts the HTTP status code from an error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetType extracts the error type, defaulting to internal
func GetType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
