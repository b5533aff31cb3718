package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeInvalidInput         ErrorType = "invalid_input"
	ErrorTypeForbidden            ErrorType = "forbidden"
	ErrorTypeUnauthorized         ErrorType = "unauthorized"
	ErrorTypeConfigurationMissing ErrorType = "configuration_missing"
	ErrorTypeUpstreamUnavailable  ErrorType = "upstream_unavailable"
	ErrorTypeMalformedAIResponse  ErrorType = "malformed_ai_response"
	ErrorTypeNotFound             ErrorType = "not_found"
	ErrorTypeInternal             ErrorType = "internal"
)

// PremiumRequiredMessage is returned verbatim when a free caller submits an image.
const PremiumRequiredMessage = "Upload de imagens é exclusivo para Premium"

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

// Detail returns the diagnostic detail sent to clients, falling back to the cause.
func (e *AppError) Detail() string {
	if e.Details != "" {
		return e.Details
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return ""
}

func newError(t ErrorType, status int, message string, cause error) *AppError {
	return &AppError{
		Type:       t,
		Message:    message,
		StatusCode: status,
		Cause:      cause,
	}
}

// NewInvalidInputError creates an error for requests carrying nothing to analyze
func NewInvalidInputError(message string, cause error) *AppError {
	return newError(ErrorTypeInvalidInput, http.StatusBadRequest, message, cause)
}

// NewForbiddenError creates an error for callers whose entitlement is insufficient
func NewForbiddenError(message string, cause error) *AppError {
	return newError(ErrorTypeForbidden, http.StatusForbidden, message, cause)
}

// NewPremiumRequiredError is the Forbidden error raised by the image upload gate
func NewPremiumRequiredError() *AppError {
	return NewForbiddenError(PremiumRequiredMessage, nil)
}

// NewUnauthorizedError creates an error for missing or invalid credentials
func NewUnauthorizedError(message string, cause error) *AppError {
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, cause)
}

// NewConfigurationMissingError creates an error for an absent service credential
func NewConfigurationMissingError(message string, cause error) *AppError {
	return newError(ErrorTypeConfigurationMissing, http.StatusInternalServerError, message, cause)
}

// NewUpstreamError creates an error for a failed vision or AI call
func NewUpstreamError(message string, cause error) *AppError {
	return newError(ErrorTypeUpstreamUnavailable, http.StatusBadGateway, message, cause)
}

// NewMalformedAIResponseError creates an error for AI output that is not the expected JSON
func NewMalformedAIResponseError(message string, cause error) *AppError {
	return newError(ErrorTypeMalformedAIResponse, http.StatusInternalServerError, message, cause)
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, cause error) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, message, cause)
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message, cause)
}

// IsType checks if the error is of a specific type
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

// AsAppError converts any error into an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Erro desconhecido", err)
}
