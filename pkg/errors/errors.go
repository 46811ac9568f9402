package errors

import (
	"errors"
	"fmt"
)

// Domain error types for business logic

var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates invalid input parameters
	ErrInvalidInput = errors.New("invalid input")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal error")

	// ErrTimeout indicates an operation timeout
	ErrTimeout = errors.New("operation timeout")

	// ErrNotAvailable indicates a value could not be determined
	ErrNotAvailable = errors.New("not available")
)

// Record-level errors (absorbed by pipeline stages, never surfaced)

var (
	// ErrMalformedSymbol indicates an option ticker that does not parse
	ErrMalformedSymbol = errors.New("malformed option symbol")

	// ErrMissingField indicates a required field absent from a vendor payload
	ErrMissingField = errors.New("missing required field")

	// ErrBadPrice indicates a zero or negative trade price
	ErrBadPrice = errors.New("bad trade price")

	// ErrExpiredContract indicates a contract past its expiration date
	ErrExpiredContract = errors.New("contract expired")
)

// Vendor API errors

var (
	// ErrVendorUnauthorized indicates a 401 from the market data vendor
	ErrVendorUnauthorized = errors.New("vendor unauthorized")

	// ErrVendorRateLimited indicates a 429 from the market data vendor
	ErrVendorRateLimited = errors.New("vendor rate limited")

	// ErrVendorTimeout indicates a vendor call exceeded its deadline
	ErrVendorTimeout = errors.New("vendor request timeout")

	// ErrVendorUnavailable indicates the vendor API is unreachable
	ErrVendorUnavailable = errors.New("vendor unavailable")
)

// WebSocket-specific errors

var (
	// ErrWSNotConnected indicates WebSocket is not connected
	ErrWSNotConnected = errors.New("websocket not connected")

	// ErrWSAuthFailed indicates the vendor rejected our stream credentials
	ErrWSAuthFailed = errors.New("websocket authentication failed")

	// ErrWSSubscriptionFailed indicates WebSocket subscription failed
	ErrWSSubscriptionFailed = errors.New("websocket subscription failed")

	// ErrWSReconnectFailed indicates WebSocket reconnection failed
	ErrWSReconnectFailed = errors.New("websocket reconnection failed")
)

// DomainError wraps an error with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error with field-specific details
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// VendorError carries the HTTP status the vendor returned alongside the
// mapped sentinel, so request-level handlers can surface the original status
type VendorError struct {
	StatusCode int
	Endpoint   string
	Err        error
}

// Error implements the error interface
func (e *VendorError) Error() string {
	return fmt.Sprintf("vendor %s returned %d: %v", e.Endpoint, e.StatusCode, e.Err)
}

// Unwrap returns the mapped sentinel
func (e *VendorError) Unwrap() error {
	return e.Err
}

// NewVendorError creates a vendor error with its mapped sentinel
func NewVendorError(statusCode int, endpoint string, err error) *VendorError {
	return &VendorError{
		StatusCode: statusCode,
		Endpoint:   endpoint,
		Err:        err,
	}
}

// Helper functions

// Is checks if err is or wraps target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target type
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
