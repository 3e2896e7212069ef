package errors

import (
	"net/http"

	"github.com/pkg/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// WithDetails adds detailed error information
func (e *BaseError) WithDetails(details string) *BaseError {
	return &BaseError{
		httpCode:  e.httpCode,
		errorCode: e.errorCode,
		message:   e.message,
		details:   details,
	}
}

// Predefined error types
var (
	// Location acquisition errors. Permission denial is terminal for the
	// session; unavailable and timeout are transient.
	ErrLocationPermissionDenied = NewBaseError(
		http.StatusForbidden,
		"LOCATION_PERMISSION_DENIED",
		"Location permission was denied on the device",
		"",
	)

	ErrLocationUnavailable = NewBaseError(
		http.StatusServiceUnavailable,
		"LOCATION_UNAVAILABLE",
		"The device could not determine a position",
		"",
	)

	ErrLocationTimeout = NewBaseError(
		http.StatusRequestTimeout,
		"LOCATION_TIMEOUT",
		"Timed out waiting for a position fix",
		"",
	)

	ErrNoPosition = NewBaseError(
		http.StatusConflict,
		"NO_POSITION",
		"No current position; acquire a location fix first",
		"",
	)

	// Routing errors
	ErrRouteNotFound = NewBaseError(
		http.StatusNotFound,
		"ROUTE_NOT_FOUND",
		"No route exists between these points",
		"",
	)

	ErrRouteTransport = NewBaseError(
		http.StatusBadGateway,
		"ROUTE_TRANSPORT_ERROR",
		"The routing service could not be reached",
		"",
	)

	// Directory errors
	ErrShopNotFound = NewBaseError(
		http.StatusNotFound,
		"SHOP_NOT_FOUND",
		"No shop with that id is loaded",
		"",
	)

	ErrShopNotRoutable = NewBaseError(
		http.StatusUnprocessableEntity,
		"SHOP_NOT_ROUTABLE",
		"The shop has no published location to route to",
		"",
	)

	ErrShopSourceUnavailable = NewBaseError(
		http.StatusBadGateway,
		"SHOP_SOURCE_UNAVAILABLE",
		"The shop directory could not be reached",
		"",
	)

	// Session-related errors
	ErrSessionNotFound = NewBaseError(
		http.StatusNotFound,
		"SESSION_NOT_FOUND",
		"No such tracking session",
		"",
	)

	// Validation-related errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"Request validation failed",
		"",
	)
)
