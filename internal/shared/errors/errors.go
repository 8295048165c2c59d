// Package errors provides custom error types with error codes for the postforge API.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

// Error codes for the application.
const (
	// General errors
	CodeInternal      Code = "INTERNAL"
	CodeInvalidInput  Code = "INVALID_INPUT"
	CodeNotFound      Code = "NOT_FOUND"
	CodeAlreadyExists Code = "ALREADY_EXISTS"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeUnavailable   Code = "UNAVAILABLE"
	CodeFailedPrecond Code = "FAILED_PRECONDITION"

	// Auth-specific errors
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeTokenExpired       Code = "TOKEN_EXPIRED"
	CodeTokenInvalid       Code = "TOKEN_INVALID"

	// OAuth-specific errors
	CodeInvalidState     Code = "INVALID_STATE"
	CodeProviderExchange Code = "PROVIDER_EXCHANGE"
	CodeProviderProfile  Code = "PROVIDER_PROFILE"
	CodeProviderRefresh  Code = "PROVIDER_REFRESH"
)

// Error is the application's custom error type with code and details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"` // Underlying error, not serialized
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if the target error has the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// WithDetails returns a copy of the error with additional details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// Wrap wraps an underlying error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Err:     err,
	}
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors

// Internal creates an internal error.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// InternalWrap creates an internal error wrapping another error.
func InternalWrap(message string, err error) *Error {
	return Wrap(CodeInternal, message, err)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string) *Error {
	return New(CodeInvalidInput, message)
}

// NotFound creates a not found error.
func NotFound(message string) *Error {
	return New(CodeNotFound, message)
}

// AlreadyExists creates an already exists error.
func AlreadyExists(message string) *Error {
	return New(CodeAlreadyExists, message)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, message)
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *Error {
	return New(CodeForbidden, message)
}

// RateLimited creates a rate limited error.
func RateLimited(message string) *Error {
	return New(CodeRateLimited, message)
}

// FailedPrecondition creates a failed precondition error.
func FailedPrecondition(message string) *Error {
	return New(CodeFailedPrecond, message)
}

// Auth-specific error constructors

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(message string) *Error {
	return New(CodeInvalidCredentials, message)
}

// TokenExpired creates a token expired error.
func TokenExpired(message string) *Error {
	return New(CodeTokenExpired, message)
}

// TokenInvalid creates a token invalid error.
func TokenInvalid(message string) *Error {
	return New(CodeTokenInvalid, message)
}

// OAuth-specific error constructors

// InvalidState creates an invalid OAuth state error.
func InvalidState(message string) *Error {
	return New(CodeInvalidState, message)
}

// ProviderExchange creates a provider exchange error.
func ProviderExchange(message string) *Error {
	return New(CodeProviderExchange, message)
}

// ProviderProfile creates a provider profile error.
func ProviderProfile(message string) *Error {
	return New(CodeProviderProfile, message)
}

// ProviderRefresh creates a provider refresh error.
func ProviderRefresh(message string) *Error {
	return New(CodeProviderRefresh, message)
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *Error) HTTPStatusCode() int {
	switch e.Code {
	case CodeInvalidInput, CodeInvalidState:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidCredentials, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeFailedPrecond:
		return http.StatusPreconditionFailed
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	case CodeProviderExchange, CodeProviderProfile, CodeProviderRefresh:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, or CodeInternal if not found.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
