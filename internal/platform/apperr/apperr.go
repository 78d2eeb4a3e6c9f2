// Copyright (c) 2026 Unpuff. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error taxonomy shared by the Unpuff API
server and the Unpuff client.

Architecture:

  - AppError: A struct containing a machine-readable Code and a user-facing message.
  - Taxonomy: Identity failures (INVALID_CREDENTIALS, ACCOUNT_EXISTS, ...) are
    first-class codes so the server can emit them and the client can rebuild them
    from the wire without ever parsing message text.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves a service or crosses the identity boundary should be an
[AppError]. Callers branch on [HasCode], never on Message.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// # Error Codes

const (
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeValidation         = "VALIDATION_ERROR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Identity taxonomy. All but TRANSPORT_FAILURE are user-correctable.
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnconfirmedAccount = "UNCONFIRMED_ACCOUNT"
	CodeAccountExists      = "ACCOUNT_EXISTS"
	CodeWeakCredential     = "WEAK_CREDENTIAL"
	CodeTransportFailure   = "TRANSPORT_FAILURE"

	// CodeConcurrentUpdate signals a rejected overlapping profile update.
	CodeConcurrentUpdate = "CONCURRENT_UPDATE"
)

// AppError is the canonical error type for Unpuff.
//
// It carries an HTTP status code, a machine-readable code, a client-safe
// message, and an optional slice of field-level validation errors.
//
// # Security
//
// The Cause field is for server-side logging only and is never sent to clients
// to avoid leaking internal implementation details (e.g., SQL queries).
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "ACCOUNT_EXISTS").
	Code string `json:"code"`
	// Message is a human-readable description safe to show to the user.
	Message string `json:"message"`
	// HTTPStatus is the HTTP status classification. Zero when no response was received.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the client-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client Errors (4xx)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Profile") // Returns "Profile not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       CodeRateLimited,
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// # Identity Errors

// InvalidCredentials creates a 401 [AppError] for a rejected secret or identifier.
func InvalidCredentials(msg string) *AppError {
	return &AppError{
		Code:       CodeInvalidCredentials,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// UnconfirmedAccount creates a 403 [AppError] for an account whose email is not verified yet.
func UnconfirmedAccount(msg string) *AppError {
	return &AppError{
		Code:       CodeUnconfirmedAccount,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// AccountExists creates a 409 [AppError] for an already registered identifier.
func AccountExists(msg string) *AppError {
	return &AppError{
		Code:       CodeAccountExists,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// WeakCredential creates a 400 [AppError] for a secret below the length policy.
func WeakCredential(minLength int) *AppError {
	return &AppError{
		Code:       CodeWeakCredential,
		Message:    fmt.Sprintf("Password must be at least %d characters", minLength),
		HTTPStatus: http.StatusBadRequest,
		Details:    []FieldError{{Field: "password", Message: fmt.Sprintf("Minimum %d characters", minLength)}},
	}
}

// TransportFailure wraps a network-level fault. It is retryable by resubmitting.
//
// status is the unexpected HTTP status when a response arrived, or zero.
func TransportFailure(status int, cause error) *AppError {
	return &AppError{
		Code:       CodeTransportFailure,
		Message:    "Unable to reach the server. Please try again.",
		HTTPStatus: status,
		Cause:      cause,
	}
}

// ConcurrentUpdate creates a 409 [AppError] for an update rejected because another is in flight.
func ConcurrentUpdate(resource string) *AppError {
	return &AppError{
		Code:       CodeConcurrentUpdate,
		Message:    resource + " is already being updated",
		HTTPStatus: http.StatusConflict,
	}
}

// # Server Errors (5xx)

// Internal creates a 500 [AppError] wrapping an unexpected server-side error.
// The cause is stored for logging but is never sent to the client.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// ServiceUnavailable creates a 503 [AppError].
func ServiceUnavailable(msg string) *AppError {
	return &AppError{
		Code:       CodeServiceUnavailable,
		Message:    msg,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// HasCode reports whether err carries an [*AppError] with the given code.
func HasCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}
