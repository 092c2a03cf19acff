package common

import (
	"errors"
	"net/http"
)

// Error codes shared by the HTTP handlers.
const (
	CodeInternal    = "INTERNAL"
	CodeBadRequest  = "BAD_REQUEST"
	CodeValidation  = "VALIDATION_FAILED"
	CodeNotFound    = "NOT_FOUND"
	CodeUpstream    = "UPSTREAM_UNAVAILABLE"
	CodeRateLimited = "RATE_LIMITED"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFound builds a 404 error for the named resource.
func NotFound(resource string, err error) *AppError {
	return NewAppError(CodeNotFound, resource+" not found", http.StatusNotFound, err)
}

// BadRequest builds a 400 error.
func BadRequest(message string, err error) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest, err)
}

// Validation builds a 422 error carrying per-field details.
func Validation(details any) *AppError {
	e := NewAppError(CodeValidation, "validation failed", http.StatusUnprocessableEntity, nil)
	e.Details = details
	return e
}

// Upstream builds a 502 error for a failing dependency.
func Upstream(message string, err error) *AppError {
	return NewAppError(CodeUpstream, message, http.StatusBadGateway, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
