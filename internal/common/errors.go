package common

import (
	"errors"
	"net/http"
)

// AppError is an error that knows how it is rendered to API clients.
type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
	Details any
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

// Validation wraps err, usually validator.ValidationErrors, as a 400 whose
// details are supplied by the caller.
func Validation(err error, details any) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: "invalid query parameters", Status: http.StatusBadRequest, Err: err, Details: details}
}

// StatusOf returns the HTTP status err renders with, 500 when err carries none.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
