package errors

import (
	"errors"
	"net/http"
)

const (
	CodeInvalidJSON        = "invalid_json"
	CodeUnknownCommand     = "unknown_command"
	CodeInvalidSessionType = "invalid_session_type"
	CodeInvalidDuration    = "invalid_duration"
	CodeMissingSettings    = "missing_settings"
	CodeUnauthorized       = "unauthorized"
	CodeInternal           = "internal_error"
)

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, CodeInternal, message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, CodeUnauthorized, message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

// As extracts an *APIError from err's chain.
func As(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
