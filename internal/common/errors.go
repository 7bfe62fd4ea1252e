package common

import "net/http"

// AppError is an error that knows how it is rendered to the storefront:
// a stable machine code, a human message, the HTTP status and optional
// structured details (for example per-field validation messages).
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
		return e.Err.Error()
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

// Render writes e using the canonical error body. Zero status or code fall
// back to the given defaults; an empty message falls back to the status text.
func (e *AppError) Render(w http.ResponseWriter, status int, code string) {
	if e.HTTPStatus != 0 {
		status = e.HTTPStatus
	}
	if e.Code != "" {
		code = e.Code
	}
	message := e.Message
	if message == "" {
		message = http.StatusText(status)
	}
	JSONError(w, status, code, message, e.Details)
}

// Validation reports invalid input with a field -> message map.
func Validation(message string, fields map[string]string) *AppError {
	return &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    message,
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    fields,
	}
}
