package utils

import (
	"errors"
	"fmt"
)

// AppError wraps an operation, human-facing message, and underlying error.
// Invalid marks errors caused by the caller's input rather than the service.
type AppError struct {
	Op      string
	Msg     string
	Err     error
	Invalid bool
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err}
}

// InvalidInput constructs an AppError blaming the request.
func InvalidInput(op, msg string, err error) error {
	return &AppError{Op: op, Msg: msg, Err: err, Invalid: true}
}

// IsInvalidInput reports whether err carries an AppError created by InvalidInput.
func IsInvalidInput(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Invalid
}

// PublicMessage returns the human-facing message of the outermost AppError in
// err, or fallback when there is none.
func PublicMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Msg != "" {
		return appErr.Msg
	}
	return fallback
}
