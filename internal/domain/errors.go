package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("resource not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrConflict           = errors.New("resource conflict")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ErrShareTargetNotFound is returned when no profile matches the email a task is
// being shared with. It matches ErrNotFound under errors.Is.
var ErrShareTargetNotFound = fmt.Errorf("%w: user not found, make sure the email is correct and the user has signed up", ErrNotFound)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
