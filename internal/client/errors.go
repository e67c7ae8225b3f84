package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"

	"github.com/sumire/todoshare/internal/domain"
)

// ErrServerNotRunning indicates the server is not reachable.
var ErrServerNotRunning = errors.New("server is not running or unreachable")

// ErrNotSignedIn is returned by calls that need a session when there is none.
var ErrNotSignedIn = fmt.Errorf("%w: not signed in", domain.ErrUnauthorized)

// APIError is an error response from the API. It unwraps to the matching
// domain error, so callers can use errors.Is with the domain sentinels.
type APIError struct {
	Status  int          `json:"-"`
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError is a field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "validation_error":
		if len(e.Details) > 0 {
			return &domain.ValidationError{Field: e.Details[0].Field, Message: e.Details[0].Message}
		}
		return domain.ErrInvalidInput
	case "invalid_input":
		return domain.ErrInvalidInput
	case "user_not_found":
		return domain.ErrShareTargetNotFound
	case "not_found":
		return domain.ErrNotFound
	case "invalid_credentials":
		return domain.ErrInvalidCredentials
	case "unauthorized":
		return domain.ErrUnauthorized
	case "forbidden":
		return domain.ErrForbidden
	case "conflict":
		return domain.ErrConflict
	}

	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case http.StatusForbidden:
		return domain.ErrForbidden
	case http.StatusConflict:
		return domain.ErrConflict
	}
	return nil
}

// parseErrorResponse reads the error envelope of a failed response.
func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	var env struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    http.StatusText(resp.StatusCode),
			Message: fmt.Sprintf("server error: %s", http.StatusText(resp.StatusCode)),
		}
	}

	env.Error.Status = resp.StatusCode
	return env.Error
}

// wrapConnectionError maps a refused connection to ErrServerNotRunning.
func wrapConnectionError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return errors.Join(ErrServerNotRunning, err)
	}
	return err
}
