package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnavailable           = errors.New("server unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrInvalidLocalToken     = errors.New("local token invalid")
	ErrLocalDataNotAvailable = errors.New("local data unavailable")
)

// APIError is a non-2xx response, or a 2xx response with success=false.
// Message is the server's message verbatim when it sent one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap lets callers match authentication failures with errors.Is.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden {
		return ErrUnauthorized
	}
	return nil
}

func newAPIError(status int, message string) *APIError {
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &APIError{Status: status, Message: message}
}

// IsAdminDenied reports whether err is the backend refusing a request for
// lack of admin privileges.
func IsAdminDenied(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if !errors.Is(apiErr, ErrUnauthorized) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Message), "admin")
}
