package httpclient

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the remote entity does not exist. It is a legitimate
// negative result and is never retried.
var ErrNotFound = errors.New("entity not found")

// HTTPError represents an HTTP error
type HTTPError struct {
	StatusCode int
	Message    string
	URL        string
}

// Error returns the error message
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}

// NewHTTPError creates a new HTTP error
func NewHTTPError(statusCode int, url, message string) error {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// RetryExhaustedError is the terminal error raised after all retry attempts
// failed. It embeds the last underlying failure.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

// Error returns the error message
func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap returns the last underlying failure
func (e *RetryExhaustedError) Unwrap() error {
	return e.Err
}
