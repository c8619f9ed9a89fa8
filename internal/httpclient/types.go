package httpclient

import (
	"fmt"
	"net/http"
)

// HTTPError represents a non-2xx response from another node.
// It matches ErrUnreachable with errors.Is.
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// NewHTTPError creates a new HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
	}
	return fmt.Sprintf("HTTP %d for URL %s", e.StatusCode, e.URL)
}

// Is makes every HTTPError match ErrUnreachable
func (*HTTPError) Is(target error) bool {
	return target == ErrUnreachable
}

// Retryable reports whether the request may succeed when repeated
func (e *HTTPError) Retryable() bool {
	switch {
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

// StatusError is a 2xx status response that reports success=false
type StatusError struct {
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return "status request was not successful"
	}
	return "status request was not successful: " + e.Message
}
