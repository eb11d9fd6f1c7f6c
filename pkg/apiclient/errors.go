package apiclient

import (
	"fmt"
	"net/http"
)

// APIError represents an error response from bardd's API, classified
// by HTTP status rather than a bespoke error code (the error taxonomy maps
// onto ordinary status codes here: 400 configuration error, 404 not
// found, 409 rescan in progress).
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// IsNotFound returns true if this is a 404 Not Found error.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if this is a 409 Conflict error, typically a
// rescan already in progress.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// IsValidationError returns true if this is a 400 Bad Request error.
func (e *APIError) IsValidationError() bool {
	return e.StatusCode == http.StatusBadRequest
}
