package models

import "errors"

// APIError is an error the operator can act on. Title is a short heading,
// Message carries the guidance.
type APIError struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// NewAPIError creates an APIError.
func NewAPIError(title, message string) *APIError {
	return &APIError{Title: title, Message: message}
}

func (e *APIError) Error() string {
	if e.Title == "" {
		return e.Message
	}
	return e.Title + ": " + e.Message
}

// AsAPIError reports whether err wraps an *APIError and returns it.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
