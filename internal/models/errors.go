package models

import "errors"

var (
	// ErrPostNotFound is returned when the target post does not exist.
	ErrPostNotFound = errors.New("post not found")

	// ErrCommentNotFound is returned when the target comment does not exist.
	ErrCommentNotFound = errors.New("comment not found")

	// ErrForbidden is returned when the viewer may not perform the action.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidLimit is returned for a non-positive page size.
	ErrInvalidLimit = errors.New("limit must be positive")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
