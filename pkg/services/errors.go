package services

import "errors"

// Sentinel errors returned by the service layer. The API layer maps these
// to HTTP status codes.
var (
	// ErrNotFound indicates a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidSessionID indicates a session identifier that cannot be
	// used for the requested operation (for example a provisional id
	// where a committed one is required).
	ErrInvalidSessionID = errors.New("invalid session id")
)

// ValidationError indicates invalid input from the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
