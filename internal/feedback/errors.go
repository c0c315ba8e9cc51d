package feedback

import "errors"

var (
	ErrNotFound    = errors.New("feedback target not found")
	ErrInvalidType = errors.New("invalid feedback type")
	ErrValidation  = errors.New("validation error")
)

// ValidationError carries the user-facing reason for a rejected submission.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error { return &ValidationError{Message: msg} }
