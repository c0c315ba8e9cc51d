package documents

import (
	"errors"
	"strings"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrNoFile          = errors.New("no file uploaded")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrTooManyFiles    = errors.New("too many files")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidDate     = errors.New("invalid date")
	ErrSearchTerm      = errors.New("search term too short")
	ErrValidation      = errors.New("validation error")
)

// ValidationError carries field-level messages for a 400 response.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation error: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
