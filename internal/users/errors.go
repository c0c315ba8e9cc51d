package users

import (
	"errors"
	"strings"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSuspended          = errors.New("account suspended")
	ErrValidation         = errors.New("validation error")
)

// ValidationError carries one message per failed field.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation error: " + strings.Join(e.Messages, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
