package queries

import "errors"

var (
	ErrNotFound         = errors.New("query not found")
	ErrQuestionTooShort = errors.New("question too short")
	ErrInvalidContext   = errors.New("invalid context")
	ErrNotReady         = errors.New("document not ready")
	ErrUnsupportedType  = errors.New("unsupported file type for querying")
	ErrNoText           = errors.New("no extractable text")
	ErrAI               = errors.New("AI service error")
)
