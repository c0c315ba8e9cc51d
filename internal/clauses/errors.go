package clauses

import "errors"

var (
	ErrNotFound            = errors.New("clause not found")
	ErrNotReady            = errors.New("document not ready")
	ErrUnsupportedType     = errors.New("unsupported file type for clause extraction")
	ErrNoText              = errors.New("no extractable text")
	ErrInvalidAnalysisType = errors.New("invalid analysis type")
	ErrSearchTerm          = errors.New("search term too short")
	ErrAI                  = errors.New("AI service error")
)
