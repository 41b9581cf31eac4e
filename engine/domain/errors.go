package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrEmptyQuery     = errors.New("query is empty")
	ErrQueryTooLong   = errors.New("query too long")
	ErrInvalidChapter = errors.New("invalid chapter")
	ErrInvalidModule  = errors.New("invalid module")
)

// Sentinel errors for external capabilities. Embedding and index failures are
// absorbed by the pipeline; generation failures reach the caller.
var (
	ErrEmbeddingUnavailable  = errors.New("embedding unavailable")
	ErrIndexUnavailable      = errors.New("vector index unavailable")
	ErrGenerationUnavailable = errors.New("generation unavailable")
	ErrCatalogUnavailable    = errors.New("chapter catalog unavailable")
	ErrChapterNotFound       = errors.New("chapter not found")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
