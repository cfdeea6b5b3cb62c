package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeConfiguration = "CONFIGURATION_ERROR"
	ErrCodeLoad          = "LOAD_ERROR"
	ErrCodeEmbedding     = "EMBEDDING_ERROR"
	ErrCodeIndex         = "INDEX_ERROR"
	ErrCodeIndexTimeout  = "INDEX_TIMEOUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Configuration errors (fatal at startup, never retried)
var (
	ErrInvalidChunkSize    = NewDomainError(ErrCodeConfiguration, "chunk size must be positive")
	ErrInvalidChunkOverlap = NewDomainError(ErrCodeConfiguration, "chunk overlap must be non-negative and smaller than chunk size")
	ErrMissingModelID      = NewDomainError(ErrCodeConfiguration, "embedding model id is required")
)

// Loader errors (per-document, reported and skipped during batch ingestion)
var (
	ErrDocumentUnreadable  = NewDomainError(ErrCodeLoad, "document is unreadable or corrupt")
	ErrUnsupportedFormat   = NewDomainError(ErrCodeLoad, "unsupported document format")
	ErrEmptyDocument       = NewDomainError(ErrCodeLoad, "document contains no extractable text")
	ErrInvalidDocumentMeta = NewDomainError(ErrCodeLoad, "document metadata sidecar is invalid")
)

// Embedding errors
var (
	ErrEmbeddingFailed    = NewDomainError(ErrCodeEmbedding, "embedding generation failed")
	ErrEmbeddingDimension = NewDomainError(ErrCodeEmbedding, "embedding has unexpected dimensionality")
)

// Index errors
var (
	ErrIndexUnavailable = NewDomainError(ErrCodeIndex, "vector index is unreachable")
	ErrIndexTimeout     = NewDomainError(ErrCodeIndexTimeout, "vector index operation timed out")
)

// Lookup errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrChunkNotFound    = NewDomainError(ErrCodeNotFound, "chunk not found")
)
