package domain

import (
	"fmt"
	"time"
)

// DocumentType represents the category of a source document
type DocumentType string

const (
	DocumentTypePolicy    DocumentType = "policy"
	DocumentTypeSOP       DocumentType = "sop"
	DocumentTypeBulletin  DocumentType = "bulletin"
	DocumentTypeGuideline DocumentType = "guideline"
)

// DocumentMetadata carries the structured attributes a document is tagged
// with at ingestion time. Chunks inherit it verbatim and searches filter on it.
type DocumentMetadata struct {
	Type     DocumentType
	State    string
	Category string
}

// Page is a single page of extracted document text. Page numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Document represents a source document as produced by a loader. It is
// immutable once ingested; re-ingestion replaces its chunks wholesale.
type Document struct {
	ID       string
	Name     string
	Format   string
	Pages    []Page
	Metadata DocumentMetadata
	LoadedAt time.Time
}

// NewDocument creates a new Document instance
func NewDocument(id, name, format string, pages []Page, metadata DocumentMetadata) *Document {
	return &Document{
		ID:       id,
		Name:     name,
		Format:   format,
		Pages:    pages,
		Metadata: metadata,
		LoadedAt: time.Now().UTC(),
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Name == "" {
		return fmt.Errorf("document Name is required")
	}

	if len(d.Pages) == 0 {
		return fmt.Errorf("document must have at least one page")
	}

	for i, p := range d.Pages {
		if p.Number <= 0 {
			return fmt.Errorf("page %d has invalid page number %d", i, p.Number)
		}
	}

	if d.Metadata.Type != "" && !isValidDocumentType(d.Metadata.Type) {
		return fmt.Errorf("document Type is invalid: %s", d.Metadata.Type)
	}

	return nil
}

// isValidDocumentType checks if a DocumentType is valid
func isValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypePolicy, DocumentTypeSOP, DocumentTypeBulletin, DocumentTypeGuideline:
		return true
	}
	return false
}
