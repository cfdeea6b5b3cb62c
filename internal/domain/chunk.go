package domain

import (
	"fmt"
	"time"
)

// Chunk is a bounded, page-anchored span of document text. It is the atomic
// unit of indexing and citation. Offsets are rune offsets into the
// page-concatenated document text; the page number is the page owning the
// chunk's start offset, even when the text runs across a page boundary.
type Chunk struct {
	ID           string
	DocumentID   string
	DocumentName string
	PageNumber   int
	Text         string
	StartOffset  int
	EndOffset    int
	Embedding    []float32
	Metadata     DocumentMetadata
	CreatedAt    time.Time
}

// ChunkID derives the stable identifier for a chunk from its document ID and
// start offset. Identical document and chunking config always yield the same
// IDs.
func ChunkID(documentID string, startOffset int) string {
	return fmt.Sprintf("%s:%d", documentID, startOffset)
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}

	if c.ID == "" {
		return fmt.Errorf("chunk ID is required")
	}

	if c.DocumentID == "" {
		return fmt.Errorf("chunk DocumentID is required")
	}

	if c.PageNumber <= 0 {
		return fmt.Errorf("chunk PageNumber must be positive, got %d", c.PageNumber)
	}

	if c.Text == "" {
		return fmt.Errorf("chunk Text is required")
	}

	if c.StartOffset < 0 || c.EndOffset <= c.StartOffset {
		return fmt.Errorf("chunk offsets are invalid: [%d, %d)", c.StartOffset, c.EndOffset)
	}

	return nil
}
