package ingest

import (
	"sort"
	"time"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

// ChunkConfig controls how documents are split for indexing.
type ChunkConfig struct {
	// Size is the maximum chunk length in runes.
	Size int
	// Overlap is the number of runes shared between consecutive chunks.
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    500,
		Overlap: 50,
	}
}

// Chunker splits loader output into overlapping, page-anchored chunks.
// Identical document and config always yield identical chunk boundaries,
// IDs, and page assignments.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a Chunker, failing fast on invalid configuration.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, domain.ErrInvalidChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		return nil, domain.ErrInvalidChunkOverlap
	}
	return &Chunker{cfg: cfg}, nil
}

// pageBound marks the rune offset at which a page's text begins in the
// concatenated document text.
type pageBound struct {
	start int
	page  int
}

// Chunk splits a document into chunks. Page texts are concatenated with no
// separator so offsets are stable; each chunk's page number is the page
// owning its start offset. Embeddings are not assigned here.
func (c *Chunker) Chunk(doc *domain.Document) ([]domain.Chunk, error) {
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	var (
		runes  []rune
		bounds []pageBound
	)
	for _, p := range doc.Pages {
		if p.Text == "" {
			// Empty pages contribute zero length to offsets.
			continue
		}
		bounds = append(bounds, pageBound{start: len(runes), page: p.Number})
		runes = append(runes, []rune(p.Text)...)
	}

	if len(runes) == 0 {
		return nil, nil
	}

	step := c.cfg.Size - c.cfg.Overlap
	now := time.Now().UTC()

	chunks := make([]domain.Chunk, 0, (len(runes)/step)+1)
	for start := 0; start < len(runes); start += step {
		end := start + c.cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, domain.Chunk{
			ID:           domain.ChunkID(doc.ID, start),
			DocumentID:   doc.ID,
			DocumentName: doc.Name,
			PageNumber:   pageFor(bounds, start),
			Text:         string(runes[start:end]),
			StartOffset:  start,
			EndOffset:    end,
			Metadata:     doc.Metadata,
			CreatedAt:    now,
		})

		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// pageFor returns the page number owning the given rune offset: the last
// page whose start is at or before the offset.
func pageFor(bounds []pageBound, offset int) int {
	i := sort.Search(len(bounds), func(i int) bool {
		return bounds[i].start > offset
	})
	if i == 0 {
		return bounds[0].page
	}
	return bounds[i-1].page
}
