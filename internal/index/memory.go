package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

// MemoryIndex is an in-process brute-force cosine index. It backs tests and
// local single-binary runs where no Postgres is configured. Writes take the
// exclusive lock, so a document replace is atomic with respect to queries.
type MemoryIndex struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{chunks: make(map[string]domain.Chunk)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return len(chunks), nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteDocumentLocked(documentID)
	return nil
}

func (m *MemoryIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteDocumentLocked(documentID)
	for _, c := range chunks {
		m.chunks[c.ID] = c
	}
	return len(chunks), nil
}

func (m *MemoryIndex) deleteDocumentLocked(documentID string) {
	for id, c := range m.chunks {
		if c.DocumentID == documentID {
			delete(m.chunks, id)
		}
	}
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 20
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]Candidate, 0, len(m.chunks))
	for _, c := range m.chunks {
		if !filter.Matches(c.Metadata) {
			continue
		}
		candidates = append(candidates, Candidate{
			Chunk:      c,
			Similarity: 1.0 / (1.0 + cosineDistance(vector, c.Embedding)),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Similarity != candidates[j].Similarity {
			return candidates[i].Similarity > candidates[j].Similarity
		}
		ci, cj := candidates[i].Chunk, candidates[j].Chunk
		if ci.DocumentName != cj.DocumentName {
			return ci.DocumentName < cj.DocumentName
		}
		return ci.PageNumber < cj.PageNumber
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (m *MemoryIndex) ListDocuments(ctx context.Context) ([]DocumentStat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]*DocumentStat)
	for _, c := range m.chunks {
		s, ok := stats[c.DocumentID]
		if !ok {
			s = &DocumentStat{DocumentID: c.DocumentID, DocumentName: c.DocumentName}
			stats[c.DocumentID] = s
		}
		s.Chunks++
		if c.CreatedAt.After(s.UpdatedAt) {
			s.UpdatedAt = c.CreatedAt
		}
	}

	out := make([]DocumentStat, 0, len(stats))
	for _, s := range stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentName < out[j].DocumentName })
	return out, nil
}

// cosineDistance returns 1 - cos(a, b). Zero vectors compare as maximally
// distant rather than dividing by zero.
func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
