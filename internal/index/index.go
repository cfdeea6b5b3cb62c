// Package index wraps the vector store behind a stable upsert/query contract.
//
// Similarity metric: cosine. Implementations report similarity as
// 1.0 / (1.0 + cosine_distance), which lies in (0, 1] and preserves the
// cosine ordering; ranking depends on this being fixed across backends.
package index

import (
	"context"
	"fmt"
	"time"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

// validateChunks rejects writes carrying malformed chunks before anything
// reaches the store, so a partial batch never lands.
func validateChunks(chunks []domain.Chunk) error {
	for i := range chunks {
		if err := domain.ValidateChunk(&chunks[i]); err != nil {
			return domain.NewDomainErrorWithCause(domain.ErrCodeValidation,
				fmt.Sprintf("invalid chunk %q", chunks[i].ID), err)
		}
	}
	return nil
}

// Filter is a conjunction of equality predicates over chunk metadata.
// Zero-valued fields impose no constraint.
type Filter struct {
	State    string
	Category string
	Type     domain.DocumentType
}

// IsZero reports whether the filter imposes no constraints.
func (f Filter) IsZero() bool {
	return f.State == "" && f.Category == "" && f.Type == ""
}

// Matches reports whether the chunk metadata satisfies every predicate.
func (f Filter) Matches(m domain.DocumentMetadata) bool {
	if f.State != "" && f.State != m.State {
		return false
	}
	if f.Category != "" && f.Category != m.Category {
		return false
	}
	if f.Type != "" && f.Type != m.Type {
		return false
	}
	return true
}

// Candidate is a raw similarity-search hit before ranking.
type Candidate struct {
	Chunk      domain.Chunk
	Similarity float64
}

// DocumentStat summarizes one indexed document.
type DocumentStat struct {
	DocumentID   string
	DocumentName string
	Chunks       int
	UpdatedAt    time.Time
}

// Index is the sole persistent store of chunks with embeddings.
//
// A query against an index holding fewer than k matching chunks returns all
// matches, never an error; zero matches is a valid empty result.
type Index interface {
	// Upsert writes chunks, replacing any existing entries sharing the same
	// chunk ID. Returns the count written.
	Upsert(ctx context.Context, chunks []domain.Chunk) (int, error)

	// DeleteByDocument removes every chunk belonging to a document.
	DeleteByDocument(ctx context.Context, documentID string) error

	// ReplaceDocument atomically swaps a document's chunk set: concurrent
	// queries observe either the old generation or the new one, never a mix
	// or a gap. Returns the count written.
	ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (int, error)

	// Query returns up to k candidates ordered by descending similarity.
	Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Candidate, error)

	// ListDocuments returns per-document chunk counts.
	ListDocuments(ctx context.Context) ([]DocumentStat, error)
}
