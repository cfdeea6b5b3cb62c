package service

import (
	"context"
	"log"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/index"
	"github.com/harbor-analytics/claimlens/internal/telemetry"
)

const (
	defaultCandidatePoolFactor = 4
	minCandidatePool           = 20
	maxCandidatePool           = 200
)

// QueryEmbedder defines the interface for embedding query strings.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalConfig controls the query path.
type RetrievalConfig struct {
	TopK                int
	CandidatePoolFactor int
	MinScore            float64
	MaxPerDocument      int
	ExcerptChars        int
}

// DefaultRetrievalConfig provides sane retrieval defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                5,
		CandidatePoolFactor: defaultCandidatePoolFactor,
		MinScore:            0.35,
		MaxPerDocument:      2,
		ExcerptChars:        defaultExcerptChars,
	}
}

// RetrievalService turns a case record into ranked, citation-backed document
// excerpts: context build, query embedding, filtered similarity search,
// ranking, and citation resolution. The query path is read-only against the
// index and safe for unbounded concurrent use.
type RetrievalService struct {
	embedder QueryEmbedder
	idx      index.Index
	cfg      RetrievalConfig
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(embedder QueryEmbedder, idx index.Index, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg = DefaultRetrievalConfig()
	}
	return &RetrievalService{
		embedder: embedder,
		idx:      idx,
		cfg:      cfg,
	}
}

// Retrieve returns up to TopK results for the case, ordered by descending
// final score. An empty slice with a nil error means no relevant documents;
// a non-nil error means search was unavailable, with the failing stage named.
func (s *RetrievalService) Retrieve(ctx context.Context, caseRec domain.CaseRecord) ([]*SearchResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.Retrieve", telemetry.SpanAttributes{
		CaseID:    caseRec.CaseID,
		Operation: "retrieve",
	})
	defer span.End()

	qc := BuildQueryContext(caseRec)

	candidates, err := s.candidates(ctx, qc)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := rankCandidates(candidates, qc, RankConfig{
		FinalK:         s.cfg.TopK,
		MinScore:       s.cfg.MinScore,
		MaxPerDocument: s.cfg.MaxPerDocument,
	})
	for _, r := range results {
		resolveCitation(r, s.cfg.ExcerptChars)
	}

	return results, nil
}

func (s *RetrievalService) candidates(ctx context.Context, qc QueryContext) ([]index.Candidate, error) {
	vector, err := s.embedder.EmbedQuery(ctx, qc.Query)
	if err != nil {
		// No query vector means no search; fatal for this query.
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding,
			"query embedding stage failed", err)
	}

	pool := s.poolSize()
	candidates, err := s.idx.Query(ctx, vector, qc.Filter, pool)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndex,
			"index query stage failed", err)
	}

	// Over-strict filters must not starve results: when nothing matches the
	// metadata constraints, fall back to one unfiltered query.
	if len(candidates) == 0 && !qc.Filter.IsZero() {
		log.Printf("retrieval: filter %+v matched no chunks, relaxing to unfiltered query", qc.Filter)
		candidates, err = s.idx.Query(ctx, vector, index.Filter{}, pool)
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndex,
				"relaxed index query stage failed", err)
		}
	}

	return candidates, nil
}

// poolSize oversamples the final result count so the ranker has material to
// dedup and diversify, clamped to sane bounds.
func (s *RetrievalService) poolSize() int {
	factor := s.cfg.CandidatePoolFactor
	if factor <= 0 {
		factor = defaultCandidatePoolFactor
	}
	pool := s.cfg.TopK * factor
	if pool < minCandidatePool {
		pool = minCandidatePool
	}
	if pool > maxCandidatePool {
		pool = maxCandidatePool
	}
	return pool
}
