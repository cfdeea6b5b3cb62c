package service

import (
	"sort"
	"strings"

	"github.com/harbor-analytics/claimlens/internal/index"
)

const (
	similarityWeight = 0.7
	stateBoost       = 0.15
	categoryBoost    = 0.15

	confidenceHighFloor   = 0.8
	confidenceMediumFloor = 0.6
)

// RankConfig controls rescoring, deduplication, and diversity selection.
type RankConfig struct {
	// FinalK caps the number of results returned.
	FinalK int
	// MinScore drops below-threshold candidates instead of padding results.
	MinScore float64
	// MaxPerDocument caps results per distinct document after dedup.
	MaxPerDocument int
}

// DefaultRankConfig provides sane ranking defaults.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		FinalK:         5,
		MinScore:       0.35,
		MaxPerDocument: 2,
	}
}

// SearchResult is a ranked, citation-backed document excerpt. Created per
// query, returned to the caller, never persisted.
type SearchResult struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
	Similarity   float64 `json:"similarity"`
	Score        float64 `json:"score"`
	Confidence   string  `json:"confidence"`
	Excerpt      string  `json:"excerpt"`
	FullText     string  `json:"full_text"`
}

// rankCandidates rescores the raw candidate pool, collapses near-duplicate
// chunks, enforces per-document diversity, and truncates to the final count.
//
// Final score is weighted similarity plus metadata boosts when the case's
// state or claim type matches the chunk's metadata or document name, capped
// at 1.0. Equal scores order by (document name, page number) ascending so
// output is deterministic.
func rankCandidates(candidates []index.Candidate, qc QueryContext, cfg RankConfig) []*SearchResult {
	if cfg.FinalK <= 0 {
		cfg = DefaultRankConfig()
	}

	scored := make([]index.Candidate, len(candidates))
	copy(scored, candidates)
	sort.SliceStable(scored, func(i, j int) bool {
		si, sj := finalScore(scored[i], qc), finalScore(scored[j], qc)
		if si != sj {
			return si > sj
		}
		ci, cj := scored[i].Chunk, scored[j].Chunk
		if ci.DocumentName != cj.DocumentName {
			return ci.DocumentName < cj.DocumentName
		}
		return ci.PageNumber < cj.PageNumber
	})

	// Dedup: adjacent overlapping chunks (or same-page chunks) from one
	// document collapse to the highest-scoring one; iterating in score order
	// means the first survivor wins.
	kept := make([]index.Candidate, 0, len(scored))
	perDoc := make(map[string][]index.Candidate)
	docCount := make(map[string]int)

	for _, cand := range scored {
		score := finalScore(cand, qc)
		if score < cfg.MinScore {
			continue
		}

		docID := cand.Chunk.DocumentID
		if duplicateOf(cand, perDoc[docID]) {
			continue
		}
		if docCount[docID] >= cfg.MaxPerDocument {
			continue
		}

		perDoc[docID] = append(perDoc[docID], cand)
		docCount[docID]++
		kept = append(kept, cand)
		if len(kept) >= cfg.FinalK {
			break
		}
	}

	results := make([]*SearchResult, 0, len(kept))
	for _, cand := range kept {
		score := finalScore(cand, qc)
		results = append(results, &SearchResult{
			ChunkID:      cand.Chunk.ID,
			DocumentID:   cand.Chunk.DocumentID,
			DocumentName: cand.Chunk.DocumentName,
			PageNumber:   cand.Chunk.PageNumber,
			Similarity:   cand.Similarity,
			Score:        score,
			Confidence:   confidenceLabel(score),
			FullText:     cand.Chunk.Text,
		})
	}
	return results
}

// duplicateOf reports whether the candidate covers the same passage as one
// already kept for its document: overlapping offset ranges or the same page.
func duplicateOf(cand index.Candidate, kept []index.Candidate) bool {
	for _, k := range kept {
		if cand.Chunk.PageNumber == k.Chunk.PageNumber {
			return true
		}
		if cand.Chunk.StartOffset < k.Chunk.EndOffset && k.Chunk.StartOffset < cand.Chunk.EndOffset {
			return true
		}
	}
	return false
}

func finalScore(cand index.Candidate, qc QueryContext) float64 {
	score := cand.Similarity * similarityWeight

	if matchesField(qc.Case.State, cand.Chunk.Metadata.State, cand.Chunk.DocumentName) {
		score += stateBoost
	}
	if matchesField(qc.Case.ClaimType, cand.Chunk.Metadata.Category, cand.Chunk.DocumentName) {
		score += categoryBoost
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// matchesField reports a metadata boost match: the case field equals the
// chunk's metadata value, or appears in the document name.
func matchesField(caseValue, metaValue, documentName string) bool {
	v := strings.ToLower(strings.TrimSpace(caseValue))
	if v == "" {
		return false
	}
	if v == strings.ToLower(metaValue) {
		return true
	}
	return strings.Contains(strings.ToLower(documentName), v)
}

func confidenceLabel(score float64) string {
	switch {
	case score >= confidenceHighFloor:
		return "High"
	case score >= confidenceMediumFloor:
		return "Medium"
	default:
		return "Low"
	}
}
