package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/harbor-analytics/claimlens/internal/api"
	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/service"
)

type Retriever interface {
	Retrieve(ctx context.Context, caseRec domain.CaseRecord) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	retriever Retriever
}

func NewSearchHandler(retriever Retriever) *SearchHandler {
	return &SearchHandler{retriever: retriever}
}

type SearchRequest struct {
	CaseID       string  `json:"case_id,omitempty"`
	ClaimType    string  `json:"claim_type,omitempty"`
	State        string  `json:"state,omitempty"`
	PropertyType string  `json:"property_type,omitempty"`
	ClaimAmount  float64 `json:"claim_amount,omitempty"`
	Notes        string  `json:"notes,omitempty"`
}

type SearchResultResponse struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	PageNumber   int     `json:"page_number"`
	Score        float64 `json:"score"`
	Similarity   float64 `json:"similarity"`
	Confidence   string  `json:"confidence"`
	Excerpt      string  `json:"excerpt"`
	FullText     string  `json:"full_text"`
}

type SearchResponse struct {
	Results    []*SearchResultResponse `json:"results"`
	DurationMS int64                   `json:"duration_ms"`
}

// Search retrieves ranked document excerpts relevant to a claim case.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	caseRec := domain.CaseRecord{
		CaseID:       req.CaseID,
		ClaimType:    req.ClaimType,
		State:        req.State,
		PropertyType: req.PropertyType,
		ClaimAmount:  req.ClaimAmount,
		Notes:        req.Notes,
	}

	results, err := h.retriever.Retrieve(r.Context(), caseRec)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = &SearchResultResponse{
			ChunkID:      res.ChunkID,
			DocumentID:   res.DocumentID,
			DocumentName: res.DocumentName,
			PageNumber:   res.PageNumber,
			Score:        res.Score,
			Similarity:   res.Similarity,
			Confidence:   res.Confidence,
			Excerpt:      res.Excerpt,
			FullText:     res.FullText,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Results:    responses,
		DurationMS: time.Since(start).Milliseconds(),
	})
}
