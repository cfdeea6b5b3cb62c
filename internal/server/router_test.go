package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harbor-analytics/claimlens/internal/api/handlers"
	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/index"
	"github.com/harbor-analytics/claimlens/internal/service"
)

type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) Retrieve(ctx context.Context, caseRec domain.CaseRecord) ([]*service.SearchResult, error) {
	args := m.Called(ctx, caseRec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func setupRouter() (http.Handler, *MockRetriever, *index.MemoryIndex) {
	retriever := new(MockRetriever)
	idx := index.NewMemoryIndex()

	cfg := RouterConfig{
		SearchHandler:    handlers.NewSearchHandler(retriever),
		DocumentsHandler: handlers.NewDocumentsHandler(idx),
	}

	return NewRouter(cfg), retriever, idx
}

func TestRouter_HealthEndpoint(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestRouter_Search(t *testing.T) {
	router, retriever, _ := setupRouter()

	results := []*service.SearchResult{
		{
			ChunkID:      "flood_sop:0",
			DocumentID:   "flood_sop",
			DocumentName: "Flood SOP",
			PageNumber:   1,
			Similarity:   0.82,
			Score:        0.87,
			Confidence:   "High",
			Excerpt:      "Flood claims in coastal states require",
			FullText:     "Flood claims in coastal states require an elevation certificate before payout.",
		},
	}
	retriever.On("Retrieve", mock.Anything, mock.MatchedBy(func(c domain.CaseRecord) bool {
		return c.ClaimType == "flood" && c.State == "FL"
	})).Return(results, nil)

	body := `{"case_id":"c-1","claim_type":"flood","state":"FL","claim_amount":120000}`
	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(body))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "flood_sop:0", resp.Data.Results[0].ChunkID)
	assert.Equal(t, "High", resp.Data.Results[0].Confidence)
	assert.Equal(t, 1, resp.Data.Results[0].PageNumber)
	assert.NotEmpty(t, resp.Data.Results[0].FullText)
	assert.Contains(t, resp.Data.Results[0].FullText, resp.Data.Results[0].Excerpt)

	var raw struct {
		Data struct {
			Results []map[string]json.RawMessage `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	require.Len(t, raw.Data.Results, 1)
	assert.Contains(t, raw.Data.Results[0], "full_text")
	assert.Contains(t, raw.Data.Results[0], "excerpt")

	retriever.AssertExpectations(t)
}

func TestRouter_Search_EmptyResults(t *testing.T) {
	router, retriever, _ := setupRouter()

	retriever.On("Retrieve", mock.Anything, mock.Anything).Return([]*service.SearchResult{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data handlers.SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data.Results)
}

func TestRouter_Search_InvalidBody(t *testing.T) {
	router, _, _ := setupRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{not json`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Search_IndexUnavailable(t *testing.T) {
	router, retriever, _ := setupRouter()

	retriever.On("Retrieve", mock.Anything, mock.Anything).
		Return(nil, domain.NewDomainErrorWithCause(domain.ErrCodeIndex, "index query stage failed", domain.ErrIndexUnavailable))

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"claim_type":"fire"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestRouter_Documents(t *testing.T) {
	router, _, idx := setupRouter()

	_, err := idx.Upsert(context.Background(), []domain.Chunk{
		{
			ID:           "fire_sop:0",
			DocumentID:   "fire_sop",
			DocumentName: "Fire SOP",
			PageNumber:   1,
			Text:         "fire claims",
			EndOffset:    11,
			Embedding:    []float32{1, 0},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/documents", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data handlers.DocumentsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Documents, 1)
	assert.Equal(t, "fire_sop", resp.Data.Documents[0].DocumentID)
	assert.Equal(t, 1, resp.Data.Documents[0].Chunks)
}
