package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/index"
)

type MockEmbedder struct {
	mock.Mock
}

func (m *MockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	args := m.Called(ctx, chunks)
	return args.Int(0), args.Error(1)
}

func (m *MockIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	args := m.Called(ctx, documentID)
	return args.Error(0)
}

func (m *MockIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (int, error) {
	args := m.Called(ctx, documentID, chunks)
	return args.Int(0), args.Error(1)
}

func (m *MockIndex) Query(ctx context.Context, vector []float32, filter index.Filter, k int) ([]index.Candidate, error) {
	args := m.Called(ctx, vector, filter, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.Candidate), args.Error(1)
}

func (m *MockIndex) ListDocuments(ctx context.Context) ([]index.DocumentStat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]index.DocumentStat), args.Error(1)
}

func retrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:                5,
		CandidatePoolFactor: 4,
		MinScore:            0.35,
		MaxPerDocument:      2,
		ExcerptChars:        300,
	}
}

func TestRetrieve(t *testing.T) {
	embedder := new(MockEmbedder)
	idx := new(MockIndex)
	svc := NewRetrievalService(embedder, idx, retrievalConfig())

	vector := []float32{0.1, 0.2}
	embedder.On("EmbedQuery", mock.Anything, "water_damage in CA").Return(vector, nil)

	candidates := []index.Candidate{
		candidate("sop:0", "sop", "CA Water Damage SOP", 1, 0, 500, 0.9, caMeta()),
	}
	wantFilter := index.Filter{State: "ca", Category: "water_damage"}
	idx.On("Query", mock.Anything, vector, wantFilter, 20).Return(candidates, nil)

	results, err := svc.Retrieve(context.Background(), domain.CaseRecord{
		CaseID:    "c-1",
		ClaimType: "water_damage",
		State:     "CA",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "sop:0", r.ChunkID)
	assert.Equal(t, 1, r.PageNumber)
	assert.InDelta(t, 0.9, r.Similarity, 1e-9)
	// 0.9*0.7 + 0.15 + 0.15 = 0.93.
	assert.InDelta(t, 0.93, r.Score, 1e-9)
	assert.Equal(t, "High", r.Confidence)
	assert.NotEmpty(t, r.Excerpt)
	assert.Contains(t, r.FullText, r.Excerpt)

	embedder.AssertExpectations(t)
	idx.AssertExpectations(t)
}

func TestRetrieve_EmbeddingFailureIsFatal(t *testing.T) {
	embedder := new(MockEmbedder)
	idx := new(MockIndex)
	svc := NewRetrievalService(embedder, idx, retrievalConfig())

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return(nil, errors.New("upstream down"))

	_, err := svc.Retrieve(context.Background(), domain.CaseRecord{ClaimType: "fire"})
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeEmbedding, derr.Code)
	assert.Contains(t, derr.Message, "query embedding")

	idx.AssertNotCalled(t, "Query")
}

func TestRetrieve_FilterRelaxation(t *testing.T) {
	embedder := new(MockEmbedder)
	idx := new(MockIndex)
	svc := NewRetrievalService(embedder, idx, retrievalConfig())

	vector := []float32{1, 0}
	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return(vector, nil)

	// Nothing matches the metadata filter; the retriever retries unfiltered.
	wantFilter := index.Filter{State: "wy", Category: "hail"}
	idx.On("Query", mock.Anything, vector, wantFilter, 20).Return([]index.Candidate{}, nil)
	idx.On("Query", mock.Anything, vector, index.Filter{}, 20).Return([]index.Candidate{
		candidate("generic:0", "generic", "National Hail Guide", 1, 0, 500, 0.95, domain.DocumentMetadata{}),
	}, nil)

	results, err := svc.Retrieve(context.Background(), domain.CaseRecord{ClaimType: "hail", State: "WY"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "generic:0", results[0].ChunkID)

	idx.AssertExpectations(t)
}

func TestRetrieve_NoRelaxationWithoutFilter(t *testing.T) {
	embedder := new(MockEmbedder)
	idx := new(MockIndex)
	svc := NewRetrievalService(embedder, idx, retrievalConfig())

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	idx.On("Query", mock.Anything, mock.Anything, index.Filter{}, 20).Return([]index.Candidate{}, nil).Once()

	results, err := svc.Retrieve(context.Background(), domain.CaseRecord{Notes: "no structured fields"})
	require.NoError(t, err)
	assert.Empty(t, results)

	idx.AssertExpectations(t)
}

func TestRetrieve_IndexFailure(t *testing.T) {
	embedder := new(MockEmbedder)
	idx := new(MockIndex)
	svc := NewRetrievalService(embedder, idx, retrievalConfig())

	embedder.On("EmbedQuery", mock.Anything, mock.Anything).Return([]float32{1, 0}, nil)
	idx.On("Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrIndexUnavailable)

	_, err := svc.Retrieve(context.Background(), domain.CaseRecord{ClaimType: "fire"})
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeIndex, derr.Code)
}

func TestPoolSize_Clamping(t *testing.T) {
	tests := []struct {
		name     string
		topK     int
		factor   int
		expected int
	}{
		{"below floor", 2, 4, 20},
		{"at floor", 5, 4, 20},
		{"mid range", 10, 4, 40},
		{"above ceiling", 80, 4, 200},
		{"zero factor uses default", 10, 0, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewRetrievalService(nil, nil, RetrievalConfig{
				TopK:                tt.topK,
				CandidatePoolFactor: tt.factor,
			})
			assert.Equal(t, tt.expected, svc.poolSize())
		})
	}
}
