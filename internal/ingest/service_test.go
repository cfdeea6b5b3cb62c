package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/embedding"
	"github.com/harbor-analytics/claimlens/internal/index"
)

// stubEmbedder returns a fixed-size vector per text; texts containing any
// poison marker fail.
type stubEmbedder struct {
	poison string
}

func (s *stubEmbedder) EmbedEach(ctx context.Context, texts []string) []embedding.Result {
	results := make([]embedding.Result, len(texts))
	for i, t := range texts {
		if s.poison != "" && strings.Contains(t, s.poison) {
			results[i] = embedding.Result{Err: domain.ErrEmbeddingFailed}
			continue
		}
		results[i] = embedding.Result{Vector: []float32{float32(len(t)), 1}}
	}
	return results
}

func newTestService(t *testing.T, emb Embedder, idx index.Index, cfg ServiceConfig) *Service {
	t.Helper()
	chunker, err := NewChunker(ChunkConfig{Size: 50, Overlap: 10})
	require.NoError(t, err)
	return NewService([]Loader{NewTextLoader()}, chunker, emb, idx, cfg)
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fire_sop.txt", strings.Repeat("fire claim handling steps. ", 10))
	writeFile(t, dir, "flood_policy.txt", "flood coverage applies to ground water intrusion")
	writeFile(t, dir, "ignored.pdf", "binary")

	idx := index.NewMemoryIndex()
	svc := newTestService(t, &stubEmbedder{}, idx, ServiceConfig{Concurrency: 2})

	report, err := svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Greater(t, report.Chunks, 0)

	stats, err := idx.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "fire_sop", stats[0].DocumentID)
	assert.Equal(t, "flood_policy", stats[1].DocumentID)
}

func TestIngestDirectory_Missing(t *testing.T) {
	svc := newTestService(t, &stubEmbedder{}, index.NewMemoryIndex(), ServiceConfig{})

	_, err := svc.IngestDirectory(context.Background(), "/does/not/exist")
	require.Error(t, err)

	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeLoad, derr.Code)
}

func TestIngestFiles_BadFileReported(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "usable content for the index")
	empty := writeFile(t, dir, "empty.txt", "   ")

	idx := index.NewMemoryIndex()
	svc := newTestService(t, &stubEmbedder{}, idx, ServiceConfig{})

	report, err := svc.IngestFiles(context.Background(), []string{good, empty})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Files, 2)
	assert.NoError(t, report.Files[0].Err)
	assert.Error(t, report.Files[1].Err)

	// The good file still landed in the index.
	stats, err := idx.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, stats, 1)
}

func TestIngestFiles_FailFast(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.txt", "   ")
	good := writeFile(t, dir, "good.txt", "usable content")

	svc := newTestService(t, &stubEmbedder{}, index.NewMemoryIndex(), ServiceConfig{
		Concurrency: 1,
		FailFast:    true,
	})

	_, err := svc.IngestFiles(context.Background(), []string{empty, good})
	assert.Error(t, err)
}

func TestIngestFiles_ChunkEmbeddingFailureSkipsChunk(t *testing.T) {
	dir := t.TempDir()
	// Two chunks at size 50/overlap 10; only the first contains the poison
	// marker, so one chunk is skipped and the rest of the document indexes.
	content := "POISON " + strings.Repeat("a", 40) + strings.Repeat("b", 60)
	path := writeFile(t, dir, "partial.txt", content)

	idx := index.NewMemoryIndex()
	svc := newTestService(t, &stubEmbedder{poison: "POISON"}, idx, ServiceConfig{})

	report, err := svc.IngestFiles(context.Background(), []string{path})
	require.NoError(t, err)

	require.Len(t, report.Files, 1)
	fr := report.Files[0]
	assert.NoError(t, fr.Err)
	assert.Equal(t, 1, fr.ChunksSkipped)
	assert.Greater(t, fr.Chunks, 0)
}

func TestIngestFiles_AllChunksFail(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doomed.txt", "POISON everywhere")

	svc := newTestService(t, &stubEmbedder{poison: "POISON"}, index.NewMemoryIndex(), ServiceConfig{})

	report, err := svc.IngestFiles(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	require.Error(t, report.Files[0].Err)

	var derr *domain.DomainError
	require.ErrorAs(t, report.Files[0].Err, &derr)
	assert.Equal(t, domain.ErrCodeEmbedding, derr.Code)
}

func TestIngestFiles_Reingest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "doc.txt", strings.Repeat("first version text. ", 10))

	idx := index.NewMemoryIndex()
	svc := newTestService(t, &stubEmbedder{}, idx, ServiceConfig{})

	_, err := svc.IngestFiles(context.Background(), []string{path})
	require.NoError(t, err)

	// Shorter second version: stale chunks from the first generation must
	// not survive the replace.
	writeFile(t, dir, "doc.txt", "short second version")
	report, err := svc.IngestFiles(context.Background(), []string{path})
	require.NoError(t, err)

	stats, err := idx.ListDocuments(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, report.Chunks, stats[0].Chunks)
	assert.Equal(t, 1, stats[0].Chunks)
}
