package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/harbor-analytics/claimlens/internal/embedding"
	"github.com/harbor-analytics/claimlens/internal/index"
	"github.com/harbor-analytics/claimlens/internal/telemetry"
)

const defaultConcurrency = 4

// Embedder generates one vector per text, isolating per-item failures.
type Embedder interface {
	EmbedEach(ctx context.Context, texts []string) []embedding.Result
}

// Archiver stores the original source file alongside the index, so the
// exact bytes a citation points at can be produced later.
type Archiver interface {
	ArchiveDocument(ctx context.Context, documentID, path string) error
}

// FileReport records the outcome of ingesting a single file.
type FileReport struct {
	Path          string
	DocumentID    string
	Chunks        int
	ChunksSkipped int
	Err           error
}

// Report summarizes one ingestion run.
type Report struct {
	RunID     string
	Files     []FileReport
	Succeeded int
	Failed    int
	Chunks    int
	Elapsed   time.Duration
}

// ServiceConfig controls the ingestion pipeline.
type ServiceConfig struct {
	// Concurrency bounds how many documents are processed in parallel.
	Concurrency int
	// FailFast aborts the run on the first document error instead of
	// recording it and continuing with the rest.
	FailFast bool
}

// Service runs the load, chunk, embed, and index pipeline over document
// files. Re-ingesting a file replaces its previous chunk set atomically.
type Service struct {
	loaders  []Loader
	chunker  *Chunker
	embedder Embedder
	idx      index.Index
	archiver Archiver
	cfg      ServiceConfig
}

// NewService creates a new ingestion Service instance
func NewService(loaders []Loader, chunker *Chunker, embedder Embedder, idx index.Index, cfg ServiceConfig) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Service{
		loaders:  loaders,
		chunker:  chunker,
		embedder: embedder,
		idx:      idx,
		cfg:      cfg,
	}
}

// WithArchiver enables source-file archival after successful indexing.
func (s *Service) WithArchiver(a Archiver) *Service {
	s.archiver = a
	return s
}

// IngestDirectory ingests every supported file directly under dir. Files no
// loader supports are skipped, not failed. Unless FailFast is set, one bad
// file never blocks the rest; its error lands in the report.
func (s *Service) IngestDirectory(ctx context.Context, dir string) (*Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeLoad,
			fmt.Sprintf("cannot read documents directory %q", dir), err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if s.loaderFor(p) != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	return s.IngestFiles(ctx, paths)
}

// IngestFiles ingests the given files with bounded parallelism.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (*Report, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.Service.IngestFiles", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	start := time.Now()
	report := &Report{
		RunID: uuid.NewString(),
		Files: make([]FileReport, len(paths)),
	}
	log.Printf("ingest: run %s starting (%d files, concurrency %d)", report.RunID, len(paths), s.cfg.Concurrency)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, path := range paths {
		g.Go(func() error {
			fr := s.ingestFile(gctx, path)

			mu.Lock()
			report.Files[i] = fr
			if fr.Err != nil {
				report.Failed++
			} else {
				report.Succeeded++
				report.Chunks += fr.Chunks
			}
			mu.Unlock()

			if fr.Err != nil {
				log.Printf("ingest: %s failed: %v", path, fr.Err)
				if s.cfg.FailFast {
					return fr.Err
				}
			}
			return nil
		})
	}

	err := g.Wait()
	report.Elapsed = time.Since(start)
	if err != nil {
		span.SetError(err)
		return report, err
	}
	return report, nil
}

func (s *Service) ingestFile(ctx context.Context, path string) FileReport {
	fr := FileReport{Path: path}

	loader := s.loaderFor(path)
	if loader == nil {
		fr.Err = domain.ErrUnsupportedFormat
		return fr
	}

	doc, err := loader.Load(path)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.DocumentID = doc.ID

	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		fr.Err = err
		return fr
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	embedded := chunks[:0]
	for i, res := range s.embedder.EmbedEach(ctx, texts) {
		if res.Err != nil {
			// A chunk that cannot be embedded is dropped, not fatal: the
			// rest of the document stays searchable.
			log.Printf("ingest: %s chunk %s: embedding failed: %v", path, chunks[i].ID, res.Err)
			fr.ChunksSkipped++
			continue
		}
		c := chunks[i]
		c.Embedding = res.Vector
		embedded = append(embedded, c)
	}

	if len(embedded) == 0 && len(chunks) > 0 {
		fr.Err = domain.NewDomainError(domain.ErrCodeEmbedding,
			fmt.Sprintf("all %d chunks of %s failed to embed", len(chunks), doc.ID))
		return fr
	}

	n, err := s.idx.ReplaceDocument(ctx, doc.ID, embedded)
	if err != nil {
		fr.Err = err
		return fr
	}
	fr.Chunks = n

	if s.archiver != nil {
		if err := s.archiver.ArchiveDocument(ctx, doc.ID, path); err != nil {
			// Indexing already succeeded; archival is best-effort.
			log.Printf("ingest: %s: archive failed: %v", path, err)
		}
	}

	return fr
}

func (s *Service) loaderFor(path string) Loader {
	for _, l := range s.loaders {
		if l.Supports(path) {
			return l
		}
	}
	return nil
}
