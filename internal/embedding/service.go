package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

// ErrTimeout is returned when an embedding call exceeds its deadline.
var ErrTimeout = errors.New("embedding request timed out")

// Client defines the interface for the external embedding model. One vector
// per input, order-preserving, fixed dimensionality per model configuration.
type Client interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// ServiceConfig controls batching, caching, and validation in the Service.
type ServiceConfig struct {
	// Dimensions is the expected vector length; mismatches are rejected.
	Dimensions int
	// BatchSize bounds the number of texts per upstream call. Batching is an
	// optimization only and never changes output values.
	BatchSize int
	// CacheSize bounds the LRU cache of embeddings keyed by exact text.
	CacheSize int
	// Timeout is applied per upstream call; zero disables it.
	Timeout time.Duration
}

// DefaultServiceConfig provides sane defaults for the embedder.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Dimensions: DefaultDimensions,
		BatchSize:  32,
		CacheSize:  2048,
		Timeout:    30 * time.Second,
	}
}

// Service wraps an embedding Client with batching and a bounded,
// concurrency-safe LRU cache keyed by exact text content. The cache is shared
// across ingestion and query callers.
type Service struct {
	client Client
	cache  *lru.Cache[string, []float32]
	cfg    ServiceConfig
}

// NewService creates a new embedding Service.
func NewService(client Client, cfg ServiceConfig) (*Service, error) {
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultServiceConfig().BatchSize
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultServiceConfig().CacheSize
	}

	cache, err := lru.New[string, []float32](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}

	return &Service{
		client: client,
		cache:  cache,
		cfg:    cfg,
	}, nil
}

// EmbedQuery generates the embedding for a single query string. A failure
// here is fatal for the query: there is no vector to search with.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	vectors, err := s.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates one vector per input, order-preserving. The call
// fails as a whole if any input fails; use EmbedEach during batch ingestion
// when per-item failure isolation is needed.
func (s *Service) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))

	// Serve cache hits first; only misses go upstream.
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := s.cache.Get(t); ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	for start := 0; start < len(missTexts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		batch, err := s.callClient(ctx, missTexts[start:end])
		if err != nil {
			return nil, err
		}
		for j, v := range batch {
			vectors[missIdx[start+j]] = v
			s.cache.Add(missTexts[start+j], v)
		}
	}

	return vectors, nil
}

// Result is the per-input outcome of EmbedEach.
type Result struct {
	Vector []float32
	Err    error
}

// EmbedEach embeds every input, isolating failures per item: when a batch
// call fails, its members are retried one by one so only the inputs that
// actually fail are reported as failed. Partial success is expected during
// batch ingestion; failed items are excluded from the index by the caller.
func (s *Service) EmbedEach(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))

	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v, ok := s.cache.Get(t); ok {
			results[i] = Result{Vector: v}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}

	for start := 0; start < len(missTexts); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(missTexts) {
			end = len(missTexts)
		}

		batch, err := s.callClient(ctx, missTexts[start:end])
		if err == nil {
			for j, v := range batch {
				results[missIdx[start+j]] = Result{Vector: v}
				s.cache.Add(missTexts[start+j], v)
			}
			continue
		}

		// Isolate the failing input(s) within the batch.
		for j := start; j < end; j++ {
			single, singleErr := s.callClient(ctx, missTexts[j:j+1])
			if singleErr != nil {
				results[missIdx[j]] = Result{Err: domain.NewDomainErrorWithCause(
					domain.ErrCodeEmbedding, "embedding failed", singleErr)}
				continue
			}
			results[missIdx[j]] = Result{Vector: single[0]}
			s.cache.Add(missTexts[j], single[0])
		}
	}

	return results
}

func (s *Service) callClient(ctx context.Context, texts []string) ([][]float32, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	vectors, err := s.client.CreateEmbeddings(ctx, texts)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}

	for i, v := range vectors {
		if len(v) != s.cfg.Dimensions {
			return nil, fmt.Errorf("%w: input %d has %d dimensions, expected %d",
				domain.ErrEmbeddingDimension, i, len(v), s.cfg.Dimensions)
		}
	}

	return vectors, nil
}
