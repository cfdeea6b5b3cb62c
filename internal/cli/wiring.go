package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-analytics/claimlens/internal/config"
	"github.com/harbor-analytics/claimlens/internal/database"
	"github.com/harbor-analytics/claimlens/internal/embedding"
	"github.com/harbor-analytics/claimlens/internal/index"
	"github.com/harbor-analytics/claimlens/internal/ingest"
	"github.com/harbor-analytics/claimlens/internal/service"
	"github.com/harbor-analytics/claimlens/internal/telemetry"
)

// initTelemetry wires Sentry tracing when SENTRY_DSN is set. The returned
// shutdown func is a no-op when telemetry is disabled.
func initTelemetry() func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	// Default to 10% sampling in production, 100% in development
	sampleRate := 0.1
	if environment == "development" {
		sampleRate = 1.0
	}

	shutdown, err := telemetry.Init(telemetry.Config{
		DSN:              dsn,
		Environment:      environment,
		TracesSampleRate: sampleRate,
	})
	if err != nil {
		log.Printf("telemetry init failed (continuing without tracing): %v", err)
		return func() {}
	}
	return shutdown
}

func newEmbeddingService(cfg *config.Config) (*embedding.Service, error) {
	if !cfg.HasOpenAI() {
		return nil, fmt.Errorf("CLAIMLENS_OPENAI_API_KEY is required")
	}
	client := embedding.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	return embedding.NewService(client, embedding.ServiceConfig{
		Dimensions: cfg.EmbeddingDimensions,
		BatchSize:  cfg.EmbedBatchSize,
		CacheSize:  cfg.EmbedCacheSize,
	})
}

// newPgIndex connects to the database, applies migrations unless skipped,
// and returns the pgvector-backed index. Caller owns the pool.
func newPgIndex(ctx context.Context, cfg *config.Config, migrate bool) (*index.PgIndex, *pgxpool.Pool, error) {
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("CLAIMLENS_DATABASE_URL is required")
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")

	if migrate {
		if err := database.Migrate(cfg.DatabaseURL, "file://migrations"); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return index.NewPgIndex(pool, index.PgIndexConfig{}), pool, nil
}

func newIngestService(cfg *config.Config, embSvc *embedding.Service, idx index.Index) (*ingest.Service, error) {
	chunker, err := ingest.NewChunker(ingest.ChunkConfig{
		Size:    cfg.ChunkSize,
		Overlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}

	loaders := []ingest.Loader{ingest.NewTextLoader()}

	return ingest.NewService(loaders, chunker, embSvc, idx, ingest.ServiceConfig{
		Concurrency: cfg.IngestConcurrency,
		FailFast:    cfg.FailFast,
	}), nil
}

func newRetrievalService(cfg *config.Config, embSvc *embedding.Service, idx index.Index) *service.RetrievalService {
	return service.NewRetrievalService(embSvc, idx, service.RetrievalConfig{
		TopK:                cfg.TopK,
		CandidatePoolFactor: cfg.CandidatePoolFactor,
		MinScore:            cfg.MinScore,
		MaxPerDocument:      cfg.MaxResultsPerDocument,
		ExcerptChars:        cfg.ExcerptChars,
	})
}
