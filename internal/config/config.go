package config

import (
	"fmt"
	"log"

	"github.com/harbor-analytics/claimlens/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DocumentsDir string `envconfig:"DOCUMENTS_DIR" default:"./data/documents"`

	// Chunking
	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"50"`

	// Retrieval
	TopK                  int     `envconfig:"TOP_K" default:"5"`
	CandidatePoolFactor   int     `envconfig:"CANDIDATE_POOL_FACTOR" default:"4"`
	MinScore              float64 `envconfig:"MIN_SCORE" default:"0.35"`
	MaxResultsPerDocument int     `envconfig:"MAX_RESULTS_PER_DOCUMENT" default:"2"`
	ExcerptChars          int     `envconfig:"EXCERPT_CHARS" default:"300"`

	// Embeddings
	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbedBatchSize      int    `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	EmbedCacheSize      int    `envconfig:"EMBED_CACHE_SIZE" default:"2048"`

	// Ingestion
	FailFast         bool `envconfig:"FAIL_FAST" default:"false"`
	IngestConcurrency int `envconfig:"INGEST_CONCURRENCY" default:"4"`

	// Optional source-document archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"claimlens-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("CLAIMLENS", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks the configuration invariants the retrieval pipeline depends
// on. Violations are configuration errors: fatal at startup, never retried.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return domain.ErrInvalidChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return domain.ErrInvalidChunkOverlap
	}
	if c.EmbeddingModel == "" {
		return domain.ErrMissingModelID
	}
	if c.EmbeddingDimensions <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "embedding dimensions must be positive")
	}
	if c.TopK <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "top_k must be positive")
	}
	if c.CandidatePoolFactor <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "candidate pool factor must be positive")
	}
	if c.MinScore < 0 || c.MinScore > 1 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "min score must be within [0, 1]")
	}
	if c.MaxResultsPerDocument <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "max results per document must be positive")
	}
	if c.EmbedBatchSize <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "embed batch size must be positive")
	}
	if c.IngestConcurrency <= 0 {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "ingest concurrency must be positive")
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}
