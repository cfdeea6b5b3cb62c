package index

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/harbor-analytics/claimlens/internal/domain"
)

const defaultQueryTimeout = 10 * time.Second

// PgIndexConfig controls the Postgres-backed index.
type PgIndexConfig struct {
	// Timeout is applied per statement; zero uses the default.
	Timeout time.Duration
	// MaxRetries bounds retry attempts for transient failures.
	MaxRetries uint64
}

// PgIndex stores chunks with embeddings in Postgres using pgvector.
// The `<=>` operator is cosine distance; similarity is reported as
// 1.0 / (1.0 + distance).
type PgIndex struct {
	pool *pgxpool.Pool
	cfg  PgIndexConfig
}

// NewPgIndex creates a new Postgres-backed index.
func NewPgIndex(pool *pgxpool.Pool, cfg PgIndexConfig) *PgIndex {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultQueryTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &PgIndex{pool: pool, cfg: cfg}
}

func (p *PgIndex) Upsert(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	written := 0
	err := p.withRetry(ctx, func(ctx context.Context) error {
		written = 0
		for _, c := range chunks {
			if err := upsertChunk(ctx, p.pool, c); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (p *PgIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return p.withRetry(ctx, func(ctx context.Context) error {
		_, err := p.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
		return err
	})
}

// ReplaceDocument deletes and rewrites a document's chunks inside one
// transaction, so concurrent queries see either the previous generation or
// the new one in full.
func (p *PgIndex) ReplaceDocument(ctx context.Context, documentID string, chunks []domain.Chunk) (int, error) {
	if err := validateChunks(chunks); err != nil {
		return 0, err
	}

	written := 0
	err := p.withRetry(ctx, func(ctx context.Context) error {
		written = 0
		tx, err := p.pool.Begin(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID); err != nil {
			return err
		}
		for _, c := range chunks {
			if err := upsertChunk(ctx, tx, c); err != nil {
				return err
			}
			written++
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertChunk(ctx context.Context, db execer, c domain.Chunk) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := db.Exec(ctx,
		`INSERT INTO document_chunks
			(chunk_id, document_id, document_name, doc_type, state, category,
			 page_number, start_offset, end_offset, content, embedding, created_at)
		 VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (chunk_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			document_name = EXCLUDED.document_name,
			doc_type = EXCLUDED.doc_type,
			state = EXCLUDED.state,
			category = EXCLUDED.category,
			page_number = EXCLUDED.page_number,
			start_offset = EXCLUDED.start_offset,
			end_offset = EXCLUDED.end_offset,
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			created_at = EXCLUDED.created_at`,
		c.ID,
		c.DocumentID,
		c.DocumentName,
		nullableString(string(c.Metadata.Type)),
		nullableString(c.Metadata.State),
		nullableString(c.Metadata.Category),
		c.PageNumber,
		c.StartOffset,
		c.EndOffset,
		c.Text,
		pgvector.NewVector(c.Embedding),
		createdAt,
	)
	return err
}

func (p *PgIndex) Query(ctx context.Context, vector []float32, filter Filter, k int) ([]Candidate, error) {
	if k <= 0 {
		k = 20
	}

	var out []Candidate
	err := p.withRetry(ctx, func(ctx context.Context) error {
		vec := pgvector.NewVector(vector)

		rows, err := p.pool.Query(ctx, `
			SELECT chunk_id, document_id, document_name,
			       COALESCE(doc_type, ''), COALESCE(state, ''), COALESCE(category, ''),
			       page_number, start_offset, end_offset, content, created_at,
			       1.0 / (1.0 + (embedding <=> $1)) AS score
			FROM document_chunks
			WHERE ($2 = '' OR state = $2)
			  AND ($3 = '' OR category = $3)
			  AND ($4 = '' OR doc_type = $4)
			ORDER BY embedding <=> $1
			LIMIT $5`,
			vec, filter.State, filter.Category, string(filter.Type), k,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var (
				c       domain.Chunk
				docType string
				score   float64
			)
			if err := rows.Scan(&c.ID, &c.DocumentID, &c.DocumentName,
				&docType, &c.Metadata.State, &c.Metadata.Category,
				&c.PageNumber, &c.StartOffset, &c.EndOffset, &c.Text, &c.CreatedAt,
				&score); err != nil {
				return err
			}
			c.Metadata.Type = domain.DocumentType(docType)
			out = append(out, Candidate{Chunk: c, Similarity: score})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PgIndex) ListDocuments(ctx context.Context) ([]DocumentStat, error) {
	var out []DocumentStat
	err := p.withRetry(ctx, func(ctx context.Context) error {
		rows, err := p.pool.Query(ctx, `
			SELECT document_id, document_name, COUNT(*), MAX(created_at)
			FROM document_chunks
			GROUP BY document_id, document_name
			ORDER BY document_name`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var s DocumentStat
			if err := rows.Scan(&s.DocumentID, &s.DocumentName, &s.Chunks, &s.UpdatedAt); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withRetry runs fn under the per-statement timeout, retrying transient
// failures with bounded exponential backoff. Timeouts surface as a distinct
// INDEX_TIMEOUT error once retries are exhausted.
func (p *PgIndex) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.cfg.MaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return classify(err)
	}
	return nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx: connection exceptions; 57P01: admin shutdown.
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" || pgErr.Code == "57P01"
	}
	return false
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeIndexTimeout, "index operation timed out", err)
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeIndex, "index operation failed", err)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Index = (*PgIndex)(nil)
var _ Index = (*MemoryIndex)(nil)
