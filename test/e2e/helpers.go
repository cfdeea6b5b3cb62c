//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harbor-analytics/claimlens/internal/api/handlers"
	"github.com/harbor-analytics/claimlens/internal/embedding"
	"github.com/harbor-analytics/claimlens/internal/index"
	"github.com/harbor-analytics/claimlens/internal/ingest"
	"github.com/harbor-analytics/claimlens/internal/server"
	"github.com/harbor-analytics/claimlens/internal/service"
	"github.com/harbor-analytics/claimlens/internal/testutil"
)

const embedDimensions = 1536

// hashEmbedder is a deterministic bag-of-words embedder: each lowercased
// token bumps one vector axis, then the vector is L2-normalized. Texts
// sharing vocabulary land close under cosine similarity, which is enough
// to exercise the full retrieval path without a live embedding API.
type hashEmbedder struct{}

func (hashEmbedder) embed(text string) []float32 {
	v := make([]float32, embedDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(word, ".,;:!?\"'()")))
		v[h.Sum32()%embedDimensions]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e hashEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e hashEmbedder) EmbedEach(ctx context.Context, texts []string) []embedding.Result {
	results := make([]embedding.Result, len(texts))
	for i, t := range texts {
		results[i] = embedding.Result{Vector: e.embed(t)}
	}
	return results
}

// E2EEnv holds all resources needed for end-to-end tests: a pgvector
// container, the ingestion pipeline, and a running HTTP server.
type E2EEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	Pool         *pgxpool.Pool
	Index        *index.PgIndex
	Ingest       *ingest.Service
	DocsDir      string
	ServerURL    string
	ServerCloser func()
	HTTPClient   *http.Client
}

// SetupE2EEnv wires the full pipeline against real PostgreSQL and starts
// the HTTP server on a free port.
func SetupE2EEnv(t *testing.T) *E2EEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	idx := index.NewPgIndex(pool, index.PgIndexConfig{})

	chunker, err := ingest.NewChunker(ingest.ChunkConfig{Size: 200, Overlap: 20})
	if err != nil {
		t.Fatalf("failed to create chunker: %v", err)
	}

	emb := hashEmbedder{}
	ingestSvc := ingest.NewService(
		[]ingest.Loader{ingest.NewTextLoader()},
		chunker,
		emb,
		idx,
		ingest.ServiceConfig{Concurrency: 2},
	)

	retrieval := service.NewRetrievalService(emb, idx, service.DefaultRetrievalConfig())

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		SearchHandler:    handlers.NewSearchHandler(retrieval),
		DocumentsHandler: handlers.NewDocumentsHandler(idx),
	})

	serverURL, closer := startServer(t, router, port)

	return &E2EEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		Pool:         pool,
		Index:        idx,
		Ingest:       ingestSvc,
		DocsDir:      t.TempDir(),
		ServerURL:    serverURL,
		ServerCloser: closer,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources.
func (e *E2EEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// WriteDoc writes a document and optional metadata sidecar into the docs
// directory.
func (e *E2EEnv) WriteDoc(name, content string, meta map[string]string) string {
	path := filepath.Join(e.DocsDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		e.T.Fatalf("failed to write doc %s: %v", name, err)
	}
	if meta != nil {
		raw, err := json.Marshal(meta)
		if err != nil {
			e.T.Fatalf("failed to marshal sidecar: %v", err)
		}
		if err := os.WriteFile(path+".meta.json", raw, 0o644); err != nil {
			e.T.Fatalf("failed to write sidecar for %s: %v", name, err)
		}
	}
	return path
}

// APIResponse is the standard response envelope.
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request against the running server.
func (e *E2EEnv) Get(path string) (int, *APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request with a JSON body.
func (e *E2EEnv) Post(path string, body interface{}) (int, *APIResponse, error) {
	return e.doRequest("POST", path, body)
}

// PostRaw posts raw bytes without JSON encoding, for malformed-body tests.
func (e *E2EEnv) PostRaw(path string, body []byte) (int, *APIResponse, error) {
	req, err := http.NewRequest("POST", e.ServerURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.send(req)
}

func (e *E2EEnv) doRequest(method, path string, body interface{}) (int, *APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return e.send(req)
}

func (e *E2EEnv) send(req *http.Request) (int, *APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var apiResp APIResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &apiResp); err != nil {
			return resp.StatusCode, nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, raw)
		}
	}
	return resp.StatusCode, &apiResp, nil
}

func startServer(t *testing.T, router http.Handler, port int) (string, func()) {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
