package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/internal/synthesis"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:     "test-key",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		RAG: config.RAGConfig{
			TopKDefault:         5,
			ChunkSize:           1000,
			ChunkOverlap:        200,
			EmbeddingDimensions: 1536,
		},
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

type stubInserter struct {
	lastParams store.InsertParams
	err        error
}

func (s *stubInserter) InsertChunks(ctx context.Context, embedder store.Embedder, p store.InsertParams) (int, error) {
	s.lastParams = p
	if s.err != nil {
		return 0, s.err
	}
	return len(p.Chunks), nil
}

type stubHitRetriever struct {
	hits []store.SearchHit
	err  error
}

func (s *stubHitRetriever) Retrieve(ctx context.Context, query string, topK int, docID, source string) ([]store.SearchHit, error) {
	return s.hits, s.err
}

type stubAnswerer struct {
	result synthesis.Result
	err    error
}

func (s *stubAnswerer) Answer(ctx context.Context, message string, topK int, docID, source string) (synthesis.Result, error) {
	return s.result, s.err
}

type stubHealth struct {
	health store.DBHealth
}

func (s *stubHealth) Health(ctx context.Context) store.DBHealth {
	return s.health
}

func doJSON(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestIngestText(t *testing.T) {
	cfg := testConfig()
	st := &stubInserter{}
	e := newEcho(cfg)
	NewIngestHandler(cfg, st, nil, quietLogger()).Register(e.Group("/api/ingest"))

	rec := doJSON(t, e, http.MethodPost, "/api/ingest/text", IngestTextRequest{
		Source:  "notes",
		Content: "some text to ingest",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp IngestResponse
	decode(t, rec, &resp)
	if resp.Source != "notes" || resp.Chunks != 1 || resp.Inserted != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.DocID == "" {
		t.Fatal("doc_id should be generated when omitted")
	}
	if st.lastParams.Metadata["ingest_type"] != "text" {
		t.Fatalf("metadata: %+v", st.lastParams.Metadata)
	}
}

func TestIngestTextMissingSource(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewIngestHandler(cfg, &stubInserter{}, nil, quietLogger()).Register(e.Group("/api/ingest"))

	rec := doJSON(t, e, http.MethodPost, "/api/ingest/text", IngestTextRequest{Content: "text"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
	var he HTTPError
	decode(t, rec, &he)
	if !strings.Contains(he.Error, "source") {
		t.Fatalf("error should name the field: %q", he.Error)
	}
}

func TestIngestFile(t *testing.T) {
	cfg := testConfig()
	st := &stubInserter{}
	e := newEcho(cfg)
	NewIngestHandler(cfg, st, nil, quietLogger()).Register(e.Group("/api/ingest"))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "readme.md")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("file body text")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp IngestResponse
	decode(t, rec, &resp)
	// Source defaults to the filename when the form omits it.
	if resp.Source != "readme.md" || resp.Inserted != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if st.lastParams.Metadata["filename"] != "readme.md" {
		t.Fatalf("metadata: %+v", st.lastParams.Metadata)
	}
}

func TestIngestFileUnsupportedType(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewIngestHandler(cfg, &stubInserter{}, nil, quietLogger()).Register(e.Group("/api/ingest"))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "deck.pptx")
	_, _ = fw.Write([]byte("binary"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/ingest/file", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	cfg := testConfig()
	ret := &stubHitRetriever{hits: []store.SearchHit{
		{ID: 1, Source: "notes", ChunkIndex: 0, Content: "alpha", Score: 0.1},
	}}
	e := newEcho(cfg)
	NewSearchHandler(cfg, ret, quietLogger()).Register(e.Group("/api"))

	rec := doJSON(t, e, http.MethodPost, "/api/search", SearchRequest{Query: "alpha"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp SearchResponse
	decode(t, rec, &resp)
	if resp.TopK != 5 {
		t.Fatalf("top_k should default to 5, got %d", resp.TopK)
	}
	if len(resp.Hits) != 1 || resp.Hits[0].Content != "alpha" {
		t.Fatalf("unexpected hits: %+v", resp.Hits)
	}
}

func TestSearchEmptyResultIsEmptyArray(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewSearchHandler(cfg, &stubHitRetriever{}, quietLogger()).Register(e.Group("/api"))

	rec := doJSON(t, e, http.MethodPost, "/api/search", SearchRequest{Query: "nothing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"hits":[]`) {
		t.Fatalf("hits should serialize as an empty array: %s", rec.Body.String())
	}
}

func TestSearchErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid parameter", apperr.InvalidParameter("query", "is required"), http.StatusBadRequest},
		{"unconfigured", apperr.Unconfigured("embedding capability"), http.StatusServiceUnavailable},
		{"upstream", apperr.Upstream("embed query", errors.New("boom")), http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"internal", errors.New("broken"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			e := newEcho(cfg)
			NewSearchHandler(cfg, &stubHitRetriever{err: tc.err}, quietLogger()).Register(e.Group("/api"))

			rec := doJSON(t, e, http.MethodPost, "/api/search", SearchRequest{Query: "q"})
			if rec.Code != tc.want {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.want, rec.Body.String())
			}
		})
	}
}

func TestChat(t *testing.T) {
	cfg := testConfig()
	synth := &stubAnswerer{result: synthesis.Result{
		Answer: "Alpha is first [1].",
		Citations: []synthesis.Citation{
			{ID: 11, Source: "notes", ChunkIndex: 0, Score: 0.1},
		},
	}}
	e := newEcho(cfg)
	NewChatHandler(cfg, synth, quietLogger()).Register(e.Group("/api"))

	rec := doJSON(t, e, http.MethodPost, "/api/chat", ChatRequest{Message: "what is alpha?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp ChatResponse
	decode(t, rec, &resp)
	if resp.Answer != "Alpha is first [1]." || len(resp.Citations) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestChatNoCitationsIsEmptyArray(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewChatHandler(cfg, &stubAnswerer{result: synthesis.Result{Answer: "I don't know."}}, quietLogger()).Register(e.Group("/api"))

	rec := doJSON(t, e, http.MethodPost, "/api/chat", ChatRequest{Message: "question"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"citations":[]`) {
		t.Fatalf("citations should serialize as an empty array: %s", rec.Body.String())
	}
}

func TestChatUnconfigured(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewChatHandler(cfg, &stubAnswerer{err: apperr.Unconfigured("completion capability")}, quietLogger()).Register(e.Group("/api"))

	rec := doJSON(t, e, http.MethodPost, "/api/chat", ChatRequest{Message: "question"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewOpsHandler(cfg, &stubHealth{}).Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp ConfigResponse
	decode(t, rec, &resp)
	if resp.ChatModel != "gpt-4o-mini" || resp.TopKDefault != 5 || !resp.APIKeyConfigured {
		t.Fatalf("unexpected config: %+v", resp)
	}
	if strings.Contains(rec.Body.String(), "test-key") {
		t.Fatal("config endpoint must not leak the API key")
	}
}

func TestHealthEndpoint(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewOpsHandler(cfg, &stubHealth{health: store.DBHealth{OK: true, ServerVersion: "PostgreSQL 16.2"}}).Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "ok" || !resp.Database.OK {
		t.Fatalf("unexpected health: %+v", resp)
	}
}

func TestHealthEndpointDegraded(t *testing.T) {
	cfg := testConfig()
	e := newEcho(cfg)
	NewOpsHandler(cfg, &stubHealth{health: store.DBHealth{OK: false, Error: "connection refused"}}).Register(e.Group("/api"))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health endpoint should stay 200, got %d", rec.Code)
	}
	var resp HealthResponse
	decode(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Fatalf("status %q, want degraded", resp.Status)
	}
}
