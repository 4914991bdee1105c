package server

import (
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/internal/synthesis"
)

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// IngestTextRequest carries raw text to chunk and ingest.
type IngestTextRequest struct {
	Source   string                 `json:"source"`
	Content  string                 `json:"content"`
	DocID    string                 `json:"doc_id,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// IngestURLRequest carries a web page to fetch, extract, and ingest.
type IngestURLRequest struct {
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
	DocID  string `json:"doc_id,omitempty"`
}

// IngestResponse reports one ingestion batch.
type IngestResponse struct {
	Source   string `json:"source"`
	DocID    string `json:"doc_id"`
	Chunks   int    `json:"chunks"`
	Inserted int    `json:"inserted"`
}

// SearchRequest is a nearest-neighbor query over the knowledge base.
type SearchRequest struct {
	Query  string `json:"query"`
	TopK   int    `json:"top_k,omitempty"`
	DocID  string `json:"doc_id,omitempty"`
	Source string `json:"source,omitempty"`
}

// SearchResponse returns the retrieved hits, closest first.
type SearchResponse struct {
	Query string            `json:"query"`
	TopK  int               `json:"top_k"`
	Hits  []store.SearchHit `json:"hits"`
}

// ChatRequest asks for a grounded answer over the knowledge base.
type ChatRequest struct {
	Message string `json:"message"`
	TopK    int    `json:"top_k,omitempty"`
	DocID   string `json:"doc_id,omitempty"`
	Source  string `json:"source,omitempty"`
}

// ChatResponse returns the answer plus only the chunks it actually cited.
type ChatResponse struct {
	Message   string               `json:"message"`
	Answer    string               `json:"answer"`
	Citations []synthesis.Citation `json:"citations"`
}

// ConfigResponse exposes the non-secret effective configuration.
type ConfigResponse struct {
	ChatModel           string `json:"chat_model"`
	EmbedModel          string `json:"embed_model"`
	TopKDefault         int    `json:"top_k_default"`
	ChunkSize           int    `json:"chunk_size"`
	ChunkOverlap        int    `json:"chunk_overlap"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	APIKeyConfigured    bool   `json:"openai_api_key_configured"`
}

// HealthResponse reports service and database health.
type HealthResponse struct {
	Status   string         `json:"status"`
	Database store.DBHealth `json:"database"`
}
