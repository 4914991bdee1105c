// Package retriever embeds a query and fetches its nearest stored chunks.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/store"
)

// Embedder is the slice of the LLM provider the retriever needs.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the slice of the knowledge store the retriever needs.
type Searcher interface {
	SearchChunks(ctx context.Context, p store.SearchParams) ([]store.SearchHit, error)
}

// Retriever orchestrates query embedding and nearest-neighbor search.
type Retriever struct {
	embedder Embedder
	store    Searcher
}

func New(embedder Embedder, searcher Searcher) *Retriever {
	return &Retriever{embedder: embedder, store: searcher}
}

// Retrieve embeds query and returns up to topK hits, closest first. Query
// embeddings are not cached across calls.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, docID, source string) ([]store.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.InvalidParameter("query", "is required")
	}
	if topK < store.MinTopK || topK > store.MaxTopK {
		return nil, apperr.InvalidParameter("top_k", "must be between 1 and 20")
	}

	vecs, err := r.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, apperr.Upstream("embed query", fmt.Errorf("provider returned no vectors"))
	}

	return r.store.SearchChunks(ctx, store.SearchParams{
		Vector: vecs[0],
		TopK:   topK,
		DocID:  docID,
		Source: source,
	})
}
