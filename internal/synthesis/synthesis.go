// Package synthesis turns retrieved chunks into a grounded, cited answer.
package synthesis

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/store"
)

const systemPrompt = "You are a helpful knowledge-base assistant.\n" +
	"Answer the user's question using ONLY the provided context.\n" +
	"If the context is insufficient, say you don't know and ask a clarifying question.\n" +
	"When you use information from a chunk, cite it like [1], [2], etc.\n"

// Completer is the slice of the LLM provider the synthesizer needs.
type Completer interface {
	Completion(ctx context.Context, system, user string) (string, error)
}

// HitRetriever fetches the nearest chunks for a query.
type HitRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, docID, source string) ([]store.SearchHit, error)
}

// Citation is a retrieved chunk the answer explicitly referenced by marker.
type Citation struct {
	ID         int64   `json:"id"`
	Source     string  `json:"source"`
	DocID      string  `json:"doc_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

// Result is a synthesized answer plus the chunks it actually cited.
type Result struct {
	Answer    string
	Citations []Citation
}

// Synthesizer builds a grounded prompt from retrieved evidence and reconciles
// the model's citation markers against the retrieved set.
type Synthesizer struct {
	retriever HitRetriever
	llm       Completer
	logger    *log.Logger
}

func New(retriever HitRetriever, llm Completer, logger *log.Logger) *Synthesizer {
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &Synthesizer{retriever: retriever, llm: llm, logger: logger}
}

// Answer retrieves evidence for message, asks the completion capability for a
// grounded answer, and returns only the citations the answer referenced.
// Retrieval and completion failures propagate unmodified.
func (s *Synthesizer) Answer(ctx context.Context, message string, topK int, docID, source string) (Result, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Result{}, apperr.InvalidParameter("message", "is required")
	}
	if s.llm == nil {
		return Result{}, apperr.Unconfigured("completion capability")
	}

	hits, err := s.retriever.Retrieve(ctx, message, topK, docID, source)
	if err != nil {
		return Result{}, err
	}

	user := fmt.Sprintf("Context:\n%s\n\nUser question:\n%s\n\nAnswer:", BuildContext(hits), message)
	answer, err := s.llm.Completion(ctx, systemPrompt, user)
	if err != nil {
		return Result{}, err
	}
	answer = strings.TrimSpace(answer)

	cited := ExtractCitedIndexes(answer)
	var citations []Citation
	for i, h := range hits {
		if _, ok := cited[i+1]; !ok {
			continue
		}
		citations = append(citations, Citation{
			ID:         h.ID,
			Source:     h.Source,
			DocID:      h.DocID,
			ChunkIndex: h.ChunkIndex,
			Score:      h.Score,
		})
	}
	s.logger.Printf("answered with %d/%d chunks cited", len(citations), len(hits))

	return Result{Answer: answer, Citations: citations}, nil
}

// BuildContext renders the retrieved hits as labeled blocks, in retrieval
// order, with 1-based position markers matching the citation instructions.
func BuildContext(hits []store.SearchHit) string {
	blocks := make([]string, 0, len(hits))
	for i, h := range hits {
		blocks = append(blocks, fmt.Sprintf("[%d] source=%s doc_id=%s chunk=%d score=%.4f\n%s",
			i+1, h.Source, h.DocID, h.ChunkIndex, h.Score, h.Content))
	}
	return strings.Join(blocks, "\n\n")
}

var citedMarker = regexp.MustCompile(`\[(\d+)\]`)

// ExtractCitedIndexes parses every bracketed integer marker out of a
// completion answer, collapsing duplicates. It is a pure function so citation
// reconciliation can be tested without any network call.
func ExtractCitedIndexes(answer string) map[int]struct{} {
	cited := make(map[int]struct{})
	for _, m := range citedMarker.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		cited[n] = struct{}{}
	}
	return cited
}
