// Package chunker splits raw document text into overlapping character-based
// chunks suitable for embedding and retrieval.
package chunker

import (
	"strings"

	"github.com/mohammad-safakhou/ragkb/internal/apperr"
)

// Chunk is a trimmed, non-empty slice of a source document. Indexes are dense
// and ordered starting at 0 within one ingestion call.
type Chunk struct {
	Index   int
	Content string
}

// ChunkText slides a window of chunkSize characters across the trimmed input,
// advancing by chunkSize-chunkOverlap each step. Windows that trim to empty
// are skipped without consuming an index. Offsets are rune-based so multi-byte
// text chunks the same way regardless of encoding width.
func ChunkText(text string, chunkSize, chunkOverlap int) ([]Chunk, error) {
	if chunkSize <= 0 {
		return nil, apperr.InvalidParameter("chunk_size", "must be > 0")
	}
	if chunkOverlap < 0 {
		return nil, apperr.InvalidParameter("chunk_overlap", "must be >= 0")
	}
	if chunkOverlap >= chunkSize {
		return nil, apperr.InvalidParameter("chunk_overlap", "must be < chunk_size")
	}

	runes := []rune(strings.TrimSpace(text))
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	var chunks []Chunk
	step := chunkSize - chunkOverlap
	start := 0
	idx := 0
	for start < n {
		end := start + chunkSize
		if end > n {
			end = n
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			chunks = append(chunks, Chunk{Index: idx, Content: piece})
			idx++
		}
		if end == n {
			break
		}
		start += step
	}
	return chunks, nil
}
