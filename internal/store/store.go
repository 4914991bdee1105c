// Package store persists document chunks with their embeddings in Postgres
// and answers nearest-neighbor queries over pgvector columns.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/chunker"
)

// DefaultEmbeddingDimensions indicates the expected length of vectors stored
// in the kb_chunks embedding column.
const DefaultEmbeddingDimensions = 1536

// TopK bounds for nearest-neighbor queries.
const (
	MinTopK = 1
	MaxTopK = 20
)

type Store struct {
	DB *sql.DB
}

// Embedder produces fixed-dimension vectors for chunk contents. Satisfied by
// provider.Provider; narrowed here so tests can stub it.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkRecord represents a stored chunk row.
type ChunkRecord struct {
	ID         int64
	Source     string
	DocID      string
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// SearchHit is a stored chunk annotated with its query-time distance score.
// Lower scores are better.
type SearchHit struct {
	ID         int64   `json:"id"`
	Source     string  `json:"source"`
	DocID      string  `json:"doc_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// InsertParams carries one ingestion batch.
type InsertParams struct {
	Source   string
	DocID    string
	Chunks   []chunker.Chunk
	Metadata map[string]interface{}
}

// SearchParams carries one nearest-neighbor query.
type SearchParams struct {
	Vector []float32
	TopK   int
	DocID  string
	Source string
}

// New constructs the Store from DATABASE_URL or the POSTGRES_* environment.
func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// InsertChunks embeds each chunk via the embedder and persists the batch.
// The whole batch runs inside a single transaction: a mid-sequence embedding
// failure rolls back every row of this call.
func (s *Store) InsertChunks(ctx context.Context, embedder Embedder, p InsertParams) (inserted int, err error) {
	if strings.TrimSpace(p.Source) == "" {
		return 0, apperr.InvalidParameter("source", "is required")
	}
	if len(p.Chunks) == 0 {
		return 0, nil
	}
	meta := p.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	var stmt *sql.Stmt
	stmt, err = tx.PrepareContext(ctx, `
INSERT INTO kb_chunks (source, doc_id, chunk_index, content, metadata, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,NOW())
`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, c := range p.Chunks {
		vecs, embErr := embedder.CreateEmbedding(ctx, []string{c.Content})
		if embErr != nil {
			err = fmt.Errorf("embed chunk %d: %w", c.Index, embErr)
			return 0, err
		}
		if len(vecs) == 0 {
			err = apperr.Upstream("embed chunk", fmt.Errorf("provider returned no vectors"))
			return 0, err
		}
		vectorLiteral, encErr := encodeVectorLiteral(vecs[0])
		if encErr != nil {
			err = encErr
			return 0, err
		}
		if _, err = stmt.ExecContext(ctx, p.Source, nullable(p.DocID), c.Index, c.Content, metaBytes, vectorLiteral); err != nil {
			err = fmt.Errorf("insert chunk %d: %w", c.Index, err)
			return 0, err
		}
		inserted++
	}
	return inserted, nil
}

// SearchChunks returns the closest stored chunks for the supplied vector,
// ascending by Euclidean distance, truncated to TopK. Equality filters on
// doc_id/source are applied before ranking.
func (s *Store) SearchChunks(ctx context.Context, p SearchParams) ([]SearchHit, error) {
	if len(p.Vector) == 0 {
		return nil, apperr.InvalidParameter("vector", "must not be empty")
	}
	if p.TopK < MinTopK || p.TopK > MaxTopK {
		return nil, apperr.InvalidParameter("top_k", fmt.Sprintf("must be between %d and %d", MinTopK, MaxTopK))
	}
	vecLiteral, err := encodeVectorLiteral(p.Vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, source, doc_id, chunk_index, content, embedding <-> $1::vector AS score
FROM kb_chunks
WHERE ($2 = '' OR source = $2)
  AND ($3 = '' OR doc_id = $3)
ORDER BY embedding <-> $1::vector
LIMIT $4
`, vecLiteral, p.Source, p.DocID, p.TopK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SearchHit
	for rows.Next() {
		var (
			hit   SearchHit
			docID sql.NullString
		)
		if err := rows.Scan(&hit.ID, &hit.Source, &docID, &hit.ChunkIndex, &hit.Content, &hit.Score); err != nil {
			return nil, err
		}
		hit.DocID = docID.String
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// DBHealth reports store connectivity as data rather than an error.
type DBHealth struct {
	OK            bool   `json:"ok"`
	ServerVersion string `json:"server_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Health runs a lightweight connectivity check. It never fails: a broken
// connection is captured in the returned value.
func (s *Store) Health(ctx context.Context) DBHealth {
	var version string
	if err := s.DB.QueryRowContext(ctx, `SELECT version()`).Scan(&version); err != nil {
		return DBHealth{OK: false, Error: err.Error()}
	}
	return DBHealth{OK: true, ServerVersion: version}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}
