package server

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/chunker"
	"github.com/mohammad-safakhou/ragkb/internal/extract"
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/internal/telemetry"
)

// maxUploadBytes bounds multipart file ingestion.
const maxUploadBytes = 32 << 20

// chunkInserter is the slice of the knowledge store the ingest path needs.
type chunkInserter interface {
	InsertChunks(ctx context.Context, embedder store.Embedder, p store.InsertParams) (int, error)
}

// IngestHandler exposes text, file, and URL ingestion.
type IngestHandler struct {
	cfg      *config.Config
	store    chunkInserter
	embedder store.Embedder
	logger   *log.Logger
}

func NewIngestHandler(cfg *config.Config, st chunkInserter, embedder store.Embedder, logger *log.Logger) *IngestHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	return &IngestHandler{cfg: cfg, store: st, embedder: embedder, logger: logger}
}

func (h *IngestHandler) Register(g *echo.Group) {
	g.POST("/text", h.text)
	g.POST("/file", h.file)
	g.POST("/url", h.url)
}

func (h *IngestHandler) text(c echo.Context) error {
	var req IngestTextRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	meta := req.Metadata
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["ingest_type"] = "text"
	resp, err := h.ingest(c.Request().Context(), req.Source, req.DocID, req.Content, meta)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *IngestHandler) file(c echo.Context) error {
	source := strings.TrimSpace(c.FormValue("source"))
	docID := c.FormValue("doc_id")

	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	f, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	text, err := extract.FromFilename(fh.Filename, content)
	if err != nil {
		return httpError(err)
	}
	if source == "" {
		source = fh.Filename
	}
	meta := map[string]interface{}{
		"ingest_type": "file",
		"filename":    fh.Filename,
	}
	resp, err := h.ingest(c.Request().Context(), source, docID, text, meta)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *IngestHandler) url(c echo.Context) error {
	var req IngestURLRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	page, err := extract.FromURL(req.URL, h.cfg.General.DefaultTimeout)
	if err != nil {
		return httpError(err)
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = req.URL
	}
	meta := map[string]interface{}{
		"ingest_type": "url",
		"url":         req.URL,
	}
	if page.Title != "" {
		meta["title"] = page.Title
	}
	resp, err := h.ingest(c.Request().Context(), source, req.DocID, page.Text, meta)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// ingest chunks content and persists the batch. A missing doc_id gets a fresh
// UUID so the chunks of one call stay groupable.
func (h *IngestHandler) ingest(ctx context.Context, source, docID, content string, meta map[string]interface{}) (IngestResponse, error) {
	if strings.TrimSpace(source) == "" {
		return IngestResponse{}, apperr.InvalidParameter("source", "is required")
	}
	chunks, err := chunker.ChunkText(content, h.cfg.RAG.ChunkSize, h.cfg.RAG.ChunkOverlap)
	if err != nil {
		return IngestResponse{}, err
	}
	if docID == "" {
		docID = uuid.NewString()
	}
	inserted, err := h.store.InsertChunks(ctx, h.embedder, store.InsertParams{
		Source:   source,
		DocID:    docID,
		Chunks:   chunks,
		Metadata: meta,
	})
	if err != nil {
		return IngestResponse{}, err
	}
	telemetry.IngestedChunks.Add(float64(inserted))
	h.logger.Printf("ingested source=%s doc_id=%s chunks=%d", source, docID, inserted)
	return IngestResponse{Source: source, DocID: docID, Chunks: len(chunks), Inserted: inserted}, nil
}
