package server

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/internal/telemetry"
)

// hitRetriever is the slice of the retriever the search path needs.
type hitRetriever interface {
	Retrieve(ctx context.Context, query string, topK int, docID, source string) ([]store.SearchHit, error)
}

// SearchHandler exposes nearest-neighbor retrieval.
type SearchHandler struct {
	cfg       *config.Config
	retriever hitRetriever
	logger    *log.Logger
}

func NewSearchHandler(cfg *config.Config, ret hitRetriever, logger *log.Logger) *SearchHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	}
	return &SearchHandler{cfg: cfg, retriever: ret, logger: logger}
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.POST("/search", h.search)
}

func (h *SearchHandler) search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topK := req.TopK
	if topK == 0 {
		topK = h.cfg.RAG.TopKDefault
	}
	hits, err := h.retriever.Retrieve(c.Request().Context(), req.Query, topK, req.DocID, req.Source)
	if err != nil {
		return httpError(err)
	}
	telemetry.Searches.Inc()
	if hits == nil {
		hits = []store.SearchHit{}
	}
	return c.JSON(http.StatusOK, SearchResponse{Query: req.Query, TopK: topK, Hits: hits})
}
