package server

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/store"
)

// healthChecker is the slice of the knowledge store the ops path needs.
type healthChecker interface {
	Health(ctx context.Context) store.DBHealth
}

// OpsHandler exposes operational endpoints: effective config and health.
type OpsHandler struct {
	cfg   *config.Config
	store healthChecker
}

func NewOpsHandler(cfg *config.Config, st healthChecker) *OpsHandler {
	return &OpsHandler{cfg: cfg, store: st}
}

func (h *OpsHandler) Register(g *echo.Group) {
	g.GET("/config", h.config)
	g.GET("/health", h.health)
}

func (h *OpsHandler) config(c echo.Context) error {
	return c.JSON(http.StatusOK, ConfigResponse{
		ChatModel:           h.cfg.LLM.ChatModel,
		EmbedModel:          h.cfg.LLM.EmbedModel,
		TopKDefault:         h.cfg.RAG.TopKDefault,
		ChunkSize:           h.cfg.RAG.ChunkSize,
		ChunkOverlap:        h.cfg.RAG.ChunkOverlap,
		EmbeddingDimensions: h.cfg.RAG.EmbeddingDimensions,
		APIKeyConfigured:    h.cfg.LLM.APIKey != "",
	})
}

// health reports database connectivity as data; the endpoint itself always
// answers 200 so probes can distinguish "down" from "degraded".
func (h *OpsHandler) health(c echo.Context) error {
	db := h.store.Health(c.Request().Context())
	status := "ok"
	if !db.OK {
		status = "degraded"
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: status, Database: db})
}
