package server

import (
	"context"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/synthesis"
)

// answerer is the slice of the synthesizer the chat path needs.
type answerer interface {
	Answer(ctx context.Context, message string, topK int, docID, source string) (synthesis.Result, error)
}

// ChatHandler exposes grounded question answering with citations.
type ChatHandler struct {
	cfg    *config.Config
	synth  answerer
	logger *log.Logger
}

func NewChatHandler(cfg *config.Config, synth answerer, logger *log.Logger) *ChatHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[CHAT] ", log.LstdFlags)
	}
	return &ChatHandler{cfg: cfg, synth: synth, logger: logger}
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("/chat", h.chat)
}

func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	topK := req.TopK
	if topK == 0 {
		topK = h.cfg.RAG.TopKDefault
	}
	result, err := h.synth.Answer(c.Request().Context(), req.Message, topK, req.DocID, req.Source)
	if err != nil {
		return httpError(err)
	}
	citations := result.Citations
	if citations == nil {
		citations = []synthesis.Citation{}
	}
	return c.JSON(http.StatusOK, ChatResponse{
		Message:   req.Message,
		Answer:    result.Answer,
		Citations: citations,
	})
}
