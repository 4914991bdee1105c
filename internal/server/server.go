// Package server wires the HTTP surface: ingestion, search, chat, and
// operational endpoints over the knowledge store and LLM provider.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammad-safakhou/ragkb/config"
	"github.com/mohammad-safakhou/ragkb/internal/apperr"
	"github.com/mohammad-safakhou/ragkb/internal/retriever"
	"github.com/mohammad-safakhou/ragkb/internal/store"
	"github.com/mohammad-safakhou/ragkb/internal/synthesis"
	"github.com/mohammad-safakhou/ragkb/internal/telemetry"
	"github.com/mohammad-safakhou/ragkb/provider"
)

// Run starts the HTTP server and blocks until it exits.
func Run(cfg *config.Config) error {
	e := newEcho(cfg)

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	llm, err := provider.New(cfg.LLM)
	if err != nil {
		return err
	}
	llm = &measuredProvider{inner: llm}

	ret := retriever.New(llm, st)
	synth := synthesis.New(ret, llm, nil)

	api := e.Group("/api")
	NewIngestHandler(cfg, st, llm, nil).Register(api.Group("/ingest"))
	NewSearchHandler(cfg, ret, nil).Register(api)
	NewChatHandler(cfg, synth, nil).Register(api)
	NewOpsHandler(cfg, st).Register(api)

	return e.Start(cfg.Server.Address)
}

// newEcho builds the echo instance with the shared middleware stack. Split
// out so tests can mount handlers on an identically configured server.
func newEcho(cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))
	if cfg == nil || cfg.Telemetry.Enabled {
		e.Use(requestMetrics)
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	return e
}

func requestMetrics(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else {
				status = http.StatusInternalServerError
			}
		}
		telemetry.RequestDuration.
			WithLabelValues(c.Path(), strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// httpError maps the service error kinds onto HTTP statuses: caller mistakes
// are 400, missing configuration 503, upstream capability failures 502.
func httpError(err error) *echo.HTTPError {
	switch {
	case apperr.IsInvalidParameter(err):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case apperr.IsUnconfigured(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case apperr.IsUpstream(err):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// measuredProvider counts provider round-trips without changing behavior.
type measuredProvider struct {
	inner provider.Provider
}

func (m *measuredProvider) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	telemetry.EmbeddingCalls.Inc()
	return m.inner.CreateEmbedding(ctx, texts)
}

func (m *measuredProvider) Completion(ctx context.Context, system, user string) (string, error) {
	telemetry.CompletionCalls.Inc()
	return m.inner.Completion(ctx, system, user)
}
