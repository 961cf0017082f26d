package server

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/mohammad-safakhou/queryagent/config"
	"github.com/mohammad-safakhou/queryagent/internal/agent/core"
	"github.com/mohammad-safakhou/queryagent/internal/requestlog"
)

// Run builds the orchestrator from cfg and serves the HTTP API until
// the listener fails.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
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
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	var sink core.EventSink = core.NopSink{}
	if cfg.Telemetry.Enabled {
		rl, err := requestlog.New(cfg.Telemetry.RequestLogFile)
		if err != nil {
			return err
		}
		sink = rl
	}

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := core.NewOrchestrator(cfg, sink, orchLogger)
	if err != nil {
		return err
	}

	h := &Handler{Orch: orch, DataDir: cfg.Files.DataDir, MaxFileSize: cfg.Files.MaxFileSize}
	h.Register(e.Group("/api"))

	return e.Start(cfg.Server.Addr)
}

// Handler serves the query and upload endpoints.
type Handler struct {
	Orch        *core.Orchestrator
	DataDir     string
	MaxFileSize int64
}

func (h *Handler) Register(g *echo.Group) {
	g.POST("/query", h.query)
	g.POST("/files", h.upload)
	g.DELETE("/files/:name", h.remove)
}

type queryRequest struct {
	Query     string   `json:"query"`
	FilePaths []string `json:"file_paths,omitempty"`
}

func (h *Handler) query(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query is required")
	}
	for i, p := range req.FilePaths {
		// Uploaded files are referenced by name, not by path.
		if !filepath.IsAbs(p) {
			req.FilePaths[i] = filepath.Join(h.DataDir, filepath.Base(p))
		}
	}

	resp := h.Orch.Process(c.Request().Context(), core.Query{
		Text:      req.Query,
		HasFiles:  len(req.FilePaths) > 0,
		FilePaths: req.FilePaths,
	})
	return c.JSON(http.StatusOK, resp)
}

// upload persists the posted file under DataDir and indexes it, so
// later queries can reference it by name.
func (h *Handler) upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}
	if h.MaxFileSize > 0 && fh.Size > h.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", h.MaxFileSize))
	}

	name := filepath.Base(fh.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid file name")
	}
	if err := os.MkdirAll(h.DataDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(h.DataDir, name)

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	result, err := h.Orch.FileAgent().Ingest(c.Request().Context(), dst, name)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, result)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) remove(c echo.Context) error {
	name := filepath.Base(c.Param("name"))
	h.Orch.FileAgent().Store().Remove(name)
	_ = os.Remove(filepath.Join(h.DataDir, name))
	return c.NoContent(http.StatusNoContent)
}
