// Package api exposes the review API: play history, decisions with their
// evidence, manual overrides and on demand reclassification.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tlahtinen/trackguard/internal/classify"
	"github.com/tlahtinen/trackguard/internal/conf"
	"github.com/tlahtinen/trackguard/internal/datastore"
	"github.com/tlahtinen/trackguard/internal/logging"
	"github.com/tlahtinen/trackguard/internal/observability"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Reclassifier is the slice of the decision engine the API needs.
type Reclassifier interface {
	Reclassify(ctx context.Context, artist classify.ArtistIdentity) (*classify.Decision, error)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo      *echo.Echo
	Group     *echo.Group
	DS        datastore.Interface
	Settings  *conf.Settings
	Engine    Reclassifier
	Overrides *classify.OverrideStore

	metrics        *observability.Metrics
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error
}

// New creates the API controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, engine Reclassifier, overrides *classify.OverrideStore, m *observability.Metrics) *Controller {
	c := &Controller{
		Echo:      echo.New(),
		DS:        ds,
		Settings:  settings,
		Engine:    engine,
		Overrides: overrides,
		metrics:   m,
	}
	c.Echo.HideBanner = true
	c.Echo.Use(middleware.Recover())

	c.initLogger()
	c.initRoutes()
	return c
}

// initLogger sets up the structured API log file.
func (c *Controller) initLogger() {
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(slog.LevelInfo)
	logFilePath := filepath.Join("logs", "api.log")

	var err error
	c.apiLogger, c.apiLoggerClose, err = logging.NewFileLogger(logFilePath, "api", c.apiLevelVar)
	if err != nil {
		log.Printf("Failed to initialize API file logger at %s: %v. API logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	}
}

// initRoutes registers the API endpoints.
func (c *Controller) initRoutes() {
	c.Echo.GET("/healthz", c.Healthz)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	c.Group = c.Echo.Group("/api/v1")
	c.Group.GET("/plays", c.GetPlays)
	c.Group.GET("/decisions", c.GetDecisions)
	c.Group.GET("/decisions/:id", c.GetDecision)
	c.Group.GET("/artists/:id", c.GetArtist)
	c.Group.POST("/artists/:id/classify", c.ClassifyArtist)
	c.Group.GET("/overrides", c.ListOverrides)
	c.Group.GET("/overrides/:id", c.GetOverride)
	c.Group.POST("/overrides", c.SaveOverride)
	c.Group.DELETE("/overrides/:id", c.DeleteOverride)
}

// Start serves the API on the configured host and port until the listener
// fails or Shutdown is called.
func (c *Controller) Start() error {
	addr := fmt.Sprintf("%s:%s", c.Settings.WebServer.Host, c.Settings.WebServer.Port)
	c.apiLogger.Info("review API listening", "addr", addr)
	return c.Echo.Start(addr)
}

// Shutdown stops the API server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	err := c.Echo.Shutdown(ctx)
	if c.apiLoggerClose != nil {
		_ = c.apiLoggerClose()
	}
	return err
}

// Healthz answers liveness probes.
func (c *Controller) Healthz(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// ErrorResponse is the API error payload.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"` // Unique identifier for tracking this error
}

// HandleError constructs and returns an appropriate error response
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := &ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.apiLogger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method)

	return ctx.JSON(code, resp)
}

// PaginatedResponse wraps list endpoints with pagination metadata.
type PaginatedResponse struct {
	Data        any   `json:"data"`
	Total       int64 `json:"total"`
	Limit       int   `json:"limit"`
	Offset      int   `json:"offset"`
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
}

// NewPaginatedResponse assembles the pagination envelope.
func NewPaginatedResponse(data any, total int64, limit, offset int) *PaginatedResponse {
	resp := &PaginatedResponse{
		Data:   data,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	if limit > 0 {
		resp.CurrentPage = offset/limit + 1
		resp.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return resp
}

// parsePagination reads limit and offset query parameters with sane bounds.
func parsePagination(ctx echo.Context) (limit, offset int) {
	limit = defaultLimit
	if raw := ctx.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if raw := ctx.QueryParam("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
