// Package server exposes the dashboard over HTTP.
//
// Every route is read-only and renders from the view store's current state;
// nothing here triggers a fetch.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/retailfusion/internal/export"
	"github.com/rewired-gh/retailfusion/internal/logger"
	"github.com/rewired-gh/retailfusion/internal/render"
	"github.com/rewired-gh/retailfusion/internal/scheduler"
	"github.com/rewired-gh/retailfusion/internal/storage"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

const (
	defaultCycleLimit = 50
	maxCycleLimit     = 1000
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ViewSource yields the current view state.
type ViewSource interface {
	Current() viewstate.ViewState
}

// CycleSource lists journaled fetch cycles.
type CycleSource interface {
	RecentCycles(limit int) ([]storage.CycleRecord, error)
}

// Config holds the HTTP surface settings.
type Config struct {
	Addr         string
	AllowOrigins []string
	Mode         string
	Render       render.Options
}

// Server serves the dashboard page, its JSON view model and the export.
type Server struct {
	config Config
	views  ViewSource
	cycles CycleSource
	stats  func() scheduler.Stats
	engine *gin.Engine
	http   *http.Server

	warnMu sync.Mutex
	warned map[string]bool
}

// New builds the router. cycles and stats may be nil.
func New(cfg Config, views ViewSource, cycles CycleSource, stats func() scheduler.Stats) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		config: cfg,
		views:  views,
		cycles: cycles,
		stats:  stats,
		warned: make(map[string]bool),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	if allowAll(cfg.AllowOrigins) {
		r.Use(cors.Default())
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Accept", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/", s.handlePage)
	r.GET("/health", s.handleHealth)
	api := r.Group("/api")
	{
		api.GET("/view", s.handleView)
		api.GET("/cycles", s.handleCycles)
		api.GET("/export.xlsx", s.handleExport)
	}

	s.engine = r
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe blocks until the server is shut down.
// A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	logger.Info("HTTP server listening on %s", s.config.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// page builds the view model and reports unrecognized statuses once each.
func (s *Server) page() render.Page {
	p := render.Build(s.views.Current(), s.config.Render)
	if len(p.UnknownStatuses) > 0 {
		s.warnMu.Lock()
		for _, status := range p.UnknownStatuses {
			if !s.warned[status] {
				s.warned[status] = true
				logger.Warn("Unrecognized recommendation status %q rendered with neutral style", status)
			}
		}
		s.warnMu.Unlock()
	}
	return p
}

func (s *Server) handlePage(c *gin.Context) {
	var buf bytes.Buffer
	if err := render.HTML(&buf, s.page()); err != nil {
		logger.Error("Failed to render dashboard: %v", err)
		c.String(http.StatusInternalServerError, "failed to render dashboard")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, s.page())
}

func (s *Server) handleCycles(c *gin.Context) {
	if s.cycles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	limit := defaultCycleLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCycleLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and " + strconv.Itoa(maxCycleLimit)})
			return
		}
		limit = n
	}
	records, err := s.cycles.RecentCycles(limit)
	if err != nil {
		logger.Error("Failed to read cycle journal: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read journal"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": records})
}

func (s *Server) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := export.Write(&buf, s.views.Current()); err != nil {
		if errors.Is(err, export.ErrNoSnapshot) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		logger.Error("Failed to export snapshot: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export snapshot"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="retailfusion.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handleHealth(c *gin.Context) {
	v := s.views.Current()
	_, hasSnapshot := v.Snapshot()
	body := gin.H{
		"status":       "ok",
		"has_snapshot": hasSnapshot,
		"degraded":     v.Degraded(),
	}
	if s.stats != nil {
		body["scheduler"] = s.stats()
	}
	c.JSON(http.StatusOK, body)
}

// allowAll reports whether origins is empty or contains the "*" wildcard.
func allowAll(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// requestLogger logs each request at debug level with structured fields.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.With(map[string]interface{}{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}
