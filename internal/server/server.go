// Package server exposes the check service over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaki95/check-engine/config"
	"github.com/jaki95/check-engine/internal/check"
	"github.com/jaki95/check-engine/internal/job"
	"github.com/jaki95/check-engine/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// Server handles HTTP requests for the check service
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	jobs    *job.Manager
	runner  *check.Runner
	archive storage.Storage
}

// New creates a new HTTP server instance
func New(cfg *config.Config, archive storage.Storage, checker check.Checker) *Server {
	router := gin.New()
	router.Use(gin.Recovery())

	jobs := job.NewManager()
	s := &Server{
		cfg:     cfg,
		router:  router,
		jobs:    jobs,
		runner:  check.NewRunner(jobs, checker, archive),
		archive: archive,
	}
	s.setupRoutes(router)
	return s
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes(router *gin.Engine) {
	router.Use(requestLogger(), cors())

	router.GET("/health", s.health)

	api := router.Group("/api")
	{
		api.POST("/checks", s.startCheck)
		api.GET("/checks", s.listChecks)
		api.GET("/checks/:id/progress", s.getProgress)
		api.POST("/checks/:id/control", s.controlCheck)
		api.GET("/checks/:id/errors", s.listErrors)
		api.GET("/checks/:id/images/:file", s.getImage)
	}
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Jobs returns the task manager.
func (s *Server) Jobs() *job.Manager {
	return s.jobs
}

// Run serves HTTP on the configured port until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", s.cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
