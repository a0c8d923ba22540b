package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"projectstore/internal/endpoints"

	"github.com/gin-gonic/gin"
)

// Server serves the project storage API.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
}

type settings struct {
	allowedOrigins []string
	maxBodyBytes   int64
}

// Option tunes NewServer.
type Option func(*settings)

// WithAllowedOrigins limits which browser origins may call the API. "*" or
// no origins allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *settings) { s.allowedOrigins = origins }
}

// WithMaxBodyBytes caps request bodies. Projects travel in them, so the
// limit is generous; 0 disables it.
func WithMaxBodyBytes(n int64) Option {
	return func(s *settings) { s.maxBodyBytes = n }
}

// NewServer builds the server. authMiddleware guards the routes that act
// for a user.
func NewServer(port string, handlers *endpoints.Handlers, authMiddleware gin.HandlerFunc, opts ...Option) *Server {
	cfg := settings{allowedOrigins: []string{"*"}}
	for _, opt := range opts {
		opt(&cfg)
	}

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), corsMiddleware(cfg.allowedOrigins))
	if cfg.maxBodyBytes > 0 {
		router.Use(limitBody(cfg.maxBodyBytes))
	}
	endpoints.SetupRoutes(router, handlers, authMiddleware)

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + port,
			Handler:      router,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Minute, // opening a project downloads it first
			IdleTimeout:  60 * time.Second,
		},
		router: router,
	}
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "address", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown waits for in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one line per request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP())
	}
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// corsMiddleware answers preflights and marks responses for allowed origins.
// Content-Disposition is exposed so download links keep their file name.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	anyOrigin := len(allowed) == 0 || slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case anyOrigin:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowed, origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		case c.Request.Method == http.MethodOptions:
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Header("Access-Control-Allow-Methods", strings.Join([]string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
		}, ", "))
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Disposition")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
