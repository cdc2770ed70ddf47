// Package server hosts the HTTP API for the chat service.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/franksymon/Chatbot-api/internal/profile"
	"github.com/franksymon/Chatbot-api/plugin/ai/engine"
	"github.com/franksymon/Chatbot-api/plugin/report"
	"github.com/franksymon/Chatbot-api/server/middleware"
	apiv1 "github.com/franksymon/Chatbot-api/server/router/api/v1"
)

// limiterPruneInterval is how often idle per-client rate limiters are
// swept.
const limiterPruneInterval = 10 * time.Minute

// Server wraps the echo instance and the API services.
type Server struct {
	Profile *profile.Profile

	echoServer *echo.Echo
	apiV1      *apiv1.APIV1Service
	limiter    *middleware.RateLimiter

	stopPrune chan struct{}
	stopOnce  sync.Once
}

// NewServer assembles the HTTP server around the conversation engine.
func NewServer(p *profile.Profile, eng *engine.Engine, reports *report.Generator) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	}))
	e.Use(requestLogger())

	limiter := middleware.NewRateLimiter(p.RateLimitRPS, p.RateLimitBurst)
	e.Use(limiter.Middleware())

	s := &Server{
		Profile:    p,
		echoServer: e,
		apiV1:      apiv1.NewAPIV1Service(p, eng, reports),
		limiter:    limiter,
		stopPrune:  make(chan struct{}),
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	s.apiV1.RegisterRoutes(e.Group("/api/v1"))

	return s
}

// Start begins serving and blocks until the listener fails or the
// server shuts down.
func (s *Server) Start() error {
	go s.limiter.PruneLoop(limiterPruneInterval, s.stopPrune)

	addr := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", addr)
	if err := s.echoServer.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopPrune) })

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return nil
		}
	}
}
