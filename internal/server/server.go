// Package server exposes the gateway over HTTP: the chat endpoint consumed
// by embedded widgets plus the provider test and model-discovery endpoints
// used by the dashboard.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/haroon-aygtc/ai-widget-gateway/internal/config"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/gateway"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/history"
	"github.com/haroon-aygtc/ai-widget-gateway/internal/ratelimit"
)

const (
	maxBodyBytes        = 1 << 20 // 1 MiB
	shutdownGracePeriod = 10 * time.Second
	readTimeout         = 30 * time.Second
	// Write timeout covers the full relay of a streamed response.
	writeTimeout = 120 * time.Second
	idleTimeout  = 120 * time.Second
)

type Server struct {
	cfg     config.Config
	gateway *gateway.Gateway
	limiter ratelimit.Limiter
	builder *history.Builder
	turns   history.TurnStore
	configs gateway.ConfigSource
	app     *echo.Echo
	address string
}

// New constructs an HTTP server wired with routing and middleware.
func New(cfg config.Config, gw *gateway.Gateway, limiter ratelimit.Limiter, builder *history.Builder, turns history.TurnStore, configs gateway.ConfigSource) (*Server, error) {
	if gw == nil {
		return nil, errors.New("gateway must not be nil")
	}
	if limiter == nil {
		return nil, errors.New("rate limiter must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = gatewayErrorHandler

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogLatency: true,
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"error", v.Error,
			)
			return nil
		},
	}))
	e.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge:         31536000,
	}))

	srv := &Server{
		cfg:     cfg,
		gateway: gw,
		limiter: limiter,
		builder: builder,
		turns:   turns,
		configs: configs,
		app:     e,
		address: fmt.Sprintf(":%d", cfg.Server.Port),
	}

	srv.registerRoutes()

	return srv, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("starting server", "addr", s.address)

	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.app,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.app.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := s.app.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		slog.Info("server shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) registerRoutes() {
	s.app.GET("/health", s.handleHealth)
	s.app.POST("/api/chat", s.handleChat)
	s.app.POST("/api/providers/test", s.handleProviderTest)
	s.app.POST("/api/providers/models", s.handleProviderModels)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
