// Package server exposes the HTTP surface: the voice roster API, health
// probes, Prometheus metrics, and the realtime websocket endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Sehnya/unison-sub002/internal/config"
	"github.com/Sehnya/unison-sub002/internal/domain"
)

// presenceService is the slice of the presence engine the HTTP surface
// needs.
type presenceService interface {
	EnsureChannels(ids ...string) error
	DropChannel(id string) error
	JoinVoice(channelID string) error
	LeaveVoice() error
	EffectiveRoster(channelID string) []domain.Member
	TrackedChannels() []string
}

// HealthCheck is a named health check function.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	presence         presenceService
	websocketHandler http.Handler
	healthChecks     []HealthCheck
	startTime        time.Time
}

func NewServer(cfg *config.Config, presence presenceService, websocketHandler http.Handler, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		presence:         presence,
		websocketHandler: websocketHandler,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}
