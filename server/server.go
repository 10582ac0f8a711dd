// Package server is the thin command bridge between the webview UI and the
// backend services: a loopback HTTP server dispatching UI commands and
// streaming backend events.
package server

import (
	"context"
	"net/http"

	"github.com/ar-cyber/TauriSEQTA/analytics"
	"github.com/ar-cyber/TauriSEQTA/auth"
	"github.com/ar-cyber/TauriSEQTA/feed"
	"github.com/ar-cyber/TauriSEQTA/internal/config"
	"github.com/ar-cyber/TauriSEQTA/portal"
	"github.com/ar-cyber/TauriSEQTA/session"
	"github.com/ar-cyber/TauriSEQTA/settings"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Server hosts the UI command bridge.
type Server struct {
	echo      *echo.Echo
	config    config.Config
	store     session.Store
	auth      *auth.Service
	portal    *portal.Client
	feeds     *feed.Fetcher
	settings  *settings.Store
	analytics *analytics.Store
	events    *EventHub
	surface   *SurfaceBridge
	logger    zerolog.Logger
}

// Deps carries the service dependencies of the bridge.
type Deps struct {
	Store     session.Store
	Auth      *auth.Service
	Portal    *portal.Client
	Feeds     *feed.Fetcher
	Settings  *settings.Store
	Analytics *analytics.Store
	Events    *EventHub
	Surface   *SurfaceBridge
}

// New wires the bridge routes.
func New(cfg config.Config, deps Deps, logger zerolog.Logger) (*Server, error) {
	if deps.Store == nil || deps.Auth == nil || deps.Portal == nil {
		return nil, errors.New("[server.New] store, auth and portal deps are required")
	}
	if deps.Events == nil {
		deps.Events = NewEventHub()
	}
	if deps.Feeds == nil {
		deps.Feeds = feed.NewFetcher()
	}

	s := &Server{
		echo:      echo.New(),
		config:    cfg,
		store:     deps.Store,
		auth:      deps.Auth,
		portal:    deps.Portal,
		feeds:     deps.Feeds,
		settings:  deps.Settings,
		analytics: deps.Analytics,
		events:    deps.Events,
		surface:   deps.Surface,
		logger:    logger,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	s.echo.Use(s.requestLogger)

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.echo.GET("/session/exists", s.sessionExists)
	s.echo.POST("/session", s.saveSession)

	s.echo.POST("/auth/login", s.login)
	s.echo.POST("/auth/deeplink", s.authDeepLink)
	s.echo.POST("/auth/logout", s.logout)
	if s.surface != nil {
		s.echo.POST("/auth/surface", s.reportSurface)
	}

	s.echo.POST("/api/fetch", s.fetchAPI)
	s.echo.GET("/api/file", s.getFile)
	s.echo.POST("/api/upload", s.uploadFile)

	s.echo.GET("/rss", s.getRSS)

	s.echo.GET("/settings", s.getSettings)
	s.echo.POST("/settings", s.saveSettings)

	s.echo.POST("/analytics", s.saveAnalytics)
	s.echo.GET("/analytics", s.loadAnalytics)
	s.echo.DELETE("/analytics", s.deleteAnalytics)

	s.echo.GET("/events", s.streamEvents)
}

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		event := s.logger.Debug()
		if err != nil {
			event = s.logger.Warn().Err(err)
		}
		event.
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Msg("bridge request")
		return err
	}
}

// Start blocks serving the bridge until Shutdown is called.
func (s *Server) Start() error {
	err := s.echo.Start(s.config.GetListenAddr())
	if err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "[Server.Start] bridge listen")
	}
	return nil
}

// Shutdown gracefully stops the bridge.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the HTTP handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
