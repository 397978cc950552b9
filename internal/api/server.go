// Package api exposes the HTTP control surface.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/castarr/castarr/internal/config"
	"github.com/castarr/castarr/internal/scheduler"
	"github.com/castarr/castarr/internal/store"
	"github.com/castarr/castarr/internal/syncer"
)

// Server handles HTTP requests for the castarr API.
type Server struct {
	echo    *echo.Echo
	store   *store.Store
	syncer  *syncer.Service
	tracker syncer.EpisodeTracker
	sched   *scheduler.Scheduler
	cfg     *config.Config
	logger  zerolog.Logger
}

// NewServer creates the API server and registers all routes.
func NewServer(
	st *store.Store,
	sync *syncer.Service,
	tracker syncer.EpisodeTracker,
	sched *scheduler.Scheduler,
	cfg *config.Config,
	logger zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		store:   st,
		syncer:  sync,
		tracker: tracker,
		sched:   sched,
		cfg:     cfg,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	}))

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", s.handleHealth)
	api.GET("/status", s.handleStatus)

	api.GET("/tasks", s.handleListTasks)
	api.GET("/tasks/:id", s.handleGetTask)

	api.GET("/series", s.handleListSeries)
	api.POST("/series", s.handleCreateSeries)
	api.GET("/series/:id", s.handleGetSeries)
	api.DELETE("/series/:id", s.handleDeleteSeries)
	api.PUT("/series/:id/filters", s.handleUpdateFilters)
	api.GET("/series/:id/availability", s.handleListAvailability)

	api.POST("/commands/reconcile", s.handleReconcile)
	api.POST("/commands/reconcile/:id", s.handleReconcileSeries)
	api.POST("/commands/sweep", s.handleSweep)
	api.POST("/commands/import", s.handleImport)
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()
	s.logger.Info().Str("addr", addr).Msg("http server listening")

	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}
