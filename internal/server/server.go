// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pdiddy/trialscout/internal/coalesce"
	"github.com/pdiddy/trialscout/internal/engine"
	"github.com/pdiddy/trialscout/internal/profile"
	"github.com/pdiddy/trialscout/pkg/types"
)

// CallerIDHeader identifies the logical caller; searches carrying it are
// coalesced per caller.
const CallerIDHeader = "X-Caller-ID"

// Searcher runs searches.
type Searcher interface {
	Search(ctx context.Context, req engine.Request) (engine.Response, error)
}

// ProfileStore reads and writes caller profiles.
type ProfileStore interface {
	Get(ctx context.Context, callerID string) (types.Profile, error)
	Put(ctx context.Context, p types.Profile) (types.Profile, error)
	Delete(ctx context.Context, callerID string) error
}

// Server is the HTTP front end.
type Server struct {
	echo     *echo.Echo
	search   Searcher
	profiles ProfileStore
	sources  []types.SourceKind
	logger   zerolog.Logger
}

// Options carries the Server's collaborators. Profiles and Gatherer may be
// nil; the matching routes are then not registered.
type Options struct {
	Search   Searcher
	Profiles ProfileStore
	Sources  []types.SourceKind
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

// New builds the server and registers its routes.
func New(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		search:   opts.Search,
		profiles: opts.Profiles,
		sources:  opts.Sources,
		logger:   opts.Logger,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(recovery(s.logger))
	e.Use(requestID())
	e.Use(requestLogger(s.logger))

	e.GET("/healthz", s.health)
	if opts.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.GET("/search", s.handleSearch)
	api.GET("/conditions", s.handleConditions)
	if s.profiles != nil {
		api.GET("/profiles/:id", s.getProfile)
		api.PUT("/profiles/:id", s.putProfile)
		api.DELETE("/profiles/:id", s.deleteProfile)
	}
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("starting server")
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "sources": s.sources})
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// handleError maps errors to status codes.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	status, msg := statusFor(err)
	rid, _ := c.Get(requestIDKey).(string)
	if c.Request().Method == http.MethodHead {
		c.NoContent(status)
		return
	}
	if werr := c.JSON(status, errorBody{Error: msg, RequestID: rid}); werr != nil {
		s.logger.Error().Err(werr).Msg("writing error response")
	}
}

func statusFor(err error) (int, string) {
	var he *echo.HTTPError
	var ce *types.ConfigurationError
	switch {
	case errors.As(err, &he):
		if m, ok := he.Message.(string); ok {
			return he.Code, m
		}
		return he.Code, http.StatusText(he.Code)
	case errors.As(err, &ce):
		return http.StatusBadRequest, ce.Error()
	case errors.Is(err, coalesce.ErrSuperseded):
		return http.StatusConflict, err.Error()
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, err.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}
