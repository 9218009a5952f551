// Package server provides the HTTP API for carprice.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/carprice/internal/artifact"
	"github.com/hyperjump/carprice/internal/config"
	"github.com/hyperjump/carprice/internal/inference"
	"github.com/hyperjump/carprice/internal/models"
	"github.com/hyperjump/carprice/internal/registry"
)

// Estimator produces price estimates.
type Estimator interface {
	Estimate(ctx context.Context, req models.EstimateRequest) (*models.Estimate, error)
}

// StatusSource reports the model load state.
type StatusSource interface {
	Status() artifact.StatusInfo
}

// Server is the HTTP server for the carprice API.
type Server struct {
	estimator   Estimator
	status      StatusSource
	store       registry.Store               // optional
	comparables inference.ComparableSearcher // optional
	config      *config.Config
	logger      *zap.Logger
	metrics     *metrics
	server      *http.Server
}

// NewServer creates a server with the given dependencies. store and
// comparables may be nil; their endpoints then answer 501.
func NewServer(
	estimator Estimator,
	status StatusSource,
	store registry.Store,
	comparables inference.ComparableSearcher,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		estimator:   estimator,
		status:      status,
		store:       store,
		comparables: comparables,
		config:      cfg,
		logger:      logger,
		metrics:     newMetrics(status),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/estimate", s.handleEstimate)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/comparables", s.handleComparables)
	r.Get("/api/v1/runs", s.handleListRuns)
	r.Get("/api/v1/runs/{id}", s.handleGetRun)
	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.handler())
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
