// Package server provides the HTTP API for ClaimLens.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/claimlens/claimlens/internal/config"
	"github.com/claimlens/claimlens/internal/evaluator"
	"github.com/claimlens/claimlens/internal/export"
	"github.com/claimlens/claimlens/internal/history"
	"github.com/claimlens/claimlens/internal/ingest"
	"github.com/claimlens/claimlens/internal/payment"
	"github.com/claimlens/claimlens/internal/storage"
)

// Server is the HTTP server for the ClaimLens API.
type Server struct {
	storage   storage.Storage
	pipeline  *ingest.Pipeline
	evaluator *evaluator.Evaluator
	payments  payment.Verifier
	histLog   *history.Log
	exporter  *export.Exporter
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(
	store storage.Storage,
	pipeline *ingest.Pipeline,
	eval *evaluator.Evaluator,
	payments payment.Verifier,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		storage:   store,
		pipeline:  pipeline,
		evaluator: eval,
		payments:  payments,
		histLog:   history.NewLog(store),
		exporter:  export.NewExporter(store),
		config:    cfg,
		logger:    logger,
	}
}

// Handler builds the API router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/documents", s.handleUploadDocument)
		r.Get("/documents", s.handleListDocuments)
		r.Get("/documents/{id}", s.handleGetDocument)
		r.Delete("/documents/{id}", s.handleDeleteDocument)

		r.Post("/queries", s.handleSubmitQuery)
		r.Get("/queries/{id}", s.handleGetQuery)
		r.Post("/queries/{id}/evaluate", s.handleEvaluateQuery)
		r.Post("/queries/{id}/cancel", s.handleCancelQuery)

		r.Post("/payments/orders", s.handleCreateOrder)
		r.Post("/payments/orders/{id}/confirm", s.handleConfirmOrder)

		r.Get("/history", s.handleHistory)
		r.Get("/history/summary", s.handleHistorySummary)
		r.Get("/exports/history", s.handleExportHistory)
		r.Get("/exports/queries/{id}", s.handleExportQuery)

		r.Get("/status", s.handleStatus)
	})
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
