// Package api exposes the ingestion, matching and reconciliation operations
// over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clearledger/bankrecon-backend/internal/api/handlers"
	"github.com/clearledger/bankrecon-backend/internal/api/middleware"
	"github.com/clearledger/bankrecon-backend/internal/application/service"
	"github.com/clearledger/bankrecon-backend/internal/infrastructure/storage"
)

// Config holds API server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}
}

// Services bundles the application services the API fronts.
type Services struct {
	Import *service.ImportService
	Match  *service.MatchService
	Recon  *service.ReconService
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	repo       storage.Repository
	services   Services
}

// NewServer creates a new API server.
func NewServer(cfg Config, repo storage.Repository, services Services, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		repo:     repo,
		services: services,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	corsConfig := middleware.CORSConfig{
		AllowedOrigins: s.config.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}
	s.router.Use(middleware.CORS(corsConfig))
	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check (no /api prefix - for load balancers)
	healthHandler := handlers.NewHealthHandler()
	s.router.Get("/health", healthHandler.ServeHTTP)

	s.router.Route("/api", func(r chi.Router) {
		// Statements
		statementsHandler := handlers.NewStatementsHandler(s.repo, s.services.Import)
		r.Post("/statements", statementsHandler.Import)
		r.Get("/statements", statementsHandler.List)
		r.Get("/statements/{id}", statementsHandler.Get)

		// Matching
		matchingHandler := handlers.NewMatchingHandler(s.repo, s.services.Match)
		r.Post("/statements/{id}/match", matchingHandler.Run)
		r.Post("/lines/{id}/match", matchingHandler.Apply)
		r.Post("/lines/{id}/reverse", matchingHandler.Reverse)

		// Reconciliation
		reconHandler := handlers.NewReconciliationHandler(s.repo, s.services.Recon)
		r.Post("/statements/{id}/reconcile", reconHandler.Reconcile)

		// Rules
		rulesHandler := handlers.NewRulesHandler(s.repo)
		r.Get("/rules", rulesHandler.List)
		r.Post("/rules", rulesHandler.Save)

		// Open items
		openItemsHandler := handlers.NewOpenItemsHandler(s.repo)
		r.Get("/open-items", openItemsHandler.List)
		r.Post("/open-items", openItemsHandler.Save)

		// Stats
		statsHandler := handlers.NewStatsHandler(s.repo)
		r.Get("/stats", statsHandler.Get)
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting API server", "addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")

	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
