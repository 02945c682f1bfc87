// Package server exposes the read-only HTTP and WebSocket API over the
// committed tick state: ranked recommendations, fired signals, tracked
// markets, top movers and the paper-trading ledger.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/whaletrack/engine/internal/server/handler"
	"github.com/whaletrack/engine/internal/server/middleware"
	"github.com/whaletrack/engine/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health          *handler.HealthHandler
	Recommendations *handler.RecommendationHandler
	Signals         *handler.SignalHandler
	Markets         *handler.MarketHandler
	Movers          *handler.MoversHandler
	Paper           *handler.PaperHandler

	// Archives is registered only when snapshot archival is enabled.
	Archives *handler.ArchiveHandler
}

// Server is the headless HTTP + WebSocket API server for the whale tracker.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (CORS, request logging) applied.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /api/recommendations", handlers.Recommendations.ListRecommendations)

	mux.HandleFunc("GET /api/signals", handlers.Signals.ListSignals)
	mux.HandleFunc("GET /api/markets/{id}/signals", handlers.Signals.ListMarketSignals)

	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)

	mux.HandleFunc("GET /api/movers", handlers.Movers.ListMovers)

	mux.HandleFunc("GET /api/paper-trading/stats", handlers.Paper.GetStats)
	mux.HandleFunc("GET /api/paper-trading/positions", handlers.Paper.ListPositions)
	mux.HandleFunc("GET /api/paper-trading/history", handlers.Paper.ListHistory)

	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.GetArchive)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
