// Package server assembles the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/openpredict/marketd/internal/domain"
	"github.com/openpredict/marketd/internal/server/handler"
	"github.com/openpredict/marketd/internal/server/middleware"
	"github.com/openpredict/marketd/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	AdminToken   string // if empty, authentication is disabled
	RateLimitRPS int    // requests per second per client; 0 disables
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Nil handlers are skipped, so modes that run without a backing store can
// leave their endpoints unregistered.
type Handlers struct {
	Health      *handler.HealthHandler
	Conditions  *handler.ConditionHandler
	IOUs        *handler.IOUHandler
	Offers      *handler.OfferHandler
	Players     *handler.PlayerHandler
	Settlements *handler.SettlementHandler
}

// Server is the headless HTTP + WebSocket API server for the market.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. The limiter may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check.
	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}

	// Condition lifecycle.
	if handlers.Conditions != nil {
		mux.HandleFunc("GET /api/conditions", handlers.Conditions.List)
		mux.HandleFunc("POST /api/conditions", handlers.Conditions.Register)
		mux.HandleFunc("GET /api/conditions/{id}", handlers.Conditions.Get)
		mux.HandleFunc("POST /api/conditions/{id}/resolve", handlers.Conditions.Resolve)
		mux.HandleFunc("GET /api/conditions/{id}/trades", handlers.Conditions.Trades)
	}

	// IOU ledger.
	if handlers.IOUs != nil {
		mux.HandleFunc("POST /api/ious", handlers.IOUs.Issue)
		mux.HandleFunc("GET /api/ious", handlers.IOUs.List)
		mux.HandleFunc("GET /api/ious/{id}", handlers.IOUs.Get)
		mux.HandleFunc("POST /api/ious/{id}/transfer", handlers.IOUs.Transfer)
	}

	// Offers and trades.
	if handlers.Offers != nil {
		mux.HandleFunc("POST /api/offers", handlers.Offers.Post)
		mux.HandleFunc("DELETE /api/offers", handlers.Offers.Cancel)
		mux.HandleFunc("GET /api/conditions/{id}/book", handlers.Offers.Book)
		mux.HandleFunc("GET /api/trades", handlers.Offers.RecentTrades)
	}

	// Player registry.
	if handlers.Players != nil {
		mux.HandleFunc("GET /api/players", handlers.Players.List)
		mux.HandleFunc("POST /api/players", handlers.Players.Register)
		mux.HandleFunc("GET /api/players/{id}", handlers.Players.Get)
		mux.HandleFunc("PUT /api/players/{id}/locked", handlers.Players.SetLocked)
		mux.HandleFunc("GET /api/players/{id}/balance", handlers.Players.Balance)
	}

	// Settlement archives.
	if handlers.Settlements != nil {
		mux.HandleFunc("GET /api/settlements", handlers.Settlements.List)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.AdminToken)(h)
	if limiter != nil && cfg.RateLimitRPS > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimitRPS, time.Second)(h)
	}
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
