// Package api provides the HTTP REST API server for cryptodash.
//
// It exposes the current market snapshot, the reference asset's price
// history, aggregate metrics and the favorites set, and streams snapshot
// summaries over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seenimoa/cryptodash/internal/config"
	"github.com/seenimoa/cryptodash/internal/metrics"
	"github.com/seenimoa/cryptodash/pkg/models"
)

// MarketService is the read/write surface the API needs from the market
// state owner. *market.Service satisfies it.
type MarketService interface {
	Snapshot() *models.Snapshot
	History() []models.HistoricalPoint
	HistoryFetchedAt() (time.Time, bool)
	Summary() metrics.Summary
	Dominance(symbol string) string
	Direction(symbol string) models.Direction
	Favorites() models.Favorites
	ToggleFavorite(ctx context.Context, id string) bool
	RefreshAssets(ctx context.Context) error
	RefreshHistory(ctx context.Context) (bool, error)
	Subscribe(fn func(*models.Snapshot)) (unsubscribe func())
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     MarketService
	wsHub   *WSHub
	logger  *slog.Logger
	version string
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc MarketService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		wsHub:   NewWSHub(logger),
		logger:  logger,
		version: "dev",
	}
	srv.router = srv.buildRouter()
	return srv
}

// SetVersion sets the build version reported by /health.
func (s *Server) SetVersion(v string) { s.version = v }

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub { return s.wsHub }

// ListenAndServe serves HTTP on addr until ctx is cancelled, then shuts
// down gracefully. Snapshot replacements are broadcast to WebSocket
// clients while it runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.wsHub.Run(ctx)
	unsubscribe := s.svc.Subscribe(s.broadcastSnapshot)
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", slog.String("addr", addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// broadcastSnapshot pushes the summary of a freshly replaced snapshot to
// every WebSocket client.
func (s *Server) broadcastSnapshot(_ *models.Snapshot) {
	s.wsHub.Broadcast(WSMessage{Type: MsgSnapshot, Data: s.svc.Summary()})
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Market snapshot
		r.Get("/assets", s.handleAssets)
		r.Get("/assets/{symbol}", s.handleAsset)
		r.Post("/refresh", s.handleRefresh)

		// Historical series
		r.Get("/history", s.handleHistory)

		// Aggregates
		r.Get("/metrics", s.handleMetrics)

		// Favorites
		r.Get("/favorites", s.handleFavorites)
		r.Post("/favorites/{id}/toggle", s.handleToggleFavorite)

		// Configuration
		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)

		// WebSocket
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				logger.Debug("HTTP request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("duration", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())))
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// ============================================================
// Response envelope
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write JSON response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
