// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/questhub/internal/config"
	"github.com/pendergraft/questhub/internal/middleware/logging"
	"github.com/pendergraft/questhub/internal/middleware/ratelimit"
	"github.com/pendergraft/questhub/internal/middleware/realip"
	"github.com/pendergraft/questhub/internal/middleware/security"
	"github.com/pendergraft/questhub/internal/observability/metrics"
	progressDomain "github.com/pendergraft/questhub/internal/progress/domain"
	progressTransport "github.com/pendergraft/questhub/internal/progress/transport"
	"github.com/pendergraft/questhub/internal/quests"
	questsTransport "github.com/pendergraft/questhub/internal/quests/transport"
	"github.com/pendergraft/questhub/internal/storage"
	verificationTransport "github.com/pendergraft/questhub/internal/verification/transport"
)

// readyTimeout bounds the storage ping behind /readyz
const readyTimeout = 2 * time.Second

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	// stops end the rate limiter eviction loops
	stops []func()

	// Services typed via transport interfaces
	catalogue   questsTransport.Catalogue
	progressSvc progressTransport.Service
	verifier    verificationTransport.Verifier
}

// New creates a new server. The verifier is normally a *verification.Engine.
func New(cfg *config.Config, store storage.Store, catalogue *quests.Registry, verifier progressDomain.Verifier, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		logger:    logger,
		router:    chi.NewRouter(),
		catalogue: catalogue,
		verifier:  verifier,
	}

	progressImpl := progressDomain.NewService(catalogue, store, verifier, progressDomain.Options{
		SyncConcurrency: cfg.Sync.Concurrency,
		SyncJitter:      cfg.Sync.MaxJitter(),
	}, logger)
	s.progressSvc = progressDomain.LoggingMiddleware(logger)(progressImpl)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work owned by the server. It does not close the store.
func (s *Server) Close() {
	for _, stop := range s.stops {
		stop()
	}
	s.stops = nil
}

func (s *Server) setupMiddleware() {
	// Request IDs and the client IP come first so every later layer can log them.
	s.router.Use(middleware.RequestID)
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(middleware.Recoverer)

	s.router.Use(security.Middleware(security.Config{
		FilterEnabled: s.cfg.Security.FilterEnabled,
		MaxBodySizeKB: s.cfg.Security.MaxBodySizeKB,
	}))
	s.router.Use(metrics.Middleware)

	limit, stop := ratelimit.Middleware(ratelimit.Config{
		Name:           "general",
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	})
	s.stops = append(s.stops, stop)
	s.router.Use(limit)

	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second))
	}
	s.router.Use(middleware.Compress(5))

	// CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	if metrics.Enabled() {
		s.router.Handle("/metrics", metrics.Handler())
	}

	questsHandler := questsTransport.NewHandler(s.catalogue)
	progressHandler := progressTransport.NewHandler(s.progressSvc)
	verificationHandler := verificationTransport.NewHandler(s.verifier)

	// Routes that reach chain RPC share a tighter budget.
	verifyLimit, stop := ratelimit.Middleware(ratelimit.Config{
		Name:           "verify",
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.VerifyRequestsPerMin,
		BurstSize:      s.cfg.RateLimit.VerifyBurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	})
	s.stops = append(s.stops, stop)

	s.router.Route("/api/v1", func(r chi.Router) {
		questsHandler.RegisterRoutes(r)
		progressHandler.RegisterReadRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(verifyLimit)
			progressHandler.RegisterVerifyRoutes(r)
			verificationHandler.RegisterRoutes(r)
		})
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports whether the store is reachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
