package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/AliyanOranje/sweepalgo-backend/internal/api/health"
	"github.com/AliyanOranje/sweepalgo-backend/internal/metrics"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/errors"
	"github.com/AliyanOranje/sweepalgo-backend/pkg/logger"
)

// ServerConfig contains configuration for HTTP server
type ServerConfig struct {
	Port        int
	ServiceName string
	Version     string
	Env         string
	FrontendURL string
}

// Server wraps HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures HTTP server with all routes.
// wsHandler serves the live fan-out endpoint; nil disables it.
func NewServer(cfg ServerConfig, handler *Handler, healthHandler *health.Handler, wsHandler http.HandlerFunc, log *logger.Logger) *Server {
	r := mux.NewRouter()
	r.Use(metricsMiddleware())
	r.Use(corsMiddleware(cfg.FrontendURL, cfg.Env))

	// Health check endpoints (Kubernetes probes)
	r.HandleFunc("/health", healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", healthHandler.HandleReadiness).Methods(http.MethodGet)
	r.HandleFunc("/live", healthHandler.HandleLiveness).Methods(http.MethodGet)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	// Live fan-out WebSocket
	if wsHandler != nil {
		r.HandleFunc("/ws", wsHandler)
	}

	handler.Register(r)

	// method-restricted routes never match OPTIONS; this catch-all lets
	// CORS preflights reach the middleware instead of falling to 405
	r.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	// Root endpoint (service info)
	r.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	}).Methods(http.MethodGet)

	port := 5000
	if cfg.Port > 0 {
		port = cfg.Port
	}

	log.Infof("HTTP server configured on port %d", port)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests
// Blocks until server is stopped or encounters an error
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
// Waits for active connections to complete within timeout
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	s.log.Info("✓ HTTP server stopped")
	return nil
}
