package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/health"
	"github.com/pulsewatch/pulsewatch/internal/logging"
	"github.com/pulsewatch/pulsewatch/internal/metrics"

	_ "github.com/pulsewatch/pulsewatch/build/swagger" // Import generated docs
)

// @title pulsewatch API
// @version 1.0
// @description Read endpoints for the pulsewatch observability core: aggregate health, health history, and metric snapshots.

// @contact.name pulsewatch
// @license.name Apache 2.0
// @license.url https://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter your API key (with or without "Bearer " prefix)

// Server exposes the health and metrics read surfaces over HTTP
type Server struct {
	config    *config.APIConfig
	monitor   *health.Monitor
	collector *metrics.Collector
	router    *http.ServeMux
	server    *http.Server
	logger    *logging.Logger
}

// NewServer creates the read-endpoint server
func NewServer(cfg *config.APIConfig, monitor *health.Monitor, collector *metrics.Collector, logger *logging.Logger) *Server {
	s := &Server{
		config:    cfg,
		monitor:   monitor,
		collector: collector,
		router:    http.NewServeMux(),
		logger:    logger,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// setupRoutes configures all routes. Operational probes and the Prometheus
// exposition are never behind the API key.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.instrument("/health", s.corsMiddleware(s.handleHealth)))
	s.router.HandleFunc("/ready", s.instrument("/ready", s.corsMiddleware(s.handleReady)))
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.HandleFunc("/api/v1/health/history",
		s.instrument("/api/v1/health/history", s.corsMiddleware(s.authMiddleware(s.handleHealthHistory))))
	s.router.HandleFunc("/api/v1/metrics",
		s.instrument("/api/v1/metrics", s.corsMiddleware(s.authMiddleware(s.handleMetricsSnapshot))))

	s.router.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
}

// instrument records a request counter and a latency histogram per route
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next(w, r)

		labels := map[string]string{"route": route, "method": r.Method}
		s.collector.Counter("http_requests_total", 1, labels)
		s.collector.Histogram("http_request_duration_ms",
			float64(time.Since(start).Microseconds())/1000, labels)
	}
}

// Start begins serving, blocking until the context is cancelled
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.logger.Info("api server started", map[string]any{
			"addr": s.server.Addr,
		})
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", map[string]any{
				"error": err,
			})
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("shutting down api server", nil)
	return s.server.Shutdown(shutdownCtx)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the router for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// corsMiddleware adds permissive CORS headers for browser dashboards
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// authMiddleware enforces the optional API key on query endpoints
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.config.APIKey == "" {
			next(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != s.config.APIKey {
			s.respondError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next(w, r)
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", map[string]any{
			"error": err,
		})
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
