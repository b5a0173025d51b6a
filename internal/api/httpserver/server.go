// Package httpserver assembles the chi router and HTTP server for the API.
package httpserver

import (
	"context"
	"fmt"
	"net/http"

	"flowcanvas/internal/api/handlers"
	apimiddleware "flowcanvas/internal/api/middleware"
	"flowcanvas/internal/common"
	"flowcanvas/internal/config"
	"flowcanvas/internal/designs"
	"flowcanvas/internal/storage/postgres"
	"flowcanvas/pkg/logger"
	"flowcanvas/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the HTTP listener with its router.
type Server struct {
	server *http.Server
	logger logger.Logger
}

// HealthChecker reports readiness of a dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// New builds the API server. db may be nil when running against the
// in-memory repository; broker may be nil when Kafka is disabled.
func New(cfg *config.Config, service *designs.Service, db *postgres.DB, broker HealthChecker, version string) *Server {
	log := logger.New("http")
	router := buildRouter(cfg, service, db, broker, version, log)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler:      router,
			ReadTimeout:  cfg.API.ReadTimeout,
			WriteTimeout: cfg.API.WriteTimeout,
			IdleTimeout:  cfg.API.IdleTimeout,
		},
		logger: log,
	}
}

func buildRouter(cfg *config.Config, service *designs.Service, db *postgres.DB, broker HealthChecker, version string, log logger.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(cfg.API.RequestTimeout))
	r.Use(apimiddleware.Instrument(log, metrics.GetGlobal()))

	if cfg.API.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.API.CORSAllowedOrigins,
			AllowedMethods:   cfg.API.CORSAllowedMethods,
			AllowedHeaders:   cfg.API.CORSAllowedHeaders,
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.API.EnableGzip {
		r.Use(chimiddleware.Compress(5))
	}
	if cfg.API.EnableRateLimit {
		limiter := apimiddleware.NewRateLimiter(cfg.API.RateLimitPerSecond, cfg.API.RateLimitBurst)
		r.Use(limiter.Handler)
	}

	r.Get("/health", healthHandler(db, broker))
	r.Get("/version", func(w http.ResponseWriter, req *http.Request) {
		common.WriteJSON(w, req, http.StatusOK, map[string]string{
			"service": "flowcanvas",
			"version": version,
		})
	})

	h := handlers.New(service)
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/designs", func(r chi.Router) {
			r.Get("/", h.ListDesigns)
			r.Post("/", h.CreateDesign)
			r.Post("/import", h.ImportDesign)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetDesign)
				r.Put("/", h.UpdateDesign)
				r.Delete("/", h.DeleteDesign)

				r.Post("/nodes", h.AddNode)
				r.Put("/nodes/{nodeID}", h.UpdateNode)
				r.Delete("/nodes/{nodeID}", h.DeleteNode)

				r.Post("/connections", h.AddConnection)
				r.Delete("/connections/{connectionID}", h.DeleteConnection)

				r.Post("/validate", h.ValidateDesign)
				r.Post("/duplicate", h.DuplicateDesign)
				r.Get("/export", h.ExportDesign)
				r.Get("/statistics", h.GetStatistics)

				r.Get("/versions", h.ListVersions)
				r.Post("/versions", h.CreateVersion)
				r.Post("/rollback/{versionID}", h.Rollback)

				r.Get("/executions", h.ListExecutions)
				r.Post("/execute", h.ExecuteDesign)
			})
		})

		r.Route("/versions/{versionID}", func(r chi.Router) {
			r.Get("/", h.GetVersion)
			r.Post("/promote", h.SetCurrentVersion)
			r.Get("/compare/{otherID}", h.CompareVersions)
		})

		r.Route("/executions/{executionID}", func(r chi.Router) {
			r.Get("/", h.GetExecution)
			r.Post("/cancel", h.CancelExecution)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", h.ListTemplates)
			r.Get("/{templateID}", h.GetTemplate)
			r.Post("/{templateID}/designs", h.CreateFromTemplate)
		})
	})

	return r
}

func healthHandler(db *postgres.DB, broker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		healthy := true

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				checks["database"] = err.Error()
				healthy = false
			} else {
				checks["database"] = "ok"
			}
		}
		if broker != nil {
			if err := broker.Health(r.Context()); err != nil {
				checks["kafka"] = err.Error()
				healthy = false
			} else {
				checks["kafka"] = "ok"
			}
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		common.WriteJSON(w, r, status, map[string]any{
			"healthy": healthy,
			"checks":  checks,
		})
	}
}

// Start blocks serving requests until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("API server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("API server shutting down")
	return s.server.Shutdown(ctx)
}
