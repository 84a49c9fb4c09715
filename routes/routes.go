package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/civinigrani/civigate/app"
	"github.com/civinigrani/civigate/handlers"
	"github.com/civinigrani/civigate/models"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(deps.IdentityMiddleware.Resolve)

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Role", "X-Identity-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	agentHandler := handlers.NewAgentHandler(deps.Orchestrator, deps.Logger)
	toolsHandler := handlers.NewToolsHandler(deps.Engine, deps.Logger)
	auditHandler := handlers.NewAuditHandler(deps.TrailReader, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", handlers.HealthCheck(deps))
	r.Get("/readyz", handlers.ReadinessCheck(deps))

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/agent/query", agentHandler.HandleQuery)
		r.Get("/tools", toolsHandler.HandleList)

		// The trail carries argument values on allowed paths; restrict
		// read access to the reviewing roles.
		r.Route("/audit", func(r chi.Router) {
			r.Use(deps.IdentityMiddleware.RequireRole(models.RoleAuditor, models.RoleAdmin))
			r.Get("/records", auditHandler.HandleRecent)
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
