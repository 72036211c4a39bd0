/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. Metrics:    Prometheus request counters and latencies
  5. CORS:       Cross-origin requests for the browser client

ROUTE GROUPS:
  /api/auth/login       Public
  /api/status           Public
  /api/*                Bearer token required
  /api/admin/*          Admin role required
  /api/requests/{id}/*  Admin role required (approve / reject)
  /api/live             Token via header or ?token=
  /api/scenarios/*      Only when scenarios are enabled
  /healthz /readyz      Liveness and readiness
  /metrics              Prometheus

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: RequireAuth / RequireAdmin
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/leave-portal/metrics"
)

// RouterOptions toggles optional parts of the router.
type RouterOptions struct {
	AllowedOrigins  []string
	EnableScenarios bool
	EnableMetrics   bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	h.AllowedOrigins = origins

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	if opts.EnableMetrics {
		r.Use(metrics.HTTPMiddleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	if opts.EnableMetrics {
		r.Method("GET", "/metrics", metrics.Handler())
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", h.Login)
		r.Get("/status", h.GetStatus)

		r.With(h.RequireAuth(true)).Get("/live", h.Live)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth(false))

			r.Get("/me", h.Me)
			r.Get("/days", h.GetDays)

			// Request routes
			r.Route("/requests", func(r chi.Router) {
				r.Get("/", h.ListRequests)
				r.Post("/", h.SubmitRequest)
				r.With(RequireAdmin).Post("/{id}/approve", h.ApproveRequest)
				r.With(RequireAdmin).Post("/{id}/reject", h.RejectRequest)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/users", h.ListUsers)
				r.Get("/stats", h.GetStats)
				r.Post("/requests", h.PlaceRequest)
			})

			// Scenario routes
			if opts.EnableScenarios {
				r.Route("/scenarios", func(r chi.Router) {
					r.Use(RequireAdmin)
					r.Get("/", h.ListScenarios)
					r.Post("/load", h.LoadScenario)
				})
			}
		})
	})

	return r
}
