/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     Request logging (zap)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Request duration histogram per route
  6. CORS:       Cross-origin requests for frontends

ROUTE GROUPS:
  /api/classify           Stateless classification
  /api/users/{user}/*     Per-user sessions, bank, deductions, settings
  /api/scenarios          Demo scenarios
  /api/admin/*            Bank auditor
  /metrics                Prometheus scrape endpoint
  /healthz                Liveness (store ping)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - metrics.go: Prometheus collectors
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// RouterOptions tunes the router.
type RouterOptions struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/classify", h.Classify)

		// Per-user routes
		r.Route("/users/{user}", func(r chi.Router) {
			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", h.ListSessions)
				r.Post("/", h.CreateSession)
				r.Post("/import", h.ImportSession)
				r.Put("/{id}", h.UpdateSession)
				r.Delete("/{id}", h.DeleteSession)
			})

			r.Get("/allowance", h.GetAllowance)
			r.Get("/bank", h.GetBank)

			r.Route("/deductions", func(r chi.Router) {
				r.Get("/", h.ListDeductions)
				r.Post("/", h.CreateDeduction)
				r.Delete("/{id}", h.DeleteDeduction)
			})

			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)

			r.Post("/scenarios/{id}", h.LoadScenario)
		})

		// Scenario routes
		r.Get("/scenarios", h.ListScenarios)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/audit", h.RunAudit)
			r.Get("/audit", h.LastAudit)
		})
	})

	return r
}

// requestLogger logs one line per request through zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
