package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/contexthub-project/contexthub/internal/kv"
	mw "github.com/contexthub-project/contexthub/internal/middleware"
)

// HealthChecker reports whether an optional dependency is usable. The NATS
// client satisfies it; a nil checker reads as "not configured".
type HealthChecker interface {
	Healthy() bool
}

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Provider directory
	ListProviders      http.HandlerFunc
	RegisterProvider   http.HandlerFunc
	GetProvider        http.HandlerFunc
	UnregisterProvider http.HandlerFunc

	// Registry surface
	Status       http.HandlerFunc
	Installation http.HandlerFunc

	// Context read and write paths
	QueryContext     http.HandlerFunc
	AggregateContext http.HandlerFunc
	ProvideContext   http.HandlerFunc
	ContributeMemory http.HandlerFunc

	// Permissions
	GetPermissions    http.HandlerFunc
	RequestPermission http.HandlerFunc
	RevokePermission  http.HandlerFunc
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	ContextRateLimiter func(http.Handler) http.Handler
}

func NewRouter(store kv.Store, natsHealth HealthChecker, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks the kv backend and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":  "healthy",
			"storage": "healthy",
			"nats":    "healthy",
		}

		status := http.StatusOK

		if _, _, err := store.Get(r.Context(), "health:probe"); err != nil {
			health["storage"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsHealth != nil && !natsHealth.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsHealth == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/providers", func(r chi.Router) {
			r.Get("/", h.ListProviders)
			r.Post("/", h.RegisterProvider)
			r.Route("/{providerID}", func(r chi.Router) {
				r.Get("/", h.GetProvider)
				r.Delete("/", h.UnregisterProvider)
			})
		})

		r.Get("/status", h.Status)
		r.Get("/installation", h.Installation)

		// Context routes — optionally rate-limited
		r.Group(func(r chi.Router) {
			if cfg.ContextRateLimiter != nil {
				r.Use(cfg.ContextRateLimiter)
			}
			r.Post("/context/query", h.QueryContext)
			r.Post("/context/aggregate", h.AggregateContext)
			r.Post("/context", h.ProvideContext)
			r.Post("/memories", h.ContributeMemory)
		})

		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", h.GetPermissions)
			r.Post("/request", h.RequestPermission)
			r.Post("/revoke", h.RevokePermission)
		})
	})

	return r
}
