package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mantled-app/creator-api/internal/database"
	mw "github.com/mantled-app/creator-api/internal/middleware"
	inats "github.com/mantled-app/creator-api/internal/nats"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Generation handlers
	Generate      http.HandlerFunc
	ListProviders http.HandlerFunc

	// Quota handlers
	GetQuota http.HandlerFunc
	GetUsage http.HandlerFunc

	// Audit handlers
	ListAuditLogs http.HandlerFunc

	// Recording session handlers
	CreateRecording http.HandlerFunc
	GetRecording    http.HandlerFunc
	UpdateRecording http.HandlerFunc
	DeleteRecording http.HandlerFunc

	// Auth middleware
	AuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins  []string
	GenerateRateLimiter func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, rdb *redis.Client, natsClient *inats.Client, cfg RouterConfig, h HandlerSet) http.Handler {
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

	// Readiness probe — checks DB, Redis, NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"redis":    "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := rdb.Ping(r.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
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
		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			// Generation routes — optionally rate-limited
			r.Group(func(r chi.Router) {
				if cfg.GenerateRateLimiter != nil {
					r.Use(cfg.GenerateRateLimiter)
				}
				r.Post("/generate", h.Generate)
			})
			r.Get("/providers", h.ListProviders)

			// Quota routes
			r.Get("/quota", h.GetQuota)
			r.Get("/usage", h.GetUsage)

			// Audit routes
			r.Get("/audit", h.ListAuditLogs)

			// Recording session routes
			r.Route("/recordings", func(r chi.Router) {
				r.Post("/", h.CreateRecording)

				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", h.GetRecording)
					r.Put("/", h.UpdateRecording)
					r.Delete("/", h.DeleteRecording)
				})
			})
		})
	})

	return r
}
