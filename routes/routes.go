package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/genai-gateway/app"
	"github.com/upb/genai-gateway/middleware"
	"github.com/upb/genai-gateway/services/ratelimit"
	"github.com/upb/genai-gateway/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()
	cfg := deps.Config

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger, deps.HTTPObserver()))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(cfg.Server.RequestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After", "X-RateLimit-Limit"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	// Health check endpoints
	r.Get("/", deps.HealthHandler.HandleHealth)
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	limit := deps.RateLimitMiddleware.Limit

	// OpenAI-compatible API
	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BodyLimit(cfg.Server.BodyLimit))
		r.Use(deps.AuthMiddleware.ExtractCredentials)

		r.With(limit(ratelimit.PresetGenerate)).Post("/images/generations", deps.ImageHandler.HandleGenerate)
		r.With(limit(ratelimit.PresetOptimize)).Post("/chat/completions", deps.ChatHandler.HandleChatCompletion)

		r.Route("/videos", func(r chi.Router) {
			r.With(limit(ratelimit.PresetGenerate)).Post("/generations", deps.VideoHandler.HandleCreate)
			r.With(limit(ratelimit.PresetRead)).Get("/tasks/{taskId}", deps.VideoHandler.HandleStatus)
		})

		r.With(limit(ratelimit.PresetRead)).Get("/models", deps.CatalogHandler.HandleModels)
		r.With(limit(ratelimit.PresetRead)).Get("/channels", deps.CatalogHandler.HandleChannels)
	})

	return r
}
