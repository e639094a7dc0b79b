package api

import (
	"net/http"
	"time"

	"stockboard/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HandleHealth)

		// Dashboard layout
		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/", h.HandleGetDashboard)
			r.Put("/", h.HandleSaveDashboard)
			r.Post("/reset", h.HandleResetDashboard)
			r.Put("/positions", h.HandleUpdatePositions)
			r.Post("/widgets", h.HandleAddWidget)
			r.Patch("/widgets/{id}", h.HandleUpdateWidget)
			r.Delete("/widgets/{id}", h.HandleRemoveWidget)
		})

		// Preset layouts
		r.Route("/presets", func(r chi.Router) {
			r.Get("/", h.HandleGetPresets)
			r.Post("/", h.HandleSavePreset)
			r.Post("/{id}/apply", h.HandleApplyPreset)
			r.Delete("/{id}", h.HandleDeletePreset)
		})

		// Predictions
		r.Post("/predict", h.HandlePredict)

		// Market data
		r.Get("/quotes/{symbol}", h.HandleGetQuote)
		r.Get("/news", h.HandleGetNews)

		// Offline cache
		r.Route("/cache", func(r chi.Router) {
			r.Get("/stats", h.HandleCacheStats)
			r.Post("/compress", h.HandleCacheCompress)
			r.Post("/cleanup", h.HandleCacheCleanup)
			r.Get("/analyze", h.HandleCacheAnalyze)
			r.Post("/sync", h.HandleCacheSync)
			r.Get("/settings", h.HandleGetCacheSettings)
			r.Put("/settings", h.HandleUpdateCacheSettings)
		})

		// API key settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", h.HandleGetSettings)
			r.Put("/keys", h.HandleUpdateAPIKey)
			r.Post("/keys/{service}/test", h.HandleTestAPIKey)
			r.Delete("/keys/{service}", h.HandleDeleteAPIKey)
		})
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
