package httpapi

import (
	"net/http"

	"sabore-analytics/internal/config"
	"sabore-analytics/internal/http/handlers"
	"sabore-analytics/internal/middleware"
	"sabore-analytics/internal/reports"
	"sabore-analytics/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(service *reports.Service, logger *zap.Logger, cfg config.Config, wsServer *ws.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Telemetry(logger, nil))

	if cfg.Env == "development" || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Content-Type",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
				"Pragma",
			},
			ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: cfg.CorsAllowCredentials,
			MaxAge:           300,
		}

		if cfg.Env == "development" {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	h := &handlers.Handler{Reports: service, Logger: logger, Config: cfg}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/reports", func(r chi.Router) {
		r.Use(setResponseHeader("Cache-Control", "no-store"))
		r.Get("/full", h.FullReport)
		r.Get("/metrics", h.Metrics)
		r.Get("/statistics", h.Statistics)
		r.Get("/trend", h.Trend)
		r.Get("/forecast", h.Forecast)
		r.Get("/top-items", h.TopItems)
		r.Get("/peak-hours", h.PeakHours)
		r.Get("/weekdays", h.Weekdays)
		r.Get("/seasonality", h.Seasonality)
		r.Get("/periods", h.Periods)
		r.Get("/growth", h.Growth)
		r.Get("/categories", h.Categories)
		r.Get("/statuses", h.Statuses)
		r.Get("/text", h.TextReport)
		r.Get("/export", h.Export)
		r.Get("/archive", h.ArchiveList)
		r.Post("/archive", h.ArchiveCreate)
		r.Post("/analyze", h.Analyze)
		r.Post("/refresh", h.Refresh)
	})

	if wsServer != nil {
		r.Get("/ws/reports", wsServer.ReportsWS)
	}

	return r
}

func setResponseHeader(name string, value string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(name, value)
			next.ServeHTTP(w, r)
		})
	}
}
