package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/XavierBriggs/fortuna/services/rushing-predictor/internal/middleware"
)

// RouterConfig holds router-level settings
type RouterConfig struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// Routes builds the HTTP router
func (h *Handler) Routes(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(h.logger))
	r.Use(chimiddleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	// Training and WebSocket streams run longer than a request timeout.
	r.Post("/model/retrain", h.Retrain)
	r.Get("/ws/training", h.HandleWebSocket)

	r.Group(func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/health", h.HealthCheck)

		// Pages
		r.Get("/", h.HomePage)
		r.Get("/predict", h.PredictPage)
		r.Get("/about", h.AboutPage)

		// Prediction
		r.Post("/predict", h.Predict)
		r.Post("/predict/play", h.PredictPlay)
		r.Post("/features/standardize", h.Standardize)

		// API v1
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/model", h.GetModel)
			r.Get("/model/runs", h.GetRuns)
			r.Get("/ws/metrics", h.HandleMetrics)
		})
	})

	return r
}
