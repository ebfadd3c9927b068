package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"burn.note/config"
	"burn.note/internal/access"
	"burn.note/web"
)

func SetupRouter(e *access.Engine, cfg *config.Config, log *zap.Logger, gatherer prometheus.Gatherer) *chi.Mux {
	h := NewHandler(e, cfg, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Metrics)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.NotFound(h.NotFound)

	// Health
	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/delays", h.Delays)
		r.Post("/purge", h.Purge)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.CreateMessage)
			r.Get("/{token}", h.ViewMessage)
			r.Delete("/{token}", h.DestroyMessage)
		})
	})

	// Cron-friendly cleanup and the form-post paths of the plain pages.
	r.Get("/clear", h.Purge)
	r.Post("/", h.CreateMessage)
	r.Delete("/destroy/{token}", h.DestroyMessage)

	// Frontend
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(web.StaticFS())))
	r.Get("/", h.Index)
	r.Get("/{token}", h.RevealPage)

	return r
}
