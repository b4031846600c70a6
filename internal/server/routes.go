package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(RecoveryMiddleware(logger))
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", h.Health)

	r.Route("/video", func(r chi.Router) {
		r.Post("/upload", h.Upload)
		r.Get("/ws/process/{id}", h.ProcessWS)
		r.Post("/process/{id}", h.Process)
		r.Get("/status/{id}", h.Status)
		r.Get("/videos", h.List)
		r.Get("/subtitles/{id}", h.Subtitles)
		r.Get("/downscaled/{id}", h.Downscaled)
		r.Delete("/delete/{id}", h.Delete)
	})

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Get("/videos", h.List)
	})

	return r
}
