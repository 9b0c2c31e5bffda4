package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/server/config"
	"github.com/closetapp/closet-sync/internal/server/ratelimit"
)

// RouterConfig holds everything the router wires together.
type RouterConfig struct {
	Handler   *Handler
	Auth      func(http.Handler) http.Handler
	Limiter   ratelimit.Limiter
	RateLimit config.RateLimitConfig
	Log       logging.Logger
}

// NewRouter builds the HTTP surface. Everything except the health endpoint
// requires a bearer token; sync and image-upload routes additionally sit
// behind per-account rate limits.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(NewRecoveryMiddleware(cfg.Log))
	r.Use(RequestID)
	r.Use(NewLoggingMiddleware(cfg.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", cfg.Handler.Healthz)

	syncLimit := NewRateLimitMiddleware(cfg.Limiter, "sync",
		cfg.RateLimit.SyncPerWindow, cfg.RateLimit.Window, cfg.Log)
	imageLimit := NewRateLimitMiddleware(cfg.Limiter, "image-upload",
		cfg.RateLimit.ImagePerWindow, cfg.RateLimit.Window, cfg.Log)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth)
		}

		r.Group(func(r chi.Router) {
			r.Use(syncLimit)
			r.Get("/sync", cfg.Handler.Pull)
			r.Post("/sync", cfg.Handler.Push)
		})

		r.Route("/images", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(imageLimit)
				r.Post("/presign-upload", cfg.Handler.PresignUpload)
				r.Put("/upload/{hash}", cfg.Handler.UploadImage)
			})
			r.Get("/check/{hash}", cfg.Handler.CheckImage)
			r.Get("/*", cfg.Handler.DownloadImage)
			r.Delete("/{hash}", cfg.Handler.DeleteImage)
		})
	})

	return r
}
