package cli

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eldersfive/mediator/internal/config"
	"github.com/eldersfive/mediator/internal/handler"
	"github.com/eldersfive/mediator/internal/middleware"
	"github.com/eldersfive/mediator/internal/store"
	"github.com/eldersfive/mediator/pkg/logger"
)

type routerDeps struct {
	mediator handler.Mediator
	keys     handler.Keyring
	rooms    store.RoomStore
	checks   map[string]handler.Pinger
}

func newRouter(cfg *config.Config, d routerDeps, log *logger.Logger) http.Handler {
	healthHandler := handler.NewHealthHandler(d.checks)
	mediationHandler := handler.NewMediationHandler(d.mediator, log)
	keyHandler := handler.NewKeyHandler(d.keys, d.rooms, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Options("/mediate", middleware.Preflight)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))

			r.With(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow)).
				Post("/mediate", mediationHandler.Mediate)

			r.Route("/conversations/{id}/key", func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
				r.Get("/", keyHandler.Get)
				r.Post("/", keyHandler.Ensure)
			})
		})
	})

	return r
}
