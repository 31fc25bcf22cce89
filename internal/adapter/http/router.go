package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/YelzhanWeb/orderflow/internal/adapter/logger"
	"github.com/YelzhanWeb/orderflow/internal/config"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

func NewRouter(handler *StatusHandler, logger logger.Logger, cfg config.HTTPConfig, health HealthCheck) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				logger.Error("health_check_failed", "Dependency unavailable", "", nil, err)
				respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Service unavailable")
				return
			}
		}
		respondOK(w, "ok", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(RateLimitMiddleware(cfg.RateRPS, cfg.RateBurst))

		r.Get("/statuses", handler.ListStatuses)
		r.Get("/transitions", handler.GetTransitions)

		r.Route("/orders/{id}", func(r chi.Router) {
			r.Get("/", handler.GetOrder)
			r.Patch("/status", handler.UpdateStatus)
			r.Get("/history", handler.GetHistory)
		})
	})

	return r
}
