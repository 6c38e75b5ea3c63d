package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/LevelUp/pkg/health"
	"github.com/utafrali/LevelUp/pkg/middleware"
)

// NewRouter creates a chi router with all mission service routes registered.
func NewRouter(
	svc Completer,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
	requestTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.PrometheusMetrics("mission"))
	r.Use(middleware.Tracing("mission"))
	r.Use(middleware.RequestLogger(logger))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, pprofCIDRs, logger)

	h := NewCompletionHandler(svc, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Post("/executions/{id}/complete", h.CompleteExecution)
		r.Post("/pinned-instances/{id}/complete", h.CompletePinnedInstance)
	})

	return r
}
