package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"payment-idempotency-service/internal/config"
	"payment-idempotency-service/internal/http/handler"
	"payment-idempotency-service/internal/http/middleware"
	"payment-idempotency-service/internal/observability"
	"payment-idempotency-service/internal/security"
)

// NewRouter assembles the HTTP surface: operational endpoints at the root,
// payment endpoints under /api/v1 behind rate limiting and optional auth.
func NewRouter(
	cfg *config.Config,
	payments *handler.PaymentHandler,
	health *handler.HealthHandler,
	jwtMgr *security.JWTManager,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", health.Healthz)
	r.Handle("/metrics", observability.MetricsHandler())

	rateLimiter := middleware.NewRateLimiter(cfg.APIRateLimitPerMin, time.Minute)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(rateLimiter.Middleware())
		if cfg.AuthEnabled && jwtMgr != nil {
			api.Use(middleware.BearerAuth(jwtMgr))
		}
		api.Route("/payments", func(p chi.Router) {
			p.Post("/", payments.Create)
			p.Get("/{id}", payments.Get)
			p.Post("/{id}/capture", payments.Capture)
		})
	})

	return r
}
