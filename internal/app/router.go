package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"cloudsathi/internal/api"
	"cloudsathi/internal/config"
	"cloudsathi/internal/middleware"
)

// NewRouter builds the HTTP handler. Public endpoints (/health, /readyz,
// /metrics, /openapi.json, /docs) bypass rate limiting and auth; /api routes
// require a bearer token when cfg.JWTSecret is set. The rate limiter's sweeper
// stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, a *App, logger *slog.Logger) (http.Handler, error) {
	if _, err := api.GetSwagger(); err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger))
	r.Use(middleware.Metrics(a.Metrics))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public endpoints
	r.Get("/health", a.Handler.Health)
	r.Get("/readyz", a.Handler.Ready)
	r.Get("/openapi.json", api.OpenAPIHandler)
	r.Get("/docs", api.DocsHandler)
	r.Method(http.MethodGet, "/metrics", a.Metrics.Handler())

	var auth func(http.Handler) http.Handler
	if cfg.JWTSecret != "" {
		v, err := middleware.NewHS256Validator(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("jwt validator: %w", err)
		}
		auth = middleware.BearerAuth(v)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimiter(ctx, middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		}))
		if auth != nil {
			r.Use(auth)
		}
		a.Handler.Routes(r)
	})

	return otelhttp.NewHandler(r, "cloudsathi"), nil
}
