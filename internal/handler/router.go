package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/chatshare/internal/middleware"
	"github.com/capitalize-ai/chatshare/internal/ratelimit"
	"github.com/capitalize-ai/chatshare/pkg/logger"
)

// RouterConfig holds what NewRouter wires together.
type RouterConfig struct {
	Conversations      *ConversationHandler
	Health             *HealthHandler
	Limiter            *ratelimit.Limiter
	Logger             *logger.Logger
	JWTSecret          string
	CORSAllowedOrigins []string

	// TrustProxyHeaders rewrites the peer address from forwarding headers
	// before the client identity is derived. Without it those headers are
	// ignored, so a client cannot pick its own rate limit key.
	TrustProxyHeaders bool
}

// NewRouter builds the HTTP surface: health, metrics and the conversation API.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/conversations", func(r chi.Router) {
		r.With(
			middleware.Identity(cfg.JWTSecret),
			middleware.RateLimit(cfg.Limiter, cfg.Logger),
		).Post("/", cfg.Conversations.Create)

		r.Get("/{id}", cfg.Conversations.Get)
		r.Get("/{id}/raw", cfg.Conversations.Raw)
	})

	return r
}
