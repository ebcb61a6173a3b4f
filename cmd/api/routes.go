package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/auth"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/common"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/config"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/health"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/ratelimit"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/security"
)

// server bundles the constructed services the router mounts.
type server struct {
	cfg         *config.Config
	logger      zerolog.Logger
	redis       *redis.Client
	auth        *auth.Service
	payments    *payment.Service
	welcome     auth.WelcomeSender
	httpMetrics *obs.HTTPMetrics
	tracing     bool
	probes      []health.Probe
}

func (s *server) routes() http.Handler {
	authMW := auth.Middleware{Service: s.auth, LookupTimeout: s.cfg.IdentityLookupTimeout}
	authHandler := &auth.Handler{Service: s.auth, Welcome: s.welcome}
	paymentHandler := &payment.Handler{Svc: s.payments}
	webhook := payment.Webhook{Svc: s.payments}
	idem := common.Idem{R: s.redis, TTL: s.cfg.IdempotencyTTL}
	bodyLimit := security.BodyLimit{Max: s.cfg.BodyLimitBytes}
	limiter := ratelimit.Limiter{Client: s.redis, Prefix: "rl:"}
	limit := func(key ratelimit.KeyFunc) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: key, Window: s.cfg.RateLimitWindow, Max: s.cfg.RateLimitMax},
		}.Middleware
	}
	healthHandler := health.Handler{Probes: s.probes}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if s.tracing {
		r.Use(obs.TracingMiddleware)
	}
	if s.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: s.httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: s.logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: s.cfg.IsProduction()}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(s.cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-Request-Id", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: len(s.cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		common.JSONError(w, http.StatusNotFound, common.CodeNotFound, "Route not found", nil)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api", func(api chi.Router) {
		api.Use(bodyLimit.Middleware)

		api.Route("/auth", func(a chi.Router) {
			a.With(limit(ratelimit.ByClientIP("auth"))).Post("/{role}/register", authHandler.Register)
			a.With(limit(ratelimit.ByClientIP("auth"))).Post("/{role}/login", authHandler.Login)
			a.With(authMW.Protect).Get("/me", authHandler.Me)
		})

		api.Route("/payments", func(p chi.Router) {
			p.With(payment.RequireWebhookSignature).Post("/webhook", webhook.Handle)

			p.Group(func(g chi.Router) {
				g.Use(authMW.Protect)
				g.Use(limit(ratelimit.ByPrincipal("payments")))
				g.With(authMW.RequireRole(identity.RoleUser), idem.Middleware, payment.OrderGuard).
					Post("/create-order", paymentHandler.CreateOrder)
				g.With(payment.VerifyGuard).Post("/verify", paymentHandler.VerifyPayment)
				g.Get("/orders/{id}", paymentHandler.Get)
			})
		})

		api.Route("/admin", func(ad chi.Router) {
			ad.Use(authMW.Protect)
			ad.Use(authMW.Admin)
			ad.Get("/payments", paymentHandler.List)
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
