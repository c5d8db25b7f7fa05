package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ahmadraza4026/image-search-backend/internal/domain"
	"github.com/Ahmadraza4026/image-search-backend/internal/ratelimit"
	"github.com/Ahmadraza4026/image-search-backend/internal/service"
	"github.com/Ahmadraza4026/image-search-backend/pkg/health"
	"github.com/Ahmadraza4026/image-search-backend/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the router.
const ServiceName = "auth"

// RouterDeps is everything NewRouter wires into routes.
type RouterDeps struct {
	Sessions     *service.SessionService
	Verification *service.VerificationService
	Resets       *service.PasswordResetService
	Accounts     *service.AccountService
	Verifier     middleware.TokenVerifier
	Limiter      ratelimit.Limiter
	ClientIPs    *middleware.ClientIPResolver
	Health       *health.Handler
	CORSOrigins  []string
	PprofCIDRs   []string
	Logger       *slog.Logger
}

// NewRouter creates a chi router with all account routes registered.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(d.CORSOrigins...)))
	r.Use(middleware.RequestLogging(d.Logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", d.Health.LivenessHandler())
	r.Get("/health/ready", d.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, d.PprofCIDRs, d.Logger)

	authHandler := NewAuthHandler(d.Sessions, d.Verification, d.Resets, d.Logger)
	accountHandler := NewAccountHandler(d.Accounts, d.Logger)
	limited := ratelimit.Middleware(d.Limiter, d.ClientIPs, d.Logger)

	// Auth endpoints (public)
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.With(limited).Post("/register", authHandler.Register)
		r.With(limited).Post("/login", authHandler.Login)
		r.With(limited).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(limited).Post("/resend-verification", authHandler.ResendVerification)

		r.Get("/verify-email", authHandler.VerifyEmail)
		r.Post("/refresh-token", authHandler.RefreshToken)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/logout", authHandler.Logout)
	})

	// Account endpoints (auth required)
	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.NoStore)
		r.Use(middleware.Auth(d.Verifier, d.Logger))
		r.Use(middleware.RequireRole(domain.ValidRoles()...))

		r.Get("/me", accountHandler.Me)
		r.Get("/account", accountHandler.Account)
		r.Put("/update-password", accountHandler.UpdatePassword)
	})

	r.With(middleware.NoStore, middleware.Auth(d.Verifier, d.Logger)).
		Get("/api/protected", accountHandler.Protected)

	return r
}
