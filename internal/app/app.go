package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Ahmadraza4026/image-search-backend/internal/auth"
	"github.com/Ahmadraza4026/image-search-backend/internal/config"
	"github.com/Ahmadraza4026/image-search-backend/internal/event"
	handler "github.com/Ahmadraza4026/image-search-backend/internal/handler/http"
	"github.com/Ahmadraza4026/image-search-backend/internal/mailer"
	"github.com/Ahmadraza4026/image-search-backend/internal/password"
	"github.com/Ahmadraza4026/image-search-backend/internal/ratelimit"
	"github.com/Ahmadraza4026/image-search-backend/internal/repository/postgres"
	"github.com/Ahmadraza4026/image-search-backend/internal/service"
	"github.com/Ahmadraza4026/image-search-backend/migrations"
	"github.com/Ahmadraza4026/image-search-backend/pkg/database"
	"github.com/Ahmadraza4026/image-search-backend/pkg/health"
	pkgkafka "github.com/Ahmadraza4026/image-search-backend/pkg/kafka"
	"github.com/Ahmadraza4026/image-search-backend/pkg/middleware"
	"github.com/Ahmadraza4026/image-search-backend/pkg/tracing"
)

// serviceName identifies this process in traces, metrics and events.
const serviceName = "auth-service"

// App wires together all dependencies and runs the auth service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	memLimiter     *ratelimit.MemoryLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.closeResources()
		}
	}()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, cfg.Tracing(serviceName))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, logger)
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})

	// Rate limiter.
	var limiter ratelimit.Limiter
	switch cfg.RateLimitBackend {
	case config.RateLimitRedis:
		client, err := database.NewRedisClient(ctx, cfg.Redis())
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		limiter = ratelimit.NewRedisLimiter(client, "ratelimit:auth", cfg.RateLimitMax, cfg.RateLimitWindow)
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("redis rate limiter initialized",
			slog.String("host", cfg.RedisHost),
			slog.Int("port", cfg.RedisPort),
		)
	default:
		a.memLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		limiter = a.memLimiter
	}

	// Domain events.
	eventProducer := event.NewNoopProducer(logger)
	if cfg.EventsEnabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Outgoing mail.
	sender, err := mailer.New(mailer.Config{
		Provider:       cfg.MailProvider,
		From:           cfg.MailFrom,
		SMTPHost:       cfg.SMTPHost,
		SMTPPort:       cfg.SMTPPort,
		SMTPUser:       cfg.SMTPUser,
		SMTPPass:       cfg.SMTPPass,
		SendGridAPIKey: cfg.SendGridAPIKey,
		MailgunDomain:  cfg.MailgunDomain,
		MailgunAPIKey:  cfg.MailgunAPIKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	logger.Info("mailer initialized", slog.String("provider", sender.Name()))

	// Build the dependency graph.
	svcCfg := service.Config{
		AccessTokenTTL:       cfg.AccessTokenExpiry,
		RefreshTokenTTL:      cfg.RefreshTokenExpiry,
		VerificationTokenTTL: cfg.VerificationTokenExpiry,
		ResetTokenTTL:        cfg.ResetTokenExpiry,
		RefreshTokenRotation: cfg.RefreshTokenRotation,
		ResetRevealsUnknown:  cfg.ResetRevealsUnknown,
		PublicBaseURL:        cfg.PublicBaseURL,
	}
	issuer := auth.NewIssuer(cfg.JWTSecret, serviceName)
	hasher := password.NewHasher(cfg.BcryptCost)
	policy := password.Policy{Scorer: password.ZxcvbnScorer{}, Min: cfg.MinPasswordScore}
	accountRepo := postgres.NewAccountRepository(pool)

	verification := service.NewVerificationService(accountRepo, issuer, sender, eventProducer, svcCfg, logger)
	sessions := service.NewSessionService(accountRepo, hasher, policy, issuer, verification, eventProducer, svcCfg, logger)
	resets := service.NewPasswordResetService(accountRepo, hasher, policy, sender, eventProducer, svcCfg, logger)
	accounts := service.NewAccountService(accountRepo, hasher, policy, eventProducer, logger)

	clientIPs, err := middleware.NewClientIPResolver(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Sessions:     sessions,
		Verification: verification,
		Resets:       resets,
		Accounts:     accounts,
		Verifier:     issuer.AccessVerifier(),
		Limiter:      limiter,
		ClientIPs:    clientIPs,
		Health:       healthHandler,
		CORSOrigins:  cfg.CORSOrigins(),
		PprofCIDRs:   cfg.PprofAllowedCIDRs,
		Logger:       logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ok = true
	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer, Redis client, PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

// closeResources releases everything NewApp opened. It tolerates a
// partially built App.
func (a *App) closeResources() error {
	var errs []error

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.tracerShutdown = nil
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.producer = nil
	}

	if a.memLimiter != nil {
		a.memLimiter.Close()
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
		a.redis = nil
	}

	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}

	return errors.Join(errs...)
}
