package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/auth"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/config"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/health"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/lock"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/resilience"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/store"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "api").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	tracingEnabled := false
	shutdownTracer, err := obs.InitTracer(context.Background(), obs.TracingConfig{
		ServiceName:   "recycle-it-api",
		Endpoint:      cfg.OTLPEndpoint,
		Exporter:      cfg.TracingExporter,
		SamplingRatio: cfg.TracingSampleRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
	} else {
		tracingEnabled = true
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.MigrateOnStart {
		if err := store.Migrate(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
	}
	pool, err := store.OpenPostgres(startCtx, cfg.DatabaseURL, "recycle-it-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("open postgres")
	}
	defer pool.Close()

	redisClient, err := store.OpenRedis(startCtx, cfg.RedisURL, true, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open redis")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	mongoClient, mongoDB, err := store.OpenMongo(startCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal().Err(err).Msg("open mongo")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("disconnect mongo")
		}
	}()
	identities := identity.NewMongoStore(mongoDB)
	if err := identities.EnsureIndexes(startCtx); err != nil {
		logger.Fatal().Err(err).Msg("ensure identity indexes")
	}

	authService, err := auth.NewService(auth.Config{
		Store:    identities,
		Secret:   cfg.JWTSecret,
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	taskClient := asynq.NewClient(redisOpt)
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()
	enqueuer := tasks.Enqueuer{Client: taskClient}

	breaker := resilience.NewBreaker(resilience.Settings{
		Target:       "razorpay",
		MinRequests:  cfg.BreakerMinRequests,
		FailureRatio: cfg.BreakerFailureRatio,
		OpenFor:      cfg.BreakerOpenFor,
		Logger:       &logger,
	})
	paymentService := &payment.Service{
		Store:     payment.NewPGStore(pool),
		Provider:  payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayWebhookSecret, breaker),
		Locker:    lock.Locker{R: redisClient, MaxWait: cfg.LockTTL},
		LockTTL:   cfg.LockTTL,
		Receipts:  enqueuer,
		Replay:    redisClient,
		ReplayTTL: cfg.WebhookReplayTTL,
	}

	srv := &server{
		cfg:         cfg,
		logger:      logger,
		redis:       redisClient,
		auth:        authService,
		payments:    paymentService,
		welcome:     enqueuer,
		httpMetrics: obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil),
		tracing:     tracingEnabled,
		probes: []health.Probe{
			{Name: "postgres", Ping: pool.Ping},
			{Name: "redis", Timeout: 300 * time.Millisecond, Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
			{Name: "mongo", Ping: func(ctx context.Context) error { return mongoClient.Ping(ctx, readpref.Primary()) }},
		},
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("server starting")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	logger.Info().Msg("shutdown requested")
	health.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}
