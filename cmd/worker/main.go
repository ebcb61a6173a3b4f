package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/config"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/identity"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/notify"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/obs"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/payment"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/store"
	"github.com/Shantanu-Kulkarni1229/Recycle-IT-sub002/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := store.OpenPostgres(startCtx, cfg.DatabaseURL, "recycle-it-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("open postgres")
	}
	defer pool.Close()

	mongoClient, mongoDB, err := store.OpenMongo(startCtx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal().Err(err).Msg("open mongo")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error().Err(err).Msg("disconnect mongo")
		}
	}()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.SendGridAPIKey != "" {
		notifier = notify.NewSendGrid(cfg.SendGridAPIKey, cfg.MailFrom, cfg.MailFromName)
	} else {
		logger.Warn().Msg("SENDGRID_API_KEY not set, emails are discarded")
	}

	mailer := &tasks.Mailer{
		Orders:     payment.NewPGStore(pool),
		Identities: identity.NewMongoStore(mongoDB),
		Notifier:   notifier,
		Logger:     logger,
	}
	mux := asynq.NewServeMux()
	mailer.Register(mux)

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	taskServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{tasks.QueueMail: 1},
		Logger:          asynqLogger{log: logger},
		ShutdownTimeout: 20 * time.Second,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Error().Err(err).Str("task", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
		}),
	})

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := taskServer.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	<-ctx.Done()

	logger.Info().Msg("worker shutting down")
	taskServer.Shutdown()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = metricsServer.Shutdown(shutdownCtx)
	logger.Info().Msg("worker shutdown complete")
}
