package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rebookza/rebook-backend/internal/cron"
	"github.com/rebookza/rebook-backend/internal/notifications"
	"github.com/rebookza/rebook-backend/internal/notify"
	internalorders "github.com/rebookza/rebook-backend/internal/orders"
	"github.com/rebookza/rebook-backend/pkg/config"
	"github.com/rebookza/rebook-backend/pkg/db"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/mailer"
	"github.com/rebookza/rebook-backend/pkg/metrics"
	"github.com/rebookza/rebook-backend/pkg/migrate"
	"github.com/rebookza/rebook-backend/pkg/redis"
)

const lockKeyFormat = "rb:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var mailerOpts []mailer.Option
	if cfg.Mailer.BaseURL != "" {
		mailerOpts = append(mailerOpts, mailer.WithBaseURL(cfg.Mailer.BaseURL))
	}
	mailClient, err := mailer.NewClient(cfg.Mailer.APIKey, cfg.Mailer.DefaultFrom, mailerOpts...)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	orderRepo := internalorders.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())
	notifier := notify.NewFanout(mailClient, notificationRepo, logg)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Orders.ExpirySweepEvery)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()
	if cfg.Orders.ExpirySweepEnabled {
		expiryJob, err := cron.NewCommitExpiryJob(cron.CommitExpiryJobParams{
			Logger: logg,
			Orders: orderRepo,
			Notify: notifier,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create commit expiry job", err)
			os.Exit(1)
		}
		registry.Register(expiryJob)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Orders.ExpirySweepEvery,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
