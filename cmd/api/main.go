package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rebookza/rebook-backend/api/routes"
	"github.com/rebookza/rebook-backend/internal/address"
	"github.com/rebookza/rebook-backend/internal/books"
	checkoutsvc "github.com/rebookza/rebook-backend/internal/checkout"
	"github.com/rebookza/rebook-backend/internal/feedback"
	"github.com/rebookza/rebook-backend/internal/notifications"
	"github.com/rebookza/rebook-backend/internal/notify"
	internalorders "github.com/rebookza/rebook-backend/internal/orders"
	"github.com/rebookza/rebook-backend/internal/profiles"
	"github.com/rebookza/rebook-backend/internal/wallet"
	"github.com/rebookza/rebook-backend/pkg/bobgo"
	"github.com/rebookza/rebook-backend/pkg/bobpay"
	"github.com/rebookza/rebook-backend/pkg/config"
	"github.com/rebookza/rebook-backend/pkg/db"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/mailer"
	"github.com/rebookza/rebook-backend/pkg/metrics"
	"github.com/rebookza/rebook-backend/pkg/migrate"
	"github.com/rebookza/rebook-backend/pkg/paystack"
	"github.com/rebookza/rebook-backend/pkg/redis"
	"github.com/rebookza/rebook-backend/pkg/secrets"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	box, err := secrets.NewBox(cfg.Secrets)
	if err != nil {
		logg.Error(context.Background(), "failed to load address keyset", err)
		os.Exit(1)
	}

	var bobgoOpts []bobgo.Option
	if cfg.Courier.BaseURL != "" {
		bobgoOpts = append(bobgoOpts, bobgo.WithBaseURL(cfg.Courier.BaseURL))
	}
	if cfg.Courier.Timeout > 0 {
		bobgoOpts = append(bobgoOpts, bobgo.WithTimeout(cfg.Courier.Timeout))
	}
	courierClient, err := bobgo.NewClient(cfg.Courier.APIKey, bobgoOpts...)
	if err != nil {
		logg.Error(context.Background(), "failed to create courier client", err)
		os.Exit(1)
	}

	var mailerOpts []mailer.Option
	if cfg.Mailer.BaseURL != "" {
		mailerOpts = append(mailerOpts, mailer.WithBaseURL(cfg.Mailer.BaseURL))
	}
	mailClient, err := mailer.NewClient(cfg.Mailer.APIKey, cfg.Mailer.DefaultFrom, mailerOpts...)
	if err != nil {
		logg.Error(context.Background(), "failed to create mailer", err)
		os.Exit(1)
	}

	gateways, err := buildGateways(cfg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateways", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	commitMetrics := metrics.NewCommitMetrics(registry)

	profileRepo := profiles.NewRepository(dbClient.DB())
	bookRepo := books.NewRepository(dbClient.DB())
	orderRepo := internalorders.NewRepository(dbClient.DB())
	walletRepo := wallet.NewRepository(dbClient.DB())
	feedbackRepo := feedback.NewRepository(dbClient.DB())
	notificationRepo := notifications.NewRepository(dbClient.DB())

	notifier := notify.NewFanout(mailClient, notificationRepo, logg)
	resolver := address.NewResolver(bookRepo, profileRepo, box, logg)

	notificationsSvc, err := notifications.NewService(notificationRepo)
	requireService(logg, "notifications", err)

	walletSvc, err := wallet.NewService(walletRepo, dbClient, notifier, profileRepo, logg, cfg.Payments.SellerShare)
	requireService(logg, "wallet", err)

	ordersSvc, err := internalorders.NewService(orderRepo, resolver, courierClient, notifier, logg, commitMetrics)
	requireService(logg, "orders", err)

	feedbackSvc, err := feedback.NewService(feedbackRepo, orderRepo, walletSvc, notifier, logg)
	requireService(logg, "feedback", err)

	checkoutSvc, err := checkoutsvc.NewService(orderRepo, bookRepo, profileRepo, box, gateways, checkoutsvc.Config{
		DefaultGateway:   enums.PaymentGateway(cfg.Payments.Gateway),
		PlatformFeeCents: cfg.Payments.PlatformFeeCents,
		CallbackBaseURL:  cfg.Payments.CallbackBaseURL,
		CommitDeadline:   cfg.Orders.CommitDeadline,
	}, logg)
	requireService(logg, "checkout", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Sealer:          box,
			Profiles:        profileRepo,
			Checkout:        checkoutSvc,
			Orders:          ordersSvc,
			Feedback:        feedbackSvc,
			Wallet:          walletSvc,
			Notifications:   notificationsSvc,
			MetricsGatherer: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildGateways(cfg *config.Config) ([]checkoutsvc.Gateway, error) {
	var gateways []checkoutsvc.Gateway

	if cfg.Payments.PaystackSecretKey != "" {
		var opts []paystack.Option
		if cfg.Payments.PaystackBaseURL != "" {
			opts = append(opts, paystack.WithBaseURL(cfg.Payments.PaystackBaseURL))
		}
		client, err := paystack.NewClient(cfg.Payments.PaystackSecretKey, opts...)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, checkoutsvc.NewPaystackGateway(client))
	}

	if cfg.Payments.BobPayAPIKey != "" {
		var opts []bobpay.Option
		if cfg.Payments.BobPayBaseURL != "" {
			opts = append(opts, bobpay.WithBaseURL(cfg.Payments.BobPayBaseURL))
		}
		client, err := bobpay.NewClient(cfg.Payments.BobPayAPIKey, opts...)
		if err != nil {
			return nil, err
		}
		gateways = append(gateways, checkoutsvc.NewBobPayGateway(client, cfg.Payments.CallbackBaseURL))
	}

	return gateways, nil
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	ctx := logg.WithField(context.Background(), "service", name)
	logg.Error(ctx, "failed to create service", err)
	os.Exit(1)
}
