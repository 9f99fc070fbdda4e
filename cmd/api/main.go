package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/unipay-app/unipay-backend/api/routes"
	"github.com/unipay-app/unipay-backend/internal/ledger"
	"github.com/unipay-app/unipay-backend/internal/payments"
	"github.com/unipay-app/unipay-backend/internal/scheduler"
	"github.com/unipay-app/unipay-backend/internal/subscriptions"
	"github.com/unipay-app/unipay-backend/internal/wallet"
	"github.com/unipay-app/unipay-backend/internal/webhooks/provider"
	"github.com/unipay-app/unipay-backend/pkg/config"
	"github.com/unipay-app/unipay-backend/pkg/db"
	"github.com/unipay-app/unipay-backend/pkg/logger"
	"github.com/unipay-app/unipay-backend/pkg/migrate"
	"github.com/unipay-app/unipay-backend/pkg/redis"
)

const (
	webhookIdempotencyTTL = 24 * time.Hour
	shutdownTimeout       = 15 * time.Second
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

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	walletRepo := wallet.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	subscriptionsRepo := subscriptions.NewRepository(dbClient.DB())

	schedulerService, err := scheduler.NewService(scheduler.ServiceParams{
		Subscriptions: subscriptionsRepo,
		Ledger:        ledgerRepo,
		Tx:            dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	paymentsService, err := payments.NewService(payments.ServiceParams{
		Wallets:       walletRepo,
		Ledger:        ledgerRepo,
		Subscriptions: subscriptionsRepo,
		Scheduler:     schedulerService,
		Tx:            dbClient,
		Logger:        logg,
		Topup:         cfg.Topup,
		Billing:       cfg.Billing,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	providerWebhookService, err := provider.NewService(provider.ServiceParams{
		Payments: paymentsService,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create provider webhook service", err)
		os.Exit(1)
	}

	providerWebhookGuard, err := provider.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "provider-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     id,
		"provider_env": cfg.Provider.Environment(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			schedulerService,
			providerWebhookService,
			providerWebhookGuard,
		),
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-signalCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}
