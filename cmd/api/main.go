package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/adjeibohyen/tutorhub-backend/api/routes"
	"github.com/adjeibohyen/tutorhub-backend/internal/access"
	"github.com/adjeibohyen/tutorhub-backend/internal/auth"
	"github.com/adjeibohyen/tutorhub-backend/internal/ledger"
	"github.com/adjeibohyen/tutorhub-backend/internal/payments"
	"github.com/adjeibohyen/tutorhub-backend/internal/reconcile"
	"github.com/adjeibohyen/tutorhub-backend/internal/users"
	"github.com/adjeibohyen/tutorhub-backend/internal/videos"
	"github.com/adjeibohyen/tutorhub-backend/pkg/config"
	"github.com/adjeibohyen/tutorhub-backend/pkg/db"
	"github.com/adjeibohyen/tutorhub-backend/pkg/logger"
	"github.com/adjeibohyen/tutorhub-backend/pkg/metrics"
	"github.com/adjeibohyen/tutorhub-backend/pkg/migrate"
	"github.com/adjeibohyen/tutorhub-backend/pkg/paystack"
	"github.com/adjeibohyen/tutorhub-backend/pkg/redis"
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paystackClient, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	userRepo := users.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	catalogRepo := videos.NewRepository(dbClient.DB())

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	resolver, err := access.NewResolver(access.ResolverParams{Ledger: ledgerRepo})
	if err != nil {
		logg.Error(context.Background(), "failed to create access resolver", err)
		os.Exit(1)
	}

	videoService, err := videos.NewService(videos.ServiceParams{
		Catalog:  catalogRepo,
		Ledger:   ledgerRepo,
		Resolver: resolver,
		TxRunner: dbClient,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create video service", err)
		os.Exit(1)
	}

	paymentService, err := payments.NewService(payments.ServiceParams{
		Ledger:         ledgerRepo,
		Catalog:        catalogRepo,
		Gateway:        paystackClient,
		PaystackConfig: cfg.Paystack,
		AppBaseURL:     cfg.App.BaseURL,
		Logger:         logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}

	reconcileEngine, err := reconcile.NewService(reconcile.ServiceParams{
		Ledger:  ledgerRepo,
		Users:   userRepo,
		Gateway: paystackClient,
		Metrics: reconcileMetrics,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile engine", err)
		os.Exit(1)
	}

	webhookGuard, err := reconcile.NewIdempotencyGuard(redisClient, cfg.Paystack.WebhookGuardTTL, reconcile.GuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"paystack_env": cfg.Paystack.KeyMode(),
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			registry,
			authService,
			videoService,
			paymentService,
			reconcileEngine,
			paystackClient,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
