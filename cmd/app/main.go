package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lms-payments/internal/config"
	"lms-payments/internal/domain/ports/repository"
	"lms-payments/internal/infra/broker/rabbit"
	"lms-payments/internal/infra/catalog"
	pg "lms-payments/internal/infra/db/postgres"
	stripegw "lms-payments/internal/infra/gateway/stripe"
	"lms-payments/internal/infra/logging"
	"lms-payments/internal/infra/metrics"
	red "lms-payments/internal/infra/redis"
	"lms-payments/internal/infra/sched"
	"lms-payments/internal/infra/web"
	"lms-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Repositories ----
	transactionRepo := pg.NewTransactionRepo(pool)
	pendingItemRepo := pg.NewPendingItemRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	subscriptionRepo := pg.NewSubscriptionRepo(pool)
	renewalRepo := pg.NewRenewalRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	outboxRepo := pg.NewOutboxRepo(pool)

	planRepo := pg.NewPlanRepo(pool)
	var plans repository.SubscriptionPlanRepository = planRepo

	// ---- Redis plan cache (optional) ----
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, plan cache disabled")
		} else {
			defer redisClient.Close()
			plans = pg.NewPlanRepoCacheDecorator(planRepo, redisClient)
		}
	}

	// ---- Adapters ----
	gateway := stripegw.NewGateway(&cfg.Gateway)
	decoder := stripegw.NewWebhookDecoder(cfg.Gateway.WebhookSecret)
	courseCatalog := catalog.NewClient(&cfg.Catalog, logger)

	publisher, err := rabbit.NewPublisher(cfg.Broker.URL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("rabbitmq")
	}
	defer publisher.Close()

	// ---- Use cases ----
	purchaseUC := usecase.NewPurchaseUseCase(
		transactionRepo, pendingItemRepo, purchaseRepo, outboxRepo,
		courseCatalog, gateway, tm, "usd", logger)
	subscriptionUC := usecase.NewSubscriptionUseCase(
		plans, subscriptionRepo, renewalRepo, transactionRepo, userRepo,
		outboxRepo, gateway, tm, logger)
	webhookUC := usecase.NewWebhookUseCase(purchaseUC, subscriptionUC, logger)
	revenueUC := usecase.NewRevenueUseCase(transactionRepo, cfg.Revenue.PlatformCutRate, logger)

	// ---- Outbox relay ----
	relay := sched.NewOutboxRelay(
		cfg.Outbox.PollInterval, cfg.Outbox.BatchSize,
		outboxRepo, publisher, tm, logger)
	go func() { _ = relay.Run(ctx) }()

	// ---- Stale payment reconciler ----
	reconciler := sched.NewPaymentReconciler(
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.ExpireAfter,
		transactionRepo, pendingItemRepo, purchaseUC, gateway, logger)
	go func() { _ = reconciler.Run(ctx) }()

	// ---- HTTP ----
	server := web.NewServer(cfg, purchaseUC, subscriptionUC, webhookUC, revenueUC,
		decoder, plans, purchaseRepo, renewalRepo, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
