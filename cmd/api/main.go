package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-custody-gateway/config"
	"solana-custody-gateway/internal/adapter/chain"
	"solana-custody-gateway/internal/adapter/helius"
	httpHandler "solana-custody-gateway/internal/adapter/http/handler"
	"solana-custody-gateway/internal/adapter/http/middleware"
	pgStorage "solana-custody-gateway/internal/adapter/storage/postgres"
	redisStorage "solana-custody-gateway/internal/adapter/storage/redis"
	"solana-custody-gateway/internal/core/ports"
	"solana-custody-gateway/internal/metrics"
	"solana-custody-gateway/internal/service"
	"solana-custody-gateway/pkg/logger"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load(os.Getenv("CGW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Pretty:  cfg.Log.Pretty,
		Service: "custody-gateway",
		Caller:  true,
	})

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Solana custody gateway")

	ctx := context.Background()
	clk := clock.NewDefaultClock()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// PostgreSQL
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if !cfg.Database.SkipMigrations {
		if err := pgStorage.Migrate(pool, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Redis
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Solana RPC
	chainClient := chain.NewClient(chain.Config{
		RPCURL:            cfg.Solana.RPCURL,
		RequestsPerSecond: cfg.Solana.RequestsPerSecond,
		Burst:             cfg.Solana.Burst,
		Timeout:           cfg.Solana.Timeout,
	}, m, log)

	// Repositories
	paymentRepo := pgStorage.NewPaymentRepo(pool)
	addressRepo := pgStorage.NewAddressRepo(pool)
	sweepRepo := pgStorage.NewSweepRepo(pool)
	keyPartRepo := pgStorage.NewKeyPartRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)

	// Redis stores
	fragments := redisStorage.NewFragmentStore(rdb)
	correlation := redisStorage.NewCorrelationIndex(rdb)
	deduper := redisStorage.NewTransferDeduper(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb, clk)

	// Core services
	cipher := service.NewAESCipher(cfg.Encryption.Secret)
	sigSvc := service.NewHMACSignatureService()

	var watcher ports.AddressWatcher
	if cfg.Helius.APIKey != "" && cfg.Helius.WebhookID != "" {
		watcher = helius.NewClient(cfg.Helius.BaseURL, cfg.Helius.APIKey, cfg.Helius.WebhookID,
			&http.Client{Timeout: 15 * time.Second}, logger.Component(log, "helius"))
	} else {
		log.Warn().Msg("Helius webhook not configured, new addresses rely on the polling monitor")
	}

	threshold, err := cfg.Sweep.ThresholdLamports()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid sweep threshold")
	}

	custodySvc := service.NewKeyCustodyService(cipher, keyPartRepo, fragments, clk, log)
	addressSvc := service.NewAddressService(custodySvc, addressRepo, watcher, clk, log)
	paymentSvc := service.NewPaymentService(paymentRepo, addressRepo, addressSvc, correlation, chainClient, m, clk, log)
	sweepSvc := service.NewSweepService(service.SweepConfig{
		ColdWallet:      cfg.Sweep.ColdWallet,
		FeeReserve:      cfg.Sweep.FeeReserve,
		SendRetries:     cfg.Sweep.SendRetries,
		RetryInterval:   cfg.Sweep.RetryInterval,
		ConfirmAttempts: cfg.Sweep.ConfirmAttempts,
		ConfirmInterval: cfg.Sweep.ConfirmInterval,
	}, custodySvc, chainClient, addressRepo, sweepRepo, m, clk, log)

	var notifier ports.Notifier
	var notifySvc *service.NotificationService
	if cfg.Notify.URL != "" {
		notifySvc = service.NewNotificationService(service.NotificationConfig{
			URL:    cfg.Notify.URL,
			Secret: cfg.Notify.Secret,
		}, sigSvc, &http.Client{Timeout: cfg.Notify.Timeout}, clk, log)
		notifier = notifySvc
	}

	processor := service.NewWebhookProcessor(paymentSvc, paymentRepo, addressRepo, sweepSvc,
		chainClient, deduper, correlation, notifier, threshold, m, log)
	reportingSvc := service.NewReportingService(paymentRepo, sweepRepo, clk)
	auditSvc := service.NewAuditService(auditRepo, log)

	var monitor ports.PaymentMonitor
	var monitorSvc *service.MonitorService
	if cfg.Monitor.Enabled {
		monitorSvc = service.NewMonitorService(service.MonitorConfig{
			PollInterval: cfg.Monitor.PollInterval,
			Expiry:       cfg.Monitor.Expiry,
		}, paymentSvc, sweepSvc, chainClient, clk, log)
		if err := monitorSvc.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start payment monitor")
		}
		monitor = monitorSvc
	}

	// Operator auth
	var authSvc ports.OperatorAuthService
	var tokenSvc ports.TokenService
	if len(cfg.Operators) > 0 {
		jwtSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
		opAuth, err := service.NewOperatorAuthService(cfg.Operators, service.NewArgon2HashService(service.DefaultArgon2Params), jwtSvc, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize operator auth")
		}
		authSvc, tokenSvc = opAuth, jwtSvc
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		PaymentSvc:     paymentSvc,
		Processor:      processor,
		Custody:        custodySvc,
		SweepSvc:       sweepSvc,
		AddressSvc:     addressSvc,
		ReportingSvc:   reportingSvc,
		AuthSvc:        authSvc,
		TokenSvc:       tokenSvc,
		Monitor:        monitor,
		AuditSvc:       auditSvc,
		RateLimitStore: rateLimitStore,
		PublicRate: middleware.RateLimitRule{
			Limit:  int64(cfg.RateLimit.Requests),
			Window: cfg.RateLimit.Window,
		},
		WebhookSecret: cfg.Helius.WebhookSecret,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		HealthCheckers: []ports.HealthChecker{
			ports.Check("postgresql", pool.Ping),
			ports.Check("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
			chainClient,
		},
		Gatherer: reg,
		Logger:   log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	if monitorSvc != nil {
		if err := monitorSvc.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop payment monitor")
		}
	}
	if notifySvc != nil {
		notifySvc.Close()
	}
	auditSvc.Wait()

	log.Info().Msg("Server exited gracefully")
}
