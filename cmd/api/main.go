package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"duel-escrow/config"
	"duel-escrow/internal/adapter/chain"
	httpHandler "duel-escrow/internal/adapter/http/handler"
	"duel-escrow/internal/adapter/oracle"
	pgStorage "duel-escrow/internal/adapter/storage/postgres"
	redisStorage "duel-escrow/internal/adapter/storage/redis"
	"duel-escrow/internal/core/ports"
	"duel-escrow/internal/service"
	"duel-escrow/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("duel-escrow", cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting duel escrow service")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	contractRepo := pgStorage.NewContractRepo(pool)
	txRepo := pgStorage.NewTransactionRepo(pool)
	withdrawalRepo := pgStorage.NewWithdrawalRepo(pool)
	rakeRepo := pgStorage.NewRakeRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	settlementCache := redisStorage.NewSettlementCache(rdb)
	priceCache := redisStorage.NewPriceCache(rdb)
	challengeStore := redisStorage.NewChallengeStore(rdb)
	nonceStore := redisStorage.NewNonceStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(registry)

	// Initialize core services
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize encryption service")
	}
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	// Price oracle: CoinGecko behind a Redis-backed TTL cache
	priceFetcher := oracle.NewCoinGeckoFetcher(cfg.Oracle.BaseURL, cfg.Oracle.Timeout)
	priceOracle := service.NewOracleService(priceFetcher, priceCache, metrics, log, cfg.Oracle.CacheTTL)

	// On-chain transferor for approved withdrawals
	transferor, err := chain.NewSolanaTransferor(cfg.Chain.RPCURL, cfg.Chain.BankPrivateKey, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize chain transferor")
	}

	minWager, err := decimal.NewFromString(cfg.Escrow.MinWagerUSD)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.Escrow.MinWagerUSD).Msg("Invalid minimum wager")
	}
	withdrawalCap, err := decimal.NewFromString(cfg.Withdrawal.CapSOL)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.Withdrawal.CapSOL).Msg("Invalid withdrawal cap")
	}

	// Initialize business services
	ledgerSvc := service.NewLedgerService(accountRepo, txRepo, rakeRepo, transactor, log)
	escrowSvc := service.NewEscrowService(contractRepo, ledgerSvc, priceOracle, settlementCache, transactor, metrics, log, minWager)
	withdrawalSvc := service.NewWithdrawalService(
		withdrawalRepo,
		accountRepo,
		ledgerSvc,
		transferor,
		encSvc,
		transactor,
		metrics,
		log,
		withdrawalCap,
		cfg.Withdrawal.Cooldown,
	)
	authSvc := service.NewAuthService(accountRepo, challengeStore, hashSvc, tokenSvc, cfg.Admin.Username, cfg.Admin.PasswordHash)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		LedgerSvc:      ledgerSvc,
		EscrowSvc:      escrowSvc,
		WithdrawalSvc:  withdrawalSvc,
		TxRepo:         txRepo,
		RakeRepo:       rakeRepo,
		SigSvc:         sigSvc,
		NonceStore:     nonceStore,
		TokenSvc:       tokenSvc,
		CallbackSecret: cfg.Callback.Secret,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Registry:       registry,
		Logger:         log,
	})

	// Stale-contract sweep: refund matches that never finished
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.Escrow.SweepEvery > 0 {
		go runStaleSweep(sweepCtx, escrowSvc, cfg.Escrow.StaleTimeout, cfg.Escrow.SweepEvery, log)
	}

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// runStaleSweep periodically expires accepted/started contracts that have
// been idle longer than olderThan, refunding both escrows.
func runStaleSweep(ctx context.Context, escrowSvc ports.EscrowService, olderThan, every time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := escrowSvc.ExpireStale(ctx, olderThan)
			if err != nil {
				log.Error().Err(err).Msg("stale contract sweep failed")
				continue
			}
			if n > 0 {
				log.Info().Int("expired", n).Msg("stale contracts refunded")
			}
		}
	}
}
