package handler

import (
	"duel-escrow/internal/adapter/http/middleware"
	redisStore "duel-escrow/internal/adapter/storage/redis"
	"duel-escrow/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	EscrowSvc      ports.EscrowService
	WithdrawalSvc  ports.WithdrawalService
	TxRepo         ports.TransactionRepository
	RakeRepo       ports.RakeRepository
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	TokenSvc       ports.TokenService
	CallbackSecret string
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Registry       *prometheus.Registry // nil = metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.Registry != nil {
		httpMetrics := middleware.NewHTTPMetrics(deps.Registry)
		r.Use(httpMetrics.Handler())
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// Health check (deep, verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Rate limit rules
	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/challenge", rl("auth_login"), authHandler.Challenge)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
		auth.POST("/admin/login", rl("auth_login"), authHandler.AdminLogin)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)

	// --- Contract lifecycle (JWT-authenticated) ---
	escrowHandler := NewEscrowHandler(deps.EscrowSvc)
	contracts := v1.Group("/contracts", jwtAuth)
	{
		contracts.POST("", rl("contracts"), escrowHandler.Create)
		contracts.GET("", rl("contracts"), escrowHandler.ListOpen)
		contracts.GET("/:id", rl("contracts"), escrowHandler.Get)
		contracts.POST("/:id/accept", rl("contracts"), escrowHandler.Accept)
		contracts.POST("/:id/start", rl("contracts"), escrowHandler.Start)
		contracts.POST("/:id/cancel", rl("contracts"), escrowHandler.Cancel)
	}

	// --- Result callback (HMAC-authenticated, game server only) ---
	callbackAuth := middleware.CallbackAuth(deps.CallbackSecret, deps.SigSvc, deps.NonceStore, deps.Logger)
	results := v1.Group("/contracts", callbackAuth)
	{
		results.POST("/:id/result", rl("results"), escrowHandler.Complete)
	}

	// --- Wallet (JWT-authenticated) ---
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.WithdrawalSvc, deps.TxRepo)
	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", rl("wallet"), walletHandler.GetBalance)
		wallet.POST("/deposit", rl("wallet"), walletHandler.Deposit)
		wallet.GET("/transactions", rl("wallet"), walletHandler.ListTransactions)
		wallet.POST("/withdrawals", rl("withdrawals"), walletHandler.Withdraw)
		wallet.GET("/withdrawals/:id", rl("wallet"), walletHandler.GetWithdrawal)
	}

	// --- Admin (JWT-authenticated, admin claim required) ---
	adminHandler := NewAdminHandler(deps.WithdrawalSvc, deps.RakeRepo)
	admin := v1.Group("/admin", jwtAuth, middleware.AdminOnly())
	{
		admin.GET("/withdrawals", rl("admin"), adminHandler.ListWithdrawals)
		admin.POST("/withdrawals/:id/approve", rl("admin"), adminHandler.ApproveWithdrawal)
		admin.POST("/withdrawals/:id/deny", rl("admin"), adminHandler.DenyWithdrawal)
		admin.GET("/rake", rl("admin"), adminHandler.RakeTotals)
	}

	return r
}
