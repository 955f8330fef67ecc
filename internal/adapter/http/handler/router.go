package handler

import (
	"solana-custody-gateway/internal/adapter/http/middleware"
	redisStore "solana-custody-gateway/internal/adapter/storage/redis"
	"solana-custody-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// defaultMaxBodyBytes applies when RouterDeps.MaxBodyBytes is zero.
const defaultMaxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	PaymentSvc     ports.PaymentService
	Processor      ports.WebhookProcessor
	Custody        ports.KeyCustodyService
	SweepSvc       ports.SweepService
	AddressSvc     ports.AddressService
	ReportingSvc   ports.ReportingService
	AuthSvc        ports.OperatorAuthService // nil = operator routes disabled
	TokenSvc       ports.TokenService
	Monitor        ports.PaymentMonitor         // nil = webhook-only settlement
	AuditSvc       ports.AuditService           // nil = audit logging disabled
	RateLimitStore *redisStore.RateLimitStore   // nil = rate limiting disabled
	PublicRate     middleware.RateLimitRule
	WebhookSecret  string
	MaxBodyBytes   int64
	HealthCheckers []ports.HealthChecker
	Gatherer       prometheus.Gatherer // nil = /metrics disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/health/live", Liveness)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules(deps.PublicRate)

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

	v1 := r.Group("/api/v1")

	// --- Public payment routes ---
	paymentHandler := NewPaymentHandler(deps.PaymentSvc, deps.Monitor, deps.Logger)
	payments := v1.Group("/payments")
	{
		payments.POST("", rl("payments"), paymentHandler.Create)
		payments.GET("/:id", rl("status"), paymentHandler.Get)
		payments.GET("/status/:address", rl("status"), paymentHandler.Status)
	}

	// --- Helius ingestion (shared secret, never rate limited) ---
	webhookHandler := NewWebhookHandler(deps.Processor, deps.Logger)
	v1.POST("/webhooks/helius", middleware.WebhookSecret(deps.WebhookSecret, deps.Logger), webhookHandler.Helius)

	if deps.AuthSvc == nil || deps.TokenSvc == nil {
		deps.Logger.Warn().Msg("no operators configured, admin routes disabled")
		return r
	}

	// --- Operator routes (JWT) ---
	operatorHandler := NewOperatorHandler(deps.AuthSvc)
	v1.POST("/auth/login", rl("auth_login"), operatorHandler.Login)

	adminMW := []gin.HandlerFunc{middleware.JWTAuth(deps.TokenSvc, deps.Logger)}
	if deps.AuditSvc != nil {
		adminMW = append(adminMW, middleware.AuditLog(deps.AuditSvc))
	}

	adminHandler := NewAdminHandler(AdminDeps{
		Custody:   deps.Custody,
		Sweeper:   deps.SweepSvc,
		Payments:  deps.PaymentSvc,
		Addresses: deps.AddressSvc,
		Reporting: deps.ReportingSvc,
		Monitor:   deps.Monitor,
	})
	admin := v1.Group("/admin", adminMW...)
	{
		admin.POST("/master-key", rl("admin"), adminHandler.ProvisionMasterKey)
		admin.GET("/master-key", rl("admin"), adminHandler.GetMasterKey)
		admin.GET("/sweeps", rl("admin"), adminHandler.ListSweeps)
		admin.POST("/sweeps/:address", rl("admin_sweep"), adminHandler.Sweep)
		admin.POST("/payments/:id/cancel", rl("admin"), adminHandler.CancelPayment)
		admin.POST("/addresses/:address/deactivate", rl("admin"), adminHandler.DeactivateAddress)
		admin.GET("/stats", rl("admin"), adminHandler.Stats)
	}

	return r
}
