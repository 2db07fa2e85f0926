package handler

import (
	"time"

	"currency-conversion-service/internal/adapter/http/middleware"
	redisStore "currency-conversion-service/internal/adapter/storage/redis"
	"currency-conversion-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Venue          ports.Venue
	VenueTimeout   time.Duration
	ConversionSvc  ports.ConversionService
	AccountSvc     ports.AccountService
	PaymentSvc     ports.PaymentService
	OutboxMonitor  ports.OutboxMonitor
	TokenSvc       ports.TokenService         // nil = bearer auth disabled
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	ConversionRule middleware.RateLimitRule
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService // nil = audit logging disabled
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	// Health check (deep: storage, redis, event stream)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// Swagger documentation
	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules(deps.ConversionRule)

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

	var userAuth gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if deps.TokenSvc != nil {
		userAuth = middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Venue (public) ---
	venueHandler := NewVenueHandler(deps.Venue, deps.VenueTimeout)
	venue := v1.Group("/venue")
	{
		venue.POST("/quotes", rl("venue"), venueHandler.Quote)
		venue.POST("/trades", rl("venue"), venueHandler.Trade)
	}

	// --- User routes (bearer auth when enabled) ---
	accountHandler := NewAccountHandler(deps.AccountSvc)
	accounts := v1.Group("/accounts", userAuth)
	{
		accounts.POST("", rl("accounts"), accountHandler.Open)
		accounts.GET("/:user_id", rl("accounts"), accountHandler.Get)
	}

	conversionHandler := NewConversionHandler(deps.ConversionSvc)
	v1.POST("/conversions", userAuth, rl("conversions"), conversionHandler.Convert)

	paymentHandler := NewPaymentHandler(deps.PaymentSvc)
	payments := v1.Group("/payments", userAuth)
	{
		payments.POST("", rl("payments"), paymentHandler.Create)
		payments.GET("/:id", rl("payments"), paymentHandler.Get)
		payments.PATCH("/:id/status", rl("payments"), paymentHandler.UpdateStatus)
	}

	// --- Operations ---
	outboxHandler := NewOutboxHandler(deps.OutboxMonitor)
	v1.GET("/outbox/pending", outboxHandler.Pending)

	return r
}
