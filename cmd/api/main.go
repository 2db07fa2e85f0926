package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"currency-conversion-service/config"
	httpHandler "currency-conversion-service/internal/adapter/http/handler"
	"currency-conversion-service/internal/adapter/http/middleware"
	"currency-conversion-service/internal/adapter/messaging/kafka"
	"currency-conversion-service/internal/adapter/messaging/logsink"
	"currency-conversion-service/internal/adapter/messaging/rabbitmq"
	memStorage "currency-conversion-service/internal/adapter/storage/memory"
	pgStorage "currency-conversion-service/internal/adapter/storage/postgres"
	redisStorage "currency-conversion-service/internal/adapter/storage/redis"
	"currency-conversion-service/internal/adapter/venue"
	"currency-conversion-service/internal/core/ports"
	"currency-conversion-service/internal/service"
	"currency-conversion-service/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// quoteRetention keeps expired quotes around long enough to be reported
// as expired instead of unknown.
const quoteRetention = 5 * time.Minute

// storage bundles the repositories of one storage driver.
type storage struct {
	accounts   ports.AccountRepository
	outbox     ports.OutboxRepository
	payments   ports.PaymentRepository
	audit      ports.AuditRepository
	transactor ports.DBTransactor
	checkers   []ports.HealthChecker
	close      func()
}

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CCS_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("database_driver", cfg.Database.Driver).
		Str("outbox_sink", cfg.Outbox.Sink).
		Msg("Starting Currency Conversion Service")

	ctx := context.Background()

	store, err := openStorage(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise storage")
	}
	defer store.close()

	// Redis is optional: without it payments skip the idempotency fast path
	// and rate limiting is off.
	var rdb *goredis.Client
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()
		store.checkers = append(store.checkers, redisStorage.NewHealthCheck(rdb))
	}

	// Venue
	var quotes ports.QuoteStore = memStorage.NewQuoteStore(quoteRetention)
	if cfg.Venue.QuoteStore == "redis" {
		quotes = redisStorage.NewQuoteStore(rdb, quoteRetention)
	}
	simVenue := venue.NewSimulated(cfg.Venue, quotes, log)

	// Event stream sink
	producer, sinkHealth, err := openProducer(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise event stream producer")
	}
	if sinkHealth != nil {
		store.checkers = append(store.checkers, sinkHealth)
	}

	// Initialize business services
	var idempCache ports.IdempotencyCache
	if rdb != nil {
		idempCache = redisStorage.NewIdempotencyCache(rdb)
	}
	conversionSvc := service.NewConversionService(store.accounts, store.outbox, simVenue, store.transactor, cfg.Venue.Timeout, log)
	accountSvc := service.NewAccountService(store.accounts, log)
	paymentSvc := service.NewPaymentService(store.payments, store.outbox, idempCache, store.transactor, log)
	auditSvc := service.NewAuditService(store.audit, log)
	publisher := service.NewOutboxPublisher(store.outbox, producer, cfg.Outbox, log)

	var tokenSvc ports.TokenService
	if cfg.Auth.Enabled {
		tokenSvc = service.NewJWTTokenService(cfg.Auth.Secret, cfg.Auth.Expiry, cfg.Auth.Issuer)
	}

	var rateLimitStore *redisStorage.RateLimitStore
	if cfg.RateLimit.Enabled && rdb != nil {
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Venue:          simVenue,
		VenueTimeout:   cfg.Venue.Timeout,
		ConversionSvc:  conversionSvc,
		AccountSvc:     accountSvc,
		PaymentSvc:     paymentSvc,
		OutboxMonitor:  publisher,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		ConversionRule: middleware.RateLimitRule{Limit: cfg.RateLimit.Limit, Window: cfg.RateLimit.Window},
		HealthCheckers: store.checkers,
		AuditSvc:       auditSvc,
		Logger:         log,
	})

	// Outbox publisher runs until shutdown.
	pubCtx, stopPublisher := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		publisher.Run(pubCtx)
	}()

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	stopPublisher()
	wg.Wait()
	if err := producer.Close(); err != nil {
		log.Error().Err(err).Msg("Closing event stream producer failed")
	}

	log.Info().Msg("Server exited")
}

// openStorage wires the repositories for the configured driver.
func openStorage(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*storage, error) {
	if cfg.Driver == config.DriverMemory {
		log.Warn().Msg("Using in-memory storage; data is lost on restart")
		return &storage{
			accounts:   memStorage.NewAccountRepo(),
			outbox:     memStorage.NewOutboxRepo(),
			payments:   memStorage.NewPaymentRepo(),
			audit:      memStorage.NewAuditRepo(),
			transactor: memStorage.NewTransactor(),
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	log.Info().Msg("PostgreSQL connected")

	return &storage{
		accounts:   pgStorage.NewAccountRepo(pool),
		outbox:     pgStorage.NewOutboxRepo(pool),
		payments:   pgStorage.NewPaymentRepo(pool),
		audit:      pgStorage.NewAuditRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		checkers:   []ports.HealthChecker{pgStorage.NewHealthCheck(pool)},
		close:      pool.Close,
	}, nil
}

// openProducer builds the configured outbox sink and, for brokers, its
// health checker.
func openProducer(cfg *config.Config, log zerolog.Logger) (ports.EventProducer, ports.HealthChecker, error) {
	switch cfg.Outbox.Sink {
	case config.SinkKafka:
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing outbox events to Kafka")
		return kafka.NewProducer(cfg.Kafka), kafka.NewHealthCheck(cfg.Kafka.Brokers), nil
	case config.SinkRabbitMQ:
		p, err := rabbitmq.NewProducer(cfg.RabbitMQ)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("exchange", cfg.RabbitMQ.Exchange).Msg("Publishing outbox events to RabbitMQ")
		return p, rabbitmq.NewHealthCheck(cfg.RabbitMQ.URL), nil
	default:
		log.Warn().Msg("Outbox events are written to the log only")
		return logsink.NewProducer(log), nil, nil
	}
}
