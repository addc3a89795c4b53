package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"payment-idempotency-service/internal/config"
	"payment-idempotency-service/internal/database"
	"payment-idempotency-service/internal/http/handler"
	"payment-idempotency-service/internal/observability"
	"payment-idempotency-service/internal/repository"
	"payment-idempotency-service/internal/security"
	"payment-idempotency-service/internal/service"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Server *http.Server

	janitorCancel context.CancelFunc
}

// New wires the full service: config, logger, storage, cache, coordinator,
// HTTP surface and the background janitor.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	var redisClient redis.UniversalClient
	var cache service.OutcomeCache
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		cache = service.NewRedisOutcomeCache(redisClient, "")
		logger.Info("result cache backed by redis", "addr", cfg.RedisAddr)
	} else {
		cache = service.NewInMemoryOutcomeCache()
		logger.Info("result cache is in-process; replays from other instances fall through to the record store")
	}

	var archiver service.ReceiptArchiver = service.NewNoopReceiptArchiver()
	if cfg.ReceiptArchiveEndpoint != "" {
		archiver, err = service.NewMinIOReceiptArchiver(
			cfg.ReceiptArchiveEndpoint,
			cfg.ReceiptArchiveAccessKey,
			cfg.ReceiptArchiveSecretKey,
			cfg.ReceiptArchiveBucket,
			cfg.ReceiptArchiveUseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("init receipt archiver: %w", err)
		}
	}

	records := repository.NewIdempotencyRepository(db)
	payments := repository.NewPaymentRepository(db)

	paymentService := service.NewPaymentService(payments, archiver, logger)
	coordinator := service.NewIdempotencyCoordinator(
		records,
		cache,
		paymentService,
		cfg.IdempotencyRecordTTL,
		cfg.IdempotencyCacheTTL,
		logger,
	)

	var jwtMgr *security.JWTManager
	if cfg.AuthEnabled {
		jwtMgr = security.NewJWTManager(cfg.AuthIssuer, cfg.AuthAudience, cfg.AuthSecret)
	}

	paymentHandler := handler.NewPaymentHandler(coordinator, paymentService)
	healthHandler := handler.NewHealthHandler(db, redisClient)
	router := NewRouter(cfg, paymentHandler, healthHandler, jwtMgr)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	janitor := service.NewRecordJanitor(records, cfg.CleanupInterval, cfg.CleanupBatchSize, logger)
	go janitor.Run(janitorCtx)

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		janitorCancel: janitorCancel,
	}, nil
}

// Shutdown stops the HTTP server and the background janitor.
func (a *App) Shutdown(ctx context.Context) error {
	if a.janitorCancel != nil {
		a.janitorCancel()
	}
	return a.Server.Shutdown(ctx)
}

// RunMigrationOnly applies the schema and exits; used by the migrate
// subcommand so the server never migrates implicitly.
func RunMigrationOnly() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
