// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"donation-service/config"
	"donation-service/internal/events"
	"donation-service/internal/handler"
	"donation-service/internal/provider/mpesa"
	"donation-service/internal/receipt"
	"donation-service/internal/repository"
	"donation-service/internal/router"
	"donation-service/internal/usecase"
	"donation-service/pkg/client"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newLogger() (*zap.Logger, error) {
	if strings.EqualFold(os.Getenv("ENVIRONMENT"), "development") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	// Initialize logger
	logger, err := newLogger()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting donation service")

	// Load configuration
	cfg, err := config.Load(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Server.Env),
		zap.String("port", cfg.Server.Port),
		zap.String("mpesa_environment", cfg.Mpesa.Environment))

	// Connect to database
	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStart()

	dbPool, err := pgxpool.New(startCtx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	if err := dbPool.Ping(startCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	if err := repository.EnsureSchema(startCtx, dbPool); err != nil {
		logger.Fatal("failed to prepare schema", zap.Error(err))
	}
	logger.Info("connected to database")

	// Rate limiter: shared through Redis when configured
	var limiter router.Limiter = router.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(startCtx).Err(); err != nil {
			logger.Warn("redis unreachable, rate limiter will fail open until it recovers", zap.Error(err))
		}
		limiter = router.NewRedisLimiter(rdb, cfg.RateLimit.Max, cfg.RateLimit.Window)
		logger.Info("using redis rate limiter", zap.String("addr", cfg.Redis.Addr()))
	}

	// Donation events
	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Kafka.Enabled() {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka), logger)
		logger.Info("publishing donation events",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	}
	defer publisher.Close()

	// Initialize providers and clients
	mpesaProvider := mpesa.NewMpesaProvider(cfg.Mpesa, logger)
	smsSender := client.NewSMSSender(cfg.SMS, logger)

	receipts, err := receipt.NewGenerator(cfg.Receipts, logger)
	if err != nil {
		logger.Fatal("failed to prepare receipts directory", zap.Error(err))
	}

	// Initialize repositories and usecases
	donationRepo := repository.NewDonationRepository(dbPool)

	donationUC := usecase.NewDonationUsecase(mpesaProvider, logger)
	callbackUC := usecase.NewCallbackUsecase(
		donationRepo,
		receipts,
		smsSender,
		publisher,
		usecase.CallbackSettings{
			PublicBaseURL:  cfg.Receipts.PublicBaseURL,
			ReceiptTimeout: cfg.Receipts.Timeout,
			SMSTimeout:     cfg.SMS.Timeout,
			EventTimeout:   cfg.Kafka.Timeout,
		},
		logger,
	)

	// Setup routes
	r := router.SetupRoutes(router.Deps{
		DonationHandler: handler.NewDonationHandler(donationUC, logger),
		CallbackHandler: handler.NewCallbackHandler(callbackUC, logger),
		Health:          handler.Health(dbPool),
		Limiter:         limiter,
		ReceiptsDir:     receipts.Dir(),
		Callback:        cfg.Callback,
		CORS:            cfg.CORS,
		TrustedProxies:  cfg.Server.TrustedProxies,
	}, logger)

	// Create HTTP server; writes may wait on the gateway and on side effects
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
