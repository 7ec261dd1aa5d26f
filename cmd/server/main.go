package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/api"
	"github.com/Martins1-1/logsonlinee-sub000/internal/config"
	"github.com/Martins1-1/logsonlinee-sub000/internal/handler"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/auth"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/ercaspay"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/kafka"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/Martins1-1/logsonlinee-sub000/internal/observability"
	"github.com/Martins1-1/logsonlinee-sub000/internal/repository/postgres"
	service "github.com/Martins1-1/logsonlinee-sub000/internal/services"
	"go.uber.org/zap"
)

func main() {
	cfg, envErr := config.Load()

	shutdown := observability.Setup("legitstore", cfg)
	defer shutdown(context.Background())

	if envErr != nil {
		zap.S().Warnw("failed to load .env file, using environment and defaults", "error", envErr)
	}
	zap.S().Infow("config loaded", "http_addr", cfg.HTTPAddr, "redis_addr", cfg.RedisAddr, "kafka_brokers", cfg.KafkaBrokers, "ercaspay_base_url", cfg.Ercaspay.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(ctx, postgres.Config{
		DSN:          cfg.PostgresDSN,
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		zap.S().Fatalw("failed to connect to Postgres", "error", err)
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		zap.S().Fatalw("failed to apply migrations", "error", err)
	}

	redisClient, err := redis.NewClient(ctx, cfg.RedisAddr)
	if err != nil {
		zap.S().Fatalw("failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()

	producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, "legitstore-cache", redisClient)
	defer consumer.Close()
	go consumer.Consume(ctx)

	gateway := ercaspay.NewClient(ercaspay.Config{
		BaseURL:   cfg.Ercaspay.BaseURL,
		SecretKey: cfg.Ercaspay.SecretKey,
		Timeout:   cfg.Ercaspay.Timeout,
	})
	jwtService := auth.NewJWTService(cfg.JWTSecret, auth.DefaultTokenTTL)

	userRepo := postgres.NewPostgresUserRepository(db)
	paymentRepo := postgres.NewPostgresPaymentRepository(db)
	productRepo := postgres.NewPostgresProductRepository(db)
	orderRepo := postgres.NewPostgresOrderRepository(db)

	creditor := service.NewWalletCreditor(gateway, paymentRepo, userRepo, redisClient, producer, cfg.Ercaspay.Timeout)
	payments := service.NewPaymentService(creditor, gateway, paymentRepo, userRepo, cfg.TopUp.MaxAmount, cfg.TopUp.RedirectURL)
	store := service.NewStoreService(userRepo, productRepo, orderRepo, redisClient, producer, jwtService)

	router := api.SetupRouter(handler.NewHandler(store, payments), redisClient, jwtService, map[string]api.HealthCheck{
		"postgres": db.PingContext,
		"redis":    redisClient.Ping,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.S().Infow("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.S().Errorw("server shutdown failed", "error", err)
		os.Exit(1)
	}
	zap.S().Infow("server stopped")
}
