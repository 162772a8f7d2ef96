package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpAdapter "github.com/storefront-labs/notify-relay/internal/adapters/primary/http"
	mw "github.com/storefront-labs/notify-relay/internal/adapters/primary/http/middleware"
	wsAdapter "github.com/storefront-labs/notify-relay/internal/adapters/primary/websocket"
	kafkaAdapter "github.com/storefront-labs/notify-relay/internal/adapters/secondary/kafka"
	"github.com/storefront-labs/notify-relay/internal/adapters/secondary/postgres"
	"github.com/storefront-labs/notify-relay/internal/auth"
	"github.com/storefront-labs/notify-relay/internal/config"
	"github.com/storefront-labs/notify-relay/internal/core/domain"
	"github.com/storefront-labs/notify-relay/internal/core/services"
	"github.com/storefront-labs/notify-relay/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting relay",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	// 3. Initialize Database Pool
	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("database ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("database connection established")

	// 4. Initialize Security & Real-time Components
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret)
	registry := wsAdapter.NewRegistry(logger)
	hub := wsAdapter.NewHub(registry, logger)

	// 5. Initialize Rate Limiter
	var rateLimiter *mw.RateLimiter
	if cfg.RateLimit.Enabled {
		rateLimiter = mw.NewRateLimiter(mw.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.BurstSize,
			CleanupInterval:   time.Minute,
			TTL:               3 * time.Minute,
		})
	}

	// 6. Dependency Injection (Wiring the Hexagon)
	errorHandler := httpAdapter.NewErrorHandler(logger)

	// Repositories (Secondary Adapters)
	notificationRepo := postgres.NewNotificationRepository(pool)
	txManager := postgres.NewTxManager(pool)

	// Services (Core)
	notificationService := services.NewNotificationService(notificationRepo, txManager, hub)

	// Handlers (Primary Adapters)
	notificationHandler := httpAdapter.NewNotificationHandler(notificationService, errorHandler, logger)
	wsHandler := httpAdapter.NewWebSocketHandler(hub, cfg, logger)
	healthHandler := httpAdapter.NewHealthHandler(pool, hub, cfg.App.Version)

	// 7. Kafka ingress (optional)
	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	if cfg.Kafka.Enabled {
		consumers := []*kafkaAdapter.OrderEventConsumer{
			kafkaAdapter.NewOrderEventConsumer(kafkaAdapter.ConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID,
				Topic:   cfg.Kafka.OrderCreatedTopic,
				Kind:    domain.EventNewOrder,
			}, hub, logger),
			kafkaAdapter.NewOrderEventConsumer(kafkaAdapter.ConsumerConfig{
				Brokers: cfg.Kafka.Brokers,
				GroupID: cfg.Kafka.GroupID,
				Topic:   cfg.Kafka.OrderStatusTopic,
				Kind:    domain.EventOrderStatusUpdated,
			}, hub, logger),
		}

		for _, c := range consumers {
			consumer := c
			defer func() { _ = consumer.Close() }()
			go func() {
				if err := consumer.Run(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("kafka consumer stopped", "error", err)
				}
			}()
		}
		logger.Info("kafka ingress enabled", "brokers", cfg.Kafka.Brokers)
	}

	// 8. Setup Router
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(httpAdapter.MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.WebSocket.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if rateLimiter != nil {
		r.Use(rateLimiter.Middleware)
	}

	// Health and metrics endpoints (outside /api/v1 for standard probe paths)
	healthHandler.RegisterRoutes(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// WebSocket endpoint (identity is announced over the socket)
	r.Get("/ws", wsHandler.ServeHTTP)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw.JWTMiddleware(tokenManager))
			r.Route("/notifications", notificationHandler.RegisterRoutes)
		})
	})

	// 9. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	// Stop the Kafka consumers before closing the listener
	stopConsumers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
