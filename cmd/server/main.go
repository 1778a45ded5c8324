package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	redis "github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"

	"soul-server/internal/config"
	"soul-server/internal/engine"
	"soul-server/internal/handler"
	applogger "soul-server/internal/logger"
	"soul-server/internal/repository"
	"soul-server/internal/retry"
	"soul-server/internal/service"
	"soul-server/internal/session"
	"soul-server/pkg/ai"
)

func main() {
	// --- Configuration ---
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger Setup ---
	logger, err := applogger.New(applogger.Config{
		Level:    cfg.LogLevel,
		Encoding: "json",
	})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	zap.ReplaceGlobals(logger)
	zap.L().Info("Logger initialized", zap.String("logLevel", cfg.LogLevel))
	zap.L().Info("Configuration loaded",
		zap.Int("totalChapters", cfg.TotalChapters),
		zap.String("aiProvider", cfg.AIProvider),
		zap.String("dsn", cfg.GetMaskedDSN()))

	// --- External Connections ---
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := setupPostgres(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()
	zap.L().Info("Connected to PostgreSQL")

	if err := repository.EnsureSchema(ctx, pgPool); err != nil {
		zap.L().Fatal("Failed to ensure database schema", zap.Error(err))
	}

	redisClient, err := setupRedis(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	zap.L().Info("Connected to Redis")

	notifier := service.NewNoopNotifier()
	if cfg.NotificationsEnabled {
		mqConn, mqChannel, err := connectRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			zap.L().Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()
		defer mqChannel.Close()
		zap.L().Info("Connected to RabbitMQ")

		notifier, err = service.NewRabbitMQNotifier(mqChannel, cfg.CompletedQueueName, logger)
		if err != nil {
			zap.L().Fatal("Failed to create RabbitMQ notifier", zap.Error(err))
		}
	} else {
		zap.L().Info("Notifications disabled, using noop notifier")
	}

	// --- Prompts ---
	prompts := service.NewPromptProvider(logger)
	if err := prompts.LoadInitialPrompts(cfg.PromptsDir); err != nil {
		// Промты подмешиваются в системный промт; при их отсутствии движок
		// продолжает работать на встроенных правилах.
		zap.L().Warn("Failed to load prompt files", zap.String("dir", cfg.PromptsDir), zap.Error(err))
	}

	// --- AI Generator + Rate Limiting ---
	generator, err := ai.NewGenerator(ai.Config{
		Provider: cfg.AIProvider,
		APIKey:   cfg.AIAPIKey,
		BaseURL:  cfg.AIBaseURL,
		Model:    cfg.AIModel,
		Timeout:  cfg.AITimeout,
	})
	if err != nil {
		zap.L().Fatal("Failed to create AI generator", zap.Error(err))
	}

	limitedGenerator := service.NewLimitedGenerator(generator,
		service.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		service.NewRateLimiter(cfg.RateLimitDailyRequests, 24*time.Hour),
		logger)

	// --- Dependency Injection ---
	executor := retry.New(cfg.RetryBaseDelay, cfg.RetryMaxDelay, cfg.RetryMax, logger)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	storyEngine := engine.New(cfg.TotalChapters, limitedGenerator, executor, prompts, rng, logger)

	registry := session.NewRegistry(cfg.HistoryMaxLength, cfg.SummaryMaxLength, logger)
	snapshots := repository.NewRedisSnapshotRepository(redisClient, cfg.SessionSnapshotTTL, logger)
	results := repository.NewPostgresResultRepository(pgPool, logger)

	explorerService := service.NewExplorerService(registry, storyEngine, snapshots, results, notifier, logger)
	explorerHandler := handler.NewExplorerHandler(explorerService, logger)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(handler.ZapLogger(logger))
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)

	explorerHandler.RegisterRoutes(router)

	p := ginprometheus.NewPrometheus("gin")
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	zap.L().Info("Starting HTTP server", zap.String("port", cfg.HTTPPort))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("HTTP Server listen error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP Server forced to shutdown", zap.Error(err))
	}

	zap.L().Info("Server exiting")
}

// setupPostgres создает пул соединений PostgreSQL с повторными попытками.
func setupPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)

	const maxRetries = 10
	const retryDelay = 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		connectCtx, connectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
		connectCancel()
		if err != nil {
			lastErr = err
			zap.L().Warn("Postgres connection failed, retrying...",
				zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = pool.Ping(pingCtx)
		pingCancel()
		if err == nil {
			return pool, nil
		}

		pool.Close()
		lastErr = err
		zap.L().Warn("Postgres ping failed, retrying...",
			zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", maxRetries, lastErr)
}

// setupRedis создает клиент Redis с повторными попытками.
func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	const maxRetries = 10
	const retryDelay = 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		client := redis.NewClient(opts)

		pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := client.Ping(pingCtx).Result()
		pingCancel()
		if err == nil {
			return client, nil
		}

		client.Close()
		lastErr = err
		zap.L().Warn("Redis ping failed, retrying...",
			zap.Int("attempt", i+1), zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, lastErr)
}

// connectRabbitMQ подключается к RabbitMQ и открывает канал.
func connectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, *amqp.Channel, error) {
	const maxRetries = 10
	const retryDelay = 3 * time.Second

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		conn, err := amqp.Dial(url)
		if err != nil {
			lastErr = err
			logger.Warn("RabbitMQ connection failed, retrying...",
				zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}

		channel, err := conn.Channel()
		if err != nil {
			conn.Close()
			lastErr = err
			logger.Warn("RabbitMQ channel open failed, retrying...",
				zap.Int("attempt", i+1), zap.Error(err))
			time.Sleep(retryDelay)
			continue
		}
		return conn, channel, nil
	}
	return nil, nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", maxRetries, lastErr)
}
