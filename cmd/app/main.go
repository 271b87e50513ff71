package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"giveaway-engine-backend/internal/common/config"
	"giveaway-engine-backend/internal/common/logger"
	"giveaway-engine-backend/internal/common/middleware"
	giveawayhttp "giveaway-engine-backend/internal/features/giveaway/delivery/http"
	giveawayrepo "giveaway-engine-backend/internal/features/giveaway/repository/postgres"
	giveawaycache "giveaway-engine-backend/internal/features/giveaway/repository/redis"
	giveawayservice "giveaway-engine-backend/internal/features/giveaway/service"
	"giveaway-engine-backend/internal/platform/postgres"
	"giveaway-engine-backend/internal/platform/redis"
	"giveaway-engine-backend/internal/platform/telegram"
	"giveaway-engine-backend/internal/service/notifications"
)

func main() {
	cfg := config.Load()
	logger.Init("giveaway-engine-backend", cfg.Debug)

	postgresClient, err := postgres.NewClient(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer postgresClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	redisClient, err := redis.OpenFromConfig(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisClient.Close()

	repo := giveawayrepo.NewPostgresRepository(postgresClient.GetDB())
	cache := giveawaycache.NewCache(redisClient)

	telegramClient := telegram.NewClient(cfg.Telegram.BotToken)
	notifier := notifications.NewService(telegramClient, repo, cfg.Notifications.QueueSize, cfg.Telegram.MessagesPerSecond)
	notifier.Start()
	defer notifier.Stop()

	completion := giveawayservice.NewCompletionService(repo, cache, notifier, giveawayservice.CompletionServiceConfig{
		Interval:          cfg.Scheduler.Interval,
		MaxConcurrent:     cfg.Scheduler.MaxConcurrent,
		CompletionTimeout: cfg.Scheduler.CompletionTimeout,
	})
	completion.Start()
	defer completion.Stop()

	giveawaySvc := giveawayservice.NewGiveawayService(repo, cache, completion)

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorHandler())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept", "init_data"}
	router.Use(cors.New(corsConfig))

	v1 := router.Group("/api/v1")
	v1.Use(middleware.TelegramInitDataMiddleware(cfg.Telegram.BotToken))
	v1.Use(middleware.RequireAuth())
	giveawayhttp.NewGiveawayHandler(giveawaySvc).RegisterRoutes(v1)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "giveaway-engine-backend",
		})
	})

	router.GET("/live", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := postgresClient.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "postgres unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready", "error": "redis unavailable"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited")
}
