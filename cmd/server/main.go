package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pool_chat/internal/config"
	"pool_chat/internal/handler"
	"pool_chat/internal/middleware"
	"pool_chat/internal/repository"
	"pool_chat/internal/service"
	"pool_chat/internal/store"
	"pool_chat/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	messageStore := store.New(cfg.Chat.TombstoneCap, appLogger)
	repos := repository.NewRepositories(dbPool, rdb, appLogger)
	services := service.NewServices(messageStore, repos, cfg, appLogger)

	if err := services.Bridge.Start(context.Background()); err != nil {
		appLogger.Fatal("Failed to start realtime bridge", "error", err)
	}

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	// Stop consuming events, then let in-flight sends settle.
	services.Bridge.Close()
	services.Chat.Close()

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	router.GET("/server-info", handlers.Health.ServerInfo)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireIdentity())
	{
		rooms := v1.Group("/rooms")
		{
			rooms.POST("", handlers.Room.Create)
			rooms.GET("", handlers.Room.List)
			rooms.GET("/:id", handlers.Room.GetByID)
		}

		chat := v1.Group("/rooms/:id/chat")
		{
			chat.GET("/messages", handlers.Chat.GetMessages)
			chat.POST("/messages", rateLimitMiddleware.LimitSends(), handlers.Chat.SendMessage)
			chat.POST("/messages/:messageId/retry", handlers.Chat.RetryMessage)
			chat.POST("/messages/:messageId/reactions", handlers.Chat.AddReaction)
			chat.DELETE("/messages/:messageId", handlers.Chat.DeleteMessage)
			chat.DELETE("/messages", handlers.Chat.ClearRoom)
			chat.GET("/cursor", handlers.Chat.GetCursor)
			chat.GET("/gap", handlers.Chat.GetGap)
		}

		v1.POST("/chat/catchup", handlers.Chat.CatchUp)
	}

	router.GET("/ws/chat/:id", authMiddleware.RequireIdentity(), handlers.WebSocket.HandleChat)

	return router
}
