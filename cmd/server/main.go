package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/broadcast"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/config"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/database"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/handlers"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/middleware"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/models"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/routes"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/services"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/pkg/logger"
)

func main() {
	// 0. Load Config & Initialize Logger
	config.LoadConfig()

	env := os.Getenv("GO_ENV")
	if env == "" {
		env = "development"
	}
	logger.Init(env)

	logger.Info().Str("environment", env).Msg("Starting BodyF1rst Backend...")

	if env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 1. Connect Database & Redis
	database.Connect()
	database.InitRedis()

	logger.Info().Msg("Running database migrations...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.Inbox{},
		&models.Group{},
		&models.GroupMember{},
		&models.Message{},
		&models.MessageRead{},
		&models.MessageFlag{},
	); err != nil {
		logger.Fatal().Err(err).Msg("Failed to run database migrations")
	}
	logger.Info().Msg("Database migrations complete")

	// 2. Wire the realtime core: authorizer -> hub -> publisher -> presence
	authorizer := services.NewChannelAuthorizer(database.DB)
	hub := broadcast.NewHub(authorizer)
	publisher := services.NewEventPublisher(hub)

	presenceTimeout := broadcast.DefaultPresenceTimeout
	if config.AppConfig.PresenceTimeoutSec > 0 {
		presenceTimeout = time.Duration(config.AppConfig.PresenceTimeoutSec) * time.Second
	}
	presence := broadcast.NewPresenceTracker(presenceTimeout, publisher.PresenceUpdated)
	presence.Start()
	defer presence.Stop()

	push := services.NewPushService()
	store := services.NewMessageStore(database.DB, publisher, presence, push)

	handlers.Hub = hub
	handlers.Presence = presence
	handlers.Publisher = publisher
	handlers.Authorizer = authorizer
	handlers.Store = store

	// 3. Setup Router
	r := gin.New()
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.ErrorHandlerMiddleware())
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())

	// Exempt the websocket endpoint from rate limiting
	generalLimit := middleware.GeneralRateLimit()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/ws" {
			c.Next()
			return
		}
		generalLimit(c)
	})

	// 4. Register Routes
	api := r.Group("/api")
	{
		routes.RegisterAuthRoutes(api)
		routes.RegisterChatRoutes(api)
		routes.RegisterAdminRoutes(api)
	}

	// Realtime transport
	r.GET("/ws", handlers.WebSocketHandler)

	// Health check with DB and Redis status
	r.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		redisStatus := "ok"

		sqlDB, err := database.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			dbStatus = "error"
		}

		if database.Redis != nil {
			if _, err := database.Redis.Ping(context.Background()).Result(); err != nil {
				redisStatus = "error"
			}
		} else {
			redisStatus = "not configured"
		}

		status := "ok"
		if dbStatus != "ok" || (redisStatus != "ok" && redisStatus != "not configured") {
			status = "degraded"
		}

		c.JSON(200, gin.H{
			"status": status,
			"checks": gin.H{
				"database": dbStatus,
				"redis":    redisStatus,
			},
		})
	})

	// 5. Start Server with graceful shutdown
	port := config.AppConfig.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", port).Str("env", env).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
