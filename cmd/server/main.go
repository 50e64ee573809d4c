// Package main runs the KeepMyPlanet HTTP server with websocket/SSE chat and
// graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keepmyplanet/backend/config"
	"github.com/keepmyplanet/backend/internal/auth"
	"github.com/keepmyplanet/backend/internal/chat"
	"github.com/keepmyplanet/backend/internal/events"
	"github.com/keepmyplanet/backend/internal/middleware"
	"github.com/keepmyplanet/backend/internal/notifications"
	"github.com/keepmyplanet/backend/internal/photos"
	"github.com/keepmyplanet/backend/internal/realtime"
	"github.com/keepmyplanet/backend/internal/stats"
	"github.com/keepmyplanet/backend/internal/zones"
	"github.com/keepmyplanet/backend/pkg/database"
	"github.com/keepmyplanet/backend/pkg/queue"
	"github.com/keepmyplanet/backend/pkg/redis"
	"github.com/keepmyplanet/backend/pkg/response"
	"github.com/keepmyplanet/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Client, err = storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			PhotosBucket:         cfg.AWS.PhotosBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Auth
	userRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(userRepo, jwtService, logger)

	// Notifications
	tokenRepo := notifications.NewTokenRepository(pool)
	notificationSvc := notifications.NewService(rdb.Client, jobQueue, logger)
	notificationHandler := notifications.NewHandler(tokenRepo)

	// Photos
	photoRepo := photos.NewRepository(pool)
	photoSvc := photos.NewService(photoRepo, s3Client, logger)
	photoHandler := photos.NewHandler(photoSvc)

	// Zones
	zoneRepo := zones.NewRepository(pool)
	zoneAuditRepo := zones.NewStateChangeRepository(pool)
	zoneStatusSvc := zones.NewStateChangeService(zoneRepo, zoneAuditRepo, logger)

	// Events
	eventRepo := events.NewRepository(pool)
	eventAuditRepo := events.NewStateChangeRepository(pool)
	eventLifecycle := events.NewStateChangeService(eventRepo, zoneRepo, zoneStatusSvc, eventAuditRepo, logger)

	// Chat
	chatRepo := chat.NewRepository(pool)
	chatSvc := chat.NewService(chatRepo, eventRepo, userRepo, hub, logger)
	chatHandler := chat.NewHandler(chatSvc, hub)

	eventSvc := events.NewService(eventRepo, userRepo, zoneRepo, zoneStatusSvc,
		eventLifecycle, chatRepo, eventAuditRepo, notificationSvc, logger)
	eventHandler := events.NewHandler(eventSvc)

	zoneSvc := zones.NewService(zoneRepo, userRepo, photoRepo, eventRepo, zoneAuditRepo, logger)
	zoneHandler := zones.NewHandler(zoneSvc)

	// Stats
	statsRepo := stats.NewRepository(pool)
	statsHandler := stats.NewHandler(statsRepo)

	wsValidate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.UserID, nil
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Users
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)
		api.GET("/users/me/stats", statsHandler.MyStats)
		api.GET("/users/:id/stats", statsHandler.UserStats)
		api.GET("/stats/leaderboard", statsHandler.Leaderboard)

		// Zones
		api.POST("/zones", zoneHandler.Report)
		api.GET("/zones", zoneHandler.List)
		api.GET("/zones/:id", zoneHandler.GetByID)
		api.PATCH("/zones/:id", zoneHandler.Update)
		api.DELETE("/zones/:id", zoneHandler.Delete)
		api.POST("/zones/:id/photos", zoneHandler.AttachPhoto)
		api.DELETE("/zones/:id/photos/:photoId", zoneHandler.DetachPhoto)
		api.GET("/zones/:id/status/history", zoneHandler.StatusHistory)

		// Events
		api.POST("/events", eventHandler.Create)
		api.GET("/events", eventHandler.List)
		api.GET("/events/:id", eventHandler.GetByID)
		api.PATCH("/events/:id", eventHandler.Update)
		api.DELETE("/events/:id", eventHandler.Delete)
		api.POST("/events/:id/join", eventHandler.Join)
		api.POST("/events/:id/leave", eventHandler.Leave)
		api.PUT("/events/:id/status", eventHandler.ChangeStatus)
		api.GET("/events/:id/participants", eventHandler.Participants)
		api.GET("/events/:id/status/history", eventHandler.StatusHistory)
		api.POST("/events/:id/attendance/:userId", eventHandler.CheckIn)
		api.GET("/events/:id/attendees", eventHandler.Attendees)
		api.GET("/events/:id/audience_count", func(c *gin.Context) {
			id, err := uuid.Parse(c.Param("id"))
			if err != nil {
				response.BadRequest(c, "invalid event id")
				return
			}
			response.OK(c, gin.H{"count": hub.AudienceCount(id)})
		})

		// Chat
		api.POST("/events/:id/chat", chatHandler.Post)
		api.GET("/events/:id/chat", chatHandler.List)
		api.DELETE("/events/:id/chat/:messageId", chatHandler.Delete)
		api.GET("/events/:id/chat/stream", chatHandler.Stream)

		// Photos
		api.POST("/photos", photoHandler.Upload)
		api.GET("/photos/:id", photoHandler.GetByID)
		api.DELETE("/photos/:id", photoHandler.Delete)

		// Device tokens
		api.POST("/notifications/device-tokens", notificationHandler.RegisterToken)
		api.DELETE("/notifications/device-tokens/:token", notificationHandler.DeleteToken)
	}

	// WebSocket (token in query; no Authorization header required)
	router.GET("/ws", realtime.ServeWs(hub, logger, wsValidate))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
