// Package main runs the background worker: push notification delivery and
// the event lifecycle sweeper.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/keepmyplanet/backend/config"
	"github.com/keepmyplanet/backend/internal/auth"
	"github.com/keepmyplanet/backend/internal/chat"
	"github.com/keepmyplanet/backend/internal/events"
	"github.com/keepmyplanet/backend/internal/notifications"
	"github.com/keepmyplanet/backend/internal/worker"
	"github.com/keepmyplanet/backend/internal/zones"
	"github.com/keepmyplanet/backend/pkg/database"
	"github.com/keepmyplanet/backend/pkg/queue"
	"github.com/keepmyplanet/backend/pkg/redis"
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

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)

	// Push delivery
	tokenRepo := notifications.NewTokenRepository(pool)
	notificationSvc := notifications.NewService(rdb.Client, jobQueue, logger)
	fcm := notifications.NewFCMClient(cfg.FCM.ServerKey, cfg.FCM.Endpoint, logger)
	pushProcessor := worker.NewPushProcessor(notificationSvc, tokenRepo, fcm, jobQueue, logger)

	// Lifecycle sweeper: start due events as system transitions.
	userRepo := auth.NewRepository(pool)
	zoneRepo := zones.NewRepository(pool)
	zoneAuditRepo := zones.NewStateChangeRepository(pool)
	zoneStatusSvc := zones.NewStateChangeService(zoneRepo, zoneAuditRepo, logger)
	eventRepo := events.NewRepository(pool)
	eventAuditRepo := events.NewStateChangeRepository(pool)
	eventLifecycle := events.NewStateChangeService(eventRepo, zoneRepo, zoneStatusSvc, eventAuditRepo, logger)
	chatRepo := chat.NewRepository(pool)
	eventSvc := events.NewService(eventRepo, userRepo, zoneRepo, zoneStatusSvc,
		eventLifecycle, chatRepo, eventAuditRepo, notificationSvc, logger)
	sweeper := worker.NewSweeper(eventSvc, time.Duration(cfg.Worker.EventSweepSeconds)*time.Second, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pushProcessor.Run(workerCtx)
	go sweeper.Run(workerCtx)
	logger.Info("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
