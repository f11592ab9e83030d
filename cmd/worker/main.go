// Package main runs the background job worker (credential QR image re-renders).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mapease/backend/config"
	"github.com/mapease/backend/internal/credential"
	"github.com/mapease/backend/internal/registrations"
	"github.com/mapease/backend/internal/worker"
	"github.com/mapease/backend/pkg/database"
	"github.com/mapease/backend/pkg/queue"
	"github.com/mapease/backend/pkg/redis"
	"github.com/mapease/backend/pkg/storage"
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

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		QRBucket:        cfg.AWS.QRBucket,
		PublicURL:       cfg.AWS.PublicURL,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	regRepo := registrations.NewRepository(pool)
	images := credential.NewImageStore(s3Client)
	jobQueue := queue.NewQueue(rdb.Client, logger)
	processor := worker.NewImageProcessor(regRepo, images, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Run(workerCtx)
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
