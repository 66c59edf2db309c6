package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/cache"
	"github.com/neoncad/engine/internal/queue/tasks"
	"github.com/neoncad/engine/internal/repository"
	"github.com/neoncad/engine/internal/services"
	"github.com/neoncad/engine/pkg/config"
	"github.com/neoncad/engine/pkg/database"
	"github.com/neoncad/engine/pkg/logger"
)

func main() {
	cfg := config.MustLoad()
	log, err := logger.Init(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if !cfg.RedisEnabled() {
		log.Fatal("REDIS_ADDR is required for the worker")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis connection failed", zap.Error(err))
	}

	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{Logger: log})
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}

	projects := services.NewProjectService(
		repository.NewProjectRepository(db),
		repository.NewSnapshotRepository(db),
		cache.NewRedis(rdb, cfg.CacheTTL, log),
	)
	// The worker only renders; it never enqueues.
	boms := services.NewBOMService(projects, repository.NewExportRepository(db), nil, services.BOMOptions{DecimalComma: cfg.DecimalComma})

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		},
		asynq.Config{
			Concurrency: cfg.AsynqConcurrency,
		},
	)

	mux := asynq.NewServeMux()
	handler := tasks.NewBOMExportHandler(boms)
	mux.HandleFunc(tasks.TypeBOMExport, handler.HandleBOMExport)

	errCh := make(chan error, 1)
	go func() {
		log.Info("asynq worker starting", zap.Int("concurrency", cfg.AsynqConcurrency))
		if err := srv.Run(mux); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("worker stopped with error", zap.Error(err))
	}

	srv.Shutdown()
}
