package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/api"
	"github.com/neoncad/engine/internal/api/handlers"
	"github.com/neoncad/engine/internal/api/middleware"
	"github.com/neoncad/engine/internal/cache"
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

	log.Info("starting neoncad api",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("db", cfg.DatabaseDriver),
	)

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, database.Options{
		Verbose: cfg.AppEnv == "development",
		Logger:  log,
	})
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(ctx, db, cfg.DatabaseDriver); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	log.Info("database ready")

	var (
		snapshots cache.SnapshotCache = cache.Noop{}
		queue     *asynq.Client
	)
	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal("redis connection failed", zap.Error(err))
		}
		snapshots = cache.NewRedis(rdb, cfg.CacheTTL, log)

		queue = asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer queue.Close()
	} else {
		log.Warn("REDIS_ADDR not set, snapshot cache disabled and exports render inline")
	}

	projects := services.NewProjectService(repository.NewProjectRepository(db), repository.NewSnapshotRepository(db), snapshots)
	boms := services.NewBOMService(projects, repository.NewExportRepository(db), queue, services.BOMOptions{DecimalComma: cfg.DecimalComma})

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stop := make(chan struct{})
	defer close(stop)
	go limiter.Run(time.Minute, stop)

	router := api.NewRouter(api.Dependencies{
		Projects: projects,
		BOM:      boms,
		DB:       handlers.PingFunc(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		Logger:   log,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", zap.Error(err))
	} else {
		log.Info("server exited gracefully")
	}
}
