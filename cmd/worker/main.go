package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/app"
	jobmetrics "github.com/Xanitokills/Backend-Elant-sub000/internal/jobs"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/cache"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/db"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	rbacRepo := rbac.NewRepository(pool)
	decisionCache := rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
	evaluator := rbac.NewEvaluator(rbacRepo, decisionCache, cfg.StoreTimeout, logger)
	warmupJob := jobs.NewPermissionWarmupJob(rbacRepo, evaluator, logger, jobmetrics.NewMetrics(nil))

	var cron []jobs.CronRegistration
	if cfg.PermissionWarmupCron != "" {
		warmupAll, err := jobs.NewPermissionWarmupTask(jobs.PermissionWarmupPayload{})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: cfg.PermissionWarmupCron, Task: warmupAll})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPermissionWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
