package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Xanitokills/Backend-Elant-sub000/internal/app"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/auth"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/gate"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/identity"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/observability"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/cache"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/platform/db"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/rbac"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/roles"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/shared"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/token"
	"github.com/Xanitokills/Backend-Elant-sub000/internal/users"
	"github.com/Xanitokills/Backend-Elant-sub000/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// The decision cache is optional; without Redis every check reads the store.
	var decisionCache *rbac.Cache
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, permission cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
		decisionCache = rbac.NewCache(redisClient, cfg.PermissionCacheTTL)
		if err := decisionCache.ListenForInvalidation(ctx); err != nil {
			logger.Warn("permission cache listener", slog.Any("error", err))
		}
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	signer := token.NewSigner(cfg.JWTSecret, cfg.TokenTTL, token.WithIssuer(cfg.TokenIssuer))
	identityService := identity.NewService(identity.NewRepository(dbpool), cfg.StoreTimeout)
	rbacRepo := rbac.NewRepository(dbpool)
	evaluator := rbac.NewEvaluator(rbacRepo, decisionCache, cfg.StoreTimeout, logger)
	rbacService := rbac.NewService(rbacRepo, decisionCache, jobClient, logger)
	metrics := observability.NewMetrics()

	accessGate := gate.New(gate.Config{
		Verifier:   signer,
		Resolver:   identityService,
		Authorizer: evaluator,
		Logger:     logger,
		Metrics:    metrics,
	})

	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(dbpool), signer, logger))
	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), evaluator), accessGate)
	rolesHandler := roles.NewHandler(logger, rbacService, accessGate, shared.NewAuditLogger(dbpool))
	menusHandler := rbac.NewMenusHandler(logger, rbacService, accessGate)
	jobHandler := jobs.NewHandler(inspector, accessGate, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Gate:         accessGate,
		AuthHandler:  authHandler,
		UsersHandler: usersHandler,
		RolesHandler: rolesHandler,
		MenusHandler: menusHandler,
		JobHandler:   jobHandler,
		Metrics:      metrics,
		AccessLog:    true,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
