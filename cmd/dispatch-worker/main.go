package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshpress-app/freshpress-backend/api/routes"
	"github.com/freshpress-app/freshpress-backend/internal/botsettings"
	"github.com/freshpress-app/freshpress-backend/internal/cron"
	"github.com/freshpress-app/freshpress-backend/internal/dispatch"
	"github.com/freshpress-app/freshpress-backend/internal/orders"
	"github.com/freshpress-app/freshpress-backend/internal/recipients"
	"github.com/freshpress-app/freshpress-backend/internal/telegram"
	"github.com/freshpress-app/freshpress-backend/pkg/config"
	"github.com/freshpress-app/freshpress-backend/pkg/db"
	"github.com/freshpress-app/freshpress-backend/pkg/logger"
	"github.com/freshpress-app/freshpress-backend/pkg/metrics"
	"github.com/freshpress-app/freshpress-backend/pkg/migrate"
	"github.com/freshpress-app/freshpress-backend/pkg/redis"
)

const lockKeyFormat = "fp:dispatch-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatch-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatch-worker"

	logg = logger.New(logger.Options{
		ServiceName: "dispatch-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	dispatchRepo := dispatch.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	recipientsRepo := recipients.NewRepository(dbClient.DB())
	settingsRepo := botsettings.NewRepository(dbClient.DB())

	// The worker is the polling owner; it probes nobody.
	botManager, err := telegram.NewManager(telegram.ManagerParams{
		Logger:             logg,
		Settings:           settingsRepo,
		PollTimeoutSeconds: cfg.Dispatch.PollTimeoutSeconds,
		PollRetryDelay:     cfg.Dispatch.PollRetryDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bot manager", err)
		os.Exit(1)
	}

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
	dispatchService, err := dispatch.NewService(dispatch.ServiceParams{
		Logger:                  logg,
		Repo:                    dispatchRepo,
		Orders:                  ordersRepo,
		Recipients:              recipientsRepo,
		Settings:                settingsRepo,
		Bot:                     botManager,
		Metrics:                 dispatchMetrics,
		DefaultReminderInterval: cfg.Dispatch.DefaultReminderInterval,
		ExpireAfter:             cfg.Dispatch.ExpireAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch service", err)
		os.Exit(1)
	}
	botManager.SetHandler(dispatchService.HandleCallback)

	if err := dispatchService.Recover(context.Background()); err != nil {
		logg.Error(context.Background(), "dispatch recovery failed", err)
	}
	botManager.Instance(context.Background(), true)

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}
	reconcileJob, err := cron.NewDispatchReconcileJob(dispatchService)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile job", err)
		os.Exit(1)
	}
	sweeper, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(reconcileJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "sweep service stopped unexpectedly", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting dispatch worker")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewWorkerRouter(cfg, logg, dbClient, redisClient, botManager, dispatchService),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "dispatch worker stopped unexpectedly", err)
		os.Exit(1)
	}

	dispatchService.Shutdown()
	botManager.Shutdown(context.Background())
	logg.Info(ctx, "dispatch worker shut down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
