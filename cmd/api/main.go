package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/freshpress-app/freshpress-backend/api/routes"
	"github.com/freshpress-app/freshpress-backend/internal/botsettings"
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

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	probe := telegram.NewProbe(cfg.Dispatch.WorkerURL, cfg.Dispatch.ProbeTimeout)

	botManager, err := telegram.NewManager(telegram.ManagerParams{
		Logger:             logg,
		Settings:           settingsRepo,
		Probe:              probe,
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

	notifier := dispatch.NewDelegatingNotifier(
		logg,
		probe,
		dispatch.NewRemoteNotifier(cfg.Dispatch.WorkerURL),
		dispatchService,
	)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Logger:   logg,
		Repo:     ordersRepo,
		Notifier: notifier,
		Dispatch: dispatchRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	// The worker owns recovery and polling when it is reachable; the embedded
	// engine takes over only when this process is the sole dispatcher.
	if !probe.Available(context.Background()) {
		if err := dispatchService.Recover(context.Background()); err != nil {
			logg.Error(context.Background(), "dispatch recovery failed", err)
		}
		botManager.Instance(context.Background(), true)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewAPIRouter(cfg, logg, dbClient, redisClient, botManager, ordersService),
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
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	dispatchService.Shutdown()
	botManager.Shutdown(context.Background())
	logg.Info(ctx, "api server shut down gracefully")
}
