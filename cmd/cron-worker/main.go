package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/mealbox-backend/internal/app"
	"github.com/angelmondragon/mealbox-backend/internal/autoconfirm"
	"github.com/angelmondragon/mealbox-backend/internal/cron"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/metrics"
	"github.com/angelmondragon/mealbox-backend/pkg/migrate"
	"github.com/angelmondragon/mealbox-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stack, err := app.NewPlanStack(context.Background(), app.PlanStackParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to wire plan services", err)
		os.Exit(1)
	}
	defer stack.Close()

	if err := ensureReadiness(context.Background(), logg, dbClient, redisClient, stack); err != nil {
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.AutoConfirmLockName), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	job, err := cron.NewAutoConfirmJob(stack.Runner, autoconfirm.TriggerScheduled, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create auto confirm job", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Calendar: stack.Calendar,
		Hour:     cfg.AutoConfirm.Hour,
		Minute:   cfg.AutoConfirm.Minute,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"timezone":    stack.Calendar.Location().String(),
	})
	logg.Info(ctx, "starting cron worker")

	metricsServer := &http.Server{Addr: ":" + cfg.App.Port, Handler: metricsHandler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics server stopped", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name string
	dep  pinger
}

func ensureReadiness(ctx context.Context, logg *logger.Logger, dbClient, redisClient pinger, stack *app.PlanStack) error {
	deps := []dependency{{"database", dbClient}, {"redis", redisClient}}
	if ps := stack.PubSub(); ps != nil {
		deps = append(deps, dependency{"pubsub", ps})
	}
	for _, d := range deps {
		if err := d.dep.Ping(ctx); err != nil {
			logg.Error(ctx, fmt.Sprintf("%s ping failed", d.name), err)
			return fmt.Errorf("%s ping failed: %w", d.name, err)
		}
	}
	logg.Info(ctx, "all cron worker dependencies are ready")
	return nil
}
