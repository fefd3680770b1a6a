package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/mealbox-backend/api/controllers"
	"github.com/angelmondragon/mealbox-backend/api/routes"
	"github.com/angelmondragon/mealbox-backend/internal/app"
	"github.com/angelmondragon/mealbox-backend/internal/autoconfirm"
	"github.com/angelmondragon/mealbox-backend/internal/cron"
	stripewebhook "github.com/angelmondragon/mealbox-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/mealbox-backend/pkg/config"
	"github.com/angelmondragon/mealbox-backend/pkg/db"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/metrics"
	"github.com/angelmondragon/mealbox-backend/pkg/migrate"
	"github.com/angelmondragon/mealbox-backend/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

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

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Subscribers: stack.Subscribers,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, stripewebhook.GuardTTL, stripewebhook.GuardScope)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	manualRuns, err := newManualRunService(cfg, logg, redisClient, stack)
	if err != nil {
		logg.Error(context.Background(), "failed to create manual auto confirm trigger", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{
		"database": dbClient,
		"redis":    redisClient,
	}
	if ps := stack.PubSub(); ps != nil {
		readiness["pubsub"] = ps
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			readiness,
			redisClient,
			prometheus.DefaultGatherer,
			stack.Auth,
			stack.Billing,
			stack.Plans,
			stack.Orders,
			stack.AdminOrders,
			manualRuns,
			stack.Stripe,
			webhookService,
			webhookGuard,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
		// Let an in-flight manual run finish its reports.
		manualRuns.Wait()
	}
}

// newManualRunService builds a cron service that is only ever triggered by
// the admin endpoint. It shares the worker's lock key so manual and scheduled
// runs exclude each other.
func newManualRunService(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, stack *app.PlanStack) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cron.AutoConfirmLockName), 0)
	if err != nil {
		return nil, err
	}
	job, err := cron.NewAutoConfirmJob(stack.Runner, autoconfirm.TriggerManual, logg)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Calendar: stack.Calendar,
		Hour:     cfg.AutoConfirm.Hour,
		Minute:   cfg.AutoConfirm.Minute,
	})
}
