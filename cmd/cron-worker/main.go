package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/conversation"
	"github.com/angelmondragon/wacommerce-backend/internal/cron"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
	"github.com/angelmondragon/wacommerce-backend/pkg/migrate"
	"github.com/angelmondragon/wacommerce-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*cron.Service, error) {
	conn := dbClient.DB()

	productSvc, err := products.NewService(products.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cart.NewRepository(conn), productSvc, dbClient)
	if err != nil {
		return nil, err
	}
	store, err := conversation.NewStore(conversation.NewRepository(conn), dbClient)
	if err != nil {
		return nil, err
	}

	cartJob, err := cron.NewStaleCartJob(cartSvc, cfg.Cron.StaleCartDays)
	if err != nil {
		return nil, err
	}
	convJob, err := cron.NewStaleConversationJob(store, cfg.Cron.StaleConversationHours)
	if err != nil {
		return nil, err
	}
	registry, err := cron.NewRegistry(cartJob, convJob)
	if err != nil {
		return nil, err
	}

	// The lock outlives one cycle so a slow replica cannot overlap the next tick.
	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey("cron-worker"), 2*cfg.Cron.Interval)
	if err != nil {
		return nil, err
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
}
