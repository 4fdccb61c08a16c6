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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/wacommerce-backend/api/routes"
	"github.com/angelmondragon/wacommerce-backend/internal/actions"
	"github.com/angelmondragon/wacommerce-backend/internal/agent"
	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/catalog"
	"github.com/angelmondragon/wacommerce-backend/internal/conversation"
	"github.com/angelmondragon/wacommerce-backend/internal/customers"
	"github.com/angelmondragon/wacommerce-backend/internal/delivery"
	"github.com/angelmondragon/wacommerce-backend/internal/gateway"
	"github.com/angelmondragon/wacommerce-backend/internal/merchants"
	"github.com/angelmondragon/wacommerce-backend/internal/orchestrator"
	"github.com/angelmondragon/wacommerce-backend/internal/orders"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/internal/webhooks"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	"github.com/angelmondragon/wacommerce-backend/pkg/db"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
	"github.com/angelmondragon/wacommerce-backend/pkg/metrics"
	"github.com/angelmondragon/wacommerce-backend/pkg/migrate"
	"github.com/angelmondragon/wacommerce-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	convMetrics := metrics.NewConversationMetrics(registry)

	app, err := buildApp(cfg, logg, dbClient, redisClient, convMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	dispatcher, err := webhooks.NewDispatcher(app.orchestrator, cfg.Conversation.WorkerConcurrency, cfg.Conversation.MessageTimeout, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook dispatcher", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewRouter(cfg, logg, routes.Deps{
			DB:         dbClient,
			Redis:      redisClient,
			Metrics:    registry,
			Dispatcher: dispatcher,
			Orders:     app.orders,
			Customers:  app.customers,
			States:     app.states,
			Catalog:    app.catalog,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "http shutdown failed", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logg.Warn(shutdownCtx, "in-flight messages abandoned at shutdown")
	}
}

type app struct {
	orchestrator *orchestrator.Orchestrator
	orders       *orders.Service
	customers    *customers.Service
	states       *conversation.Store
	catalog      *catalog.Service
}

func buildApp(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, convMetrics *metrics.ConversationMetrics) (*app, error) {
	conn := dbClient.DB()

	merchantSvc, err := merchants.NewService(merchants.NewRepository(conn), time.Now)
	if err != nil {
		return nil, err
	}
	customerSvc, err := customers.NewService(customers.NewRepository(conn))
	if err != nil {
		return nil, err
	}
	productRepo := products.NewRepository(conn)
	productSvc, err := products.NewService(productRepo)
	if err != nil {
		return nil, err
	}
	cartRepo := cart.NewRepository(conn)
	cartSvc, err := cart.NewService(cartRepo, productSvc, dbClient)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.NewRepository(conn), cartRepo, productRepo, dbClient)
	if err != nil {
		return nil, err
	}
	store, err := conversation.NewStore(conversation.NewRepository(conn), dbClient)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.App.Location()
	if err != nil {
		return nil, err
	}
	parser := delivery.NewParser(loc, delivery.WithDefaultHour(cfg.Conversation.DefaultDeliveryHour))

	machine, err := conversation.NewMachine(store, customerSvc, cartSvc, orderSvc, parser, logg,
		conversation.WithLoopGuardThreshold(cfg.Conversation.LoopGuardThreshold))
	if err != nil {
		return nil, err
	}
	applicator, err := actions.NewApplicator(machine, cartSvc, customerSvc, orderSvc, convMetrics, logg)
	if err != nil {
		return nil, err
	}

	agentClient, err := agent.NewClient(cfg.Agent)
	if err != nil {
		return nil, err
	}
	gatewayClient, err := gateway.NewClient(cfg.Gateway)
	if err != nil {
		return nil, err
	}

	cache, err := catalog.NewCache(redisClient, cfg.Catalog.CacheTTL)
	if err != nil {
		return nil, err
	}
	catalogSvc, err := catalog.NewService(productSvc, catalog.NewExporter(cfg.Catalog, nil), cache, logg)
	if err != nil {
		return nil, err
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Merchants:    merchantSvc,
		Customers:    customerSvc,
		States:       store,
		Machine:      machine,
		Actions:      applicator,
		Carts:        cartSvc,
		Products:     productSvc,
		Catalog:      catalogSvc,
		Agent:        agentClient,
		Sender:       gatewayClient,
		Dedupe:       redisClient,
		DedupeTTL:    cfg.Conversation.DedupeTTL,
		Metrics:      convMetrics,
		Logger:       logg,
		ExposeErrors: !cfg.App.IsProd(),
	})
	if err != nil {
		return nil, err
	}

	return &app{
		orchestrator: orch,
		orders:       orderSvc,
		customers:    customerSvc,
		states:       store,
		catalog:      catalogSvc,
	}, nil
}
