package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/storefront-kit/cartengine/api/controllers"
	"github.com/storefront-kit/cartengine/api/routes"
	"github.com/storefront-kit/cartengine/internal/catalog"
	"github.com/storefront-kit/cartengine/internal/persistence"
	"github.com/storefront-kit/cartengine/internal/service"
	cartsync "github.com/storefront-kit/cartengine/internal/sync"
	"github.com/storefront-kit/cartengine/internal/totals"
	"github.com/storefront-kit/cartengine/internal/validation"
	"github.com/storefront-kit/cartengine/pkg/auth"
	"github.com/storefront-kit/cartengine/pkg/config"
	"github.com/storefront-kit/cartengine/pkg/db"
	"github.com/storefront-kit/cartengine/pkg/db/models"
	"github.com/storefront-kit/cartengine/pkg/logger"
	"github.com/storefront-kit/cartengine/pkg/metrics"
	"github.com/storefront-kit/cartengine/pkg/migrate"
	"github.com/storefront-kit/cartengine/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cartengine"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cartengine",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	catalogClient, err := catalog.NewHTTPClient(catalog.HTTPClientConfig{
		BaseURL: cfg.Catalog.BaseURL,
		Token:   cfg.Catalog.Token,
		Timeout: cfg.Catalog.Timeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to build catalog client", err)
		os.Exit(1)
	}

	pingers := map[string]controllers.Pinger{}

	var dbClient *db.Client
	if cfg.DB.DSN != "" {
		dbClient, err = db.New(context.Background(), cfg.DB, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		pingers["db"] = dbClient

		if cfg.DB.UseSQLite() {
			// Single-table device store: GORM auto-migration is enough.
			if err := dbClient.DB().AutoMigrate(&models.CartSnapshot{}); err != nil {
				logg.Error(context.Background(), "failed to migrate sqlite store", err)
				os.Exit(1)
			}
		} else if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
			logg.Error(context.Background(), "failed to run dev migrations", err)
			os.Exit(1)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		pingers["redis"] = redisClient
	}

	store, err := buildCartStore(cfg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build cart store", err)
		os.Exit(1)
	}

	serverStore, err := buildServerStore(cfg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build server cart store", err)
		os.Exit(1)
	}

	calc, err := totals.NewCalculator(cfg.Tax)
	if err != nil {
		logg.Error(context.Background(), "failed to build totals calculator", err)
		os.Exit(1)
	}

	engine, err := validation.NewEngine(catalogClient, catalogClient, calc, cfg.Limits, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build validation engine", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	syncMetrics := metrics.NewSyncMetrics(registry)

	var verifier *auth.Verifier
	if cfg.JWT.Secret != "" {
		verifier, err = auth.NewVerifier(cfg.JWT)
		if err != nil {
			logg.Error(context.Background(), "failed to build token verifier", err)
			os.Exit(1)
		}
	}

	sessions := service.NewRegistry(func(sessionID string) (service.Service, error) {
		mgr, err := cartsync.NewManager(serverStore, calc, cfg.Sync.Policy(), cfg.Queue, logg, syncMetrics)
		if err != nil {
			return nil, err
		}
		return service.New(service.Params{
			SessionID: sessionID,
			Products:  catalogClient,
			Coupons:   catalogClient,
			Store:     store,
			Calc:      calc,
			Engine:    engine,
			Sync:      mgr,
			Identity:  auth.ContextProvider{},
			Limits:    cfg.Limits,
			Interval:  cfg.Sync.BackgroundInterval,
			Logger:    logg,
		})
	})
	defer sessions.Close()

	addr := ":" + cfg.App.Port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting cart engine api")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Params{
			Config:   cfg,
			Logger:   logg,
			Registry: sessions,
			Verifier: verifier,
			Pingers:  pingers,
			Metrics:  registry,
		}),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-shutdown
		logg.Info(ctx, "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildCartStore(cfg *config.Config, dbClient *db.Client, redisClient *redis.Client) (persistence.CartStore, error) {
	switch cfg.Persistence.Backend {
	case config.PersistenceRedis:
		return persistence.NewRedisStore(redisClient, cfg.Persistence.TTL)
	case config.PersistenceDatabase:
		return persistence.NewDatabaseStore(dbClient, cfg.Persistence.TTL)
	default:
		return persistence.NewMemoryStore(cfg.Persistence.TTL), nil
	}
}

func buildServerStore(cfg *config.Config, dbClient *db.Client) (cartsync.ServerStore, error) {
	if dbClient == nil || cfg.DB.UseSQLite() {
		return persistence.UnsupportedServerStore{}, nil
	}
	return persistence.NewServerCartStore(dbClient)
}
