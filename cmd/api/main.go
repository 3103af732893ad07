package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/contexthub-project/contexthub/internal/api"
	"github.com/contexthub-project/contexthub/internal/config"
	"github.com/contexthub-project/contexthub/internal/database"
	"github.com/contexthub-project/contexthub/internal/kv"
	"github.com/contexthub-project/contexthub/internal/middleware"
	inats "github.com/contexthub-project/contexthub/internal/nats"
	"github.com/contexthub-project/contexthub/internal/prompt"
	"github.com/contexthub-project/contexthub/internal/provider"
	iredis "github.com/contexthub-project/contexthub/internal/redis"
	"github.com/contexthub-project/contexthub/internal/registry"
	"github.com/contexthub-project/contexthub/internal/server"
	"github.com/contexthub-project/contexthub/internal/writeback"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	ctx := context.Background()

	// Redis backs the kv store by default and the rate limiter always.
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	var store kv.Store
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := database.NewPostgresPool(ctx, cfg.DB)
		if err != nil {
			slog.Error("connecting to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
			slog.Error("running migrations", "error", err)
			os.Exit(1)
		}
		store = kv.NewPostgresStore(pool)
	default:
		store = kv.NewRedisStore(redisClient, "ctxhub")
	}

	// NATS (optional)
	var natsHealth api.HealthChecker
	var notifier registry.Notifier
	if cfg.NATS.Enabled {
		natsClient, err := inats.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to nats", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		notifier = inats.NewPublisher(natsClient.JetStream())
		natsHealth = natsClient
	}

	// Registry and the default provider
	reg := registry.New(registry.Config{
		Notifier:        notifier,
		ProviderTimeout: cfg.Aggregation.ProviderTimeout,
	})

	factory := &provider.Factory{
		Store:     store,
		Confirmer: prompt.NewPolicy(cfg.Permission.AutoAllow, cfg.Permission.AutoDeny, cfg.Permission.DefaultAllow),
		Limits: writeback.Limits{
			MaxContexts:  cfg.WriteBack.MaxContexts,
			MaxBytes:     cfg.WriteBack.MaxBytes,
			DefaultTTL:   cfg.WriteBack.DefaultTTL,
			EphemeralTTL: cfg.WriteBack.EphemeralTTL,
		},
	}

	reg.Register(ctx, factory.Build(provider.Definition{
		Record: provider.Record{
			ProviderID:   cfg.Provider.ID,
			ProviderName: cfg.Provider.Name,
			Version:      cfg.Provider.Version,
			Capabilities: provider.Capabilities{MaxTopK: cfg.Provider.MaxTopK},
		},
		Domain:   cfg.Provider.Domain,
		Writable: true,
	}))

	regHandler := registry.NewHandler(reg, factory)

	var contextLimiter func(http.Handler) http.Handler
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.MaxReqs, cfg.RateLimit.WindowSec)
		contextLimiter = limiter.Middleware
	}

	router := api.NewRouter(store, natsHealth, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		ContextRateLimiter: contextLimiter,
	}, api.HandlerSet{
		ListProviders:      regHandler.ListProviders,
		RegisterProvider:   regHandler.RegisterProvider,
		GetProvider:        regHandler.GetProvider,
		UnregisterProvider: regHandler.UnregisterProvider,

		Status:       regHandler.Status,
		Installation: regHandler.Installation,

		QueryContext:     regHandler.QueryContext,
		AggregateContext: regHandler.AggregateContext,
		ProvideContext:   regHandler.ProvideContext,
		ContributeMemory: regHandler.ContributeMemory,

		GetPermissions:    regHandler.GetPermissions,
		RequestPermission: regHandler.RequestPermission,
		RevokePermission:  regHandler.RevokePermission,
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
