// Package control wires the application together from configuration:
// storage backend, providers, routing, orchestrator and the HTTP server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/vietddude/atelier/internal/core/config"
	"github.com/vietddude/atelier/internal/health"
	redisclient "github.com/vietddude/atelier/internal/infra/redis"
	"github.com/vietddude/atelier/internal/infra/storage"
	"github.com/vietddude/atelier/internal/infra/storage/memory"
	"github.com/vietddude/atelier/internal/infra/storage/postgres"
	"github.com/vietddude/atelier/internal/orchestrator"
	"github.com/vietddude/atelier/internal/promptcache"
	"github.com/vietddude/atelier/internal/provider"
	"github.com/vietddude/atelier/internal/routing"
	"github.com/vietddude/atelier/internal/validation"
)

// Options carries hooks the config file cannot express.
type Options struct {
	// GRPCGenerate is required when any configured provider has type grpc.
	// It wraps the caller's generated render-farm client.
	GRPCGenerate provider.GenerateFunc
}

// App is the composed application.
type App struct {
	cfg    *config.AppConfig
	orch   *orchestrator.Orchestrator
	cache  *promptcache.Cache
	server *health.Server
	log    *slog.Logger

	db         *postgres.DB
	redisStore *redisclient.PromptStore
	grpcProvs  []*provider.GRPCProvider
}

// NewApp builds the application from configuration.
func NewApp(ctx context.Context, cfg *config.AppConfig, opts Options, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	catalog, err := config.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	log.Info("catalog loaded",
		"poses", len(catalog.Poses),
		"outfits", len(catalog.Outfits),
		"footwear", len(catalog.Footwear),
	)

	app := &App{cfg: cfg, log: log}

	// 1. Storage backend for the prompt cache.
	var repo storage.PromptRepository
	switch cfg.Cache.Backend {
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		if err := goose.SetDialect("postgres"); err != nil {
			return nil, err
		}
		if err := goose.Up(db.DB.DB, "migrations"); err != nil {
			return nil, fmt.Errorf("failed to migrate db: %w", err)
		}
		app.db = db
		repo = postgres.NewPromptRepo(db)
		log.Info("using PostgreSQL prompt cache")
	case "redis":
		store, err := redisclient.NewPromptStore(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		app.redisStore = store
		repo = store
		log.Info("using Redis prompt cache")
	case "memory":
		repo = memory.NewPromptStore()
		log.Info("using in-memory prompt cache")
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	// 2. Providers, in configured priority order.
	providers := make([]provider.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		switch pc.Type {
		case "http", "":
			providers = append(providers, provider.NewHTTPProvider(pc.Name, pc.URL, pc.APIKey, pc.Model, pc.Timeout))
		case "grpc":
			if opts.GRPCGenerate == nil {
				return nil, fmt.Errorf("provider %s is grpc but no generate handler was supplied", pc.Name)
			}
			gp, err := provider.NewGRPCProvider(ctx, pc.Name, pc.URL, opts.GRPCGenerate)
			if err != nil {
				return nil, fmt.Errorf("failed to create grpc provider %s: %w", pc.Name, err)
			}
			app.grpcProvs = append(app.grpcProvs, gp)
			providers = append(providers, gp)
		default:
			return nil, fmt.Errorf("provider %s has unknown type %q", pc.Name, pc.Type)
		}
		log.Info("provider configured", "name", pc.Name, "type", pc.Type)
	}

	// 3. Routing and pipeline.
	failover := routing.NewFailoverManager(providers,
		routing.RetryConfig{
			MaxAttempts:       cfg.Retry.MaxAttempts,
			BaseDelay:         cfg.Retry.BaseDelay,
			BackoffMultiplier: cfg.Retry.BackoffMultiplier,
			Timeout:           cfg.Retry.Timeout,
		},
		routing.BreakerConfig{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			SuccessThreshold: cfg.Breaker.SuccessThreshold,
			RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
			MonitoringWindow: cfg.Breaker.MonitoringWindow,
		},
		log,
	)

	app.cache = promptcache.New(repo, log)
	app.orch = orchestrator.New(
		validation.New(catalog),
		app.cache,
		promptcache.NewBuilder(catalog),
		failover,
		log,
	)
	app.server = health.NewServer(app.orch, cfg.Server.Port, log)

	return app, nil
}

// Orchestrator exposes the composed pipeline, mainly for the CLI.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orch
}

// Start launches the HTTP server and the cache janitor.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("http server failed", "error", err)
		}
	}()

	if a.cfg.Cache.MaxAgeDays > 0 || a.cfg.Cache.KeepCount > 0 {
		go a.runCacheJanitor(ctx)
	}

	return nil
}

// Stop shuts down the application.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping atelier...")

	for _, gp := range a.grpcProvs {
		if err := gp.Close(); err != nil {
			a.log.Warn("failed to close grpc provider", "error", err)
		}
	}
	if a.redisStore != nil {
		if err := a.redisStore.Close(); err != nil {
			a.log.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", "error", err)
		}
	}

	return a.server.Stop(ctx)
}

// runCacheJanitor applies the configured retention policy periodically.
func (a *App) runCacheJanitor(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := a.orch.CleanupCache(ctx, a.cfg.Cache.MaxAgeDays, a.cfg.Cache.KeepCount)
			if err != nil {
				a.log.Warn("cache cleanup failed", "error", err)
				continue
			}
			if removed > 0 {
				a.log.Info("cache cleanup complete", "removed", removed)
			}
		}
	}
}
