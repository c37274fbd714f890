package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signage-sync/internal/auth"
	"signage-sync/internal/cache"
	"signage-sync/internal/display"
	"signage-sync/internal/persistence/sqlite"
	"signage-sync/internal/platform/config"
	"signage-sync/internal/platform/logger"
	"signage-sync/internal/platform/metrics"
	"signage-sync/internal/platform/supervisor"
)

func main() {
	_ = config.Load()
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	authn, err := auth.NewManager(cfg.JWTSecret, 0)
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(ctx, cfg.DBPath, cfg.UploadsURLPrefix)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.AdminUsername != "" {
		id, created, err := store.EnsureAdmin(ctx, sqlite.User{Username: cfg.AdminUsername, Email: cfg.AdminEmail})
		if err != nil {
			return err
		}
		if created {
			log.Info("seeded admin account", slog.String("username", cfg.AdminUsername), slog.Int64("user_id", id))
		}
	}

	catalogCache, closeCache, err := newCatalogCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	met := metrics.New()
	catalog := display.NewCatalog(store, catalogCache, cfg.CatalogCacheTTLMinutes, log, met)
	sched := display.NewScheduler(store, catalog, display.SystemClock(), log, met)
	reconciler := display.NewReconcileLoop(sched, catalog, cfg.ReconcileInterval, log, met)
	archiver := display.NewArchiveLoop(store, catalog, display.SystemClock(), cfg.ArchiveInterval, cfg.ArchiveAfterDays, log, met)

	h := display.NewHandler(sched, store, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, log, met, authn, h, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	tree := supervisor.New(log, supervisor.TreeConfig{ShutdownTimeout: cfg.ShutdownTimeout})
	tree.AddPlaybackService(sched)
	tree.AddPlaybackService(reconciler)
	tree.AddPlaybackService(archiver)
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, cfg.ShutdownTimeout))

	log.Info("server starting",
		slog.String("port", cfg.Port),
		slog.String("db_path", cfg.DBPath),
		slog.String("cache_backend", cfg.CacheBackend),
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Duration("archive_interval", cfg.ArchiveInterval),
		slog.String("log_level", cfg.LogLevel))

	err = tree.Serve(ctx)
	log.Info("shutdown signal received, services stopped")
	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			log.Warn("service failed to stop within timeout", slog.String("service", svc.Name))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newCatalogCache selects the catalog cache backend from cfg.
func newCatalogCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache[[]display.MediaEntry], func(), error) {
	if cfg.CacheBackend != "redis" {
		return cache.NewMemory[[]display.MediaEntry](), func() {}, nil
	}
	client, err := cache.DialRedis(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("catalog cache using redis", slog.String("addr", cfg.RedisAddr))
	return cache.NewRedis[[]display.MediaEntry](client, "signage:", log), func() { _ = client.Close() }, nil
}
