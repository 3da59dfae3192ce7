// Package app wires the scraping pipeline and its optional backends from
// configuration. Both the API server and the CLI start from here.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openintern/backend/internal/cache"
	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/scraper"
	"github.com/openintern/backend/internal/store"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	Store    *store.JSONStore
	Registry *scraper.Registry
	Browser  *scraper.BrowserPool
	Runner   *scraper.Runner

	// Optional; nil when disabled in config
	Postgres *store.PostgresMirror
	Redis    *cache.Redis

	logger *zap.Logger
}

// New builds the pipeline. Postgres and Redis are connected only when
// enabled, and a failing optional backend fails startup. Without Redis the
// seen set lives in process memory.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Store:    store.NewJSONStore(cfg.Store.Dir, cfg.Store.LockTimeout, logger),
		Registry: scraper.NewRegistry(cfg.Sources),
		logger:   logger,
	}

	browser, err := scraper.NewBrowserPool(logger, cfg.Browser)
	if err != nil {
		return nil, fmt.Errorf("create browser pool: %w", err)
	}
	a.Browser = browser

	deps := scraper.RunnerDeps{
		Sessions:    browser,
		Store:       a.Store,
		Credentials: cfg.Credentials.Lookup,
		Pacer:       scraper.NewPacer(cfg.Scrape.RequestsPerMinute),
		Logger:      logger,
		DebugDir:    cfg.Scrape.DebugDir,
		Seen:        cache.NewMemory(),
	}

	if cfg.Database.Postgres.Enabled {
		pg, err := store.NewPostgresMirror(ctx, cfg.Database.Postgres.DSN(), logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.Postgres = pg
		deps.Mirror = pg
		logger.Info("Postgres mirror enabled")
	}

	if cfg.Cache.Enabled {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			Prefix:   cfg.Cache.Prefix,
			TTL:      cfg.Cache.TTL,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = r
		deps.Seen = r
		logger.Info("Redis seen cache enabled", zap.String("addr", cfg.Cache.Addr))
	}

	a.Runner = scraper.NewRunner(deps, scraper.OptionsFromConfig(cfg.Scrape))
	return a, nil
}

// Close releases the browser and any connected backends
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.Postgres != nil {
		a.Postgres.Close()
	}
	if a.Browser != nil {
		a.Browser.Close()
	}
}
