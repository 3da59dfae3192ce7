package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openintern/backend/internal/app"
	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/domain"
	"github.com/openintern/backend/internal/scraper"
	"github.com/openintern/backend/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	source := flag.String("source", "all", "Source to scrape, or \"all\"")
	pages := flag.Int("pages", 0, "Result pages per query (0 uses the configured value)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Server.Debug = true
	}
	if *pages > 0 {
		cfg.Scrape.Pages = *pages
	}

	if err := logger.Init(logger.Options{Debug: cfg.Server.Debug, File: cfg.Server.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *source); err != nil {
		logger.Error("Scrape failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, name string) error {
	pipeline, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer pipeline.Close()

	sources, err := selectSources(pipeline.Registry, name)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	results := make([]*scraper.RunResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			res, err := pipeline.Runner.Run(gctx, src, cfg.Scrape.Pages)
			results[i] = res
			if err != nil && len(sources) > 1 && !errors.Is(err, context.Canceled) {
				// One failing source must not stop the others
				logger.Error("Source run failed", zap.String("source", string(src.ID)), zap.Error(err))
				return nil
			}
			return err
		})
	}
	waitErr := g.Wait()

	for _, res := range results {
		if res == nil {
			continue
		}
		logger.Info("Run summary",
			zap.String("source", string(res.Source)),
			zap.Int("accepted", res.Accepted),
			zap.Int("added", res.Added),
			zap.Int("total", res.Total),
			zap.Int("pages_failed", res.PagesFailed),
			zap.Duration("duration", res.Duration()),
		)
	}
	return waitErr
}

func selectSources(registry *scraper.Registry, name string) ([]*scraper.Source, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "all" {
		return registry.All(), nil
	}
	src, ok := registry.Get(domain.JobSource(name))
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSource, name)
	}
	return []*scraper.Source{src}, nil
}
