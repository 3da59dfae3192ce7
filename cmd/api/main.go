package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/api"
	"github.com/openintern/backend/internal/api/middleware"
	"github.com/openintern/backend/internal/app"
	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/scraper"
	"github.com/openintern/backend/pkg/logger"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(logger.Options{Debug: cfg.Server.Debug, File: cfg.Server.LogFile}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting OpenIntern API",
		zap.Bool("debug", cfg.Server.Debug),
		zap.String("store_dir", cfg.Store.Dir),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	pipeline, err := app.New(startCtx, cfg, logger.Get())
	cancelStart()
	if err != nil {
		logger.Fatal("Failed to initialize pipeline", zap.Error(err))
	}
	defer pipeline.Close()

	if err := os.MkdirAll(cfg.Store.Dir, 0o755); err != nil {
		logger.Fatal("Failed to create store directory", zap.Error(err))
	}

	tasks := scraper.NewTaskManager(pipeline.Runner, pipeline.Registry, logger.Get())

	// Create Fiber app
	server := fiber.New(fiber.Config{
		AppName:               "OpenIntern API",
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		DisableStartupMessage: !cfg.Server.Debug,
		ErrorHandler:          errorHandler,
	})

	// Setup middleware
	middleware.Setup(server, cfg, logger.Get())

	deps := &api.Dependencies{
		Store:    pipeline.Store,
		Registry: pipeline.Registry,
		Tasks:    tasks,
	}
	if pipeline.Postgres != nil {
		deps.Postgres = pipeline.Postgres
		deps.Mirror = pipeline.Postgres
	}
	if pipeline.Redis != nil {
		deps.Redis = pipeline.Redis
	}

	// Setup routes
	api.SetupRoutes(server, cfg, deps)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Shutting down gracefully...")

		// Running scrapes commit what they have before exiting
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := tasks.Shutdown(ctx); err != nil {
			logger.Warn("Scrape tasks did not finish in time", zap.Error(err))
		}
		_ = server.Shutdown()
	}()

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("Server starting",
		zap.String("address", addr),
		zap.Int("sources", len(pipeline.Registry.All())),
	)

	if err := server.Listen(addr); err != nil {
		logger.Fatal("Server failed to start", zap.Error(err))
	}
}

// errorHandler handles errors globally
func errorHandler(c *fiber.Ctx, err error) error {
	// Default to 500
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logger.Error("Request error",
		zap.Int("status", code),
		zap.String("path", c.Path()),
		zap.Error(err),
	)

	return c.Status(code).JSON(fiber.Map{
		"error":   "request_failed",
		"message": message,
		"path":    c.Path(),
	})
}
