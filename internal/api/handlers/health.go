package handlers

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/openintern/backend/internal/config"
)

const version = "1.0.0"

// Pinger is any backing service that can report liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthCheck returns the health status of the API and its optional backends.
// A nil pinger is reported as disabled.
func HealthCheck(backends map[string]Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := "healthy"
		checks := fiber.Map{}
		for name, p := range backends {
			switch {
			case p == nil:
				checks[name] = "disabled"
			case p.Ping(ctx) != nil:
				checks[name] = "unavailable"
				status = "degraded"
			default:
				checks[name] = "healthy"
			}
		}

		return c.JSON(fiber.Map{
			"status":   status,
			"version":  version,
			"backends": checks,
		})
	}
}

// ReadinessCheck reports ready once the store directory is reachable, along
// with the sources that already have records on disk
func ReadinessCheck(storeDir string, store RecordStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		info, err := os.Stat(storeDir)
		if err != nil || !info.IsDir() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"reason": "Store directory not available",
			})
		}

		stored, err := store.Sources()
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not_ready",
				"reason": "Store directory not readable",
			})
		}

		return c.JSON(fiber.Map{
			"status":         "ready",
			"stored_sources": stored,
		})
	}
}

// Root returns basic API info
func Root(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":        "OpenIntern Scraper API",
			"version":     version,
			"health":      "/health",
			"ready":       "/ready",
			"internships": "/api/internships",
			"debug":       cfg.Server.Debug,
		})
	}
}
