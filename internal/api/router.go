package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/openintern/backend/internal/api/handlers"
	"github.com/openintern/backend/internal/api/middleware"
	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/scraper"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, deps *Dependencies) {
	// Health check routes (no prefix)
	app.Get("/health", handlers.HealthCheck(map[string]handlers.Pinger{
		"postgres": deps.Postgres,
		"redis":    deps.Redis,
	}))
	app.Get("/ready", handlers.ReadinessCheck(cfg.Store.Dir, deps.Store))
	app.Get("/", handlers.Root(cfg))

	api := app.Group("/api")

	// Internship routes
	internships := api.Group("/internships")
	internshipHandler := handlers.NewInternshipHandler(deps.Store, deps.Registry, deps.Mirror)
	internships.Get("/", internshipHandler.List)
	internships.Get("/sources", internshipHandler.Sources)
	internships.Get("/skills", internshipHandler.Skills)

	// Scrape routes
	scrape := api.Group("/scrape")
	scrapeHandler := handlers.NewScrapeHandler(deps.Tasks, cfg.Scrape.Pages)
	scrape.Post("/", middleware.ScrapeLimiter(cfg.RateLimit), scrapeHandler.Trigger)
	scrape.Get("/", scrapeHandler.List)
	scrape.Get("/:task_id", scrapeHandler.Status)
}

// Dependencies holds all service dependencies for handlers. Mirror, Postgres
// and Redis stay nil when the optional backends are disabled.
type Dependencies struct {
	Store    handlers.RecordStore
	Registry *scraper.Registry
	Tasks    handlers.ScrapeService
	Mirror   handlers.MirrorCounter
	Postgres handlers.Pinger
	Redis    handlers.Pinger
}
