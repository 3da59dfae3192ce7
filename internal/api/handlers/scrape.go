package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/openintern/backend/internal/api/middleware"
	"github.com/openintern/backend/internal/domain"
	"github.com/openintern/backend/internal/scraper"
)

// maxPages bounds a single API-triggered run
const maxPages = 50

// ScrapeService defines the interface for background scrape tasks
type ScrapeService interface {
	Trigger(source domain.JobSource, pages int) (*domain.ScrapeTask, error)
	Status(id uuid.UUID) (*domain.ScrapeTask, error)
	List() []domain.ScrapeTask
}

// ScrapeHandler handles scrape API requests
type ScrapeHandler struct {
	service      ScrapeService
	defaultPages int
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(service ScrapeService, defaultPages int) *ScrapeHandler {
	return &ScrapeHandler{service: service, defaultPages: defaultPages}
}

// Trigger handles POST /api/scrape
func (h *ScrapeHandler) Trigger(c *fiber.Ctx) error {
	var req struct {
		Source string `json:"source"`
		Pages  int    `json:"pages"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
	}

	source := strings.ToLower(strings.TrimSpace(req.Source))
	c.Locals(middleware.LocalSource, source)
	if source == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Source is required",
		})
	}

	pages := req.Pages
	if pages <= 0 {
		pages = h.defaultPages
	}
	if pages > maxPages {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Pages must not exceed 50",
		})
	}

	task, err := h.service.Trigger(domain.JobSource(source), pages)
	switch {
	case errors.Is(err, domain.ErrUnknownSource):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Unknown source: " + source,
		})
	case errors.Is(err, scraper.ErrScrapeInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "conflict",
			"message": "A scrape for " + source + " is already running",
		})
	case err != nil:
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "scrape_failed",
			"message": err.Error(),
		})
	}

	c.Locals(middleware.LocalTaskID, task.ID.String())
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"task_id": task.ID,
		"status":  task.Status,
		"message": "Scraping started",
	})
}

// Status handles GET /api/scrape/:task_id
func (h *ScrapeHandler) Status(c *fiber.Ctx) error {
	c.Locals(middleware.LocalTaskID, c.Params("task_id"))
	id, err := uuid.Parse(c.Params("task_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": "Invalid task ID",
		})
	}

	task, err := h.service.Status(id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "not_found",
			"message": "Task not found",
		})
	}

	c.Locals(middleware.LocalSource, string(task.Source))
	return c.JSON(task)
}

// List handles GET /api/scrape
func (h *ScrapeHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"tasks": h.service.List()})
}
