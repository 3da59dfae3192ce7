package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/openintern/backend/internal/api/middleware"
	"github.com/openintern/backend/internal/classifier"
	"github.com/openintern/backend/internal/domain"
	"github.com/openintern/backend/internal/scraper"
)

// RecordReader reads persisted records per source
type RecordReader interface {
	Load(source domain.JobSource) []domain.JobRecord
}

// RecordStore is a RecordReader that also knows which sources have data
type RecordStore interface {
	RecordReader
	Sources() ([]domain.JobSource, error)
}

// MirrorCounter counts the rows mirrored for a source
type MirrorCounter interface {
	Count(ctx context.Context, source domain.JobSource) (int, error)
}

// InternshipHandler serves the persisted internships
type InternshipHandler struct {
	store    RecordReader
	registry *scraper.Registry
	mirror   MirrorCounter
}

// NewInternshipHandler creates a new internship handler. mirror may be nil.
func NewInternshipHandler(store RecordReader, registry *scraper.Registry, mirror MirrorCounter) *InternshipHandler {
	return &InternshipHandler{store: store, registry: registry, mirror: mirror}
}

// InternshipFilter narrows a listing request
type InternshipFilter struct {
	Remote *bool
	Paid   *bool
	Skill  string
	Query  string
}

// Match reports whether r passes every set criterion
func (f InternshipFilter) Match(r *domain.JobRecord) bool {
	if f.Remote != nil && r.IsRemote != *f.Remote {
		return false
	}
	if f.Paid != nil && r.IsPaid != *f.Paid {
		return false
	}
	if f.Skill != "" && !r.HasSkill(f.Skill) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		text := strings.ToLower(r.Title + " " + r.Company + " " + r.DetailedRequirements)
		if !strings.Contains(text, q) {
			return false
		}
	}
	return true
}

// List handles GET /api/internships
func (h *InternshipHandler) List(c *fiber.Ctx) error {
	sources, err := h.sources(c.Query("source"))
	if len(sources) == 1 {
		c.Locals(middleware.LocalSource, string(sources[0]))
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "invalid_request",
			"message": err.Error(),
		})
	}

	filter := InternshipFilter{
		Skill: strings.TrimSpace(c.Query("skill")),
		Query: strings.TrimSpace(c.Query("q")),
	}
	if filter.Remote, err = optionalBool(c.Query("remote")); err != nil {
		return badParam(c, "remote")
	}
	if filter.Paid, err = optionalBool(c.Query("paid")); err != nil {
		return badParam(c, "paid")
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	matched := make([]domain.JobRecord, 0)
	for _, src := range sources {
		for _, r := range h.store.Load(src) {
			if filter.Match(&r) {
				matched = append(matched, r)
			}
		}
	}

	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return c.JSON(fiber.Map{
		"items":    matched[start:end],
		"total":    len(matched),
		"page":     page,
		"limit":    limit,
		"has_more": end < len(matched),
	})
}

// Sources handles GET /api/internships/sources. With the Postgres mirror
// enabled each entry also reports its mirrored row count.
func (h *InternshipHandler) Sources(c *fiber.Ctx) error {
	all := h.registry.All()
	out := make([]fiber.Map, 0, len(all))
	for _, src := range all {
		entry := fiber.Map{
			"id":         src.ID,
			"name":       src.Name,
			"login":      src.NeedsLogin(),
			"queries":    src.Queries,
			"stored":     len(h.store.Load(src.ID)),
			"search_url": src.SearchURL(firstQuery(src), 0),
			"pagination": src.Pagination.Kind,
			"job_type":   src.DefaultJobType,
		}
		if h.mirror != nil {
			// Count errors leave the field out
			if n, err := h.mirror.Count(c.UserContext(), src.ID); err == nil {
				entry["mirrored"] = n
			}
		}
		out = append(out, entry)
	}
	return c.JSON(fiber.Map{"sources": out})
}

// Skills handles GET /api/internships/skills
func (h *InternshipHandler) Skills(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"skills": classifier.Vocabulary()})
}

func (h *InternshipHandler) sources(name string) ([]domain.JobSource, error) {
	if name == "" || name == "all" {
		all := h.registry.All()
		out := make([]domain.JobSource, 0, len(all))
		for _, s := range all {
			out = append(out, s.ID)
		}
		return out, nil
	}
	src, ok := h.registry.Get(domain.JobSource(strings.ToLower(name)))
	if !ok {
		return nil, domain.ErrUnknownSource
	}
	return []domain.JobSource{src.ID}, nil
}

func firstQuery(src *scraper.Source) string {
	if len(src.Queries) == 0 {
		return ""
	}
	return src.Queries[0]
}

func optionalBool(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func badParam(c *fiber.Ctx, name string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "invalid_request",
		"message": name + " must be true or false",
	})
}
