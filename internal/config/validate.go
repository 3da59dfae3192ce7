package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports every configuration problem at once
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be 1..65535")
	}
	if cfg.Scrape.Pages < 1 {
		errs = append(errs, "scrape.pages must be >= 1")
	}
	if cfg.Scrape.MaxAttempts < 1 {
		errs = append(errs, "scrape.max_attempts must be >= 1")
	}
	if cfg.Scrape.DetailAttempts < 1 {
		errs = append(errs, "scrape.detail_attempts must be >= 1")
	}
	if cfg.Scrape.RequestsPerMinute < 0 {
		errs = append(errs, "scrape.requests_per_minute must be >= 0")
	}
	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMinute < 1 {
		errs = append(errs, "rate_limit.requests_per_minute must be >= 1")
	}
	if cfg.RateLimit.ScrapesPerHour < 0 {
		errs = append(errs, "rate_limit.scrapes_per_hour must be >= 0")
	}
	if cfg.Store.Dir == "" {
		errs = append(errs, "store.dir is required")
	}
	if cfg.Browser.PageTimeout <= 0 {
		errs = append(errs, "browser.page_timeout must be > 0")
	}
	if len(cfg.Browser.UserAgents) == 0 {
		errs = append(errs, "browser.user_agents must have at least 1 entry")
	}

	ranges := []struct {
		name string
		r    DelayRange
	}{
		{"scrape.settle_delay", cfg.Scrape.SettleDelay},
		{"scrape.backoff", cfg.Scrape.Backoff},
		{"scrape.blocked_backoff", cfg.Scrape.BlockedBackoff},
		{"scrape.detail_settle", cfg.Scrape.DetailSettle},
		{"scrape.detail_backoff", cfg.Scrape.DetailBackoff},
		{"scrape.page_delay", cfg.Scrape.PageDelay},
	}
	for _, r := range ranges {
		if r.r.Min < 0 || r.r.Max < r.r.Min {
			errs = append(errs, fmt.Sprintf("%s must satisfy 0 <= min <= max", r.name))
		}
	}

	for i, m := range cfg.Scrape.BlockMarkers {
		if strings.TrimSpace(m) == "" {
			errs = append(errs, fmt.Sprintf("scrape.block_markers[%d] cannot be empty", i))
		}
	}

	for name, src := range cfg.Sources {
		for i, q := range src.Queries {
			if strings.TrimSpace(q) == "" {
				errs = append(errs, fmt.Sprintf("sources.%s.queries[%d] cannot be empty", name, i))
			}
		}
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n- " + strings.Join(errs, "\n- "))
	}
	return nil
}
