package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/config"
)

// Locals keys handlers fill so the request log names the scrape involved
const (
	LocalSource = "source"
	LocalTaskID = "task_id"
)

// Setup installs the middleware shared by every route
func Setup(app *fiber.App, cfg *config.Config, log *zap.Logger) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: cfg.Server.Debug,
	}))

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return uuid.New().String()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     joinOrigins(cfg.CORS.AllowedOrigins),
		AllowMethods:     joinOrigins(cfg.CORS.AllowedMethods),
		AllowHeaders:     joinOrigins(cfg.CORS.AllowedHeaders),
		AllowCredentials: len(cfg.CORS.AllowedOrigins) > 0,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	// Logged before limiting so rejected clients show up too
	app.Use(RequestLogger(log, cfg.Server.Debug))

	if cfg.RateLimit.Enabled {
		app.Use(perIP(cfg.RateLimit.RequestsPerMinute, time.Minute,
			"rate_limit_exceeded", "Too many requests. Please try again later."))
	}
}

// ScrapeLimiter caps how many scrapes one client may start per hour, on top
// of the general limit. Zero disables it.
func ScrapeLimiter(cfg config.RateLimitConfig) fiber.Handler {
	if !cfg.Enabled || cfg.ScrapesPerHour == 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	return perIP(cfg.ScrapesPerHour, time.Hour,
		"scrape_limit_exceeded", "Too many scrapes started. Please try again later.")
}

func perIP(max int, window time.Duration, code, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":   code,
				"message": message,
			})
		},
	})
}

// RequestLogger logs each request with its outcome and sets X-Process-Time.
// Scrape routes add the source and task they touched.
func RequestLogger(log *zap.Logger, debug bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		c.Set("X-Process-Time", duration.String())

		// The error handler writes the response after the chain returns
		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		// Probes are logged only on failure
		if isProbe(c.Path()) && status < 400 {
			return err
		}

		fields := []zap.Field{
			zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.String("ip", c.IP()),
		}
		if source, ok := c.Locals(LocalSource).(string); ok && source != "" {
			fields = append(fields, zap.String("source", source))
		}
		if id, ok := c.Locals(LocalTaskID).(string); ok && id != "" {
			fields = append(fields, zap.String("task_id", id))
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}
		if debug {
			fields = append(fields, zap.String("user_agent", c.Get(fiber.HeaderUserAgent)))
		}

		switch {
		case status >= 500:
			log.Error("Server error", fields...)
		case status >= 400:
			log.Warn("Client error", fields...)
		case duration > 2*time.Second:
			log.Warn("Slow request", fields...)
		case debug:
			log.Debug("Request completed", fields...)
		}

		return err
	}
}

func isProbe(path string) bool {
	return path == "/health" || path == "/ready"
}

// joinOrigins joins list entries with commas, allowing everything when empty
func joinOrigins(items []string) string {
	if len(items) == 0 {
		return "*"
	}
	return strings.Join(items, ",")
}
