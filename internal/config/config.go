package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the scraper and the API
type Config struct {
	Server      ServerConfig            `yaml:"server"`
	Browser     BrowserConfig           `yaml:"browser"`
	Scrape      ScrapeConfig            `yaml:"scrape"`
	Store       StoreConfig             `yaml:"store"`
	Database    DatabaseConfig          `yaml:"database"`
	Cache       CacheConfig             `yaml:"cache"`
	Credentials CredentialsConfig       `yaml:"credentials"`
	Sources     map[string]SourceConfig `yaml:"sources"`
	CORS        CORSConfig              `yaml:"cors"`
	RateLimit   RateLimitConfig         `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	Debug        bool          `yaml:"debug"`
	LogFile      string        `yaml:"log_file"`
}

type BrowserConfig struct {
	Headless      bool          `yaml:"headless"`
	PageTimeout   time.Duration `yaml:"page_timeout"`
	UserAgents    []string      `yaml:"user_agents"`
	ProxyURL      string        `yaml:"proxy_url"`
	DisableImages bool          `yaml:"disable_images"`
	WindowWidth   int           `yaml:"window_width"`
	WindowHeight  int           `yaml:"window_height"`
	ExecPath      string        `yaml:"exec_path"`
}

// DelayRange is a closed interval a randomized wait is drawn from
type DelayRange struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

type ScrapeConfig struct {
	Pages             int           `yaml:"pages"`
	MaxAttempts       int           `yaml:"max_attempts"`
	DetailAttempts    int           `yaml:"detail_attempts"`
	SettleDelay       DelayRange    `yaml:"settle_delay"`
	Backoff           DelayRange    `yaml:"backoff"`
	BlockedBackoff    DelayRange    `yaml:"blocked_backoff"`
	DetailSettle      DelayRange    `yaml:"detail_settle"`
	DetailBackoff     DelayRange    `yaml:"detail_backoff"`
	PageDelay         DelayRange    `yaml:"page_delay"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	ScrollSteps       int           `yaml:"scroll_steps"`
	BlockMarkers      []string      `yaml:"block_markers"`
	SkipKnown         bool          `yaml:"skip_known"`
	DebugDir          string        `yaml:"debug_dir"`
}

type StoreConfig struct {
	Dir         string        `yaml:"dir"`
	LockTimeout time.Duration `yaml:"lock_timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	PoolSize int    `yaml:"pool_size"`
	SSLMode  string `yaml:"ssl_mode"`
}

// DSN returns URL when set, otherwise a DSN assembled from the parts
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&pool_max_conns=%d",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode, p.PoolSize)
}

type CacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix"`
}

// CredentialsConfig holds secrets for sources that need a login.
// Values normally come from the environment or a .env file.
type CredentialsConfig struct {
	LinkedInEmail    string `yaml:"linkedin_email"`
	LinkedInPassword string `yaml:"linkedin_password"`
}

// Lookup returns the credential stored under an environment variable name
func (c CredentialsConfig) Lookup(name string) string {
	switch name {
	case "LINKEDIN_EMAIL":
		return c.LinkedInEmail
	case "LINKEDIN_PASSWORD":
		return c.LinkedInPassword
	}
	return os.Getenv(name)
}

// SourceConfig overrides parts of a built-in source definition
type SourceConfig struct {
	Disabled bool              `yaml:"disabled"`
	Queries  []string          `yaml:"queries"`
	Params   map[string]string `yaml:"params"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// RateLimitConfig bounds API traffic per client IP. ScrapesPerHour applies
// to POST /api/scrape on top of the general limit.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	ScrapesPerHour    int  `yaml:"scrapes_per_hour"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:    true,
			PageTimeout: 30 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
				"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
			},
			DisableImages: true,
			WindowWidth:   1920,
			WindowHeight:  1080,
		},
		Scrape: ScrapeConfig{
			Pages:             10,
			MaxAttempts:       3,
			DetailAttempts:    3,
			SettleDelay:       DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			Backoff:           DelayRange{Min: 5 * time.Second, Max: 10 * time.Second},
			BlockedBackoff:    DelayRange{Min: 10 * time.Second, Max: 15 * time.Second},
			DetailSettle:      DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
			DetailBackoff:     DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
			PageDelay:         DelayRange{Min: 3 * time.Second, Max: 5 * time.Second},
			MaxBackoff:        time.Minute,
			RequestsPerMinute: 20,
			ScrollSteps:       3,
			BlockMarkers: []string{
				"captcha",
				"robot check",
				"are you a robot",
				"verify you are human",
				"verify you are a human",
				"just a moment",
				"attention required",
				"unusual traffic",
			},
			SkipKnown: true,
		},
		Store: StoreConfig{
			Dir:         "assets",
			LockTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				User:     "openintern",
				Password: "password",
				Database: "openintern",
				PoolSize: 5,
				SSLMode:  "disable",
			},
		},
		Cache: CacheConfig{
			Addr:   "localhost:6379",
			TTL:    30 * 24 * time.Hour,
			Prefix: "openintern:seen",
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			MaxAge:         600,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			ScrapesPerHour:    10,
		},
	}
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("SERVER_HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("DEBUG"); v == "true" {
		c.Server.Debug = true
	}

	// Browser
	if v := os.Getenv("BROWSER_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Browser.Headless = b
		}
	}
	if v := os.Getenv("BROWSER_PROXY_URL"); v != "" {
		c.Browser.ProxyURL = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}

	// Store
	if v := os.Getenv("STORE_DIR"); v != "" {
		c.Store.Dir = v
	}

	// Postgres
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.Postgres.URL = v
		c.Database.Postgres.Enabled = true
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Database.Postgres.Password = v
	}

	// Redis
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Addr = v
		c.Cache.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Password = v
	}

	// Credentials
	if v := os.Getenv("LINKEDIN_EMAIL"); v != "" {
		c.Credentials.LinkedInEmail = v
	}
	if v := os.Getenv("LINKEDIN_PASSWORD"); v != "" {
		c.Credentials.LinkedInPassword = v
	}
}
