package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultAPIURL is the Environment Agency real-time flood-monitoring API.
const DefaultAPIURL = "https://environment.data.gov.uk/flood-monitoring"

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	FloodAPIURL     string
	FloodAPITimeout time.Duration
	PageLimit       int
	MaxPages        int

	RequestTimeout time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration

	CatalogTTL    time.Duration
	ReadingsTTL   time.Duration
	DefaultWindow time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	TrackedRivers []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	FloodAPI struct {
		URL       string `yaml:"url"`
		Timeout   string `yaml:"timeout"`
		PageLimit int    `yaml:"page_limit"`
		MaxPages  int    `yaml:"max_pages"`
	} `yaml:"flood_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Session struct {
		CatalogTTL    string `yaml:"catalog_ttl"`
		ReadingsTTL   string `yaml:"readings_ttl"`
		DefaultWindow string `yaml:"default_window"`
	} `yaml:"session"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedRivers []string `yaml:"tracked_rivers"`
	} `yaml:"metrics"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev),
// falling back to built-in defaults when the file is absent. The flood API
// needs no credentials, so unlike most services there is no secrets file.
// Env overrides: FLOOD_API_URL, PORT.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = strings.TrimSpace(os.Getenv("PORT"))
	if cfg.ServerPort == "" {
		cfg.ServerPort = fc.Server.Port
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.FloodAPIURL = strings.TrimSpace(os.Getenv("FLOOD_API_URL"))
	if cfg.FloodAPIURL == "" {
		cfg.FloodAPIURL = fc.FloodAPI.URL
	}
	if cfg.FloodAPIURL == "" {
		cfg.FloodAPIURL = DefaultAPIURL
	}
	cfg.FloodAPITimeout = parseDuration(fc.FloodAPI.Timeout, 10*time.Second)
	cfg.PageLimit = fc.FloodAPI.PageLimit
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 500
	}
	cfg.MaxPages = fc.FloodAPI.MaxPages
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.CatalogTTL = parseDuration(fc.Session.CatalogTTL, time.Hour)
	cfg.ReadingsTTL = parseDuration(fc.Session.ReadingsTTL, 5*time.Minute)
	cfg.DefaultWindow = parseDuration(fc.Session.DefaultWindow, 24*time.Hour)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.TrackedRivers = fc.Metrics.TrackedRivers

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout must leave room
// for at least one upstream call; it is auto-adjusted if not.
func validate(cfg *Config) error {
	if cfg.FloodAPITimeout <= 0 {
		return fmt.Errorf("flood_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.FloodAPITimeout {
		cfg.RequestTimeout = cfg.FloodAPITimeout + time.Second
	}
	if cfg.PageLimit > 10000 {
		return fmt.Errorf("flood_api.page_limit must be <= 10000, got %d", cfg.PageLimit)
	}
	return nil
}
