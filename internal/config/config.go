package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	Env   string
	Debug bool

	ServerPort string

	TahmoUsername  string
	TahmoPassword  string
	TahmoAPIURL    string
	ForecastAPIKey string
	ForecastAPIURL string

	UpstreamTimeout time.Duration
	RequestTimeout  time.Duration

	StoreBackend          string // "csv", "sqlite" or "memcached"
	StationsCSVPath       string
	SQLitePath            string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RefreshSchedule     string
	RefreshMisfireGrace time.Duration
	RefreshOnStart      bool

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Tahmo struct {
		URL string `yaml:"url"`
	} `yaml:"tahmo"`

	Forecast struct {
		URL string `yaml:"url"`
	} `yaml:"forecast"`

	Upstream struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"upstream"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Store struct {
		Backend string `yaml:"backend"`
		CSVPath string `yaml:"csv_path"`
		SQLPath string `yaml:"sqlite_path"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Refresh struct {
		Schedule     string `yaml:"schedule"`
		MisfireGrace string `yaml:"misfire_grace"`
		OnStart      *bool  `yaml:"on_start"`
	} `yaml:"refresh"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	TahmoAPIUsername string `yaml:"tahmo_api_username"`
	TahmoAPIPassword string `yaml:"tahmo_api_password"`
	ForecastAPIKey   string `yaml:"forecast_api_key"`
}

// Load reads .env, then config/{ENV}.yaml (optional) and config/secrets.yaml (optional).
// Environment variables win over file values. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read .env: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("ENV"))
	if env == "" {
		env = "prod"
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := &Config{
		Env:   env,
		Debug: env == "dev",
	}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8000")

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read secrets file: %w", err)
	default:
		if err := yaml.Unmarshal(secretsData, &sec); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
	}
	cfg.TahmoUsername = firstNonEmpty(os.Getenv("TAHMO_API_USERNAME"), sec.TahmoAPIUsername)
	cfg.TahmoPassword = firstNonEmpty(os.Getenv("TAHMO_API_PASSWORD"), sec.TahmoAPIPassword)
	cfg.ForecastAPIKey = firstNonEmpty(os.Getenv("FORFECAST_API_KEY"), sec.ForecastAPIKey)

	cfg.TahmoAPIURL = firstNonEmpty(os.Getenv("TAHMO_API_URL"), fc.Tahmo.URL, "https://datahub.tahmo.org/services/")
	cfg.ForecastAPIURL = firstNonEmpty(os.Getenv("FORECAST_API_URL"), fc.Forecast.URL, "https://my.meteoblue.com/packages/basic-1h_basic-day/")

	cfg.UpstreamTimeout = parseDurationOrZero(firstNonEmpty(os.Getenv("UPSTREAM_TIMEOUT"), fc.Upstream.Timeout), 15*time.Second)
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 35*time.Second)

	cfg.StoreBackend = strings.ToLower(firstNonEmpty(os.Getenv("STORE_BACKEND"), fc.Store.Backend, "csv"))
	cfg.StationsCSVPath = firstNonEmpty(os.Getenv("STATIONS_CSV_PATH"), fc.Store.CSVPath, filepath.Join("data", "stations.csv"))
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.Store.SQLPath, filepath.Join("data", "stations.db"))
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Store.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RefreshSchedule = firstNonEmpty(os.Getenv("REFRESH_SCHEDULE"), fc.Refresh.Schedule, "0 0 * * *")
	cfg.RefreshMisfireGrace = parseDuration(fc.Refresh.MisfireGrace, 60*time.Second)
	cfg.RefreshOnStart = true
	if fc.Refresh.OnStart != nil {
		cfg.RefreshOnStart = *fc.Refresh.OnStart
	}
	if v := strings.TrimSpace(os.Getenv("REFRESH_ON_START")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REFRESH_ON_START %q: %w", v, err)
		}
		cfg.RefreshOnStart = b
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate checks credentials and backend choice. RequestTimeout is raised to
// cover the two sequential upstream calls made per /api/data request.
func validate(cfg *Config) error {
	var missing []string
	if cfg.TahmoUsername == "" {
		missing = append(missing, "TAHMO_API_USERNAME")
	}
	if cfg.TahmoPassword == "" {
		missing = append(missing, "TAHMO_API_PASSWORD")
	}
	if cfg.ForecastAPIKey == "" {
		missing = append(missing, "FORFECAST_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required (set env, .env or config/secrets.yaml)", strings.Join(missing, ", "))
	}
	if cfg.UpstreamTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= 2*cfg.UpstreamTimeout {
		cfg.RequestTimeout = 2*cfg.UpstreamTimeout + time.Second
	}
	switch cfg.StoreBackend {
	case "csv", "sqlite", "memcached":
		// valid
	default:
		return fmt.Errorf("store.backend must be csv, sqlite or memcached, got %q", cfg.StoreBackend)
	}
	return nil
}
