// Package config loads gridwatch settings from defaults, an optional YAML
// file, a .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rampantspark/gridwatch/internal/logging"
	"github.com/rampantspark/gridwatch/internal/ratelimit"
	"github.com/rampantspark/gridwatch/internal/server"
	"github.com/rampantspark/gridwatch/internal/tradelog"
)

// DefaultEnvFile is read when present; a missing file is not an error.
const DefaultEnvFile = ".env"

// Environment variables that override file settings.
const (
	EnvHomePrefix     = "HOME_PREFIX"
	EnvHost           = "GRIDWATCH_HOST"
	EnvPort           = "GRIDWATCH_PORT"
	EnvDashboardToken = "GRIDWATCH_DASHBOARD_TOKEN"
	EnvLogLevel       = "GRIDWATCH_LOG_LEVEL"
	EnvLogFormat      = "GRIDWATCH_LOG_FORMAT"
	EnvTradeLogPath   = "GRIDWATCH_TRADE_LOG"
	EnvStateFile      = "GRIDWATCH_STATE_FILE"
	EnvJournalPath    = "GRIDWATCH_JOURNAL"
)

// Config holds all gridwatch configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	TradeLog  TradeLogConfig  `yaml:"tradelog"`
	Trader    TraderConfig    `yaml:"trader"`
	Journal   JournalConfig   `yaml:"journal"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type DashboardConfig struct {
	// HomePrefix is the path of the HTML page without its leading slash.
	HomePrefix     string        `yaml:"home_prefix"`
	Token          string        `yaml:"token"`
	SecureCookie   bool          `yaml:"secure_cookie"`
	PushInterval   time.Duration `yaml:"push_interval"`
	RecentVisitors int           `yaml:"recent_visitors"`
}

type TradeLogConfig struct {
	Path     string        `yaml:"path"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Watch    bool          `yaml:"watch"`
}

type TraderConfig struct {
	StateFile string `yaml:"state_file"`
}

type JournalConfig struct {
	// Path of the SQLite file; empty disables the journal.
	Path string `yaml:"path"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	MaxTrackedClients int     `yaml:"max_tracked_clients"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	srv := server.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Host:            srv.Host,
			Port:            srv.Port,
			ReadTimeout:     srv.ReadTimeout,
			WriteTimeout:    srv.WriteTimeout,
			IdleTimeout:     srv.IdleTimeout,
			ShutdownTimeout: srv.ShutdownTimeout,
			MaxHeaderBytes:  srv.MaxHeaderBytes,
			MaxBodyBytes:    64 << 10,
		},
		Dashboard: DashboardConfig{
			PushInterval:   2 * time.Second,
			RecentVisitors: 5,
		},
		TradeLog: TradeLogConfig{
			Path:     tradelog.DefaultPath,
			CacheTTL: tradelog.DefaultCacheTTL,
			Watch:    true,
		},
		Trader: TraderConfig{
			StateFile: "data/trader_state.json",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: ratelimit.DefaultRequestsPerSecond,
			Burst:             ratelimit.DefaultBurst,
			MaxTrackedClients: ratelimit.DefaultMaxTrackedClients,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatText,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty), DefaultEnvFile and the process environment.
func Load(path string) (*Config, error) {
	return LoadWith(path, DefaultEnvFile, os.LookupEnv)
}

// LoadWith is Load with an explicit .env location and environment lookup.
// Variables in the real environment win over those in the .env file.
func LoadWith(path, envFile string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	dotenv := map[string]string{}
	if envFile != "" {
		values, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dotenv = values
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("reading env file %s: %w", envFile, err)
		}
	}

	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	cfg.Normalize()
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for key, dst := range map[string]*string{
		EnvHomePrefix:     &c.Dashboard.HomePrefix,
		EnvHost:           &c.Server.Host,
		EnvPort:           &c.Server.Port,
		EnvDashboardToken: &c.Dashboard.Token,
		EnvLogLevel:       &c.Logging.Level,
		EnvLogFormat:      &c.Logging.Format,
		EnvTradeLogPath:   &c.TradeLog.Path,
		EnvStateFile:      &c.Trader.StateFile,
		EnvJournalPath:    &c.Journal.Path,
	} {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
}

// Normalize canonicalises values that may be set after loading, such as
// command-line overrides.
func (c *Config) Normalize() {
	c.Dashboard.HomePrefix = strings.Trim(strings.TrimSpace(c.Dashboard.HomePrefix), "/")
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}

// HomePath is the route of the HTML page, always starting with "/".
func (c *Config) HomePath() string {
	return "/" + c.Dashboard.HomePrefix
}

// ServerSettings converts the server section for server.New.
func (c *Config) ServerSettings() server.Config {
	return server.Config{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
		MaxHeaderBytes:  c.Server.MaxHeaderBytes,
	}
}

// LimiterSettings converts the rate limit section for ratelimit.NewLimiter.
func (c *Config) LimiterSettings() ratelimit.Config {
	return ratelimit.Config{
		RequestsPerSecond: c.RateLimit.RequestsPerSecond,
		Burst:             c.RateLimit.Burst,
		MaxTrackedClients: c.RateLimit.MaxTrackedClients,
	}
}

// Validate returns the first invalid setting found, or nil.
func (c *Config) Validate() error {
	srv := c.ServerSettings()
	if err := srv.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server: max_body_bytes must be positive, got %d", c.Server.MaxBodyBytes)
	}
	if strings.ContainsAny(c.Dashboard.HomePrefix, " ?#") {
		return fmt.Errorf("dashboard: invalid home_prefix %q", c.Dashboard.HomePrefix)
	}
	if c.Dashboard.HomePrefix == "api" || strings.HasPrefix(c.Dashboard.HomePrefix, "api/") || c.Dashboard.HomePrefix == "ws" {
		return fmt.Errorf("dashboard: home_prefix %q collides with a built-in route", c.Dashboard.HomePrefix)
	}
	if c.Dashboard.PushInterval <= 0 {
		return fmt.Errorf("dashboard: push_interval must be positive, got %s", c.Dashboard.PushInterval)
	}
	if c.Dashboard.RecentVisitors <= 0 {
		return fmt.Errorf("dashboard: recent_visitors must be positive, got %d", c.Dashboard.RecentVisitors)
	}
	if c.TradeLog.Path == "" {
		return errors.New("tradelog: path is required")
	}
	if c.TradeLog.CacheTTL < 0 {
		return fmt.Errorf("tradelog: cache_ttl must not be negative, got %s", c.TradeLog.CacheTTL)
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit: requests_per_second must be positive, got %v", c.RateLimit.RequestsPerSecond)
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit: burst must be positive, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.MaxTrackedClients <= 0 {
		return fmt.Errorf("rate_limit: max_tracked_clients must be positive, got %d", c.RateLimit.MaxTrackedClients)
	}
	switch c.Logging.Format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("logging: unknown format %q (want %q or %q)", c.Logging.Format, logging.FormatText, logging.FormatJSON)
	}
	return nil
}
