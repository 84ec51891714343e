// Package config handles configuration loading for cryptodash.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Market  MarketConfig  `mapstructure:"market"  yaml:"market"  json:"market"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage" json:"storage"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"     json:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`
}

// MarketConfig holds the upstream API and polling settings.
// APIKey is never serialized to JSON.
type MarketConfig struct {
	BaseURL           string `mapstructure:"base_url"            yaml:"base_url"            json:"base_url"`
	APIKey            string `mapstructure:"api_key"             yaml:"api_key"             json:"-"`
	PollIntervalSec   int    `mapstructure:"poll_interval_sec"   yaml:"poll_interval_sec"   json:"poll_interval_sec"`
	HistoryAsset      string `mapstructure:"history_asset"       yaml:"history_asset"       json:"history_asset"`
	HistoryInterval   string `mapstructure:"history_interval"    yaml:"history_interval"    json:"history_interval"` // e.g. "d1"
	HistoryWindowDays int    `mapstructure:"history_window_days" yaml:"history_window_days" json:"history_window_days"`
	HistoryTTLHours   int    `mapstructure:"history_ttl_hours"   yaml:"history_ttl_hours"   json:"history_ttl_hours"`
	HTTPTimeoutSec    int    `mapstructure:"http_timeout_sec"    yaml:"http_timeout_sec"    json:"http_timeout_sec"`   // 0 = no timeout
	RateLimitPerSec   int    `mapstructure:"rate_limit_per_sec"  yaml:"rate_limit_per_sec"  json:"rate_limit_per_sec"` // 0 = unlimited
}

// PollInterval returns the snapshot poll interval.
func (m MarketConfig) PollInterval() time.Duration {
	return time.Duration(m.PollIntervalSec) * time.Second
}

// HistoryWindow returns the look-back window of the historical series.
func (m MarketConfig) HistoryWindow() time.Duration {
	return time.Duration(m.HistoryWindowDays) * 24 * time.Hour
}

// HistoryTTL returns the minimum age before the series is refetched.
func (m MarketConfig) HistoryTTL() time.Duration {
	return time.Duration(m.HistoryTTLHours) * time.Hour
}

// HTTPTimeout returns the client timeout; zero disables it.
func (m MarketConfig) HTTPTimeout() time.Duration {
	return time.Duration(m.HTTPTimeoutSec) * time.Second
}

// StorageConfig selects where favorites are persisted.
type StorageConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"` // "file" or "sqlite"
	Path    string `mapstructure:"path"    yaml:"path"    json:"path"`    // directory (file) or database file (sqlite)
	Key     string `mapstructure:"key"     yaml:"key"     json:"key"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"         json:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"         json:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins" json:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  json:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format" json:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.cryptodash/config.yaml (home directory)
//  3. /etc/cryptodash/config.yaml (system)
//
// Environment variables override config file values.
// Format: CRYPTODASH_<SECTION>_<KEY>, e.g., CRYPTODASH_MARKET_API_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".cryptodash"))
	v.AddConfigPath("/etc/cryptodash")

	v.SetEnvPrefix("CRYPTODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("CRYPTODASH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Market defaults
	v.SetDefault("market.base_url", "https://api.coincap.io/v2")
	v.SetDefault("market.poll_interval_sec", 10)
	v.SetDefault("market.history_asset", "bitcoin")
	v.SetDefault("market.history_interval", "d1")
	v.SetDefault("market.history_window_days", 60)
	v.SetDefault("market.history_ttl_hours", 24)
	v.SetDefault("market.http_timeout_sec", 0)
	v.SetDefault("market.rate_limit_per_sec", 5)

	// Storage defaults
	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.path", "~/.cryptodash/storage")
	v.SetDefault("storage.key", "favorites")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Market.PollIntervalSec <= 0 {
		errs = append(errs, fmt.Errorf("market.poll_interval_sec must be positive, got %d", c.Market.PollIntervalSec))
	}
	if c.Market.HistoryWindowDays <= 0 {
		errs = append(errs, fmt.Errorf("market.history_window_days must be positive, got %d", c.Market.HistoryWindowDays))
	}
	if c.Market.HistoryTTLHours <= 0 {
		errs = append(errs, fmt.Errorf("market.history_ttl_hours must be positive, got %d", c.Market.HistoryTTLHours))
	}
	if c.Market.HTTPTimeoutSec < 0 {
		errs = append(errs, fmt.Errorf("market.http_timeout_sec must not be negative, got %d", c.Market.HTTPTimeoutSec))
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("storage.backend must be \"file\" or \"sqlite\", got %q", c.Storage.Backend))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv(APIKeyEnv); key != "" {
		cfg.Market.APIKey = key
	}
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
