// Package config handles configuration loading for fxvault.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Forex    ForexConfig    `mapstructure:"forex"    yaml:"forex"`
	Backfill BackfillConfig `mapstructure:"backfill" yaml:"backfill"`
	Poller   PollerConfig   `mapstructure:"poller"   yaml:"poller"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// StorageConfig holds snapshot storage settings.
type StorageConfig struct {
	Root string `mapstructure:"root" yaml:"root"` // snapshot directory, e.g. ~/.fxvault/data
}

// ForexConfig holds rate-provider configuration.
type ForexConfig struct {
	BaseCurrency    string `mapstructure:"base_currency"     yaml:"base_currency"`    // stored snapshot base, e.g. "USD"
	LatestProvider  string `mapstructure:"latest_provider"   yaml:"latest_provider"`  // "openexchange" or "beacon"
	HistoryProvider string `mapstructure:"history_provider"  yaml:"history_provider"` // "openexchange" or "beacon"
	OpenExchangeKey string `mapstructure:"openexchange_key"  yaml:"openexchange_key"`
	BeaconKey       string `mapstructure:"beacon_key"        yaml:"beacon_key"`
}

// BackfillConfig holds historical backfill settings.
type BackfillConfig struct {
	RateLimit        int `mapstructure:"rate_limit"         yaml:"rate_limit"`         // concurrent fetches per batch
	BatchCooldownSec int `mapstructure:"batch_cooldown_sec" yaml:"batch_cooldown_sec"` // pause between batches
	QuotaFloor       int `mapstructure:"quota_floor"        yaml:"quota_floor"`        // requests to leave unspent
}

// PollerConfig holds the background poll schedule.
type PollerConfig struct {
	LatestIntervalSec int    `mapstructure:"latest_interval_sec" yaml:"latest_interval_sec"`
	DailyAt           string `mapstructure:"daily_at"            yaml:"daily_at"` // "HH:MM" UTC
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"          yaml:"host"`
	Port        int      `mapstructure:"port"          yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins"  yaml:"cors_origins"`
	CacheTTLSec int      `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.fxvault/config.yaml (home directory)
//  3. /etc/fxvault/config.yaml (system)
//
// Environment variables override config file values.
// Format: FXVAULT_<SECTION>_<KEY>, e.g., FXVAULT_FOREX_OPENEXCHANGE_KEY
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".fxvault"))
	v.AddConfigPath("/etc/fxvault")

	// Environment variable settings
	v.SetEnvPrefix("FXVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override sensitive values from environment
	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("FXVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Storage defaults
	v.SetDefault("storage.root", filepath.Join(homeDir(), ".fxvault", "data"))

	// Forex defaults
	v.SetDefault("forex.base_currency", "USD")
	v.SetDefault("forex.latest_provider", "openexchange")
	v.SetDefault("forex.history_provider", "beacon")

	// Backfill defaults (free openexchangerates.org plan: 1,000 req/month)
	v.SetDefault("backfill.rate_limit", 2)
	v.SetDefault("backfill.batch_cooldown_sec", 2)
	v.SetDefault("backfill.quota_floor", 50)

	// Poller defaults
	v.SetDefault("poller.latest_interval_sec", 3600) // hourly
	v.SetDefault("poller.daily_at", "00:15")

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.cache_ttl_sec", 60)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("FXVAULT_FOREX_OPENEXCHANGE_KEY"); key != "" {
		cfg.Forex.OpenExchangeKey = key
	}
	if key := os.Getenv("FXVAULT_FOREX_BEACON_KEY"); key != "" {
		cfg.Forex.BeaconKey = key
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
