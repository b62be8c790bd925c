// Package config handles configuration loading for secfacts.
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

// Failure policies for multi-period pipeline runs.
const (
	FailFast   = "fail_fast"
	BestEffort = "best_effort"
)

// Config represents the complete application configuration.
type Config struct {
	SEC      SECConfig      `mapstructure:"sec"      yaml:"sec"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// SECConfig holds the upstream endpoints and the fair-access identity.
type SECConfig struct {
	UserAgent     string `mapstructure:"user_agent"      yaml:"user_agent"` // product token, e.g. "secfacts/1.0"
	Email         string `mapstructure:"email"           yaml:"email"`      // contact address SEC requires
	TickersURL    string `mapstructure:"tickers_url"     yaml:"tickers_url"`
	DatasetsURL   string `mapstructure:"datasets_url"    yaml:"datasets_url"`
	CatalogURL    string `mapstructure:"catalog_url"     yaml:"catalog_url"` // empty disables asOf clamping
	MinIntervalMs int    `mapstructure:"min_interval_ms" yaml:"min_interval_ms"`
	TimeoutSec    int    `mapstructure:"timeout_sec"     yaml:"timeout_sec"`
}

// CacheConfig holds cache lifetimes and the optional archive directory.
type CacheConfig struct {
	DatasetTTL time.Duration `mapstructure:"dataset_ttl" yaml:"dataset_ttl"`
	TickerTTL  time.Duration `mapstructure:"ticker_ttl"  yaml:"ticker_ttl"`
	Dir        string        `mapstructure:"dir"         yaml:"dir"` // empty disables the disk store
}

// PipelineConfig holds statement retrieval settings.
type PipelineConfig struct {
	FailurePolicy       string `mapstructure:"failure_policy"       yaml:"failure_policy"` // "fail_fast" or "best_effort"
	PrefetchConcurrency int    `mapstructure:"prefetch_concurrency" yaml:"prefetch_concurrency"`
	TagsFile            string `mapstructure:"tags_file"            yaml:"tags_file"`
	IncludeDimensional  bool   `mapstructure:"include_dimensional"  yaml:"include_dimensional"`
	RequestTimeoutSec   int    `mapstructure:"request_timeout_sec"  yaml:"request_timeout_sec"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Identity returns the User-Agent value sent on every SEC request.
func (c SECConfig) Identity() string {
	ua := strings.TrimSpace(c.UserAgent)
	email := strings.TrimSpace(c.Email)
	switch {
	case ua == "":
		return email
	case email == "":
		return ua
	default:
		return ua + " " + email
	}
}

// MinInterval returns the minimum delay between SEC requests.
func (c SECConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (c SECConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// RequestTimeout returns the whole-pipeline deadline, zero meaning none.
func (c PipelineConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Addr returns the listen address for the API server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ErrMissingIdentity is returned by Validate when no contact email is configured.
var ErrMissingIdentity = errors.New("sec.email is required: SEC rejects requests without a contact address (set SECFACTS_SEC_EMAIL)")

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if !strings.Contains(c.SEC.Email, "@") {
		return ErrMissingIdentity
	}
	switch c.Pipeline.FailurePolicy {
	case FailFast, BestEffort:
	default:
		return fmt.Errorf("pipeline.failure_policy: unknown policy %q (want %s or %s)",
			c.Pipeline.FailurePolicy, FailFast, BestEffort)
	}
	if c.SEC.MinIntervalMs < 0 {
		return fmt.Errorf("sec.min_interval_ms: must not be negative, got %d", c.SEC.MinIntervalMs)
	}
	if c.Cache.DatasetTTL <= 0 {
		return fmt.Errorf("cache.dataset_ttl: must be positive, got %s", c.Cache.DatasetTTL)
	}
	return nil
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.secfacts/config.yaml (home directory)
//  3. /etc/secfacts/config.yaml (system)
//
// Environment variables override config file values.
// Format: SECFACTS_<SECTION>_<KEY>, e.g., SECFACTS_SEC_EMAIL
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".secfacts"))
	v.AddConfigPath("/etc/secfacts")

	v.SetEnvPrefix("SECFACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SECFACTS")
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
	// SEC endpoints and fair-access policy
	v.SetDefault("sec.user_agent", "secfacts/1.0")
	v.SetDefault("sec.email", "")
	v.SetDefault("sec.tickers_url", "https://www.sec.gov/files/company_tickers.json")
	v.SetDefault("sec.datasets_url", "https://www.sec.gov/files/dera/data/financial-statement-data-sets")
	v.SetDefault("sec.catalog_url", "https://www.sec.gov/dera/data/financial-statement-data-sets")
	v.SetDefault("sec.min_interval_ms", 100)
	v.SetDefault("sec.timeout_sec", 120) // archives run to tens of MB

	// Cache defaults
	v.SetDefault("cache.dataset_ttl", time.Hour)
	v.SetDefault("cache.ticker_ttl", time.Hour)
	v.SetDefault("cache.dir", "")

	// Pipeline defaults
	v.SetDefault("pipeline.failure_policy", FailFast)
	v.SetDefault("pipeline.prefetch_concurrency", 2)
	v.SetDefault("pipeline.tags_file", "")
	v.SetDefault("pipeline.include_dimensional", false)
	v.SetDefault("pipeline.request_timeout_sec", 600)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads identity keys from environment variables.
// SEC_EMAIL is honoured as a fallback since other EDGAR tools use it.
func overrideFromEnv(cfg *Config) {
	if email := os.Getenv("SECFACTS_SEC_EMAIL"); email != "" {
		cfg.SEC.Email = email
	} else if cfg.SEC.Email == "" {
		if email := os.Getenv("SEC_EMAIL"); email != "" {
			cfg.SEC.Email = email
		}
	}
	if ua := os.Getenv("SECFACTS_SEC_USER_AGENT"); ua != "" {
		cfg.SEC.UserAgent = ua
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
