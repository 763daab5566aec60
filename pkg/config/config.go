// Package config loads and validates the crawler configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (CRAWLER_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Every key maps to an environment variable by joining the section and key
// with underscores, e.g. CRAWLER_INTERVALS_FEED_STEP=2s or
// CRAWLER_API_HOST=https://public-api.example.com.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the full crawler configuration.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API describes the upstream feed endpoint and request parameters
	API APIConfig `mapstructure:"api" yaml:"api"`

	// Intervals holds the fixed retry/back-off waits of the crawler loops
	Intervals IntervalsConfig `mapstructure:"intervals" yaml:"intervals"`

	// Mongo configures the document position-store backend.
	// When Mongo.URL is set it takes precedence over Postgres.
	Mongo MongoConfig `mapstructure:"mongo" yaml:"mongo"`

	// Postgres configures the relational position-store backend
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`

	// Lock configures the single-writer distributed process lock
	Lock LockConfig `mapstructure:"lock" yaml:"lock"`

	// DateModified configures the backward-crawl stop barrier
	DateModified DateModifiedConfig `mapstructure:"date_modified" yaml:"date_modified"`

	// Bootstrap optionally pins the initial offsets instead of probing the feed head
	Bootstrap BootstrapConfig `mapstructure:"bootstrap" yaml:"bootstrap"`

	// Cooldown throttles the forward crawler while its offset is too fresh
	Cooldown CooldownConfig `mapstructure:"cooldown" yaml:"cooldown"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint. Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// APIConfig describes the upstream feed API.
type APIConfig struct {
	// Host is the API host, e.g. https://public-api.example.com.
	// Must start with http(s) and must not end with a slash.
	Host string `mapstructure:"host" validate:"required" yaml:"host"`

	// Version is the API version path segment, e.g. "2.5"
	Version string `mapstructure:"version" validate:"required" yaml:"version"`

	// Resource is the feed resource, e.g. "tenders"
	Resource string `mapstructure:"resource" validate:"required" yaml:"resource"`

	// Limit is the page size requested from the feed
	Limit int `mapstructure:"limit" validate:"gt=0" yaml:"limit"`

	// Mode is the feed mode query parameter, e.g. "_all_"
	Mode string `mapstructure:"mode" yaml:"mode"`

	// OptFields are extra item fields requested via opt_fields
	OptFields []string `mapstructure:"opt_fields" yaml:"opt_fields,omitempty"`

	// Token, when set, is forwarded as "Authorization: Bearer <token>"
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// UserAgent identifies the crawler to the upstream API
	UserAgent string `mapstructure:"user_agent" validate:"required" yaml:"user_agent"`

	// GetErrorRetries bounds retries of per-entity fetches on unexpected statuses
	GetErrorRetries int `mapstructure:"get_error_retries" validate:"gte=1" yaml:"get_error_retries"`
}

// BaseURL returns the versioned API base, e.g. "https://host/api/2.5".
func (c *APIConfig) BaseURL() string {
	return fmt.Sprintf("%s/api/%s", c.Host, c.Version)
}

// ResourceURL returns the feed endpoint for the configured resource.
func (c *APIConfig) ResourceURL() string {
	return fmt.Sprintf("%s/%s", c.BaseURL(), c.Resource)
}

// IntervalsConfig holds the fixed waits of the retry/back-off policy.
// All waits are fixed, not exponential.
type IntervalsConfig struct {
	// FeedStep is the pause between successful pages and after 412/unexpected errors
	FeedStep time.Duration `mapstructure:"feed_step" validate:"gte=0" yaml:"feed_step"`

	// TooManyRequests is the pause after an HTTP 429
	TooManyRequests time.Duration `mapstructure:"too_many_requests" validate:"gt=0" yaml:"too_many_requests"`

	// ConnectionError is the pause after transport or decode errors
	ConnectionError time.Duration `mapstructure:"connection_error" validate:"gt=0" yaml:"connection_error"`

	// NoItems is the pause when a page returned fewer than Limit items (feed at tail)
	NoItems time.Duration `mapstructure:"no_items" validate:"gt=0" yaml:"no_items"`

	// DBError is the pause between position-store retries
	DBError time.Duration `mapstructure:"db_error" validate:"gt=0" yaml:"db_error"`
}

// MongoConfig configures the document position-store backend.
type MongoConfig struct {
	// URL is the MongoDB connection string; empty disables the backend
	URL string `mapstructure:"url" yaml:"url,omitempty"`

	Database        string `mapstructure:"database" yaml:"database"`
	StateCollection string `mapstructure:"state_collection" yaml:"state_collection"`

	// StateID keys the single position record. Rename it per crawler process
	// when several crawlers share one database.
	StateID string `mapstructure:"state_id" yaml:"state_id"`
}

// PostgresConfig configures the relational position-store backend.
type PostgresConfig struct {
	// Host enables the backend when set (and Mongo.URL is empty)
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// StateTable is created on first use if missing
	StateTable string `mapstructure:"state_table" yaml:"state_table"`
	StateID    string `mapstructure:"state_id" yaml:"state_id"`
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
		c.Host, c.Port, c.User, c.Password, c.Database)
}

// LockConfig configures the distributed process lock.
type LockConfig struct {
	// Enabled turns the single-active-crawler guarantee on
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Collection is the lock record collection (document store)
	Collection string `mapstructure:"collection" yaml:"collection"`

	// ProcessName keys the lock record; one live crawler per process name
	ProcessName string `mapstructure:"process_name" yaml:"process_name"`

	// ExpireTime is the lock TTL; a crashed holder is reaped after this
	ExpireTime time.Duration `mapstructure:"expire_time" validate:"gt=0" yaml:"expire_time"`

	// UpdateTime is the heartbeat cadence; must stay well under ExpireTime
	UpdateTime time.Duration `mapstructure:"update_time" validate:"gt=0" yaml:"update_time"`

	// AcquireInterval is the pause between acquisition attempts
	AcquireInterval time.Duration `mapstructure:"acquire_interval" validate:"gt=0" yaml:"acquire_interval"`
}

// DateModifiedConfig configures the backward-crawl date-modified barrier.
type DateModifiedConfig struct {
	// LockEnabled engages the lock_date_modified latch semantics
	LockEnabled bool `mapstructure:"lock_enabled" yaml:"lock_enabled"`

	// SkipStatuses lists item statuses whose dateModified is unreliable
	// for position tracking (items mutate in place within one phase)
	SkipStatuses []string `mapstructure:"skip_statuses" yaml:"skip_statuses,omitempty"`

	// Margin widens the stop barrier below the persisted latest_date_modified
	Margin time.Duration `mapstructure:"margin" validate:"gte=0" yaml:"margin"`
}

// BootstrapConfig optionally pins the initial offsets.
type BootstrapConfig struct {
	ForwardOffset  string `mapstructure:"forward_offset" yaml:"forward_offset,omitempty"`
	BackwardOffset string `mapstructure:"backward_offset" yaml:"backward_offset,omitempty"`
}

// Configured reports whether both initial offsets were supplied.
func (c *BootstrapConfig) Configured() bool {
	return c.ForwardOffset != "" && c.BackwardOffset != ""
}

// CooldownConfig throttles the forward crawler while its offset is too fresh.
// Zero ForwardChanges disables the cooldown entirely.
type CooldownConfig struct {
	// ForwardChanges is the minimum offset age before the forward crawler proceeds
	ForwardChanges time.Duration `mapstructure:"forward_changes" validate:"gte=0" yaml:"forward_changes"`

	// SleepForwardChanges is how long to sleep while the offset is within cooldown
	SleepForwardChanges time.Duration `mapstructure:"sleep_forward_changes" validate:"gte=0" yaml:"sleep_forward_changes"`
}

// Load loads configuration from file, environment, and defaults.
// configPath may be empty, in which case only defaults and CRAWLER_* env
// variables apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the config may carry the API token and database password
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures environment variables, defaults, and the config file.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the CRAWLER_ prefix with underscores,
	// e.g. CRAWLER_API_LIMIT=100
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Registering every default makes the key known to viper, which is what
	// lets AutomaticEnv pick up env-only overrides without a config file.
	registerDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
}

// configDecodeHooks returns the combined decode hook for custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// durationDecodeHook converts config strings like "30s" or "5m" and raw
// numbers (seconds) to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				return d, nil
			}
			// bare numbers are seconds, matching the *_SECONDS env convention
			var secs float64
			if _, err := fmt.Sscanf(v, "%g", &secs); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
			return nil, fmt.Errorf("invalid duration %q", v)
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
