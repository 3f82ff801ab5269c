// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. BORSA_DB_DSN.
const EnvPrefix = "BORSA"

// Storage backends for the raw page archive.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Backoff BackoffConfig `mapstructure:"backoff"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Extract ExtractConfig `mapstructure:"extract"`
	DB      DBConfig      `mapstructure:"db"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	API     APIConfig     `mapstructure:"api"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures outbound page requests.
type HTTPConfig struct {
	UserAgent      string  `mapstructure:"user_agent"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RespectRobots  bool    `mapstructure:"respect_robots"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// Timeout is the per-request timeout.
func (c HTTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffConfig tunes the retry driver.
type BackoffConfig struct {
	MaxRetries  int `mapstructure:"max_retries"`
	BaseMs      int `mapstructure:"base_ms"`
	CapMs       int `mapstructure:"cap_ms"`
	MaxExponent int `mapstructure:"max_exponent"`
}

// Base is the first retry delay.
func (c BackoffConfig) Base() time.Duration {
	return time.Duration(c.BaseMs) * time.Millisecond
}

// Cap bounds every retry delay.
func (c BackoffConfig) Cap() time.Duration {
	return time.Duration(c.CapMs) * time.Millisecond
}

// ScrapeConfig governs the scraping orchestrators.
type ScrapeConfig struct {
	BaseURL             string   `mapstructure:"base_url"`
	Concurrency         int      `mapstructure:"concurrency"`
	TaskTimeoutSeconds  int      `mapstructure:"task_timeout_seconds"`
	Letters             []string `mapstructure:"letters"`
	Pages               int      `mapstructure:"pages"`
	RefreshAfterMinutes int      `mapstructure:"refresh_after_minutes"`
}

// TaskTimeout bounds one detail-page scrape.
func (c ScrapeConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutSeconds) * time.Second
}

// RefreshAfter is the staleness threshold of the refresh workflow.
func (c ScrapeConfig) RefreshAfter() time.Duration {
	return time.Duration(c.RefreshAfterMinutes) * time.Minute
}

// ExtractConfig selects the field extraction strategy.
type ExtractConfig struct {
	Strategy     string `mapstructure:"strategy"`
	FillDefaults bool   `mapstructure:"fill_defaults"`
}

// DBConfig controls access to the relational database. An empty DSN selects the in-memory store.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
	MigrateOnStart         bool   `mapstructure:"migrate_on_start"`
	InsertConcurrency      int    `mapstructure:"insert_concurrency"`
}

// MaxConnLifetime is the pool connection lifetime.
func (c DBConfig) MaxConnLifetime() time.Duration {
	return time.Duration(c.MaxConnLifetimeMinutes) * time.Minute
}

// StorageConfig sets the backend, paths and content type for the raw page archive.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"`
	GCSBucket   string `mapstructure:"gcs_bucket"`
	BaseDir     string `mapstructure:"base_dir"`
	Prefix      string `mapstructure:"prefix"`
	ContentType string `mapstructure:"content_type"`
}

// PubSubConfig holds metadata for run summary notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// APIConfig tunes the HTTP API and its run workers.
type APIConfig struct {
	CacheTTLSeconds       int `mapstructure:"cache_ttl_seconds"`
	QueueDepth            int `mapstructure:"queue_depth"`
	Workers               int `mapstructure:"workers"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// CacheTTL is how long read responses are cached.
func (c APIConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RequestTimeout bounds one API request.
func (c APIConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from a .env file, the environment and an optional config file.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Every key gets a default so AutomaticEnv can override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("http.user_agent", "borsa-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.rate_per_second", 0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("backoff.max_retries", 5)
	v.SetDefault("backoff.base_ms", 100)
	v.SetDefault("backoff.cap_ms", 30000)
	v.SetDefault("backoff.max_exponent", 10)
	v.SetDefault("scrape.base_url", "https://www.borsaitaliana.it")
	v.SetDefault("scrape.concurrency", 8)
	v.SetDefault("scrape.task_timeout_seconds", 300)
	v.SetDefault("scrape.letters", strings.Split("ABCDEFGHIJKLMNOPQRSTUVWXYZ", ""))
	v.SetDefault("scrape.pages", 5)
	v.SetDefault("scrape.refresh_after_minutes", 15)
	v.SetDefault("extract.strategy", "label")
	v.SetDefault("extract.fill_defaults", false)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.migrate_on_start", false)
	v.SetDefault("db.insert_concurrency", 8)
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.base_dir", "archive")
	v.SetDefault("storage.prefix", "pages")
	v.SetDefault("storage.content_type", "text/html; charset=utf-8")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("api.cache_ttl_seconds", 60)
	v.SetDefault("api.queue_depth", 16)
	v.SetDefault("api.workers", 1)
	v.SetDefault("api.request_timeout_seconds", 30)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.RatePerSecond < 0 {
		return fmt.Errorf("http.rate_per_second must be >= 0")
	}
	if c.Backoff.MaxRetries <= 0 {
		return fmt.Errorf("backoff.max_retries must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.TaskTimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.task_timeout_seconds must be > 0")
	}
	if c.Scrape.Pages <= 0 {
		return fmt.Errorf("scrape.pages must be > 0")
	}
	if len(c.Scrape.Letters) == 0 {
		return fmt.Errorf("scrape.letters must not be empty")
	}
	switch strings.ToLower(c.Extract.Strategy) {
	case "", "label", "positional":
	default:
		return fmt.Errorf("extract.strategy must be label or positional, got %q", c.Extract.Strategy)
	}
	if c.DB.MinConns > c.DB.MaxConns {
		return fmt.Errorf("db.min_conns must be <= db.max_conns")
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend must be one of none, memory, local, gcs, got %q", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is")
	}
	if c.API.Workers <= 0 {
		return fmt.Errorf("api.workers must be > 0")
	}
	if c.API.QueueDepth <= 0 {
		return fmt.Errorf("api.queue_depth must be > 0")
	}
	return nil
}
