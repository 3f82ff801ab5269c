package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
http:
  user_agent: test-agent
  timeout_seconds: 45
  respect_robots: true
  rate_per_second: 2.5
  burst: 3
backoff:
  max_retries: 4
  base_ms: 50
  cap_ms: 500
scrape:
  concurrency: 6
  task_timeout_seconds: 20
  letters: ["A", "B"]
  pages: 2
  refresh_after_minutes: 30
extract:
  strategy: positional
  fill_defaults: true
db:
  dsn: postgres://localhost/borsa
  max_conns: 4
  min_conns: 1
storage:
  backend: gcs
  gcs_bucket: bucket
  prefix: raw
pubsub:
  project_id: proj
  topic_name: runs
api:
  cache_ttl_seconds: 5
  workers: 2
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.HTTP.Timeout() != 45*time.Second || !cfg.HTTP.RespectRobots || cfg.HTTP.RatePerSecond != 2.5 {
		t.Fatalf("expected http overrides to apply: %+v", cfg.HTTP)
	}
	if cfg.Backoff.Base() != 50*time.Millisecond || cfg.Backoff.Cap() != 500*time.Millisecond {
		t.Fatalf("expected backoff overrides to apply: %+v", cfg.Backoff)
	}
	if got := strings.Join(cfg.Scrape.Letters, ""); got != "AB" || cfg.Scrape.Pages != 2 {
		t.Fatalf("expected a 2x2 listing grid, got letters %q pages %d", got, cfg.Scrape.Pages)
	}
	if cfg.Scrape.RefreshAfter() != 30*time.Minute || cfg.Scrape.TaskTimeout() != 20*time.Second {
		t.Fatalf("expected scrape durations to apply: %+v", cfg.Scrape)
	}
	if cfg.Extract.Strategy != "positional" || !cfg.Extract.FillDefaults {
		t.Fatalf("expected extract overrides: %+v", cfg.Extract)
	}
	if cfg.DB.MaxConns != 4 || cfg.DB.MinConns != 1 || cfg.DB.MaxConnLifetime() != 30*time.Minute {
		t.Fatalf("expected db overrides with default lifetime: %+v", cfg.DB)
	}
	if cfg.Storage.Backend != BackendGCS || cfg.Storage.ContentType != "text/html; charset=utf-8" {
		t.Fatalf("expected storage overrides with default content type: %+v", cfg.Storage)
	}
	if cfg.API.CacheTTL() != 5*time.Second || cfg.API.Workers != 2 || cfg.API.QueueDepth != 16 {
		t.Fatalf("expected api overrides: %+v", cfg.API)
	}
	if cfg.Logging.Development {
		t.Fatalf("expected production logging")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Scrape.Letters) != 26 || cfg.Scrape.Pages != 5 {
		t.Fatalf("expected the full A-Z grid, got %d letters and %d pages", len(cfg.Scrape.Letters), cfg.Scrape.Pages)
	}
	if cfg.Scrape.RefreshAfter() != 15*time.Minute {
		t.Fatalf("expected 15m refresh threshold, got %v", cfg.Scrape.RefreshAfter())
	}
	if cfg.Storage.Backend != BackendNone || cfg.DB.DSN != "" {
		t.Fatalf("expected archive and database to be off by default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BORSA_SERVER_PORT", "7070")
	t.Setenv("BORSA_DB_DSN", "postgres://env/borsa")
	t.Setenv("BORSA_SCRAPE_LETTERS", "X,Y,Z")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.DB.DSN != "postgres://env/borsa" {
		t.Fatalf("expected env dsn, got %q", cfg.DB.DSN)
	}
	if got := strings.Join(cfg.Scrape.Letters, ""); got != "XYZ" {
		t.Fatalf("expected env letters, got %q", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Backoff: BackoffConfig{MaxRetries: 5},
		Scrape:  ScrapeConfig{Concurrency: 1, TaskTimeoutSeconds: 1, Pages: 1, Letters: []string{"A"}},
		Storage: StorageConfig{Backend: BackendNone},
		API:     APIConfig{Workers: 1, QueueDepth: 1},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should be valid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "invalid port", mutate: func(c *Config) { c.Server.Port = 0 }, want: "server.port"},
		{name: "auth missing api key", mutate: func(c *Config) { c.Auth.Enabled = true }, want: "auth.api_key"},
		{name: "invalid timeout", mutate: func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, want: "http.timeout_seconds"},
		{name: "negative rate", mutate: func(c *Config) { c.HTTP.RatePerSecond = -1 }, want: "http.rate_per_second"},
		{name: "no retries", mutate: func(c *Config) { c.Backoff.MaxRetries = 0 }, want: "backoff.max_retries"},
		{name: "invalid concurrency", mutate: func(c *Config) { c.Scrape.Concurrency = 0 }, want: "scrape.concurrency"},
		{name: "no letters", mutate: func(c *Config) { c.Scrape.Letters = nil }, want: "scrape.letters"},
		{name: "unknown strategy", mutate: func(c *Config) { c.Extract.Strategy = "xpath" }, want: "extract.strategy"},
		{name: "min over max conns", mutate: func(c *Config) { c.DB.MinConns = 2 }, want: "db.min_conns"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Storage.Backend = BackendGCS }, want: "storage.gcs_bucket"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "s3" }, want: "storage.backend"},
		{name: "topic without project", mutate: func(c *Config) { c.PubSub.TopicName = "runs" }, want: "pubsub.project_id"},
		{name: "no workers", mutate: func(c *Config) { c.API.Workers = 0 }, want: "api.workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Scrape.Letters = append([]string(nil), base.Scrape.Letters...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
